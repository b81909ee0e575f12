package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/middleware"
	"github.com/example/atelier/internal/models"
	"github.com/example/atelier/internal/utils"
)

// DesignHandler serves the design catalog. Mutations are restricted to the
// owning tailor.
type DesignHandler struct {
	db *gorm.DB
}

// NewDesignHandler constructs a DesignHandler.
func NewDesignHandler(db *gorm.DB) *DesignHandler {
	return &DesignHandler{db: db}
}

type designRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	ImageURL        string          `json:"image_url"`
	AverageTimeline string          `json:"average_timeline"`
}

// Create adds a design for the authenticated tailor.
func (h *DesignHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	if !user.IsTailor() {
		return fiber.NewError(fiber.StatusForbidden, "only tailors can create designs")
	}

	var req designRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Title == "" || req.Description == "" || req.AverageTimeline == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if req.Price.Sign() <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "price must be positive")
	}

	design := models.Design{
		TailorID:        userID,
		Title:           req.Title,
		Description:     req.Description,
		Price:           req.Price,
		ImageURL:        req.ImageURL,
		AverageTimeline: req.AverageTimeline,
	}

	if err := h.db.Create(&design).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"design":  design,
	})
}

// List returns all designs, newest first, for the homepage.
func (h *DesignHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	var designs []models.Design
	err := h.db.Preload("Tailor").
		Order("created_at desc").
		Limit(p.Limit).Offset(p.Offset).
		Find(&designs).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"designs": designs,
		"page":    p.Page,
	})
}

// ListByTailor returns one tailor's designs.
func (h *DesignHandler) ListByTailor(c *fiber.Ctx) error {
	tailorID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	p := utils.ParsePagination(c)

	var designs []models.Design
	err = h.db.Where("tailor_id = ?", tailorID).
		Order("created_at desc").
		Limit(p.Limit).Offset(p.Offset).
		Find(&designs).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"designs": designs,
	})
}

// Get returns a single design.
func (h *DesignHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var design models.Design
	if err := h.db.Preload("Tailor").First(&design, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "design not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"design":  design,
	})
}

type designUpdateRequest struct {
	Title           *string          `json:"title"`
	Description     *string          `json:"description"`
	Price           *decimal.Decimal `json:"price"`
	ImageURL        *string          `json:"image_url"`
	AverageTimeline *string          `json:"average_timeline"`
}

// Update mutates a design. Owner-only.
func (h *DesignHandler) Update(c *fiber.Ctx) error {
	design, err := h.loadOwned(c)
	if err != nil {
		return err
	}

	var req designUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Title != nil {
		design.Title = *req.Title
	}
	if req.Description != nil {
		design.Description = *req.Description
	}
	if req.Price != nil {
		if req.Price.Sign() <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "price must be positive")
		}
		design.Price = *req.Price
	}
	if req.ImageURL != nil {
		design.ImageURL = *req.ImageURL
	}
	if req.AverageTimeline != nil {
		design.AverageTimeline = *req.AverageTimeline
	}

	if err := h.db.Save(design).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"design":  design,
	})
}

// Delete removes a design. Owner-only.
func (h *DesignHandler) Delete(c *fiber.Ctx) error {
	design, err := h.loadOwned(c)
	if err != nil {
		return err
	}

	if err := h.db.Delete(design).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "design deleted",
	})
}

// loadOwned fetches the design addressed by the :id param and verifies the
// caller owns it.
func (h *DesignHandler) loadOwned(c *fiber.Ctx) (*models.Design, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil, err
	}

	var design models.Design
	if err := h.db.First(&design, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "design not found")
		}
		return nil, err
	}

	if design.TailorID != userID {
		return nil, fiber.NewError(fiber.StatusForbidden, "you don't have permission to modify this design")
	}

	return &design, nil
}
