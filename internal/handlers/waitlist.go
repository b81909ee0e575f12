package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/models"
)

// WaitlistHandler collects pre-launch signups.
type WaitlistHandler struct {
	db *gorm.DB
}

// NewWaitlistHandler constructs a WaitlistHandler.
func NewWaitlistHandler(db *gorm.DB) *WaitlistHandler {
	return &WaitlistHandler{db: db}
}

type waitlistRequest struct {
	Contact string `json:"contact"`
	Name    string `json:"name"`
}

// Join adds a contact (email or phone) to the waitlist. Re-joining with the
// same contact is a no-op success so the form never shows an error for an
// already signed-up visitor.
func (h *WaitlistHandler) Join(c *fiber.Ctx) error {
	var req waitlistRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	contact := strings.ToLower(strings.TrimSpace(req.Contact))
	if contact == "" {
		return fiber.NewError(fiber.StatusBadRequest, "contact is required")
	}

	var existing models.WaitlistEntry
	err := h.db.First(&existing, "contact = ?", contact).Error
	if err == nil {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "you're on the list",
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	entry := models.WaitlistEntry{
		Contact: contact,
		Name:    req.Name,
		IsEmail: strings.Contains(contact, "@"),
	}
	if err := h.db.Create(&entry).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "you're on the list",
	})
}
