package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/middleware"
	"github.com/example/atelier/internal/models"
)

// RewardHandler serves reward CRUD and redemption. Mutations are
// owner-only; redemption enforces the validity window and cap.
type RewardHandler struct {
	db *gorm.DB
}

// NewRewardHandler constructs a RewardHandler.
func NewRewardHandler(db *gorm.DB) *RewardHandler {
	return &RewardHandler{db: db}
}

type rewardRequest struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Type           string           `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	MinSpend       *decimal.Decimal `json:"min_spend"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        time.Time        `json:"end_date"`
	IsActive       *bool            `json:"is_active"`
	ImageURL       string           `json:"image_url"`
	MaxRedemptions *int             `json:"max_redemptions"`
}

// Create adds a reward for the authenticated tailor.
func (h *RewardHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	if middleware.GetCurrentAccountType(c) != models.AccountTypeTailor {
		return fiber.NewError(fiber.StatusForbidden, "only tailors can create rewards")
	}

	var req rewardRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.Name) < 3 || req.Description == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if !models.ValidRewardType(req.Type) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid reward type")
	}
	if req.Value.Sign() <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "value must be positive")
	}
	if !req.EndDate.After(req.StartDate) {
		return fiber.NewError(fiber.StatusBadRequest, "end date must be after start date")
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	reward := models.Reward{
		TailorID:       userID,
		Name:           req.Name,
		Description:    req.Description,
		Type:           req.Type,
		Value:          req.Value,
		MinSpend:       req.MinSpend,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		IsActive:       isActive,
		ImageURL:       req.ImageURL,
		MaxRedemptions: req.MaxRedemptions,
	}

	if err := h.db.Create(&reward).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"reward":  reward,
	})
}

// ListByTailor returns a tailor's rewards. Expired and inactive rewards
// are hidden unless asked for.
func (h *RewardHandler) ListByTailor(c *fiber.Ctx) error {
	tailorID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	query := h.db.Where("tailor_id = ?", tailorID)
	if c.Query("include_inactive") != "true" {
		query = query.Where("is_active = ?", true)
	}
	if c.Query("include_expired") != "true" {
		query = query.Where("end_date >= ?", time.Now())
	}

	var rewards []models.Reward
	if err := query.Order("created_at desc").Find(&rewards).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"rewards": rewards,
	})
}

// Get returns one reward.
func (h *RewardHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var reward models.Reward
	if err := h.db.Preload("Tailor").First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "reward not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"reward":  reward,
	})
}

type rewardUpdateRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	Type           *string          `json:"type"`
	Value          *decimal.Decimal `json:"value"`
	MinSpend       *decimal.Decimal `json:"min_spend"`
	StartDate      *time.Time       `json:"start_date"`
	EndDate        *time.Time       `json:"end_date"`
	IsActive       *bool            `json:"is_active"`
	ImageURL       *string          `json:"image_url"`
	MaxRedemptions *int             `json:"max_redemptions"`
}

// Update mutates a reward. Owner-only.
func (h *RewardHandler) Update(c *fiber.Ctx) error {
	reward, err := h.loadOwned(c)
	if err != nil {
		return err
	}

	var req rewardUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != nil {
		reward.Name = *req.Name
	}
	if req.Description != nil {
		reward.Description = *req.Description
	}
	if req.Type != nil {
		if !models.ValidRewardType(*req.Type) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid reward type")
		}
		reward.Type = *req.Type
	}
	if req.Value != nil {
		reward.Value = *req.Value
	}
	if req.MinSpend != nil {
		reward.MinSpend = req.MinSpend
	}
	if req.StartDate != nil {
		reward.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		reward.EndDate = *req.EndDate
	}
	if req.IsActive != nil {
		reward.IsActive = *req.IsActive
	}
	if req.ImageURL != nil {
		reward.ImageURL = *req.ImageURL
	}
	if req.MaxRedemptions != nil {
		reward.MaxRedemptions = req.MaxRedemptions
	}

	if err := h.db.Save(reward).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"reward":  reward,
	})
}

// Delete removes a reward. Owner-only.
func (h *RewardHandler) Delete(c *fiber.Ctx) error {
	reward, err := h.loadOwned(c)
	if err != nil {
		return err
	}

	if err := h.db.Delete(reward).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "reward deleted",
	})
}

// Redeem records a redemption for the authenticated customer. The cap is
// enforced by a guarded atomic increment rather than a read-modify-write, so
// concurrent redemptions under read-committed isolation cannot overshoot it.
func (h *RewardHandler) Redeem(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var redemption models.RewardRedemption
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var reward models.Reward
		if err := tx.First(&reward, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "reward not found")
			}
			return err
		}

		if !reward.Redeemable(time.Now()) {
			return fiber.NewError(fiber.StatusBadRequest, "reward is not redeemable")
		}

		// The cap guard rides on the UPDATE itself: two concurrent
		// redemptions of the last slot race on redemption_count, and only
		// the one whose increment passes the predicate gets to insert.
		res := tx.Model(&models.Reward{}).
			Where("id = ? AND (max_redemptions IS NULL OR redemption_count < max_redemptions)", reward.ID).
			UpdateColumn("redemption_count", gorm.Expr("redemption_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "reward is not redeemable")
		}

		redemption = models.RewardRedemption{RewardID: reward.ID, UserID: userID}
		return tx.Create(&redemption).Error
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"redemption": redemption,
	})
}

func (h *RewardHandler) loadOwned(c *fiber.Ctx) (*models.Reward, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil, err
	}

	var reward models.Reward
	if err := h.db.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "reward not found")
		}
		return nil, err
	}

	if reward.TailorID != userID {
		return nil, fiber.NewError(fiber.StatusForbidden, "you don't have permission to modify this reward")
	}

	return &reward, nil
}
