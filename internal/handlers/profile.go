package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/middleware"
	"github.com/example/atelier/internal/models"
)

// ProfileHandler serves the authenticated user's own record plus public
// user lookups.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// GetProfile returns the current user.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    publicUser(&user),
	})
}

type updateProfileRequest struct {
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	WalletAddress *string `json:"wallet_address"`
	AccountType   *string `json:"account_type"`
}

// UpdateProfile mutates the current user's record. This is also how a
// wallet address gets attached after a wallet connects.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	if req.Email != nil {
		user.Email = req.Email
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.WalletAddress != nil {
		user.WalletAddress = req.WalletAddress
	}
	if req.AccountType != nil {
		if *req.AccountType != models.AccountTypeCustomer && *req.AccountType != models.AccountTypeTailor {
			return fiber.NewError(fiber.StatusBadRequest, "invalid account type")
		}
		user.AccountType = *req.AccountType
	}

	if err := h.db.Save(&user).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    publicUser(&user),
	})
}

// GetByWallet looks up a user by wallet address. May legitimately find
// nobody; that is not an error for the caller.
func (h *ProfileHandler) GetByWallet(c *fiber.Ctx) error {
	address := c.Query("address")
	if address == "" {
		return fiber.NewError(fiber.StatusBadRequest, "address query parameter required")
	}

	var user models.User
	if err := h.db.First(&user, "wallet_address = ?", address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{
				"success": true,
				"user":    nil,
			})
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    publicUser(&user),
	})
}

// GetUser returns a user's public record by ID.
func (h *ProfileHandler) GetUser(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    publicUser(&user),
	})
}
