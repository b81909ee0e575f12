package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/config"
	"github.com/example/atelier/internal/metrics"
	"github.com/example/atelier/internal/models"
	"github.com/example/atelier/internal/services"
	"github.com/example/atelier/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
	otp *services.OTPService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, otp *services.OTPService) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, otp: otp}
}

type registerRequest struct {
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	WalletAddress string `json:"wallet_address"`
	AccountType   string `json:"account_type"`
}

// Register creates a new user account. Either email or phone is required.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" && req.Phone == "" {
		return fiber.NewError(fiber.StatusBadRequest, "either email or phone is required")
	}

	accountType := models.AccountTypeCustomer
	if req.AccountType != "" {
		if req.AccountType != models.AccountTypeCustomer && req.AccountType != models.AccountTypeTailor {
			return fiber.NewError(fiber.StatusBadRequest, "invalid account type")
		}
		accountType = req.AccountType
	}

	if existing, err := h.findByIdentifiers(req.Email, req.Phone); err != nil {
		return err
	} else if existing != nil {
		return fiber.NewError(fiber.StatusConflict, "user with this email or phone already exists")
	}

	user := models.User{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		AccountType: accountType,
	}
	if req.Email != "" {
		user.Email = &req.Email
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if req.WalletAddress != "" {
		user.WalletAddress = &req.WalletAddress
	}

	if err := h.db.Create(&user).Error; err != nil {
		return err
	}

	if err := h.otp.RequestCode(c.Context(), &user); err != nil && !errors.Is(err, services.ErrTooManyRequests) {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to issue verification code")
	}
	metrics.OTPRequests.Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    publicUser(&user),
	})
}

type requestOTPRequest struct {
	Identifier string `json:"identifier"`
}

// RequestOTP issues a fresh one-time code for an existing user, identified
// by email or phone.
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var req requestOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.findByIdentifier(req.Identifier)
	if err != nil {
		return err
	}
	if user == nil {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	if err := h.otp.RequestCode(c.Context(), user); err != nil {
		if errors.Is(err, services.ErrTooManyRequests) {
			return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
		}
		return err
	}
	metrics.OTPRequests.Inc()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "verification code sent",
	})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

// Login verifies an OTP and returns a session token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.findByIdentifier(req.Identifier)
	if err != nil {
		return err
	}
	if user == nil {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	valid, err := h.otp.VerifyCode(c.Context(), user.ID, req.OTP)
	if err != nil {
		return err
	}
	if !valid {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid verification code")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.AccountType, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    publicUser(user),
		"token":   token,
	})
}

// Exists reports whether a user with the given identifier is registered.
// Replaces the legacy "check-only" login probe.
func (h *AuthHandler) Exists(c *fiber.Ctx) error {
	identifier := c.Query("identifier")
	if identifier == "" {
		return fiber.NewError(fiber.StatusBadRequest, "identifier query parameter required")
	}

	user, err := h.findByIdentifier(identifier)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"exists":  user != nil,
	})
}

func (h *AuthHandler) findByIdentifier(identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "identifier required")
	}

	if strings.Contains(identifier, "@") {
		return h.findByIdentifiers(identifier, "")
	}
	return h.findByIdentifiers("", identifier)
}

func (h *AuthHandler) findByIdentifiers(email, phone string) (*models.User, error) {
	var user models.User
	query := h.db
	switch {
	case email != "" && phone != "":
		query = query.Where("email = ? OR phone = ?", email, phone)
	case email != "":
		query = query.Where("email = ?", email)
	case phone != "":
		query = query.Where("phone = ?", phone)
	default:
		return nil, nil
	}

	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func publicUser(u *models.User) fiber.Map {
	return fiber.Map{
		"id":             u.ID,
		"email":          u.Email,
		"phone":          u.Phone,
		"first_name":     u.FirstName,
		"last_name":      u.LastName,
		"display_name":   u.DisplayName(),
		"wallet_address": u.WalletAddress,
		"account_type":   u.AccountType,
	}
}
