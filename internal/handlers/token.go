package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/middleware"
	"github.com/example/atelier/internal/models"
)

// TokenHandler maintains the registry of tailor loyalty token mints. Minting
// itself happens from the tailor's own wallet; the server only records the
// resulting mint so customers can discover it.
type TokenHandler struct {
	db *gorm.DB
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(db *gorm.DB) *TokenHandler {
	return &TokenHandler{db: db}
}

type tokenRequest struct {
	MintAddress   string          `json:"mint_address"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	Decimals      int             `json:"decimals"`
	InitialSupply decimal.Decimal `json:"initial_supply"`
	TxSignature   string          `json:"tx_signature"`
}

// Register records a freshly minted loyalty token for the authenticated
// tailor. A mint address can only be registered once.
func (h *TokenHandler) Register(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	if middleware.GetCurrentAccountType(c) != models.AccountTypeTailor {
		return fiber.NewError(fiber.StatusForbidden, "only tailors can register tokens")
	}

	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.MintAddress == "" || req.Name == "" || req.Symbol == "" {
		return fiber.NewError(fiber.StatusBadRequest, "mint_address, name and symbol are required")
	}
	if req.InitialSupply.Sign() < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "initial_supply cannot be negative")
	}

	var existing models.TailorToken
	err := h.db.First(&existing, "mint_address = ?", req.MintAddress).Error
	if err == nil {
		return fiber.NewError(fiber.StatusConflict, "mint address already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	token := models.TailorToken{
		TailorID:      userID,
		MintAddress:   req.MintAddress,
		Name:          req.Name,
		Symbol:        req.Symbol,
		Decimals:      req.Decimals,
		InitialSupply: req.InitialSupply,
		TxSignature:   req.TxSignature,
	}

	if err := h.db.Create(&token).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}

// ListByTailor returns the tokens a tailor has registered.
func (h *TokenHandler) ListByTailor(c *fiber.Ctx) error {
	tailorID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var tokens []models.TailorToken
	if err := h.db.Where("tailor_id = ?", tailorID).Order("created_at desc").Find(&tokens).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"tokens":  tokens,
	})
}

// GetByMint looks a token up by its mint address.
func (h *TokenHandler) GetByMint(c *fiber.Ctx) error {
	mint := c.Params("mint")
	if mint == "" {
		return fiber.NewError(fiber.StatusBadRequest, "mint address is required")
	}

	var token models.TailorToken
	if err := h.db.Preload("Tailor").First(&token, "mint_address = ?", mint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "token not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}
