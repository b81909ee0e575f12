package handlers

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/chain"
	"github.com/example/atelier/internal/config"
	"github.com/example/atelier/internal/middleware"
	"github.com/example/atelier/internal/models"
)

// PaymentHandler exposes the wallet and payment surface: balance lookups,
// the pre-flight balance gate, transfer building, funding sessions, and
// treasury payouts.
type PaymentHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	chain    *chain.Client
	guard    *chain.Guard
	builder  *chain.Builder
	funding  chain.FundingProvider
	treasury chain.Wallet
}

// NewPaymentHandler constructs a PaymentHandler. treasury may be nil when no
// treasury key is configured; payouts are then rejected.
func NewPaymentHandler(db *gorm.DB, cfg *config.Config, cl *chain.Client, guard *chain.Guard, builder *chain.Builder, funding chain.FundingProvider, treasury chain.Wallet) *PaymentHandler {
	return &PaymentHandler{
		db:       db,
		cfg:      cfg,
		chain:    cl,
		guard:    guard,
		builder:  builder,
		funding:  funding,
		treasury: treasury,
	}
}

// Balances returns the SOL and USDC balances for a wallet. The wallet comes
// from the ?wallet= query, defaulting to the authenticated user's attached
// address.
func (h *PaymentHandler) Balances(c *fiber.Ctx) error {
	owner, err := h.resolveWallet(c, c.Query("wallet"))
	if err != nil {
		return err
	}

	bals, err := h.chain.Balances(c.Context(), owner)
	if err != nil {
		// Partial results are still useful to the client; flag the
		// degradation instead of failing the request.
		return c.JSON(fiber.Map{
			"success":  true,
			"balances": bals,
			"degraded": true,
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"balances": bals,
	})
}

type gateCheckRequest struct {
	Wallet string          `json:"wallet"`
	Amount decimal.Decimal `json:"amount"`
}

// Check runs the balance gate for a prospective payment. Blocked decisions
// carry a funding session pre-populated with the required amount.
func (h *PaymentHandler) Check(c *fiber.Ctx) error {
	var req gateCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Amount.Sign() <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	owner, err := h.resolveWallet(c, req.Wallet)
	if err != nil {
		return err
	}

	decision := h.guard.Check(c.Context(), owner, req.Amount)

	return c.JSON(fiber.Map{
		"success":  true,
		"decision": decision,
	})
}

type transferRequest struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// BuildTransfer assembles an unsigned USDC transfer and returns it base64
// encoded for the client's wallet to sign. The recipient defaults to the
// platform payment wallet. The gate runs first; blocked payments get the
// funding decision back instead of a transaction.
func (h *PaymentHandler) BuildTransfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sender, err := h.resolveWallet(c, req.Sender)
	if err != nil {
		return err
	}

	recipientAddr := req.Recipient
	if recipientAddr == "" {
		recipientAddr = h.cfg.PaymentWalletAddress
	}
	recipient, err := solana.PublicKeyFromBase58(recipientAddr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid recipient address")
	}

	decision := h.guard.Check(c.Context(), sender, req.Amount)
	if !decision.Allowed {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"success":  false,
			"decision": decision,
		})
	}

	tx, err := h.builder.BuildUSDCTransfer(c.Context(), sender, recipient, req.Amount)
	if err != nil {
		if err == chain.ErrInvalidAmount {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	encoded, err := tx.ToBase64()
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"transaction": encoded,
		"decision":    decision,
	})
}

type fundingRequest struct {
	Wallet string          `json:"wallet"`
	Amount decimal.Decimal `json:"amount"`
}

// Fund opens a funding session for a wallet without running the gate, for
// clients that want to top up proactively.
func (h *PaymentHandler) Fund(c *fiber.Ctx) error {
	var req fundingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Amount.Sign() <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	owner, err := h.resolveWallet(c, req.Wallet)
	if err != nil {
		return err
	}

	session, err := h.funding.CreateSession(c.Context(), owner.String(), req.Amount)
	if err != nil {
		session = &chain.FundingSession{URL: h.funding.FallbackURL(), Amount: req.Amount}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"funding": session,
	})
}

type payoutRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Payout sends USDC from the platform treasury to the authenticated tailor's
// attached wallet.
func (h *PaymentHandler) Payout(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	if middleware.GetCurrentAccountType(c) != models.AccountTypeTailor {
		return fiber.NewError(fiber.StatusForbidden, "only tailors can receive payouts")
	}
	if h.treasury == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "treasury wallet is not configured")
	}

	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Amount.Sign() <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}
	if user.WalletAddress == nil || *user.WalletAddress == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no wallet attached to this account")
	}
	recipient, err := solana.PublicKeyFromBase58(*user.WalletAddress)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "attached wallet address is invalid")
	}

	sig, err := h.builder.Send(c.Context(), h.treasury, recipient, req.Amount)
	if err != nil {
		if err == chain.ErrInvalidAmount {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"signature": sig.String(),
	})
}

// resolveWallet parses the given address, falling back to the authenticated
// user's attached wallet when none is supplied.
func (h *PaymentHandler) resolveWallet(c *fiber.Ctx, addr string) (solana.PublicKey, error) {
	if addr == "" {
		userID, ok := middleware.GetCurrentUserID(c)
		if !ok {
			return solana.PublicKey{}, fiber.NewError(fiber.StatusBadRequest, "wallet address is required")
		}
		var user models.User
		if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
			return solana.PublicKey{}, err
		}
		if user.WalletAddress == nil || *user.WalletAddress == "" {
			return solana.PublicKey{}, fiber.NewError(fiber.StatusBadRequest, "no wallet attached to this account")
		}
		addr = *user.WalletAddress
	}

	key, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return solana.PublicKey{}, fiber.NewError(fiber.StatusBadRequest, "invalid wallet address")
	}
	return key, nil
}
