package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/chain"
	"github.com/example/atelier/internal/config"
	"github.com/example/atelier/internal/handlers"
	"github.com/example/atelier/internal/metrics"
	"github.com/example/atelier/internal/middleware"
	"github.com/example/atelier/internal/services"
)

// Deps carries the long-lived components routes need beyond db and config.
// They are composed in main so tests can substitute fakes.
type Deps struct {
	OTP      *services.OTPService
	Orders   *services.OrderService
	Hub      *services.ChatHub
	Chain    *chain.Client
	Guard    *chain.Guard
	Builder  *chain.Builder
	Funding  chain.FundingProvider
	Treasury chain.Wallet
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	authHandler := handlers.NewAuthHandler(db, cfg, deps.OTP)
	profileHandler := handlers.NewProfileHandler(db)
	designHandler := handlers.NewDesignHandler(db)
	orderHandler := handlers.NewOrderHandler(db, deps.Orders)
	chatHandler := handlers.NewChatHandler(db, deps.Hub)
	rewardHandler := handlers.NewRewardHandler(db)
	tokenHandler := handlers.NewTokenHandler(db)
	paymentHandler := handlers.NewPaymentHandler(db, cfg, deps.Chain, deps.Guard, deps.Builder, deps.Funding, deps.Treasury)
	waitlistHandler := handlers.NewWaitlistHandler(db)

	app.Get("/metrics", metrics.Handler())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/request-otp", authHandler.RequestOTP)
	auth.Post("/login", authHandler.Login)

	// Public user lookups
	api.Get("/users/exists", authHandler.Exists)
	api.Get("/users/by-wallet", profileHandler.GetByWallet)
	api.Get("/users/:id", profileHandler.GetUser)

	// Designs: browsing is public, mutation requires a tailor account.
	designs := api.Group("/designs")
	designs.Get("/", designHandler.List)
	designs.Get("/:id", designHandler.Get)

	// Orders can be placed by guests, so creation stays public.
	api.Post("/orders", orderHandler.Create)

	// Rewards and token registry are public to browse.
	api.Get("/tailors/:id/designs", designHandler.ListByTailor)
	api.Get("/tailors/:id/rewards", rewardHandler.ListByTailor)
	api.Get("/tailors/:id/tokens", tokenHandler.ListByTailor)
	api.Get("/rewards/:id", rewardHandler.Get)
	api.Get("/tokens/:mint", tokenHandler.GetByMint)

	api.Post("/waitlist", waitlistHandler.Join)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)

	protected.Post("/designs", designHandler.Create)
	protected.Put("/designs/:id", designHandler.Update)
	protected.Delete("/designs/:id", designHandler.Delete)

	protected.Get("/orders", orderHandler.List)
	protected.Post("/orders/check-deadlines", orderHandler.CheckDeadlines)
	protected.Get("/orders/:id", orderHandler.Get)
	protected.Post("/orders/:id/accept", orderHandler.Accept)
	protected.Post("/orders/:id/reject", orderHandler.Reject)
	protected.Put("/orders/:id/status", orderHandler.UpdateStatus)
	protected.Put("/orders/:id/progress", orderHandler.UpdateProgress)

	// Tailor dashboards
	protected.Get("/tailor/orders/summary", orderHandler.Summary)
	protected.Get("/tailor/orders/recent", orderHandler.Recent)
	protected.Get("/tailor/orders/pending", orderHandler.PendingAcceptance)

	protected.Get("/orders/:id/chat", chatHandler.History)
	protected.Post("/orders/:id/chat", chatHandler.Send)
	protected.Get("/ws/orders/:id/chat", chatHandler.StreamUpgrade, chatHandler.Stream())

	protected.Post("/rewards", rewardHandler.Create)
	protected.Put("/rewards/:id", rewardHandler.Update)
	protected.Delete("/rewards/:id", rewardHandler.Delete)
	protected.Post("/rewards/:id/redeem", rewardHandler.Redeem)

	protected.Post("/tokens", tokenHandler.Register)

	protected.Get("/wallet/balances", paymentHandler.Balances)
	protected.Post("/payments/check", paymentHandler.Check)
	protected.Post("/payments/transfer", paymentHandler.BuildTransfer)
	protected.Post("/payments/fund", paymentHandler.Fund)
	protected.Post("/payments/payout", paymentHandler.Payout)
}
