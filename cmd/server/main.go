package main

import (
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/example/atelier/internal/cache"
	"github.com/example/atelier/internal/chain"
	"github.com/example/atelier/internal/config"
	"github.com/example/atelier/internal/database"
	"github.com/example/atelier/internal/metrics"
	"github.com/example/atelier/internal/routes"
	"github.com/example/atelier/internal/services"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	var balanceCache cache.Cache
	if cfg.RedisAddr != "" {
		balanceCache = cache.NewRedis(cfg.RedisAddr, cfg.BalanceCacheTTL, log)
	} else {
		balanceCache = cache.NewMemory(cfg.BalanceCacheTTL)
	}

	usdcMint, err := solana.PublicKeyFromBase58(cfg.USDCMintAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid USDC mint address")
	}

	rpcClient := rpc.New(cfg.SolanaRPCURL)
	chainClient := chain.NewClient(rpcClient, usdcMint, balanceCache, log)
	builder := chain.NewBuilder(rpcClient, usdcMint, log)
	funding := services.NewFundingService(cfg, log)
	guard := chain.NewGuard(chainClient, funding, log)
	guard.OnAttempt(func(ev chain.AttemptEvent) {
		metrics.GateOutcome(ev.Allowed)
	})

	var treasury chain.Wallet
	if cfg.TreasurySecretKey != "" {
		w, err := chain.NewLocalWallet(cfg.TreasurySecretKey, rpcClient)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid treasury secret key")
		}
		treasury = w
	}

	otp := services.NewOTPService(db, cfg, log)
	orders := services.NewOrderService(db, log)
	hub := services.NewChatHub(log)

	sweeper := services.NewSweeper(orders, cfg.SweepSchedule, log)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start deadline sweeper")
	}

	app := fiber.New(fiber.Config{
		AppName: "Atelier Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, routes.Deps{
		OTP:      otp,
		Orders:   orders,
		Hub:      hub,
		Chain:    chainClient,
		Guard:    guard,
		Builder:  builder,
		Funding:  funding,
		Treasury: treasury,
	})

	log.Info().Str("port", cfg.AppPort).Msg("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("fiber.Listen error")
	}
}
