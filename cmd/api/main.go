package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/config"
	"github.com/inscribe-bot/backend/internal/custody"
	"github.com/inscribe-bot/backend/internal/db"
	"github.com/inscribe-bot/backend/internal/events"
	apphttp "github.com/inscribe-bot/backend/internal/http"
	"github.com/inscribe-bot/backend/internal/http/handlers"
	"github.com/inscribe-bot/backend/internal/inscription"
	"github.com/inscribe-bot/backend/internal/repositories"
	"github.com/inscribe-bot/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Chains
	chains := connectChains(ctx, cfg, log)
	if len(chains.Names()) == 0 {
		log.Fatal("no chain adapter could be connected")
	}
	assemblers := inscription.DefaultRegistry(chain.ChainEVM, chain.ChainTON)

	keys, err := custody.NewLocalCustody(cfg.CustodyKeyHex)
	if err != nil {
		log.Fatal("failed to init key custody", zap.Error(err))
	}

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	txRepo := repositories.NewTransactionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	processRepo := repositories.NewProcessRepo(rdb, 2*cfg.StaleWorkflowAge)
	lock := repositories.NewRedisLock(rdb)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	botClient := services.NewBotClient(cfg.BotInternalURL, cfg.BotInternalToken, log)
	prices := services.NewPriceOracle(cfg.PriceOracleURL, rdb, cfg.PriceCacheTTL, log)
	workflow := services.NewWorkflowService(services.WorkflowDeps{
		Users:        userRepo,
		Wallets:      walletRepo,
		Processes:    processRepo,
		Transactions: txRepo,
		Audit:        auditRepo,
		Chains:       chains,
		Assemblers:   assemblers,
		Validator:    services.NewCostValidator(prices, log),
		Custody:      keys,
		Lock:         lock,
		Messenger:    botClient,
		Publisher:    publisher,
	}, services.WorkflowConfig{
		ReviewWindow:     cfg.ReviewWindow,
		FeeSpikePercent:  cfg.FeeSpikePercent,
		BroadcastLockTTL: cfg.BroadcastLockTTL,
	}, log)
	router := services.NewRouter(userRepo, workflow, cfg.DefaultChain, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	userHandler := handlers.NewUserHandler(userRepo, auditRepo, log)
	walletHandler := handlers.NewWalletHandler(userRepo, walletRepo, txRepo, chains, log)
	updateHandler := handlers.NewUpdateHandler(router, log)
	wsHub := handlers.NewWSHub(cfg.JWTSecret, subscriber, log)

	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe websocket hub", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, walletHandler, updateHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.Strings("chains", chains.Names()))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// connectChains registers every chain that answers at startup. A chain that
// fails to connect is left out so the other one keeps working.
func connectChains(ctx context.Context, cfg *config.Config, log *zap.Logger) *chain.Registry {
	registry := chain.NewRegistry()

	evm, err := chain.DialEVM(ctx, chain.EVMConfig{
		Name:        chain.ChainEVM,
		Symbol:      "ETH",
		RPCURL:      cfg.EVMRPCURL,
		ChainID:     cfg.EVMChainID,
		ExplorerURL: cfg.EVMExplorerURL,
	}, log)
	if err != nil {
		log.Error("evm chain unavailable", zap.Error(err))
	} else {
		registry.Register(evm)
	}

	ton, err := chain.ConnectTON(ctx, chain.TONConfig{
		Network:        cfg.TONNetwork,
		LiteServerHost: cfg.LiteServerHost,
		LiteServerPort: cfg.LiteServerPort,
		LiteServerKey:  cfg.LiteServerKey,
	}, log)
	if err != nil {
		log.Error("ton chain unavailable", zap.Error(err))
	} else {
		registry.Register(ton)
	}

	return registry
}
