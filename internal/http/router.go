package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/inscribe-bot/backend/internal/config"
	"github.com/inscribe-bot/backend/internal/http/handlers"
	"github.com/inscribe-bot/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	walletHandler *handlers.WalletHandler,
	updateHandler *handlers.UpdateHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Bot gateway
	internal := app.Group("/internal", middleware.InternalTokenMiddleware(cfg.BotInternalToken, log))
	internal.Post("/updates",
		middleware.RateLimitMiddleware(rdb, cfg.UpdateRateLimitPerMinute, time.Minute, middleware.KeyByTelegramUser),
		updateHandler.HandleUpdate,
	)

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute, middleware.KeyByIP))

	api.Post("/auth/telegram", authHandler.TelegramAuth)

	protected := api.Group("", middleware.AuthMiddleware(cfg.JWTSecret, log))
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)
	protected.Get("/me/activity", userHandler.GetActivity)
	protected.Get("/me/wallets", walletHandler.ListWallets)
	protected.Get("/me/transactions", walletHandler.ListTransactions)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
