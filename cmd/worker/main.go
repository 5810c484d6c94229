package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inscribe-bot/backend/internal/config"
	"github.com/inscribe-bot/backend/internal/db"
	"github.com/inscribe-bot/backend/internal/events"
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

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	userRepo := repositories.NewUserRepo(pool)
	sweeper := services.NewSweeper(
		userRepo,
		userRepo,
		repositories.NewProcessRepo(rdb, 2*cfg.StaleWorkflowAge),
		repositories.NewAuditRepo(pool),
		services.NewBotClient(cfg.BotInternalURL, cfg.BotInternalToken, log),
		events.NewRedisPublisher(rdb, log),
		cfg.StaleWorkflowAge,
		log,
	)

	log.Info("worker started",
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Duration("stale_after", cfg.StaleWorkflowAge),
	)

	sweepTicker := time.NewTicker(cfg.SweepInterval)
	defer sweepTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runSweep(ctx, sweeper, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runSweep drains stale workflows batch by batch.
func runSweep(ctx context.Context, sweeper *services.Sweeper, log *zap.Logger) {
	for {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Error("sweep failed", zap.Error(err))
			return
		}
		if n == 0 || ctx.Err() != nil {
			return
		}
	}
}
