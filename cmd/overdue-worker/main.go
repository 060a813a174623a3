package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/opencare/treatment-booking/internal/app"
	"github.com/opencare/treatment-booking/internal/config"
	"github.com/opencare/treatment-booking/internal/db"
	redisclient "github.com/opencare/treatment-booking/internal/redis"
	"github.com/opencare/treatment-booking/internal/scheduling"
)

// The overdue worker marks SCHEDULED appointments as NO_SHOW once they are
// past their end time by more than the configured grace period, so cases
// with abandoned bookings stay finalizable.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := app.NewLogger(cfg.Env)
	defer logger.Sync()

	logger.Info("overdue-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("grace", cfg.NoShowGrace),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisCalendarLocker(rdb, cfg.LockTTL)
	svc := scheduling.NewService(repo, locker, cfg, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping overdue worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	swept, err := svc.SweepOverdue(runCtx)
	if err != nil {
		logger.Error("overdue sweep error", zap.Error(err))
		return
	}
	logger.Info("overdue sweep complete",
		zap.Int("marked_no_show", swept),
		zap.Duration("took", time.Since(start)),
	)
}
