package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/config"
	"github.com/qzero-app/scheduling-engine/internal/db"
	"github.com/qzero-app/scheduling-engine/internal/logging"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	redisclient "github.com/qzero-app/scheduling-engine/internal/redis"
	"github.com/qzero-app/scheduling-engine/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("expiry-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
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

	events := scheduling.Publishers{
		scheduling.NewPgEventLog(pgPool, logger),
		scheduling.NewWirePublisher(redisclient.NewChannelPublisher(rdb, logger), logger),
	}

	facade := scheduling.NewFacade(scheduling.FacadeConfig{
		Queues:       queue.NewPgRepository(pgPool),
		Bookings:     booking.NewPgRepository(pgPool),
		Locker:       redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		Entitlements: scheduling.AllowAll{},
		Events:       events,
		ReminderLead: cfg.ReminderLead,
		Logger:       logger,
	})

	// Run once at startup
	runOnce(rootCtx, facade, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, facade, logger)
		}
	}
}

func runOnce(ctx context.Context, f *scheduling.Facade, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := f.RunExpirySweep(runCtx); err != nil {
		logger.Error("expiry sweep error", zap.Error(err))
		return
	}
	logger.Info("expiry sweep complete", zap.Duration("took", time.Since(start)))
}
