package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qzero-app/scheduling-engine/internal/api"
	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/config"
	"github.com/qzero-app/scheduling-engine/internal/db"
	"github.com/qzero-app/scheduling-engine/internal/logging"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	redisclient "github.com/qzero-app/scheduling-engine/internal/redis"
	"github.com/qzero-app/scheduling-engine/internal/scheduling"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
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
		Entitlements: scheduling.NewPgEntitlements(pgPool),
		Events:       events,
		ReminderLead: cfg.ReminderLead,
		Logger:       logger,
	})

	router := api.NewRouter(api.RouterConfig{
		Facade:  facade,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	logger.Info("api-server stopped")
}
