package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/api"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/booking"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/config"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/db"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/logger"
	redisclient "github.com/Vlad-Pos/MedFlow-sub004/internal/redis"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/suggest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.Connect(pgCtx, cfg.PostgresDSN, cfg.PGMaxConns)
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.New(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		zlog.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zlog.Warn("error closing redis", zap.Error(err))
		}
	}()
	zlog.Info("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	ranker := suggest.NewRanker(
		suggest.Weights{
			Preference:      cfg.WeightPreference,
			Urgency:         cfg.WeightUrgency,
			ConflictPenalty: cfg.WeightConflictPenalty,
		},
		cfg.WorkdayStartHour,
		cfg.WorkdayEndHour,
		cfg.SlotStepMinutes,
		cfg.DefaultDuration,
	)

	server := api.NewServer(repo, locker, ranker, zlog, cfg.OpTimeout)
	router := api.NewRouter(api.RouterConfig{
		Server:  server,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  zlog,
		Env:     cfg.Env,
		Version: "1.0.0",
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		zlog.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zlog.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
