package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/booking"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/config"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/db"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/logger"
)

// The reminder worker periodically scans for bookings starting within the
// reminder window and emits a reminder event for each. Actual delivery is
// a separate side channel; nothing here blocks on it.
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

	zlog.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("window", cfg.ReminderWindow),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.Connect(pgCtx, cfg.PostgresDSN, cfg.PGMaxConns)
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	repo := booking.NewPgRepository(pgPool)

	// Run once at startup
	runOnce(rootCtx, repo, zlog, cfg.ReminderWindow)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			zlog.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, zlog, cfg.ReminderWindow)
		}
	}
}

func runOnce(ctx context.Context, repo booking.Repository, zlog *zap.Logger, window time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	upcoming, err := repo.FindStartingBetween(runCtx, start, start.Add(window))
	if err != nil {
		zlog.Error("reminder scan failed", zap.Error(err))
		return
	}

	for _, b := range upcoming {
		zlog.Info("appointment reminder due",
			zap.String("booking_id", b.ID.String()),
			zap.String("provider_id", b.ProviderID.String()),
			zap.String("patient", b.PatientName),
			zap.Time("start", b.Start),
		)
	}

	zlog.Info("reminder run complete",
		zap.Int("upcoming", len(upcoming)),
		zap.Duration("took", time.Since(start)),
	)
}
