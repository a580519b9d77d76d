package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiko9987/itglobal/internal/bootstrap"
	"github.com/kiko9987/itglobal/internal/config"
	"github.com/kiko9987/itglobal/internal/database"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Notifier error: %v", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: notifier <run|once|summary>")
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbManager, err := database.NewManager(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	db := dbManager.DB()

	rdb, err := bootstrap.Redis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	recordStore, err := bootstrap.Store(ctx, cfg, db, rdb)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}

	snapshotService := services.NewSnapshotService(recordStore)
	scheduler := bootstrap.Scheduler(cfg, recordStore, bootstrap.Sender(cfg),
		bootstrap.Dedup(db, rdb), snapshotService, services.NewDeliveryLogService(db), rdb)

	switch command {
	case "run":
		go snapshotService.Run(ctx, cfg.Engine.SnapshotInterval)
		logger.Get().Infow("Notifier started", "times", cfg.Notify.Times, "timezone", cfg.Notify.Timezone)
		if err := scheduler.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Get().Info("Notifier stopped")

	case "once":
		summary, err := scheduler.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("notification run failed: %w", err)
		}
		return printJSON(summary)

	case "summary":
		if _, err := snapshotService.Refresh(ctx); err != nil {
			logger.Get().Warnw("Summary will go out without dashboard totals", "error", err)
		}
		result, err := scheduler.SendDailySummary(ctx)
		if err != nil {
			return fmt.Errorf("daily summary failed: %w", err)
		}
		return printJSON(result)

	default:
		return fmt.Errorf("unknown command: %s (use run, once or summary)", command)
	}

	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
