package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiko9987/itglobal/internal/bootstrap"
	"github.com/kiko9987/itglobal/internal/config"
	"github.com/kiko9987/itglobal/internal/database"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/report"
	"github.com/kiko9987/itglobal/internal/services"
	"github.com/kiko9987/itglobal/internal/store"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Import error: %v", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: import <workbook.xlsx>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := report.ReadProjects(f)
	if err != nil {
		return err
	}
	logger.Get().Infow("Workbook read", "file", os.Args[1], "rows", len(rows))

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

	rdb, err := bootstrap.Redis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	recordStore, err := bootstrap.Store(ctx, cfg, dbManager.DB(), rdb)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	seeder, ok := recordStore.(store.CounterSeeder)
	if !ok {
		return fmt.Errorf("store backend %s cannot raise counters", cfg.Store.Backend)
	}

	rules := bootstrap.Rules(cfg)
	codes := services.NewCodeGenerator(recordStore, cfg.Engine.Regions, cfg.Engine.CodeWidth)
	projects := services.NewProjectService(recordStore, codes, rules, nil, nil)
	importer := services.NewImportService(recordStore, seeder, projects, rules)

	summary, err := importer.Import(ctx, rows)
	if summary != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summary)
	}
	if err != nil {
		return err
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d row(s) failed to import", len(summary.Failed))
	}
	return nil
}
