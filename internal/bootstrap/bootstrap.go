// Package bootstrap assembles the record store, notification sinks and
// scheduler from configuration. cmd/api and cmd/notifier share it.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kiko9987/itglobal/internal/compute"
	"github.com/kiko9987/itglobal/internal/config"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/notify"
	"github.com/kiko9987/itglobal/internal/store"
)

const redisPrefix = "itglobal"

// Redis connects to the configured Redis, or returns nil when none is set.
func Redis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Counter picks Redis counters when a client is present.
func Counter(db *gorm.DB, rdb *redis.Client) store.Counter {
	if rdb != nil {
		return store.NewRedisCounter(rdb, redisPrefix)
	}
	return store.NewDBCounter(db)
}

// Store opens the configured record store, seeds the region counters and
// raises each one past the highest code already stored.
func Store(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (store.RecordStore, error) {
	counter := Counter(db, rdb)

	var (
		st  store.RecordStore
		err error
	)
	switch cfg.Store.Backend {
	case "sheets":
		st, err = store.NewSheetsStore(ctx, store.SheetsConfig{
			SpreadsheetID:   cfg.Store.SpreadsheetID,
			CredentialsFile: cfg.Store.CredentialsFile,
			SheetName:       cfg.Store.Range,
			Timeout:         cfg.Store.Timeout,
			VATRate:         cfg.VATRate(),
		}, counter)
		if err != nil {
			return nil, err
		}
	default:
		st = store.NewGormStore(db, counter, cfg.Store.Timeout)
	}

	if seeder, ok := st.(store.CounterSeeder); ok {
		if err := seeder.SeedCounters(ctx, cfg.Engine.Regions); err != nil {
			return nil, fmt.Errorf("failed to seed region counters: %w", err)
		}
		highest, err := seeder.SyncCounters(ctx, cfg.Engine.Regions)
		if err != nil {
			return nil, fmt.Errorf("failed to sync region counters: %w", err)
		}
		logger.Get().Infow("Region counters synced", "highest", highest)
	}

	logger.Get().Infow("Record store ready", "backend", cfg.Store.Backend, "redis", rdb != nil)
	return st, nil
}

// Rules builds the validation rules from configuration.
func Rules(cfg *config.Config) compute.Rules {
	return compute.Rules{
		RequiredFields: cfg.Engine.RequiredFields,
		VATRate:        cfg.VATRate(),
		Regions:        cfg.Engine.Regions,
	}
}

// Sender registers a sink for every configured channel. The log sink is
// always available.
func Sender(cfg *config.Config) *notify.Router {
	router := notify.NewRouter()
	router.Register(notify.ChannelLog, notify.NewLogSink(logger.Named("notifications")))

	if cfg.SMTP.Host != "" {
		router.Register(notify.ChannelEmail, notify.NewEmailSink(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}))
	}
	if cfg.Slack.WebhookURL != "" {
		router.Register(notify.ChannelSlack, notify.NewSlackSink(
			cfg.Slack.WebhookURL,
			cfg.Slack.Username,
			&http.Client{Timeout: cfg.Notify.SinkTimeout},
		))
	}
	return router
}

// Dedup keeps claims in Redis when available, otherwise in the database.
func Dedup(db *gorm.DB, rdb *redis.Client) notify.Dedup {
	if rdb != nil {
		return notify.NewRedisDedup(rdb, redisPrefix)
	}
	return notify.NewGormDedup(db)
}

// Scheduler builds the notification scheduler. With Redis present each run
// slot is guarded by a lock so only one instance dispatches it.
func Scheduler(
	cfg *config.Config,
	records notify.RecordLister,
	sender notify.Sender,
	dedup notify.Dedup,
	snapshots notify.SnapshotSource,
	recorder notify.DeliveryRecorder,
	rdb *redis.Client,
) *notify.Scheduler {
	opts := []notify.Option{notify.WithRecorder(recorder)}
	if rdb != nil {
		opts = append(opts, notify.WithLocker(redislock.New(rdb)))
	}
	return notify.NewScheduler(notify.Config{
		RequiredFields:  cfg.Engine.RequiredFields,
		Threshold:       cfg.Engine.MissingThreshold,
		Recipients:      cfg.Notify.OwnerRecipients,
		AdminRecipients: cfg.Notify.AdminRecipients,
		Times:           cfg.Notify.Times,
		SummaryTime:     cfg.Notify.SummaryTime,
		Location:        cfg.Location(),
		SinkTimeout:     cfg.Notify.SinkTimeout,
		Parallelism:     cfg.Notify.Parallelism,
		DashboardURL:    cfg.DashboardURL,
	}, records, sender, dedup, snapshots, opts...)
}
