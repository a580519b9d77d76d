// Package store holds the Record Store adapters: the relational store used by
// default, the Google Sheets store used by the business, and the per-region
// sequence counters both of them delegate to.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/sheet"
)

// Filter narrows ListRecords. Empty fields match everything.
type Filter struct {
	Region string
	Owner  string
	Status models.ProjectStatus
}

// Match reports whether p passes the filter.
func (f Filter) Match(p *models.Project) bool {
	if f.Region != "" && p.Region != f.Region {
		return false
	}
	if f.Owner != "" && p.Owner != f.Owner {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

// RecordStore is the authoritative project table. Implementations bound every
// call by their configured timeout and report failures as STORE_UNAVAILABLE,
// STORE_CONFLICT or PROJECT_NOT_FOUND.
type RecordStore interface {
	// ListRecords returns a consistent snapshot of all live records ordered by code.
	ListRecords(ctx context.Context, filter Filter) ([]models.Project, error)
	GetRecord(ctx context.Context, code string) (*models.Project, error)
	GetCounter(ctx context.Context, region string) (int64, error)
	// IncrementCounter atomically advances the region's counter and returns
	// the new value.
	IncrementCounter(ctx context.Context, region string) (int64, error)
	// CreateRecord stores a new project and fails with CODE_TAKEN when any
	// record, deleted ones included, already carries p.Code.
	CreateRecord(ctx context.Context, p *models.Project) error
	// WriteRecord replaces the live record with p.Code, or inserts it.
	WriteRecord(ctx context.Context, p *models.Project) error
	DeleteRecord(ctx context.Context, code string) error
}

// CounterSeeder is implemented by stores that can prepare and repair counters.
type CounterSeeder interface {
	SeedCounters(ctx context.Context, regions []string) error
	RaiseCounter(ctx context.Context, region string, atLeast int64) error
	// SyncCounters raises each region's counter to the highest sequence
	// found among stored codes and returns those sequences.
	SyncCounters(ctx context.Context, regions []string) (map[string]int64, error)
}

// Counter issues per-region sequence numbers. Values never decrease.
type Counter interface {
	Get(ctx context.Context, region string) (int64, error)
	Increment(ctx context.Context, region string) (int64, error)
	Seed(ctx context.Context, regions []string) error
	Raise(ctx context.Context, region string, atLeast int64) error
}

// highestSequences returns the largest sequence per region among codes.
// Codes of other regions and malformed codes are ignored.
func highestSequences(codes []string, regions []string) map[string]int64 {
	highest := make(map[string]int64, len(regions))
	known := make(map[string]bool, len(regions))
	for _, r := range regions {
		known[strings.ToUpper(r)] = true
	}
	for _, code := range codes {
		region, seq, ok := sheet.ParseCode(code)
		if !ok || !known[region] {
			continue
		}
		if seq > highest[region] {
			highest[region] = seq
		}
	}
	return highest
}

func raiseAll(ctx context.Context, counter Counter, highest map[string]int64) error {
	for region, seq := range highest {
		if err := counter.Raise(ctx, region, seq); err != nil {
			return err
		}
	}
	return nil
}

func bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classify maps a backend error to the store error taxonomy. AppErrors pass
// through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	msg := err.Error()
	for _, marker := range conflictMarkers {
		if strings.Contains(msg, marker) {
			return apperrors.Wrap(apperrors.ErrStoreConflict, err)
		}
	}
	return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
}

// conflictMarkers identify serialization failures, deadlocks and busy locks.
var conflictMarkers = []string{
	"SQLSTATE 40001",
	"SQLSTATE 40P01",
	"database is locked",
	"SQLITE_BUSY",
	"duplicated key",
}
