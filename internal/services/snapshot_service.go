package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kiko9987/itglobal/internal/aggregate"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/store"
)

// snapshotService keeps the latest aggregation snapshot in memory and
// recomputes it on demand, on record changes and on a fixed interval.
type snapshotService struct {
	store store.RecordStore
	now   func() time.Time
	log   *zap.SugaredLogger

	latest      atomic.Pointer[aggregate.Snapshot]
	stale       atomic.Bool
	refreshedAt atomic.Int64
	pending     chan struct{}

	// refreshMu serialises refreshes so snapshots are published in order.
	refreshMu sync.Mutex
	hooksMu   sync.RWMutex
	hooks     []func(*aggregate.Snapshot)
}

// NewSnapshotService creates a new SnapshotServicer.
func NewSnapshotService(st store.RecordStore) SnapshotServicer {
	return newSnapshotService(st, time.Now)
}

func newSnapshotService(st store.RecordStore, now func() time.Time) *snapshotService {
	return &snapshotService{
		store:   st,
		now:     now,
		log:     logger.Named("snapshot"),
		pending: make(chan struct{}, 1),
	}
}

// OnSnapshotReady registers fn to be called with every new snapshot.
func (s *snapshotService) OnSnapshotReady(fn func(*aggregate.Snapshot)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Latest returns the last good snapshot, or nil before the first refresh.
func (s *snapshotService) Latest() *aggregate.Snapshot {
	return s.latest.Load()
}

// GetSnapshot returns the latest snapshot, computing one if none exists. An
// older snapshot is served with Stale set when the last refresh failed.
func (s *snapshotService) GetSnapshot(ctx context.Context) (*SnapshotView, error) {
	if s.latest.Load() == nil {
		if _, err := s.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return &SnapshotView{
		Snapshot:    s.latest.Load(),
		Stale:       s.stale.Load(),
		RefreshedAt: time.Unix(0, s.refreshedAt.Load()).UTC(),
	}, nil
}

// Refresh recomputes the snapshot from the full record set. On failure the
// previous snapshot is kept and marked stale.
func (s *snapshotService) Refresh(ctx context.Context) (*aggregate.Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	records, err := s.store.ListRecords(ctx, store.Filter{})
	if err != nil {
		s.stale.Store(true)
		s.log.Warnw("Snapshot refresh failed, serving last good snapshot", "error", err)
		return nil, err
	}

	now := s.now()
	snap := aggregate.Aggregate(records, now)
	s.latest.Store(snap)
	s.stale.Store(false)
	s.refreshedAt.Store(now.UnixNano())
	s.log.Debugw("Snapshot refreshed", "projects", snap.Totals.ProjectCount)

	s.hooksMu.RLock()
	hooks := append([]func(*aggregate.Snapshot){}, s.hooks...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(snap)
	}
	return snap, nil
}

// Trigger requests a refresh from Run without blocking.
func (s *snapshotService) Trigger() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Run refreshes once, then on every interval tick and every Trigger, until
// ctx is cancelled.
func (s *snapshotService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		case <-s.pending:
			s.refresh(ctx)
		}
	}
}

func (s *snapshotService) refresh(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Errorw("Periodic snapshot refresh failed", "error", err)
	}
}
