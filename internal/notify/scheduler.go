package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kiko9987/itglobal/internal/aggregate"
	"github.com/kiko9987/itglobal/internal/detect"
	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/store"
	"github.com/kiko9987/itglobal/internal/uuid"
)

// OwnerState is an owner's position in the per-run state machine.
type OwnerState string

const (
	StateIdle        OwnerState = "IDLE"
	StatePendingSend OwnerState = "PENDING_SEND"
	StateSent        OwnerState = "SENT"
)

// SummaryOwner is the dedup key guarding the admin summary.
const SummaryOwner = "__admin_summary__"

const summaryFingerprint = "daily-summary"

// RecordLister is the part of the record store a run reads.
type RecordLister interface {
	ListRecords(ctx context.Context, filter store.Filter) ([]models.Project, error)
}

// SnapshotSource yields the latest aggregation snapshot, or nil.
type SnapshotSource interface {
	Latest() *aggregate.Snapshot
}

// DeliveryRecorder persists send attempts. Implementations must not fail the caller.
type DeliveryRecorder interface {
	Record(ctx context.Context, entry *models.DeliveryLog)
}

// Config holds the scheduler's business settings.
type Config struct {
	RequiredFields  []string
	Threshold       int
	Recipients      map[string]string // owner -> "channel:address"
	AdminRecipients []string
	Times           []string // "HH:MM", local to Location
	SummaryTime     string
	Location        *time.Location
	SinkTimeout     time.Duration
	Parallelism     int
	DashboardURL    string
}

// RunSummary reports a digest run. Owner lists are sorted.
type RunSummary struct {
	RunID        string                `json:"run_id"`
	Day          string                `json:"day"`
	Notified     []string              `json:"notified"`
	SkippedEmpty []string              `json:"skipped_empty"`
	Suppressed   []string              `json:"suppressed"`
	Failed       []string              `json:"failed"`
	NoContact    []string              `json:"no_contact"`
	States       map[string]OwnerState `json:"states"`
}

// SummaryResult reports an admin summary dispatch.
type SummaryResult struct {
	RunID     string   `json:"run_id"`
	Day       string   `json:"day"`
	Skipped   bool     `json:"skipped"`
	Delivered []string `json:"delivered"`
	Failed    []string `json:"failed"`
}

// Scheduler runs digest and summary dispatch on the configured daily cadence.
type Scheduler struct {
	cfg       Config
	records   RecordLister
	sender    Sender
	dedup     Dedup
	snapshots SnapshotSource
	recorder  DeliveryRecorder
	locker    *redislock.Client
	now       func() time.Time
	log       *zap.SugaredLogger
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithRecorder records every send attempt.
func WithRecorder(r DeliveryRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithLocker makes the loop take a Redis lock per run slot so only one
// instance dispatches it.
func WithLocker(l *redislock.Client) Option {
	return func(s *Scheduler) { s.locker = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg Config, records RecordLister, sender Sender, dedup Dedup, snapshots SnapshotSource, opts ...Option) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	s := &Scheduler{
		cfg:       cfg,
		records:   records,
		sender:    sender,
		dedup:     dedup,
		snapshots: snapshots,
		now:       time.Now,
		log:       logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) day() string {
	return s.now().In(s.cfg.Location).Format(models.DateLayout)
}

// RunOnce performs one digest run. Store failures and cancellation before
// dispatch return an error; per-owner delivery failures only show up in the
// summary. Once dispatch starts it ignores ctx cancellation.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunSummary, error) {
	runID := uuid.New()
	day := s.day()
	log := s.log.With("run_id", runID, "day", day)

	records, err := s.records.ListRecords(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	reports := detect.Detect(records, s.cfg.RequiredFields, s.cfg.Threshold)

	summary := &RunSummary{
		RunID:        runID,
		Day:          day,
		Notified:     []string{},
		SkippedEmpty: []string{},
		Suppressed:   []string{},
		Failed:       []string{},
		NoContact:    []string{},
		States:       map[string]OwnerState{},
	}

	type job struct {
		owner  string
		to     Recipient
		report *detect.Report
	}
	var jobs []job

	for _, owner := range detect.Owners(reports) {
		if _, ok := s.cfg.Recipients[owner]; !ok {
			summary.NoContact = append(summary.NoContact, owner)
		}
	}
	for _, owner := range sortedKeys(s.cfg.Recipients) {
		report := reports[owner]
		if report.Empty() {
			summary.SkippedEmpty = append(summary.SkippedEmpty, owner)
			summary.States[owner] = StateIdle
			continue
		}
		to, err := ParseRecipient(s.cfg.Recipients[owner])
		if err != nil {
			log.Warnw("Invalid recipient", "owner", owner, "error", err)
			summary.Failed = append(summary.Failed, owner)
			summary.States[owner] = StateIdle
			continue
		}
		summary.States[owner] = StatePendingSend
		jobs = append(jobs, job{owner: owner, to: to, report: report})
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRunCancelled, err)
	}

	dispatchCtx := context.WithoutCancel(ctx)
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Parallelism)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			outcome := s.deliverDigest(dispatchCtx, runID, day, j.owner, j.to, j.report)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case StateSent:
				summary.Notified = append(summary.Notified, j.owner)
				summary.States[j.owner] = StateSent
			case StateIdle:
				summary.Suppressed = append(summary.Suppressed, j.owner)
				summary.States[j.owner] = StateIdle
			default:
				summary.Failed = append(summary.Failed, j.owner)
				summary.States[j.owner] = StateIdle
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(summary.Notified)
	sort.Strings(summary.Suppressed)
	sort.Strings(summary.Failed)

	log.Infow("Notification run finished",
		"notified", len(summary.Notified),
		"skipped_empty", len(summary.SkippedEmpty),
		"suppressed", len(summary.Suppressed),
		"failed", len(summary.Failed),
		"no_contact", len(summary.NoContact),
	)
	return summary, nil
}

// deliverDigest claims, sends and records one owner's digest. It returns
// StateSent on delivery, StateIdle when suppressed and StatePendingSend when
// the attempt failed.
func (s *Scheduler) deliverDigest(ctx context.Context, runID, day, owner string, to Recipient, report *detect.Report) OwnerState {
	fp := detect.Fingerprint(report)
	claimed, err := s.dedup.Claim(ctx, owner, day, fp)
	if err != nil {
		s.log.Errorw("Dedup claim failed", "run_id", runID, "owner", owner, "error", err)
		return StatePendingSend
	}
	if !claimed {
		s.log.Debugw("Digest unchanged since last send, suppressed", "run_id", runID, "owner", owner)
		return StateIdle
	}

	msg := ComposeDigest(report, s.cfg.DashboardURL)
	if err := s.send(ctx, to, msg); err != nil {
		s.log.Warnw("Digest delivery failed", "run_id", runID, "owner", owner, "recipient", to.String(), "error", err)
		if rerr := s.dedup.Release(ctx, owner, day, fp); rerr != nil {
			s.log.Errorw("Dedup release failed", "run_id", runID, "owner", owner, "error", rerr)
		}
		s.record(ctx, runID, models.DeliveryKindDigest, owner, to, msg.Subject, err)
		return StatePendingSend
	}
	s.record(ctx, runID, models.DeliveryKindDigest, owner, to, msg.Subject, nil)
	return StateSent
}

// SendDailySummary sends the admin summary to every admin recipient at most
// once per day. The claim is released when no recipient received it.
func (s *Scheduler) SendDailySummary(ctx context.Context) (*SummaryResult, error) {
	runID := uuid.New()
	day := s.day()
	result := &SummaryResult{RunID: runID, Day: day, Delivered: []string{}, Failed: []string{}}

	if len(s.cfg.AdminRecipients) == 0 {
		result.Skipped = true
		return result, nil
	}

	records, err := s.records.ListRecords(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	reports := detect.Detect(records, s.cfg.RequiredFields, s.cfg.Threshold)
	var snap *aggregate.Snapshot
	if s.snapshots != nil {
		snap = s.snapshots.Latest()
	}
	msg := ComposeSummary(day, reports, snap)

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRunCancelled, err)
	}
	dispatchCtx := context.WithoutCancel(ctx)

	claimed, err := s.dedup.Claim(dispatchCtx, SummaryOwner, day, summaryFingerprint)
	if err != nil {
		return nil, err
	}
	if !claimed {
		result.Skipped = true
		return result, nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Parallelism)
	for _, raw := range s.cfg.AdminRecipients {
		raw := raw
		g.Go(func() error {
			to, err := ParseRecipient(raw)
			if err == nil {
				err = s.send(dispatchCtx, to, msg)
				s.record(dispatchCtx, runID, models.DeliveryKindSummary, "", to, msg.Subject, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warnw("Summary delivery failed", "run_id", runID, "recipient", raw, "error", err)
				result.Failed = append(result.Failed, raw)
				return nil
			}
			result.Delivered = append(result.Delivered, raw)
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(result.Delivered)
	sort.Strings(result.Failed)

	if len(result.Delivered) == 0 {
		if err := s.dedup.Release(dispatchCtx, SummaryOwner, day, summaryFingerprint); err != nil {
			s.log.Errorw("Dedup release failed", "run_id", runID, "error", err)
		}
	}
	s.log.Infow("Admin summary finished", "run_id", runID, "delivered", len(result.Delivered), "failed", len(result.Failed))
	return result, nil
}

func (s *Scheduler) send(ctx context.Context, to Recipient, msg Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SinkTimeout)
	defer cancel()
	return s.sender.Deliver(sendCtx, to, msg)
}

func (s *Scheduler) record(ctx context.Context, runID string, kind models.DeliveryKind, owner string, to Recipient, subject string, err error) {
	if s.recorder == nil {
		return
	}
	entry := &models.DeliveryLog{
		RunID:     runID,
		Kind:      kind,
		Owner:     owner,
		Recipient: to.Address,
		Channel:   to.Channel,
		Subject:   subject,
		Status:    models.DeliverySent,
	}
	if err != nil {
		entry.Status = models.DeliveryFailed
		entry.Error = err.Error()
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Internal != nil {
			entry.Error = fmt.Sprintf("%s: %v", appErr.Message, appErr.Internal)
		}
	}
	s.recorder.Record(ctx, entry)
}

// Loop runs digests at every configured time, and the admin summary at the
// summary time, until ctx is done.
func (s *Scheduler) Loop(ctx context.Context) error {
	for {
		next, err := NextRun(s.now(), s.cfg.Times, s.cfg.Location)
		if err != nil {
			return err
		}
		s.log.Infow("Next notification run scheduled", "at", next)

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		s.runSlot(ctx, next)
	}
}

func (s *Scheduler) runSlot(ctx context.Context, slot time.Time) {
	slotKey := slot.In(s.cfg.Location).Format("2006-01-02T15:04")
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, "notify:slot:"+slotKey, 10*time.Minute, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			s.log.Infow("Run slot taken by another instance", "slot", slotKey)
			return
		}
		if err != nil {
			s.log.Errorw("Failed to obtain run slot lock", "slot", slotKey, "error", err)
			return
		}
		defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	}

	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Errorw("Notification run failed", "slot", slotKey, "error", err)
	}
	if slot.In(s.cfg.Location).Format("15:04") == s.cfg.SummaryTime {
		if _, err := s.SendDailySummary(ctx); err != nil {
			s.log.Errorw("Admin summary failed", "slot", slotKey, "error", err)
		}
	}
}

// NextRun returns the first configured time strictly after now, in loc.
func NextRun(now time.Time, times []string, loc *time.Location) (time.Time, error) {
	if len(times) == 0 {
		return time.Time{}, fmt.Errorf("no notification times configured")
	}
	local := now.In(loc)
	var best time.Time
	for _, hhmm := range times {
		t, err := time.Parse("15:04", hhmm)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid notification time %q: %w", hhmm, err)
		}
		candidate := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		if !candidate.After(local) {
			candidate = time.Date(local.Year(), local.Month(), local.Day()+1, t.Hour(), t.Minute(), 0, 0, loc)
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}
	return best, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
