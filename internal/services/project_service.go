package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kiko9987/itglobal/internal/compute"
	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/pagination"
	"github.com/kiko9987/itglobal/internal/store"
)

// Change actions passed to ChangePublisher.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

const (
	defaultWriteAttempts = 3
	defaultWriteBackoff  = 200 * time.Millisecond
)

// projectService handles project-related business logic.
type projectService struct {
	store      store.RecordStore
	codes      CodeGenerator
	rules      compute.Rules
	snapshots  SnapshotServicer
	changes    ChangePublisher
	attempts   int
	collisions int
	backoff    time.Duration
	log        *zap.SugaredLogger
}

// NewProjectService creates a new ProjectServicer. snapshots and changes may
// be nil.
func NewProjectService(st store.RecordStore, codes CodeGenerator, rules compute.Rules, snapshots SnapshotServicer, changes ChangePublisher) ProjectServicer {
	return &projectService{
		store:      st,
		codes:      codes,
		rules:      rules,
		snapshots:  snapshots,
		changes:    changes,
		attempts:   defaultWriteAttempts,
		collisions: defaultCodeAttempts,
		backoff:    defaultWriteBackoff,
		log:        logger.Named("projects"),
	}
}

// CreateProject validates in, assigns a fresh code and stores the project.
// Nothing is allocated when validation fails.
func (s *projectService) CreateProject(ctx context.Context, in compute.Input) (*compute.Result, error) {
	res, err := compute.ValidateAndCompute(in, s.rules)
	if err != nil {
		return nil, err
	}

	var code string
	for collision := 0; ; collision++ {
		code, err = s.codes.GenerateCode(ctx, res.Project.Region)
		if err != nil {
			return nil, err
		}
		res.Project.Code = code

		err = s.write(ctx, res.Project, s.store.CreateRecord)
		if err == nil {
			break
		}
		if errors.Is(err, apperrors.ErrCodeTaken) && collision < s.collisions {
			s.log.Warnw("Generated code already taken, resyncing counter", "code", code)
			s.resync(ctx, res.Project.Region)
			continue
		}
		// The code stays consumed; codes are never reissued.
		s.log.Errorw("Failed to store new project", "code", code, "error", err)
		return nil, err
	}

	s.log.Infow("Project created", "code", code, "owner", res.Project.Owner)
	s.changed(code, ActionCreated)
	return res, nil
}

// GetProject retrieves a project by code.
func (s *projectService) GetProject(ctx context.Context, code string) (*models.Project, error) {
	return s.store.GetRecord(ctx, strings.TrimSpace(code))
}

// ListProjects retrieves a paginated, filtered list of projects ordered by code.
func (s *projectService) ListProjects(ctx context.Context, filter store.Filter, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error) {
	page.Defaults()

	projects, err := s.store.ListRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := pagination.Slice(projects, page)
	return &resp, nil
}

// UpdateProject applies patch to an existing project and re-derives every
// computed field.
func (s *projectService) UpdateProject(ctx context.Context, code string, patch compute.Input) (*compute.Result, error) {
	existing, err := s.store.GetRecord(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}

	res, err := compute.Recompute(existing, patch, s.rules)
	if err != nil {
		return nil, err
	}

	if err := s.write(ctx, res.Project, s.store.WriteRecord); err != nil {
		return nil, err
	}

	s.changed(existing.Code, ActionUpdated)
	return res, nil
}

// DeleteProject removes a project. Its code is never reissued.
func (s *projectService) DeleteProject(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if err := s.store.DeleteRecord(ctx, code); err != nil {
		return err
	}

	s.log.Infow("Project deleted", "code", code)
	s.changed(code, ActionDeleted)
	return nil
}

// PreviewCode returns the next code for region without allocating it.
func (s *projectService) PreviewCode(ctx context.Context, region string) (string, error) {
	return s.codes.PreviewCode(ctx, region)
}

// ExportProjects returns every matching project, ordered by code.
func (s *projectService) ExportProjects(ctx context.Context, filter store.Filter) ([]models.Project, error) {
	return s.store.ListRecords(ctx, filter)
}

// write stores p with put, retrying transient store failures with linear
// backoff.
func (s *projectService) write(ctx context.Context, p *models.Project, put func(context.Context, *models.Project) error) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err = put(ctx, p); err == nil || !apperrors.IsTransient(err) {
			return err
		}
		s.log.Warnw("Transient store failure, retrying", "code", p.Code, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.ErrStoreUnavailable, ctx.Err())
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return err
}

// resync raises region's counter past every stored code when the store
// supports it. A failure only means the next attempt may collide again.
func (s *projectService) resync(ctx context.Context, region string) {
	seeder, ok := s.store.(store.CounterSeeder)
	if !ok {
		return
	}
	if _, err := seeder.SyncCounters(ctx, []string{region}); err != nil {
		s.log.Warnw("Counter resync failed", "region", region, "error", err)
	}
}

func (s *projectService) changed(code, action string) {
	if s.snapshots != nil {
		s.snapshots.Trigger()
	}
	if s.changes != nil {
		s.changes.PublishChange(code, action)
	}
}
