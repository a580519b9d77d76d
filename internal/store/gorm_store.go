package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
)

// GormStore keeps projects in the relational database.
type GormStore struct {
	db      *gorm.DB
	counter Counter
	timeout time.Duration
}

// NewGormStore creates a GormStore. A nil counter keeps counters in the same database.
func NewGormStore(db *gorm.DB, counter Counter, timeout time.Duration) *GormStore {
	if counter == nil {
		counter = NewDBCounter(db)
	}
	return &GormStore{db: db, counter: counter, timeout: timeout}
}

var _ RecordStore = (*GormStore)(nil)
var _ CounterSeeder = (*GormStore)(nil)

func (s *GormStore) ListRecords(ctx context.Context, filter Filter) ([]models.Project, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	query := s.db.WithContext(ctx).Order("code")
	if filter.Region != "" {
		query = query.Where("region = ?", filter.Region)
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, classify(err)
	}
	return projects, nil
}

func (s *GormStore) GetRecord(ctx context.Context, code string) (*models.Project, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, classify(err)
	}
	return &p, nil
}

func (s *GormStore) GetCounter(ctx context.Context, region string) (int64, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.counter.Get(ctx, region)
}

func (s *GormStore) IncrementCounter(ctx context.Context, region string) (int64, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.counter.Increment(ctx, region)
}

// CreateRecord inserts p. Soft-deleted rows keep their code taken.
func (s *GormStore) CreateRecord(ctx context.Context, p *models.Project) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Unscoped().Model(&models.Project{}).Where("code = ?", p.Code).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperrors.ErrCodeTaken
		}
		return tx.Create(p).Error
	})
	if isDuplicateKey(err) {
		return apperrors.Wrap(apperrors.ErrCodeTaken, err)
	}
	return classify(err)
}

// WriteRecord inserts p or replaces the live row with the same code.
// created_at of an existing row is preserved and a soft-deleted row is left
// alone, reported as PROJECT_NOT_FOUND.
func (s *GormStore) WriteRecord(ctx context.Context, p *models.Project) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			Where:     clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "projects.deleted_at IS NULL"}}},
			UpdateAll: true,
		}).
		Create(p)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrProjectNotFound
	}
	return nil
}

// DeleteRecord soft-deletes the project so its code stays taken.
func (s *GormStore) DeleteRecord(ctx context.Context, code string) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	result := s.db.WithContext(ctx).Where("code = ?", code).Delete(&models.Project{})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrProjectNotFound
	}
	return nil
}

func (s *GormStore) SeedCounters(ctx context.Context, regions []string) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.counter.Seed(ctx, regions)
}

// SyncCounters scans every stored code, deleted ones included.
func (s *GormStore) SyncCounters(ctx context.Context, regions []string) (map[string]int64, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	var codes []string
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Project{}).Pluck("code", &codes).Error; err != nil {
		return nil, classify(err)
	}
	highest := highestSequences(codes, regions)
	if err := raiseAll(ctx, s.counter, highest); err != nil {
		return nil, err
	}
	return highest, nil
}

func (s *GormStore) RaiseCounter(ctx context.Context, region string, atLeast int64) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.counter.Raise(ctx, region, atLeast)
}

// isDuplicateKey matches primary key violations from postgres and sqlite.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "UNIQUE constraint failed")
}
