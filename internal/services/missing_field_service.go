package services

import (
	"context"
	"time"

	"github.com/kiko9987/itglobal/internal/detect"
	"github.com/kiko9987/itglobal/internal/store"
)

// missingFieldService handles missing-field detection over the record store.
type missingFieldService struct {
	store          store.RecordStore
	requiredFields []string
	threshold      int
	now            func() time.Time
}

// NewMissingFieldService creates a new MissingFieldServicer.
func NewMissingFieldService(st store.RecordStore, requiredFields []string, threshold int) MissingFieldServicer {
	return &missingFieldService{
		store:          st,
		requiredFields: requiredFields,
		threshold:      threshold,
		now:            time.Now,
	}
}

// RunMissingFieldCheck returns one report per owner with incomplete projects.
func (s *missingFieldService) RunMissingFieldCheck(ctx context.Context) (map[string]*detect.Report, error) {
	records, err := s.store.ListRecords(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	return detect.Detect(records, s.requiredFields, s.threshold), nil
}

// GetMissingData returns the reports ordered by owner together with the
// per-field statistics, from a single read of the store.
func (s *missingFieldService) GetMissingData(ctx context.Context) (*MissingData, error) {
	records, err := s.store.ListRecords(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}

	reports := detect.Detect(records, s.requiredFields, s.threshold)
	out := &MissingData{
		GeneratedAt: s.now().UTC(),
		Reports:     make([]*detect.Report, 0, len(reports)),
		Stats:       detect.FieldStats(records, s.requiredFields),
	}
	for _, owner := range detect.Owners(reports) {
		out.Reports = append(out.Reports, reports[owner])
	}
	return out, nil
}

// FieldStats returns per-field completeness across all projects.
func (s *missingFieldService) FieldStats(ctx context.Context) (*detect.Stats, error) {
	records, err := s.store.ListRecords(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	stats := detect.FieldStats(records, s.requiredFields)
	return &stats, nil
}
