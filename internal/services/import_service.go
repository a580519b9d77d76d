package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kiko9987/itglobal/internal/compute"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/report"
	"github.com/kiko9987/itglobal/internal/sheet"
	"github.com/kiko9987/itglobal/internal/store"
)

// ImportFailure is one worksheet row that could not be imported.
type ImportFailure struct {
	Row    int    `json:"row"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

// ImportSummary reports an import. Imported rows kept their code; created
// rows had none and were issued one.
type ImportSummary struct {
	Imported []string         `json:"imported"`
	Created  []string         `json:"created"`
	Failed   []ImportFailure  `json:"failed"`
	Counters map[string]int64 `json:"counters"`
}

// importService loads rows from a workbook export into the record store.
type importService struct {
	store    store.RecordStore
	seeder   store.CounterSeeder
	projects ProjectServicer
	rules    compute.Rules
	log      *zap.SugaredLogger
}

// NewImportService creates an importer. Rows without a code go through
// projects so they are validated and numbered like any new project.
func NewImportService(st store.RecordStore, seeder store.CounterSeeder, projects ProjectServicer, rules compute.Rules) ProjectImporter {
	return &importService{
		store:    st,
		seeder:   seeder,
		projects: projects,
		rules:    rules,
		log:      logger.Named("import"),
	}
}

// Import writes coded rows as they are, raises each region's counter to its
// highest imported sequence, then creates the uncoded rows. Coded rows are
// taken leniently so historical gaps surface in missing-field reports.
func (s *importService) Import(ctx context.Context, rows []report.Row) (*ImportSummary, error) {
	summary := &ImportSummary{
		Imported: []string{},
		Created:  []string{},
		Failed:   []ImportFailure{},
		Counters: map[string]int64{},
	}

	var uncoded []report.Row
	for _, row := range rows {
		if row.Code == "" {
			uncoded = append(uncoded, row)
			continue
		}

		region, seq, err := s.parseCode(row.Code)
		if err != nil {
			summary.Failed = append(summary.Failed, ImportFailure{Row: row.Number, Code: row.Code, Reason: err.Error()})
			continue
		}

		p := compute.Lenient(row.Code, row.Input, s.rules.VATRate)
		if p.Region == "" {
			p.Region = region
		}
		if p.Region != region {
			summary.Failed = append(summary.Failed, ImportFailure{
				Row: row.Number, Code: row.Code,
				Reason: fmt.Sprintf("region %q does not match code", p.Region),
			})
			continue
		}

		if err := s.store.WriteRecord(ctx, p); err != nil {
			if ctx.Err() != nil {
				return summary, err
			}
			summary.Failed = append(summary.Failed, ImportFailure{Row: row.Number, Code: row.Code, Reason: err.Error()})
			continue
		}
		summary.Imported = append(summary.Imported, p.Code)
		if seq > summary.Counters[region] {
			summary.Counters[region] = seq
		}
	}

	regions := make([]string, 0, len(summary.Counters))
	for region := range summary.Counters {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	for _, region := range regions {
		if err := s.seeder.RaiseCounter(ctx, region, summary.Counters[region]); err != nil {
			return summary, fmt.Errorf("raise counter %s: %w", region, err)
		}
	}

	for _, row := range uncoded {
		res, err := s.projects.CreateProject(ctx, row.Input)
		if err != nil {
			if ctx.Err() != nil {
				return summary, err
			}
			summary.Failed = append(summary.Failed, ImportFailure{Row: row.Number, Reason: err.Error()})
			continue
		}
		summary.Created = append(summary.Created, res.Project.Code)
	}

	s.log.Infow("Import finished",
		"imported", len(summary.Imported),
		"created", len(summary.Created),
		"failed", len(summary.Failed),
	)
	return summary, nil
}

func (s *importService) parseCode(code string) (string, int64, error) {
	region, seq, ok := sheet.ParseCode(code)
	if !ok {
		return "", 0, fmt.Errorf("malformed code %q", code)
	}
	if !s.rules.KnowsRegion(region) {
		return "", 0, fmt.Errorf("unknown region %q", region)
	}
	return region, seq, nil
}
