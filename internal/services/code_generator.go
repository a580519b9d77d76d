package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/store"
)

const (
	defaultCodeAttempts = 5
	defaultCodeBackoff  = 50 * time.Millisecond
)

// codeGenerator allocates "<region>-<sequence>" codes from the store's
// per-region counters.
type codeGenerator struct {
	store    store.RecordStore
	regions  map[string]bool
	width    int
	attempts int
	backoff  time.Duration
	log      *zap.SugaredLogger
}

// NewCodeGenerator creates a new CodeGenerator for the registered regions.
// Sequences are zero-padded to width digits.
func NewCodeGenerator(st store.RecordStore, regions []string, width int) CodeGenerator {
	known := make(map[string]bool, len(regions))
	for _, r := range regions {
		known[strings.ToUpper(r)] = true
	}
	return &codeGenerator{
		store:    st,
		regions:  known,
		width:    width,
		attempts: defaultCodeAttempts,
		backoff:  defaultCodeBackoff,
		log:      logger.Named("codegen"),
	}
}

func (g *codeGenerator) checkRegion(region string) (string, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return "", apperrors.Validation(apperrors.FieldError{Field: models.FieldRegion, Reason: "required"})
	}
	if !g.regions[region] {
		return "", apperrors.Validation(apperrors.FieldError{Field: models.FieldRegion, Reason: fmt.Sprintf("unknown region %q", region)})
	}
	return region, nil
}

// GenerateCode allocates the next code for region. A conflicting increment
// leaves the counter untouched and is retried with linear backoff; any other
// store failure is returned as is and no code is issued.
func (g *codeGenerator) GenerateCode(ctx context.Context, region string) (string, error) {
	region, err := g.checkRegion(region)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		seq, err := g.store.IncrementCounter(ctx, region)
		if err == nil {
			return g.format(region, seq), nil
		}
		if !errors.Is(err, apperrors.ErrStoreConflict) {
			return "", err
		}
		lastErr = err
		g.log.Debugw("Counter increment conflicted, retrying", "region", region, "attempt", attempt)

		select {
		case <-ctx.Done():
			return "", apperrors.Wrap(apperrors.ErrStoreUnavailable, ctx.Err())
		case <-time.After(time.Duration(attempt) * g.backoff):
		}
	}
	g.log.Warnw("Giving up on counter increment", "region", region, "attempts", g.attempts, "error", lastErr)
	return "", lastErr
}

// PreviewCode returns the code the next GenerateCode would issue, without
// allocating it.
func (g *codeGenerator) PreviewCode(ctx context.Context, region string) (string, error) {
	region, err := g.checkRegion(region)
	if err != nil {
		return "", err
	}
	seq, err := g.store.GetCounter(ctx, region)
	if err != nil {
		return "", err
	}
	return g.format(region, seq+1), nil
}

func (g *codeGenerator) format(region string, seq int64) string {
	return fmt.Sprintf("%s-%0*d", region, g.width, seq)
}
