package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiko9987/itglobal/internal/compute"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/store"
	"github.com/kiko9987/itglobal/internal/testutil"
)

// flakyStore wraps a real store and fails the first calls of selected
// operations with queued errors.
type flakyStore struct {
	store.RecordStore

	mu             sync.Mutex
	incrementErrs  []error
	writeErrs      []error
	listErr        error
	incrementCalls int
	writeCalls     int
}

func (f *flakyStore) IncrementCounter(ctx context.Context, region string) (int64, error) {
	f.mu.Lock()
	f.incrementCalls++
	if len(f.incrementErrs) > 0 {
		err := f.incrementErrs[0]
		f.incrementErrs = f.incrementErrs[1:]
		f.mu.Unlock()
		return 0, err
	}
	f.mu.Unlock()
	return f.RecordStore.IncrementCounter(ctx, region)
}

func (f *flakyStore) nextWriteErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	if len(f.writeErrs) > 0 {
		err := f.writeErrs[0]
		f.writeErrs = f.writeErrs[1:]
		return err
	}
	return nil
}

func (f *flakyStore) CreateRecord(ctx context.Context, p *models.Project) error {
	if err := f.nextWriteErr(); err != nil {
		return err
	}
	return f.RecordStore.CreateRecord(ctx, p)
}

func (f *flakyStore) WriteRecord(ctx context.Context, p *models.Project) error {
	if err := f.nextWriteErr(); err != nil {
		return err
	}
	return f.RecordStore.WriteRecord(ctx, p)
}

func (f *flakyStore) SeedCounters(ctx context.Context, regions []string) error {
	return f.RecordStore.(store.CounterSeeder).SeedCounters(ctx, regions)
}

func (f *flakyStore) RaiseCounter(ctx context.Context, region string, atLeast int64) error {
	return f.RecordStore.(store.CounterSeeder).RaiseCounter(ctx, region, atLeast)
}

func (f *flakyStore) SyncCounters(ctx context.Context, regions []string) (map[string]int64, error) {
	return f.RecordStore.(store.CounterSeeder).SyncCounters(ctx, regions)
}

func (f *flakyStore) ListRecords(ctx context.Context, filter store.Filter) ([]models.Project, error) {
	f.mu.Lock()
	err := f.listErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.RecordStore.ListRecords(ctx, filter)
}

func (f *flakyStore) failList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

var testRegions = []string{"A", "B"}

func testRules() compute.Rules {
	return compute.Rules{
		RequiredFields: models.DefaultRequiredFields,
		VATRate:        decimal.RequireFromString("0.1"),
		Regions:        testRegions,
	}
}

// setupStore returns a database-backed store with zeroed counters for the
// test regions.
func setupStore(t *testing.T) (*gorm.DB, *flakyStore) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	st := store.NewGormStore(db, nil, 5*time.Second)
	if err := st.SeedCounters(context.Background(), testRegions); err != nil {
		t.Fatalf("failed to seed counters: %v", err)
	}
	return db, &flakyStore{RecordStore: st}
}

func fastCodeGenerator(st store.RecordStore, width int) *codeGenerator {
	g := NewCodeGenerator(st, testRegions, width).(*codeGenerator)
	g.backoff = time.Millisecond
	return g
}

func validInput(region, owner string) compute.Input {
	return compute.Input{
		Region:          region,
		Owner:           owner,
		Company:         "IT Global",
		Client:          "Hanbit Mart",
		SiteAddress:     "12 Jongno-gu, Seoul",
		WorkDescription: "Install 4 ceiling cassette units",
	}
}

// recordingPublisher captures change notifications.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingPublisher) PublishChange(code, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, action+":"+code)
}

func (r *recordingPublisher) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
