package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/googleapi"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/sheet"
	"github.com/kiko9987/itglobal/internal/testutil"
)

// fakeValues is an in-memory worksheet.
type fakeValues struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

func (f *fakeValues) Get(ctx context.Context, rng string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (f *fakeValues) Update(ctx context.Context, rng string, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := rowNumber(rng)
	f.rows[n-1] = append([]string(nil), row...)
	return nil
}

func (f *fakeValues) Append(ctx context.Context, rng string, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, append([]string(nil), row...))
	return nil
}

func (f *fakeValues) Clear(ctx context.Context, rng string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := rowNumber(rng)
	f.rows[n-1] = make([]string, len(f.rows[n-1]))
	return nil
}

// rowNumber extracts the row of a "Sheet!A5:AE5" range.
func rowNumber(rng string) int {
	_, cells, _ := strings.Cut(rng, "!")
	first, _, _ := strings.Cut(cells, ":")
	_, row, err := excelize.CellNameToCoordinates(first)
	if err != nil {
		panic(err)
	}
	return row
}

func newTestSheetsStore(t *testing.T, rows [][]string) (*SheetsStore, *fakeValues) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedTestCounters(t, db, map[string]int64{"A": 2, "B": 0})
	api := &fakeValues{rows: rows}
	s := newSheetsStore(api, SheetsConfig{
		SheetName: "Projects",
		Timeout:   time.Second,
		VATRate:   decimal.RequireFromString("0.1"),
	}, NewDBCounter(db))
	return s, api
}

func TestSheetsStore_List(t *testing.T) {
	ctx := context.Background()
	header := []string{"프로젝트 코드", "담당자", "거래처", "총액 1", "입금액", "공사 시작"}
	s, _ := newTestSheetsStore(t, [][]string{
		header,
		{"B-002", "lee", "Hanbit", "2,000,000", "500,000", "2024.03.05"},
		{"", "", "", "", "", ""},
		{"A-001", "kim", "", "abc", "", ""},
	})

	all, err := s.ListRecords(ctx, Filter{})
	testutil.AssertNoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A-001", all[0].Code)
	assert.Equal(t, "A", all[0].Region, "region comes from the code prefix")
	assert.False(t, all[0].TotalAmount.Valid, "unparseable amounts are dropped")

	b := all[1]
	assert.Equal(t, models.StatusInProgress, b.Status)
	require.True(t, b.OutstandingAmount.Valid)
	assert.Equal(t, "1500000", b.OutstandingAmount.Decimal.String())

	onlyKim, err := s.ListRecords(ctx, Filter{Owner: "kim"})
	testutil.AssertNoError(t, err)
	assert.Len(t, onlyKim, 1)
}

func TestSheetsStore_WriteAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("write_to_empty_sheet_adds_header", func(t *testing.T) {
		s, api := newTestSheetsStore(t, nil)

		p := testutil.NewProject("A", "kim")
		testutil.AssertNoError(t, s.WriteRecord(ctx, p))

		require.Len(t, api.rows, 2)
		assert.Equal(t, sheet.Headers(sheet.DefaultColumns), api.rows[0])
		got, err := s.GetRecord(ctx, p.Code)
		testutil.AssertNoError(t, err)
		assert.Equal(t, "kim", got.Owner)
	})

	t.Run("write_updates_in_place", func(t *testing.T) {
		header := []string{"프로젝트 코드", "담당자", "메모"}
		s, api := newTestSheetsStore(t, [][]string{
			header,
			{"A-001", "kim", "keep"},
			{"A-002", "lee", ""},
		})

		testutil.AssertNoError(t, s.WriteRecord(ctx, &models.Project{Code: "A-001", Owner: "park"}))

		require.Len(t, api.rows, 3)
		assert.Equal(t, []string{"A-001", "park", "keep"}, api.rows[1], "unknown columns survive")
	})

	t.Run("create_refuses_existing_code", func(t *testing.T) {
		s, api := newTestSheetsStore(t, [][]string{
			{"프로젝트 코드", "담당자", "거래처"},
			{"A-001", "kim", "Existing Client"},
			{"A-002", "lee", "Other Client"},
		})

		err := s.CreateRecord(ctx, &models.Project{Code: "A-001", Owner: "park", Client: "New Client"})
		testutil.AssertAppError(t, err, apperrors.ErrCodeTaken.Code)
		assert.Equal(t, []string{"A-001", "kim", "Existing Client"}, api.rows[1])

		testutil.AssertNoError(t, s.CreateRecord(ctx, &models.Project{Code: "A-003", Owner: "park", Client: "New Client"}))
		require.Len(t, api.rows, 4)
		assert.Equal(t, []string{"A-003", "park", "New Client"}, api.rows[3])
	})

	t.Run("delete_blanks_row", func(t *testing.T) {
		s, api := newTestSheetsStore(t, [][]string{
			{"프로젝트 코드", "담당자"},
			{"A-001", "kim"},
		})

		testutil.AssertNoError(t, s.DeleteRecord(ctx, "A-001"))
		assert.True(t, sheet.Blank(api.rows[1]))

		_, err := s.GetRecord(ctx, "A-001")
		testutil.AssertAppError(t, err, apperrors.ErrProjectNotFound.Code)
		err = s.DeleteRecord(ctx, "A-001")
		testutil.AssertAppError(t, err, apperrors.ErrProjectNotFound.Code)
	})

	t.Run("counters_delegate", func(t *testing.T) {
		s, _ := newTestSheetsStore(t, nil)

		v, err := s.IncrementCounter(ctx, "A")
		testutil.AssertNoError(t, err)
		assert.Equal(t, int64(3), v)
		_, err = s.IncrementCounter(ctx, "Q")
		testutil.AssertAppError(t, err, apperrors.ErrUnknownRegion.Code)
	})
}

func TestSheetsStore_SyncCounters(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	counter := NewDBCounter(db)
	testutil.AssertNoError(t, counter.Seed(ctx, []string{"A", "B"}))
	s := newSheetsStore(&fakeValues{rows: [][]string{
		{"프로젝트 코드", "담당자"},
		{"A-001", "kim"},
		{"A-002", "lee"},
		{"", ""},
		{"B-007", "park"},
		{"misc", "choi"},
	}}, SheetsConfig{SheetName: "Projects", Timeout: time.Second}, counter)

	highest, err := s.SyncCounters(ctx, []string{"A", "B"})
	testutil.AssertNoError(t, err)
	assert.Equal(t, map[string]int64{"A": 2, "B": 7}, highest)

	v, err := s.IncrementCounter(ctx, "A")
	testutil.AssertNoError(t, err)
	assert.Equal(t, int64(3), v, "next code follows the sheet, not a fresh counter")

	highest, err = s.SyncCounters(ctx, []string{"A"})
	testutil.AssertNoError(t, err)
	assert.Equal(t, map[string]int64{"A": 2}, highest)
	v, err = s.GetCounter(ctx, "A")
	testutil.AssertNoError(t, err)
	assert.Equal(t, int64(3), v, "sync never lowers a counter")
}

func TestSheetsStore_Errors(t *testing.T) {
	ctx := context.Background()

	s, api := newTestSheetsStore(t, nil)
	api.err = &googleapi.Error{Code: http.StatusConflict, Message: "conflict"}
	_, err := s.ListRecords(ctx, Filter{})
	testutil.AssertAppError(t, err, apperrors.ErrStoreConflict.Code)

	api.err = &googleapi.Error{Code: http.StatusForbidden, Message: "no access"}
	_, err = s.ListRecords(ctx, Filter{})
	testutil.AssertAppError(t, err, apperrors.ErrStoreUnavailable.Code)

	api.err = fmt.Errorf("dial tcp: %w", context.DeadlineExceeded)
	_, err = s.GetRecord(ctx, "A-001")
	testutil.AssertAppError(t, err, apperrors.ErrStoreUnavailable.Code)
}

func TestRowRange(t *testing.T) {
	s, _ := newTestSheetsStore(t, nil)
	layout := sheet.NewLayout(sheet.Headers(sheet.DefaultColumns), sheet.DefaultColumns)
	assert.Equal(t, "Projects!A5:AE5", s.rowRange(layout, 5))
}
