package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/kiko9987/itglobal/internal/compute"
	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/sheet"
)

// valuesAPI is the subset of the Sheets values API the store needs.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]string, error)
	Update(ctx context.Context, rng string, row []string) error
	Append(ctx context.Context, rng string, row []string) error
	Clear(ctx context.Context, rng string) error
}

// SheetsConfig addresses one worksheet.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	SheetName       string
	Timeout         time.Duration
	VATRate         decimal.Decimal
}

// SheetsStore keeps projects as rows of a Google Sheets worksheet whose
// first row is the header. Deleted projects leave a blank row behind.
type SheetsStore struct {
	api       valuesAPI
	sheetName string
	columns   []sheet.Column
	counter   Counter
	timeout   time.Duration
	vatRate   decimal.Decimal

	// mu serialises row lookups with the writes that depend on them.
	mu sync.Mutex
}

// NewSheetsStore connects to the Sheets API with a service-account key file.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, counter Counter) (*SheetsStore, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	api := &googleValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}
	return newSheetsStore(api, cfg, counter), nil
}

func newSheetsStore(api valuesAPI, cfg SheetsConfig, counter Counter) *SheetsStore {
	return &SheetsStore{
		api:       api,
		sheetName: cfg.SheetName,
		columns:   sheet.DefaultColumns,
		counter:   counter,
		timeout:   cfg.Timeout,
		vatRate:   cfg.VATRate,
	}
}

var _ RecordStore = (*SheetsStore)(nil)
var _ CounterSeeder = (*SheetsStore)(nil)

type sheetRow struct {
	number int // 1-based sheet row number
	cells  []string
}

// read loads the header layout and every non-blank data row.
func (s *SheetsStore) read(ctx context.Context) (sheet.Layout, []sheetRow, error) {
	values, err := s.api.Get(ctx, s.sheetName)
	if err != nil {
		return sheet.Layout{}, nil, classifySheets(err)
	}
	if len(values) == 0 {
		return sheet.NewLayout(sheet.Headers(s.columns), s.columns), nil, nil
	}

	layout := sheet.NewLayout(values[0], s.columns)
	rows := make([]sheetRow, 0, len(values)-1)
	for i, cells := range values[1:] {
		if sheet.Blank(cells) {
			continue
		}
		rows = append(rows, sheetRow{number: i + 2, cells: cells})
	}
	return layout, rows, nil
}

func (s *SheetsStore) ListRecords(ctx context.Context, filter Filter) ([]models.Project, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	layout, rows, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	projects := make([]models.Project, 0, len(rows))
	for _, r := range rows {
		code, in := layout.Decode(r.cells)
		p := compute.Lenient(code, in, s.vatRate)
		if filter.Match(p) {
			projects = append(projects, *p)
		}
	}
	sort.SliceStable(projects, func(i, j int) bool { return projects[i].Code < projects[j].Code })
	return projects, nil
}

func (s *SheetsStore) GetRecord(ctx context.Context, code string) (*models.Project, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	layout, rows, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if layout.Code(r.cells) == code {
			_, in := layout.Decode(r.cells)
			return compute.Lenient(code, in, s.vatRate), nil
		}
	}
	return nil, apperrors.ErrProjectNotFound
}

func (s *SheetsStore) GetCounter(ctx context.Context, region string) (int64, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.counter.Get(ctx, region)
}

func (s *SheetsStore) IncrementCounter(ctx context.Context, region string) (int64, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.counter.Increment(ctx, region)
}

// CreateRecord appends p as a new row unless a row already carries its code.
func (s *SheetsStore) CreateRecord(ctx context.Context, p *models.Project) error {
	return s.put(ctx, p, true)
}

// WriteRecord updates the row carrying p.Code in place, or appends a new row.
func (s *SheetsStore) WriteRecord(ctx context.Context, p *models.Project) error {
	return s.put(ctx, p, false)
}

func (s *SheetsStore) put(ctx context.Context, p *models.Project, create bool) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.api.Get(ctx, s.sheetName)
	if err != nil {
		return classifySheets(err)
	}
	if len(values) == 0 {
		if err := s.api.Append(ctx, s.sheetName, sheet.Headers(s.columns)); err != nil {
			return classifySheets(err)
		}
	}

	layout, rows, err := s.read(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if layout.Code(r.cells) != p.Code {
			continue
		}
		if create {
			return apperrors.ErrCodeTaken
		}
		return classifySheets(s.api.Update(ctx, s.rowRange(layout, r.number), layout.Encode(p, r.cells)))
	}
	return classifySheets(s.api.Append(ctx, s.sheetName, layout.Encode(p, nil)))
}

// DeleteRecord blanks the project's row.
func (s *SheetsStore) DeleteRecord(ctx context.Context, code string) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	layout, rows, err := s.read(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if layout.Code(r.cells) == code {
			return classifySheets(s.api.Clear(ctx, s.rowRange(layout, r.number)))
		}
	}
	return apperrors.ErrProjectNotFound
}

func (s *SheetsStore) SeedCounters(ctx context.Context, regions []string) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.counter.Seed(ctx, regions)
}

// SyncCounters scans the codes present in the sheet. Blanked rows are gone,
// so their sequences only survive in the counter itself.
func (s *SheetsStore) SyncCounters(ctx context.Context, regions []string) (map[string]int64, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	layout, rows, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, layout.Code(r.cells))
	}
	highest := highestSequences(codes, regions)
	if err := raiseAll(ctx, s.counter, highest); err != nil {
		return nil, err
	}
	return highest, nil
}

func (s *SheetsStore) RaiseCounter(ctx context.Context, region string, atLeast int64) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.counter.Raise(ctx, region, atLeast)
}

// rowRange is the A1 range covering one full row, e.g. "Sheet1!A5:AE5".
func (s *SheetsStore) rowRange(layout sheet.Layout, number int) string {
	width := layout.Width()
	if width == 0 {
		width = 1
	}
	first, _ := excelize.CoordinatesToCellName(1, number)
	last, _ := excelize.CoordinatesToCellName(width, number)
	return fmt.Sprintf("%s!%s:%s", s.sheetName, first, last)
}

// classifySheets maps Sheets API failures; throttling and server errors are
// transient, everything else means the sheet is unusable.
func classifySheets(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
		return apperrors.Wrap(apperrors.ErrStoreConflict, err)
	}
	return classify(err)
}

// googleValues adapts the generated Sheets client to valuesAPI.
type googleValues struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (g *googleValues) Get(ctx context.Context, rng string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = fmt.Sprint(cell)
		}
	}
	return out, nil
}

func (g *googleValues) Update(ctx context.Context, rng string, row []string) error {
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, valueRange(row)).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (g *googleValues) Append(ctx context.Context, rng string, row []string) error {
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rng, valueRange(row)).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (g *googleValues) Clear(ctx context.Context, rng string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, rng, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}

func valueRange(row []string) *sheets.ValueRange {
	cells := make([]interface{}, len(row))
	for i, c := range row {
		cells[i] = c
	}
	return &sheets.ValueRange{Values: [][]interface{}{cells}}
}
