// Package report converts snapshots and project lists to xlsx workbooks and
// reads project rows back from uploaded workbooks.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kiko9987/itglobal/internal/aggregate"
	"github.com/kiko9987/itglobal/internal/compute"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/sheet"
)

// ContentType is the MIME type of the workbooks produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Worksheet names of the snapshot workbook.
const (
	SheetSummary  = "Summary"
	SheetMonthly  = "Monthly"
	SheetRegions  = "ByRegion"
	SheetBrands   = "ByBrand"
	SheetOwners   = "ByOwner"
	SheetAging    = "Aging"
	SheetTop      = "TopOutstanding"
	SheetProjects = "Projects"
)

// writer fills one worksheet row by row.
type writer struct {
	f     *excelize.File
	sheet string
	row   int
	bold  int
}

func newWriter(f *excelize.File, name string, bold int) (*writer, error) {
	if f.SheetCount == 1 && f.GetSheetName(0) == "Sheet1" {
		if err := f.SetSheetName("Sheet1", name); err != nil {
			return nil, err
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return nil, err
	}
	return &writer{f: f, sheet: name, bold: bold}, nil
}

func (w *writer) header(values ...interface{}) error {
	if err := w.line(values...); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, w.row)
	last, _ := excelize.CoordinatesToCellName(max(len(values), 1), w.row)
	return w.f.SetCellStyle(w.sheet, first, last, w.bold)
}

func (w *writer) line(values ...interface{}) error {
	w.row++
	cell, _ := excelize.CoordinatesToCellName(1, w.row)
	return w.f.SetSheetRow(w.sheet, cell, &values)
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
}

// ExportSnapshot renders every section of snap into its own worksheet.
func ExportSnapshot(snap *aggregate.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := headerStyle(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	steps := []func(*excelize.File, int, *aggregate.Snapshot) error{
		writeSummary,
		writeMonthly,
		writeCategories(SheetRegions, "Region", func(s *aggregate.Snapshot) map[string]aggregate.CategoryStat { return s.ByRegion }),
		writeCategories(SheetBrands, "Brand", func(s *aggregate.Snapshot) map[string]aggregate.CategoryStat { return s.ByBrand }),
		writeCategories(SheetOwners, "Owner", func(s *aggregate.Snapshot) map[string]aggregate.CategoryStat { return s.ByOwner }),
		writeAging,
		writeTop,
	}
	for _, step := range steps {
		if err := step(f, bold, snap); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write snapshot workbook: %w", err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSummary(f *excelize.File, bold int, snap *aggregate.Snapshot) error {
	w, err := newWriter(f, SheetSummary, bold)
	if err != nil {
		return err
	}
	t := snap.Totals
	rows := [][]interface{}{
		{"Generated at", snap.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Projects", t.ProjectCount},
		{"Revenue", num(t.RevenueSum)},
		{"Received", num(t.ReceivedSum)},
		{"Outstanding", num(t.OutstandingSum)},
		{"Recovery rate", num(t.RecoveryRate)},
		{"Net profit", num(t.NetProfitSum)},
		{"Average amount", num(t.AverageAmount)},
		{"Completed", t.CompletedCount},
		{"In progress", t.InProgressCount},
		{"Pending", t.PendingCount},
		{"Skipped records", t.SkippedRecords},
	}
	if err := w.header("Metric", "Value"); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.line(r...); err != nil {
			return err
		}
	}
	return nil
}

func writeMonthly(f *excelize.File, bold int, snap *aggregate.Snapshot) error {
	w, err := newWriter(f, SheetMonthly, bold)
	if err != nil {
		return err
	}
	if err := w.header("Month", "Revenue", "Outstanding", "Projects"); err != nil {
		return err
	}
	for _, p := range snap.MonthlySeries {
		if err := w.line(p.Month, num(p.Revenue), num(p.Outstanding), p.ProjectCount); err != nil {
			return err
		}
	}
	return nil
}

func writeCategories(name, label string, pick func(*aggregate.Snapshot) map[string]aggregate.CategoryStat) func(*excelize.File, int, *aggregate.Snapshot) error {
	return func(f *excelize.File, bold int, snap *aggregate.Snapshot) error {
		w, err := newWriter(f, name, bold)
		if err != nil {
			return err
		}
		if err := w.header(label, "Revenue", "Margin rate", "Outstanding", "Projects"); err != nil {
			return err
		}
		stats := pick(snap)
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s := stats[k]
			var margin interface{}
			if s.MarginRate.Valid {
				margin = num(s.MarginRate.Decimal)
			}
			if err := w.line(k, num(s.Revenue), margin, num(s.Outstanding), s.ProjectCount); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeAging(f *excelize.File, bold int, snap *aggregate.Snapshot) error {
	w, err := newWriter(f, SheetAging, bold)
	if err != nil {
		return err
	}
	if err := w.header("Days elapsed", "Outstanding"); err != nil {
		return err
	}
	for _, label := range aggregate.AgingLabels {
		if err := w.line(label, num(snap.AgingBuckets[label])); err != nil {
			return err
		}
	}
	return nil
}

func writeTop(f *excelize.File, bold int, snap *aggregate.Snapshot) error {
	w, err := newWriter(f, SheetTop, bold)
	if err != nil {
		return err
	}
	if err := w.header("Code", "Owner", "Client", "Outstanding", "Days elapsed"); err != nil {
		return err
	}
	for _, item := range snap.TopOutstanding {
		var days interface{}
		if item.DaysElapsed != nil {
			days = *item.DaysElapsed
		}
		if err := w.line(item.Code, item.Owner, item.Client, num(item.Outstanding), days); err != nil {
			return err
		}
	}
	return nil
}

// ExportProjects writes projects in the business sheet layout.
func ExportProjects(projects []models.Project) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := headerStyle(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w, err := newWriter(f, SheetProjects, bold)
	if err != nil {
		f.Close()
		return nil, err
	}

	headers := sheet.Headers(sheet.DefaultColumns)
	layout := sheet.NewLayout(headers, sheet.DefaultColumns)
	if err := w.header(toCells(headers)...); err != nil {
		f.Close()
		return nil, err
	}
	for i := range projects {
		if err := w.line(toCells(layout.Encode(&projects[i], nil))...); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write project %s: %w", projects[i].Code, err)
		}
	}
	return f, nil
}

// Row is one data row read from an uploaded workbook.
type Row struct {
	Number int // 1-based worksheet row
	Code   string
	Input  compute.Input
}

// ReadProjects reads the first worksheet of an xlsx workbook. The first row
// must be a header recognisable by the business sheet layout; blank rows are
// skipped.
func ReadProjects(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	layout := sheet.NewLayout(rows[0], sheet.DefaultColumns)
	if !layout.Has(models.FieldCode) {
		return nil, fmt.Errorf("header row has no %q column", sheet.DefaultColumns[0].Header)
	}

	out := make([]Row, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if sheet.Blank(cells) {
			continue
		}
		code, in := layout.Decode(cells)
		out = append(out, Row{Number: i + 2, Code: code, Input: in})
	}
	return out, nil
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
