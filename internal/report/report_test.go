package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kiko9987/itglobal/internal/aggregate"
	"github.com/kiko9987/itglobal/internal/compute"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/sheet"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestExportSnapshot(t *testing.T) {
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	records := []models.Project{
		{Code: "A-001", Region: "A", Owner: "kim", Brand: "LG", StartDate: &start,
			TotalAmount: amount("1000"), AmountPaid: amount("400"), OutstandingAmount: amount("600"), Status: models.StatusInProgress},
		{Code: "B-001", Region: "B", Owner: "lee", TotalAmount: amount("500"), AmountPaid: amount("500"),
			OutstandingAmount: amount("0"), Status: models.StatusPending},
	}
	snap := aggregate.Aggregate(records, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))

	f, err := ExportSnapshot(snap)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetMonthly, SheetRegions, SheetBrands, SheetOwners, SheetAging, SheetTop}, f.GetSheetList())

	rows, err := f.GetRows(SheetRegions)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[1][0])
	assert.Equal(t, "1000", rows[1][1])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Projects", "2"}, summary[2])

	aging, err := f.GetRows(SheetAging)
	require.NoError(t, err)
	assert.Len(t, aging, 1+len(aggregate.AgingLabels))
}

func TestExportThenReadProjects(t *testing.T) {
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	in := []models.Project{
		{Code: "A-001", Region: "A", Owner: "kim", Company: "Hanbit", StartDate: &start, TotalAmount: amount("1500000")},
		{Code: "B-002", Region: "B", Owner: "lee"},
	}

	f, err := ExportProjects(in)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	f.Close()

	rows, err := ReadProjects(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "A-001", rows[0].Code)
	assert.Equal(t, "kim", rows[0].Input.Owner)
	assert.Equal(t, "Hanbit", rows[0].Input.Company)
	assert.Equal(t, "2024-03-05", rows[0].Input.StartDate)
	assert.Equal(t, compute.Amount("1500000"), rows[0].Input.TotalAmount)
	assert.Equal(t, "B", rows[1].Input.Region)
}

func TestReadProjectsSkipsBlankRows(t *testing.T) {
	f := excelize.NewFile()
	header := sheet.Headers(sheet.DefaultColumns)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]string{"C-007", "", "park"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	f.Close()

	rows, err := ReadProjects(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Number)
	assert.Equal(t, "park", rows[0].Input.Owner)
	assert.Equal(t, "C", rows[0].Input.Region)
}

func TestReadProjectsRejectsUnknownHeader(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"foo", "bar"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	f.Close()

	_, err := ReadProjects(&buf)
	assert.Error(t, err)
}
