package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/sales-reports/internal/domain/entity"
)

func TestExcelExporter_Write(t *testing.T) {
	submitted := time.Date(2024, 5, 31, 9, 30, 0, 0, time.UTC)
	reports := []*entity.Report{
		{
			ID:              2,
			Period:          "2024-05",
			Status:          entity.StatusApproved,
			CityName:        "Jakarta Selatan",
			SubdistrictName: "Kebayoran Baru",
			BranchName:      "Blok M",
			Stock:           decimal.NewNullDecimal(decimal.RequireFromString("1500.25")),
			Expenses:        decimal.NewNullDecimal(decimal.RequireFromString("300")),
			Income:          decimal.NewNullDecimal(decimal.RequireFromString("2750.5")),
			SubmittedAt:     &submitted,
			Comments:        []entity.Comment{{ID: 1, Body: "ok"}},
		},
		{
			ID:         1,
			Period:     "2024-04",
			Status:     entity.StatusDraft,
			BranchName: "Cikini",
		},
	}

	var buf bytes.Buffer
	exporter := NewExcelExporter(DefaultExcelOptions())
	require.NoError(t, exporter.Write(&buf, reports))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reports", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Rejection Reason", rows[0][11])
	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "2024-05", rows[1][1])
	assert.Equal(t, entity.StatusApproved, rows[1][2])
	assert.Equal(t, "Blok M", rows[1][5])
	assert.Equal(t, "1500.25", rows[1][6])
	assert.Equal(t, "2750.5", rows[1][8])

	// draft without financials leaves the amount cells empty
	assert.Equal(t, "Cikini", rows[2][5])
	assert.Equal(t, "", cellAt(rows[2], 6))

	panes, err := f.GetPanes("Reports")
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)
}

func TestExcelExporter_EmptyListing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter(ExcelOptions{}).Write(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reports")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(columns))
}

func TestNewExcelExporter_FillsFormatDefaults(t *testing.T) {
	defaults := DefaultExcelOptions()

	e := NewExcelExporter(ExcelOptions{FreezeHeader: true})
	assert.Equal(t, defaults.SheetName, e.options.SheetName)
	assert.Equal(t, defaults.NumberFormat, e.options.NumberFormat)
	assert.Equal(t, defaults.DateFormat, e.options.DateFormat)
	assert.True(t, e.options.FreezeHeader)
	assert.False(t, e.options.AutoFilter)

	custom := NewExcelExporter(ExcelOptions{SheetName: "Mei", NumberFormat: "0.00", DateFormat: "dd/mm/yyyy"})
	assert.Equal(t, "Mei", custom.options.SheetName)
	assert.Equal(t, "0.00", custom.options.NumberFormat)
	assert.Equal(t, "dd/mm/yyyy", custom.options.DateFormat)

	// dated and amount cells take the default styles
	submitted := time.Date(2024, 5, 31, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter(ExcelOptions{}).Write(&buf, []*entity.Report{
		{ID: 1, Period: "2024-05", Status: entity.StatusPendingSubdistrict, SubmittedAt: &submitted,
			Stock: decimal.NewNullDecimal(decimal.NewFromInt(5))},
	}))
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}
