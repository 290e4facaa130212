// Package export renders report listings as spreadsheet files.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/sales-reports/internal/domain/entity"
)

// ExcelOptions configures the workbook layout
type ExcelOptions struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	NumberFormat string
	DateFormat   string
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Reports",
		FreezeHeader: true,
		AutoFilter:   true,
		NumberFormat: "#,##0.00",
		DateFormat:   "yyyy-mm-dd hh:mm",
	}
}

type column struct {
	title string
	width float64
	value func(r *entity.Report) interface{}
}

var columns = []column{
	{"ID", 8, func(r *entity.Report) interface{} { return r.ID }},
	{"Period", 10, func(r *entity.Report) interface{} { return r.Period }},
	{"Status", 20, func(r *entity.Report) interface{} { return r.Status }},
	{"City", 20, func(r *entity.Report) interface{} { return r.CityName }},
	{"Subdistrict", 20, func(r *entity.Report) interface{} { return r.SubdistrictName }},
	{"Branch", 20, func(r *entity.Report) interface{} { return r.BranchName }},
	{"Stock", 14, func(r *entity.Report) interface{} { return amount(r.Stock) }},
	{"Expenses", 16, func(r *entity.Report) interface{} { return amount(r.Expenses) }},
	{"Income", 16, func(r *entity.Report) interface{} { return amount(r.Income) }},
	{"Submitted At", 18, func(r *entity.Report) interface{} { return timeOrBlank(r.SubmittedAt) }},
	{"Approved At", 18, func(r *entity.Report) interface{} { return timeOrBlank(r.ApprovedAt) }},
	{"Rejection Reason", 40, func(r *entity.Report) interface{} { return r.RejectionReason }},
	{"Comments", 10, func(r *entity.Report) interface{} { return len(r.Comments) }},
}

// firstAmountCol and lastAmountCol bound the numeric columns (1-based)
const (
	firstAmountCol = 7
	lastAmountCol  = 9
	firstDateCol   = 10
	lastDateCol    = 11
)

// ExcelExporter writes report listings as xlsx workbooks
type ExcelExporter struct {
	options ExcelOptions
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	defaults := DefaultExcelOptions()
	if options.SheetName == "" {
		options.SheetName = defaults.SheetName
	}
	if options.NumberFormat == "" {
		options.NumberFormat = defaults.NumberFormat
	}
	if options.DateFormat == "" {
		options.DateFormat = defaults.DateFormat
	}
	return &ExcelExporter{options: options}
}

// Write renders reports into a workbook and streams it to w
func (e *ExcelExporter) Write(w io.Writer, reports []*entity.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := e.options.SheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &e.options.NumberFormat})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &e.options.DateFormat})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col.title
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, col.width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range reports {
		row := make([]interface{}, len(columns))
		for j, col := range columns {
			row[j] = col.value(r)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write report %d: %w", r.ID, err)
		}
	}

	if n := len(reports); n > 0 {
		if err := styleRange(f, sheet, firstAmountCol, lastAmountCol, n, amountStyle); err != nil {
			return err
		}
		if err := styleRange(f, sheet, firstDateCol, lastDateCol, n, dateStyle); err != nil {
			return err
		}
		if e.options.AutoFilter {
			last, _ := excelize.CoordinatesToCellName(len(columns), n+1)
			if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
				return fmt.Errorf("failed to set auto filter: %w", err)
			}
		}
	}

	if e.options.FreezeHeader {
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("failed to freeze header: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func styleRange(f *excelize.File, sheet string, fromCol, toCol, rows, style int) error {
	from, _ := excelize.CoordinatesToCellName(fromCol, 2)
	to, _ := excelize.CoordinatesToCellName(toCol, rows+1)
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		return fmt.Errorf("failed to style %s:%s: %w", from, to, err)
	}
	return nil
}

// amount keeps full precision as a number; missing values are blank cells
func amount(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	f, _ := d.Decimal.Float64()
	return f
}

func timeOrBlank(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
