package excel

import (
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"swsmreport/internal/calculator"
	"swsmreport/internal/model"
)

// InactiveSheetName name of the zero/inactive sites sheet
const InactiveSheetName = "ZERO(INACTIVE SITES)"

const (
	minColWidth = 10
	maxColWidth = 60
	// schemeNameCol is left-aligned, every other body column is centered.
	schemeNameCol = 3
)

// DeficitColumns deficit sheet header
var DeficitColumns = []string{
	"SR.No.",
	model.FieldSchemeID.Label(),
	model.FieldSchemeName.Label(),
	model.FieldDailyWaterDemand.Label(),
	model.FieldYesterdayWaterProduction.Label(),
	"Percentage",
	"Supplied Water Percentage",
}

// InactiveColumns inactive sheet header
var InactiveColumns = []string{
	"SR.No.",
	model.FieldSchemeID.Label(),
	model.FieldSchemeName.Label(),
	model.FieldYesterdayWaterProduction.Label(),
	model.FieldTodayWaterProduction.Label(),
	model.FieldLastDataReceiveDate.Label(),
	"Site Status",
}

const deficitSheetPrefix = "SUPPLIED WATER LESS THAN "

// DeficitSheetName e.g. "SUPPLIED WATER LESS THAN 75".
// Long thresholds are rounded to fewer digits so the name stays within
// the 31 character sheet name limit.
func DeficitSheetName(threshold float64) string {
	for digits := 6; digits > 0; digits-- {
		name := deficitSheetPrefix + calculator.FormatThresholdDigits(threshold, digits)
		if utf8.RuneCountInString(name) <= excelize.MaxSheetNameLength {
			return name
		}
	}
	name := []rune(deficitSheetPrefix + calculator.FormatThresholdDigits(threshold, 1))
	return string(name[:excelize.MaxSheetNameLength])
}

// SheetNames returns the deficit and inactive sheet names, in workbook order.
func SheetNames(threshold float64) []string {
	return []string{DeficitSheetName(threshold), InactiveSheetName}
}

// ReportFileName e.g. "ZERO & LESS THAN 75 SITES 2025-12-28.xlsx"
func ReportFileName(threshold float64, date time.Time) string {
	return fmt.Sprintf("ZERO & LESS THAN %s SITES %s.xlsx", calculator.FormatThreshold(threshold), date.Format("2006-01-02"))
}

// Exporter report workbook exporter
type Exporter struct{}

// NewExporter creates an exporter
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export builds the two-sheet report. The caller owns the returned file.
func (e *Exporter) Export(c *model.Classification) (*excelize.File, error) {
	if c == nil {
		return nil, fmt.Errorf("classification is nil")
	}

	f := excelize.NewFile()
	styles, err := newReportStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	deficitSheet := DeficitSheetName(c.Threshold)
	if err := f.SetSheetName("Sheet1", deficitSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(InactiveSheetName); err != nil {
		f.Close()
		return nil, err
	}

	deficitRows := make([][]any, 0, len(c.Deficit))
	for _, r := range c.Deficit {
		deficitRows = append(deficitRows, []any{
			r.SerialNo,
			r.SchemeID,
			r.SchemeName,
			numberCell(r.DailyWaterDemand),
			numberCell(r.YesterdayWaterProduction),
			numberCell(r.Percentage),
			r.SuppliedWaterPercentage,
		})
	}
	if err := writeSheet(f, deficitSheet, DeficitColumns, deficitRows, styles); err != nil {
		f.Close()
		return nil, err
	}

	inactiveRows := make([][]any, 0, len(c.Inactive))
	for _, r := range c.Inactive {
		inactiveRows = append(inactiveRows, []any{
			r.SerialNo,
			r.SchemeID,
			r.SchemeName,
			numberCell(r.YesterdayWaterProduction),
			numberCell(r.TodayWaterProduction),
			r.LastDataReceiveDate,
			r.SiteStatus,
		})
	}
	if err := writeSheet(f, InactiveSheetName, InactiveColumns, inactiveRows, styles); err != nil {
		f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteTo exports the report and writes the xlsx bytes to w.
func (e *Exporter) WriteTo(w io.Writer, c *model.Classification) error {
	f, err := e.Export(c)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

type reportStyles struct {
	header     int
	bodyCenter int
	bodyLeft   int
}

func newReportStyles(f *excelize.File) (reportStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}

	var s reportStyles
	var err error
	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "000000"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#5B9BD5"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	s.bodyCenter, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return s, fmt.Errorf("body style: %w", err)
	}
	s.bodyLeft, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return s, fmt.Errorf("body style: %w", err)
	}
	return s, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, styles reportStyles) error {
	widths := make([]int, len(header))

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return err
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		for j, v := range row {
			if j < len(widths) {
				widths[j] = max(widths[j], utf8.RuneCountInString(displayText(v)))
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", styles.header); err != nil {
		return err
	}

	if len(rows) > 0 {
		lastRow := len(rows) + 1
		for col := 1; col <= len(header); col++ {
			name, _ := excelize.ColumnNumberToName(col)
			style := styles.bodyCenter
			if col == schemeNameCol {
				style = styles.bodyLeft
			}
			if err := f.SetCellStyle(sheet, name+"2", fmt.Sprintf("%s%d", name, lastRow), style); err != nil {
				return err
			}
		}
	}

	for i, w := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, float64(ColumnWidth(w))); err != nil {
			return err
		}
	}
	return nil
}

// ColumnWidth sizes a column from its longest text, clamped to [10, 60].
func ColumnWidth(maxLen int) int {
	return max(minColWidth, min(maxColWidth, int(float64(maxLen)*1.2)+2))
}

func numberCell(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func displayText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
