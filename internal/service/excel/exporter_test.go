package excel_test

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"swsmreport/internal/model"
	"swsmreport/internal/service/excel"
)

func fptr(f float64) *float64 { return &f }

func sampleClassification() *model.Classification {
	return &model.Classification{
		Threshold: 75,
		Deficit: []model.DeficitRow{
			{SerialNo: 1, RowNo: 1, SchemeID: "S1", SchemeName: "Alpha", DailyWaterDemand: fptr(100), YesterdayWaterProduction: fptr(50), Percentage: fptr(50), SuppliedWaterPercentage: "<75%"},
			{SerialNo: 2, RowNo: 2, SchemeID: "S2", SchemeName: "Beta Gamma Delta Rural Water Supply Scheme", DailyWaterDemand: nil, YesterdayWaterProduction: fptr(0), Percentage: nil, SuppliedWaterPercentage: "<75%"},
		},
		Inactive: []model.InactiveRow{
			{SerialNo: 1, RowNo: 2, SchemeID: "S2", SchemeName: "Beta Gamma Delta Rural Water Supply Scheme", YesterdayWaterProduction: fptr(0), TodayWaterProduction: nil, LastDataReceiveDate: "27-12-2025", SiteStatus: model.SiteStatusInactive},
		},
	}
}

func TestExporter_WriteTo(t *testing.T) {
	var buf bytes.Buffer
	if err := excel.NewExporter().WriteTo(&buf, sampleClassification()); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if strings.Join(sheets, "|") != "SUPPLIED WATER LESS THAN 75|ZERO(INACTIVE SITES)" {
		t.Fatalf("sheets=%q", sheets)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("deficit rows=%d, want 3", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(excel.DeficitColumns, "|") {
		t.Fatalf("deficit header=%q", rows[0])
	}
	if got := strings.Join(rows[1], "|"); got != "1|S1|Alpha|100|50|50|<75%" {
		t.Fatalf("deficit row 1=%q", got)
	}
	if got := rows[2]; got[3] != "" || got[5] != "" || got[4] != "0" {
		t.Fatalf("null numbers must be blank cells, got %q", got)
	}

	rows, err = f.GetRows(sheets[1])
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if strings.Join(rows[0], "|") != strings.Join(excel.InactiveColumns, "|") {
		t.Fatalf("inactive header=%q", rows[0])
	}
	if got := strings.Join(rows[1], "|"); got != "1|S2|Beta Gamma Delta Rural Water Supply Scheme|0||27-12-2025|ZERO/INACTIVE SITE" {
		t.Fatalf("inactive row 1=%q", got)
	}
}

func TestExporter_Styles(t *testing.T) {
	f, err := excel.NewExporter().Export(sampleClassification())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	defer f.Close()

	sheet := excel.DeficitSheetName(75)

	headerID, err := f.GetCellStyle(sheet, "A1")
	if err != nil {
		t.Fatalf("GetCellStyle failed: %v", err)
	}
	header, err := f.GetStyle(headerID)
	if err != nil {
		t.Fatalf("GetStyle failed: %v", err)
	}
	if header.Font == nil || !header.Font.Bold {
		t.Fatalf("header font should be bold: %+v", header.Font)
	}
	if len(header.Border) != 4 {
		t.Fatalf("header border=%+v", header.Border)
	}

	for cell, want := range map[string]string{"C2": "left", "B2": "center", "G3": "center"} {
		id, err := f.GetCellStyle(sheet, cell)
		if err != nil {
			t.Fatalf("GetCellStyle(%s) failed: %v", cell, err)
		}
		style, err := f.GetStyle(id)
		if err != nil {
			t.Fatalf("GetStyle failed: %v", err)
		}
		if style.Alignment == nil || style.Alignment.Horizontal != want {
			t.Fatalf("%s alignment=%+v, want %s", cell, style.Alignment, want)
		}
	}

	width, err := f.GetColWidth(sheet, "C")
	if err != nil {
		t.Fatalf("GetColWidth failed: %v", err)
	}
	if want := float64(excel.ColumnWidth(len("Beta Gamma Delta Rural Water Supply Scheme"))); width != want {
		t.Fatalf("column C width=%v, want %v", width, want)
	}
	width, err = f.GetColWidth(sheet, "A")
	if err != nil {
		t.Fatalf("GetColWidth failed: %v", err)
	}
	if width != 10 {
		t.Fatalf("column A width=%v, want 10", width)
	}
}

func TestExporter_EmptySets(t *testing.T) {
	f, err := excel.NewExporter().Export(&model.Classification{Threshold: 62.5})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("SUPPLIED WATER LESS THAN 62.5")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, want header only", len(rows))
	}
}

func TestColumnWidth(t *testing.T) {
	cases := map[int]int{0: 10, 5: 10, 10: 14, 40: 50, 100: 60}
	for n, want := range cases {
		if got := excel.ColumnWidth(n); got != want {
			t.Fatalf("ColumnWidth(%d)=%d, want %d", n, got, want)
		}
	}
}

func TestReportFileName(t *testing.T) {
	date := time.Date(2025, 12, 28, 9, 0, 0, 0, time.UTC)
	if got := excel.ReportFileName(75, date); got != "ZERO & LESS THAN 75 SITES 2025-12-28.xlsx" {
		t.Fatalf("ReportFileName=%q", got)
	}
	if got := excel.SheetNames(80); got[0] != "SUPPLIED WATER LESS THAN 80" || got[1] != excel.InactiveSheetName {
		t.Fatalf("SheetNames=%q", got)
	}
}

func TestExporter_LongThresholdSheetName(t *testing.T) {
	cases := []struct {
		threshold float64
		want      string
	}{
		{75, "SUPPLIED WATER LESS THAN 75"},
		{62.5, "SUPPLIED WATER LESS THAN 62.5"},
		{12.3456, "SUPPLIED WATER LESS THAN 12.346"},
		{100.0 / 3, "SUPPLIED WATER LESS THAN 33.333"},
		{0.000123456, "SUPPLIED WATER LESS THAN 0.0001"},
	}
	for _, tc := range cases {
		f, err := excel.NewExporter().Export(&model.Classification{Threshold: tc.threshold})
		if err != nil {
			t.Fatalf("Export(%v) failed: %v", tc.threshold, err)
		}
		sheets := f.GetSheetList()
		f.Close()
		if sheets[0] != tc.want {
			t.Fatalf("Export(%v) sheet=%q, want %q", tc.threshold, sheets[0], tc.want)
		}
		if n := utf8.RuneCountInString(sheets[0]); n > excelize.MaxSheetNameLength {
			t.Fatalf("Export(%v) sheet name has %d runes", tc.threshold, n)
		}
	}

	date := time.Date(2025, 12, 28, 9, 0, 0, 0, time.UTC)
	if got := excel.ReportFileName(100.0/3, date); got != "ZERO & LESS THAN 33.3333 SITES 2025-12-28.xlsx" {
		t.Fatalf("ReportFileName=%q", got)
	}
}
