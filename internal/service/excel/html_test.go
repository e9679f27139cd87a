package excel_test

import (
	"bytes"
	"strings"
	"testing"

	"swsmreport/internal/model"
	"swsmreport/internal/parser"
	"swsmreport/internal/service/excel"
)

const portalExport = `<html>
<head><meta http-equiv="Content-Type" content="text/html; charset=utf-8"></head>
<body>
<table id="filters"><tr><td>District</td><td>Agra</td></tr></table>
<table border="1">
<thead>
  <tr>
    <th rowspan="2">Scheme ID</th>
    <th rowspan="2">Scheme   Name</th>
    <th colspan="2">Water (Meter3)</th>
    <th rowspan="2">OHT Water Supply (Meter3)<br>Yesterday</th>
    <th rowspan="2">Last Data Receive Date</th>
  </tr>
  <tr>
    <th>Daily Water Demand</th>
    <th>Today Water Production</th>
  </tr>
</thead>
<tbody>
  <tr><td>S1</td><td>Alpha</td><td>100</td><td>0</td><td>50</td><td>27-12-2025</td></tr>
  <tr><td></td><td></td><td></td><td></td><td></td><td></td></tr>
  <tr><td>S2</td><td> Beta </td><td>1,000</td><td>0</td><td>0</td><td></td></tr>
</tbody>
</table>
</body>
</html>`

func TestDecodeHTML_PortalExport(t *testing.T) {
	table, err := excel.Decode([]byte(portalExport), excel.DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if table.Format != model.SourceFormatHTML {
		t.Fatalf("Format=%q", table.Format)
	}

	want := []string{
		"Scheme ID",
		"Scheme Name",
		"Water (Meter3) Daily Water Demand",
		"Water (Meter3) Today Water Production",
		"OHT Water Supply (Meter3) Yesterday",
		"Last Data Receive Date",
	}
	if got := table.FlatHeaders(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("FlatHeaders=%q, want %q", got, want)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows)=%d, want 2", len(table.Rows))
	}
	if got := table.Cell(1, 1); got != "Beta" {
		t.Fatalf("Cell(1,1)=%#v", got)
	}
	if got := table.Cell(1, 5); got != nil {
		t.Fatalf("Cell(1,5)=%#v, want nil", got)
	}

	res, err := parser.Resolve(table.Headers)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := res.Column(model.FieldTodayWaterProduction); got != 3 {
		t.Fatalf("TodayWaterProduction column=%d, want 3", got)
	}
}

func TestDecodeHTML_LeadingThRows(t *testing.T) {
	doc := `<table>
<tr><th>Scheme ID</th><th>Scheme Name</th></tr>
<tr><td>S1</td><td>Alpha</td></tr>
<tr><td>S2</td><td>Beta</td></tr>
</table>`

	table, err := excel.DecodeHTML(strings.NewReader(doc), "", excel.DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeHTML failed: %v", err)
	}
	if got := table.FlatHeaders(); len(got) != 2 || got[0] != "Scheme ID" {
		t.Fatalf("FlatHeaders=%q", got)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows)=%d, want 2", len(table.Rows))
	}
}

func TestDecodeHTML_TdHeaderFallback(t *testing.T) {
	doc := `<table>
<tr><td>Scheme</td><td>Daily Water Demand</td></tr>
<tr><td>ID</td><td>(Meter3)</td></tr>
<tr><td>S1</td><td>100</td></tr>
</table>`

	table, err := excel.DecodeHTML(strings.NewReader(doc), "", excel.DecodeOptions{HeaderRows: 2})
	if err != nil {
		t.Fatalf("DecodeHTML failed: %v", err)
	}
	want := []string{"Scheme ID", "Daily Water Demand (Meter3)"}
	if got := table.FlatHeaders(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("FlatHeaders=%q, want %q", got, want)
	}
	if len(table.Rows) != 1 || table.Cell(0, 1) != "100" {
		t.Fatalf("Rows=%v", table.Rows)
	}
}

func TestDecodeHTML_PicksLargestTable(t *testing.T) {
	doc := `<table>
<tr><th>A</th></tr>
<tr><td>1</td></tr>
<tr><td>
  <table>
    <tr><th>Inner</th></tr>
    <tr><td>x</td></tr><tr><td>y</td></tr><tr><td>z</td></tr>
  </table>
</td></tr>
</table>
<table><tr><th>B</th></tr><tr><td>1</td></tr><tr><td>2</td></tr><tr><td>3</td></tr></table>`

	table, err := excel.DecodeHTML(strings.NewReader(doc), "", excel.DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeHTML failed: %v", err)
	}
	// the inner table and B both have 3 rows; the earlier one wins
	if got := table.FlatHeaders(); len(got) != 1 || got[0] != "Inner" {
		t.Fatalf("FlatHeaders=%q, want [Inner]", got)
	}
}

func TestDecodeHTML_Charset(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`<html><head><meta charset="windows-1252"></head><body><table>`)
	buf.WriteString(`<tr><th>Scheme ID</th><th>Scheme Name</th></tr><tr><td>S1</td><td>Caf`)
	buf.WriteByte(0xE9)
	buf.WriteString(`</td></tr></table></body></html>`)

	table, err := excel.DecodeHTML(&buf, "", excel.DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeHTML failed: %v", err)
	}
	if got := table.Cell(0, 1); got != "Café" {
		t.Fatalf("Cell(0,1)=%q", got)
	}
}

func TestDecodeHTML_NoTable(t *testing.T) {
	_, err := excel.DecodeHTML(strings.NewReader("<p>nothing here</p>"), "", excel.DecodeOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
}
