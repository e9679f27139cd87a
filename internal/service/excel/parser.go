package excel

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"swsmreport/internal/model"
)

// DecodeOptions controls how an upload is decoded
type DecodeOptions struct {
	// Sheet selects the worksheet of a real workbook; empty means the first sheet.
	Sheet string
	// HeaderRows is the number of leading rows that form the (compound) header.
	// HTML exports use <thead>/<th> rows instead and only fall back to this.
	HeaderRows int
}

func (o DecodeOptions) headerRows() int {
	if o.HeaderRows < 1 {
		return 1
	}
	return o.HeaderRows
}

var (
	errEmptyInput   = errors.New("input is empty")
	errLegacyBinary = errors.New("legacy binary .xls is not supported, re-save the export as .xlsx")

	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DecodeError the input is neither a readable workbook nor an HTML table
type DecodeError struct {
	Causes []error
}

func (e *DecodeError) Error() string {
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return "cannot decode input as a spreadsheet or HTML table: " + strings.Join(msgs, "; ")
}

func (e *DecodeError) Unwrap() []error {
	return e.Causes
}

// Decode reads an upload as an xlsx workbook, falling back to an HTML table export
func Decode(data []byte, opts DecodeOptions) (*model.RawTable, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &DecodeError{Causes: []error{errEmptyInput}}
	}

	wb, wbErr := excelize.OpenReader(bytes.NewReader(data))
	if wbErr == nil {
		defer wb.Close()
		table, err := DecodeWorkbook(wb, opts)
		if err != nil {
			return nil, &DecodeError{Causes: []error{err}}
		}
		return table, nil
	}
	wbErr = fmt.Errorf("open workbook: %w", wbErr)

	if bytes.HasPrefix(data, oleSignature) {
		return nil, &DecodeError{Causes: []error{wbErr, errLegacyBinary}}
	}

	table, htmlErr := DecodeHTML(bytes.NewReader(data), "", opts)
	if htmlErr != nil {
		return nil, &DecodeError{Causes: []error{wbErr, fmt.Errorf("parse html: %w", htmlErr)}}
	}
	return table, nil
}

// ListSheets lists the worksheets of a workbook with their recognition score.
// HTML exports have no sheets and give an empty list.
func ListSheets(data []byte, headerRows int) []model.SheetInfo {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return []model.SheetInfo{}
	}
	defer wb.Close()
	return NewRecognizer().RecognizeWorkbook(wb, headerRows)
}

// DecodeWorkbook reads one sheet of a workbook
func DecodeWorkbook(wb *excelize.File, opts DecodeOptions) (*model.RawTable, error) {
	if wb == nil {
		return nil, errors.New("workbook is nil")
	}

	if len(wb.GetSheetList()) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := strings.TrimSpace(opts.Sheet)
	if sheet == "" {
		sheet = NewRecognizer().PickSheet(wb, opts.headerRows())
	} else {
		name, ok := lookupSheet(wb, sheet)
		if !ok {
			return nil, fmt.Errorf("sheet %q not found", sheet)
		}
		sheet = name
	}

	formatted, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	raw, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	headerRows := opts.headerRows()
	width := 0
	for _, row := range formatted {
		if len(row) > width {
			width = len(row)
		}
	}

	table := &model.RawTable{
		Format:    model.SourceFormatWorkbook,
		SheetName: sheet,
		Headers:   buildHeaders(headerGrid(wb, sheet, formatted, headerRows, width), width),
		Rows:      [][]any{},
	}

	for i := headerRows; i < len(formatted); i++ {
		var rawRow []string
		if i < len(raw) {
			rawRow = raw[i]
		}
		row := make([]any, len(formatted[i]))
		blank := true
		for j, f := range formatted[i] {
			v := workbookCellValue(f, getCell(rawRow, j))
			if v != nil {
				blank = false
			}
			row[j] = v
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// workbookCellValue prefers the raw value for numbers so display formats
// (rounding, thousands separators) never change the number; text and dates
// keep their formatted text.
func workbookCellValue(formatted, raw string) any {
	if strings.TrimSpace(formatted) == "" {
		if strings.TrimSpace(raw) == "" {
			return nil
		}
		return raw
	}
	if formatted == raw {
		return formatted
	}
	if _, ok := parseNumber(formatted); ok {
		if _, ok := parseNumber(raw); ok {
			return raw
		}
	}
	return formatted
}

// headerGrid the first headerRows rows padded to width. Multi-row headers
// get merged group cells spread across their range.
func headerGrid(wb *excelize.File, sheet string, rows [][]string, headerRows, width int) [][]string {
	grid := make([][]string, 0, headerRows)
	for i := 0; i < headerRows && i < len(rows); i++ {
		grid = append(grid, padRow(rows[i], width))
	}
	if len(grid) > 1 {
		fillMergedHeaderCells(wb, sheet, grid)
	}
	return grid
}

// fillMergedHeaderCells copies a merged header cell's value across its range.
func fillMergedHeaderCells(wb *excelize.File, sheet string, grid [][]string) {
	merged, err := wb.GetMergeCells(sheet)
	if err != nil {
		return
	}
	for _, mc := range merged {
		c1, r1, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		c2, r2, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		value := mc.GetCellValue()
		for r := r1; r <= r2 && r-1 < len(grid); r++ {
			for c := c1; c <= c2 && c-1 < len(grid[r-1]); c++ {
				if strings.TrimSpace(grid[r-1][c-1]) == "" {
					grid[r-1][c-1] = value
				}
			}
		}
	}
}

func buildHeaders(grid [][]string, width int) []model.Header {
	headers := make([]model.Header, width)
	for col := 0; col < width; col++ {
		h := make(model.Header, 0, len(grid))
		prev := ""
		for _, row := range grid {
			part := strings.TrimSpace(getCell(row, col))
			if part == prev {
				// a vertically merged cell contributes its text once
				part = ""
			} else {
				prev = part
			}
			h = append(h, part)
		}
		headers[col] = h
	}
	return headers
}

func padRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
