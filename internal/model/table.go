package model

import "strings"

// SourceFormat the format an uploaded export was decoded from
type SourceFormat string

const (
	SourceFormatWorkbook SourceFormat = "workbook"
	SourceFormatHTML     SourceFormat = "html"
)

// Header a column header; compound headers carry one part per header row
type Header []string

// Flatten joins the non-empty parts with a single space, keeping their order.
func (h Header) Flatten() string {
	parts := make([]string, 0, len(h))
	for _, p := range h {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// RawTable a decoded input table, read-only after decode
type RawTable struct {
	Format    SourceFormat `json:"format"`
	SheetName string       `json:"sheetName,omitempty"`
	Headers   []Header     `json:"headers"`
	// Rows are in source order; a row may be shorter than Headers.
	Rows [][]any `json:"rows"`
}

// FlatHeaders returns every header flattened, in column order.
func (t *RawTable) FlatHeaders() []string {
	out := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		out[i] = h.Flatten()
	}
	return out
}

// Cell returns the value at (row, col), nil when the row is short.
func (t *RawTable) Cell(row, col int) any {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return nil
	}
	return r[col]
}

// SheetInfo sheet summary
type SheetInfo struct {
	Name     string `json:"name"`
	RowCount int    `json:"rowCount"`

	// Score is the share of required fields the sheet's header resolves, 0..1.
	Score         float64         `json:"score"`
	MissingFields []SemanticField `json:"missingFields,omitempty"`
}
