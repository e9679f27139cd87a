package excel

import (
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"

	"swsmreport/internal/model"
	"swsmreport/internal/parser"
)

// Recognizer scores worksheets by how many required fields their header resolves
type Recognizer struct {
	mapper   *parser.FieldMapper
	required int
}

// NewRecognizer creates a recognizer with the default match rules
func NewRecognizer() *Recognizer {
	m := parser.NewFieldMapper()
	required := 0
	for _, rule := range m.Rules() {
		if !rule.Optional {
			required++
		}
	}
	return &Recognizer{mapper: m, required: required}
}

// RecognizeWorkbook scores every sheet, in workbook order.
func (r *Recognizer) RecognizeWorkbook(wb *excelize.File, headerRows int) []model.SheetInfo {
	if wb == nil {
		return []model.SheetInfo{}
	}

	sheets := wb.GetSheetList()
	out := make([]model.SheetInfo, 0, len(sheets))
	for _, name := range sheets {
		rows, err := wb.GetRows(name)
		if err != nil {
			continue
		}
		info := model.SheetInfo{Name: name, RowCount: len(rows)}
		info.Score, info.MissingFields = r.scoreHeader(wb, name, rows, headerRows)
		out = append(out, info)
	}
	return out
}

// PickSheet returns the first sheet whose header resolves every required
// field, else the best-scoring sheet; ties go to the earlier sheet.
func (r *Recognizer) PickSheet(wb *excelize.File, headerRows int) string {
	best := ""
	bestScore := -1.0
	for _, info := range r.RecognizeWorkbook(wb, headerRows) {
		if info.Score >= 1 {
			return info.Name
		}
		if info.Score > bestScore {
			best, bestScore = info.Name, info.Score
		}
	}
	return best
}

func (r *Recognizer) scoreHeader(wb *excelize.File, sheet string, rows [][]string, headerRows int) (float64, []model.SemanticField) {
	if headerRows < 1 {
		headerRows = 1
	}
	if headerRows > len(rows) {
		headerRows = len(rows)
	}
	width := 0
	for _, row := range rows[:headerRows] {
		width = max(width, len(row))
	}
	grid := headerGrid(wb, sheet, rows, headerRows, width)
	headers := parser.FlattenHeaders(buildHeaders(grid, width))

	_, err := r.mapper.ResolveFlat(headers)
	if err == nil {
		return 1, nil
	}
	var unresolved *parser.UnresolvedFieldError
	if !errors.As(err, &unresolved) || r.required == 0 {
		return 0, nil
	}
	missing := unresolved.Missing
	return float64(r.required-len(missing)) / float64(r.required), missing
}

// lookupSheet finds a sheet by case-insensitive name and returns its stored name.
func lookupSheet(wb *excelize.File, name string) (string, bool) {
	for _, s := range wb.GetSheetList() {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}
