package parser

import (
	"fmt"
	"strings"

	"swsmreport/internal/model"
)

// MatchRule required fragments for one semantic field; every fragment must appear
// in the normalized header.
type MatchRule struct {
	Field     model.SemanticField `json:"field"`
	Fragments []string            `json:"fragments"`

	// Optional fields may stay unresolved without failing the resolution.
	Optional bool `json:"optional,omitempty"`
}

// FieldMapping a resolved field
type FieldMapping struct {
	Field       model.SemanticField `json:"field"`
	ColumnIndex int                 `json:"columnIndex"` // 0-based column in the raw table
	ColumnName  string              `json:"columnName"`  // flattened header
	Normalized  string              `json:"normalized"`
}

// Ambiguity a field matched more than one column; the first one was used.
type Ambiguity struct {
	Field   model.SemanticField `json:"field"`
	Chosen  string              `json:"chosen"`
	Ignored []string            `json:"ignored"`
}

// Resolution the field to column mapping for one table
type Resolution struct {
	Mappings    map[model.SemanticField]FieldMapping `json:"mappings"`
	Ambiguities []Ambiguity                          `json:"ambiguities,omitempty"`

	// Unmapped lists optional fields no header matched. An unmapped
	// LastDataReceiveDate leaves that column blank on the inactive sheet.
	Unmapped []model.SemanticField `json:"unmapped,omitempty"`
}

// Column returns the column index for the field, -1 when it is not mapped.
func (r *Resolution) Column(field model.SemanticField) int {
	if r == nil {
		return -1
	}
	m, ok := r.Mappings[field]
	if !ok {
		return -1
	}
	return m.ColumnIndex
}

// Ordered returns the mappings in model.AllFields order.
func (r *Resolution) Ordered() []FieldMapping {
	out := make([]FieldMapping, 0, len(r.Mappings))
	for _, f := range model.AllFields {
		if m, ok := r.Mappings[f]; ok {
			out = append(out, m)
		}
	}
	return out
}

// UnresolvedFieldError no header satisfies a required field's match rule.
// LastDataReceiveDate is optional and never reported here; see Resolution.Unmapped.
type UnresolvedFieldError struct {
	Field     model.SemanticField
	Fragments []string
	// Missing holds every unresolved field, Field first.
	Missing   []model.SemanticField
	Available []string
}

func (e *UnresolvedFieldError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "column for %s not found: no header contains all of [%s]",
		e.Field, strings.Join(e.Fragments, ", "))
	if len(e.Missing) > 1 {
		names := make([]string, 0, len(e.Missing)-1)
		for _, f := range e.Missing[1:] {
			names = append(names, string(f))
		}
		fmt.Fprintf(&b, " (also missing: %s)", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "; available headers: %q", e.Available)
	return b.String()
}
