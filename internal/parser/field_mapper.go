package parser

import (
	"swsmreport/internal/model"
)

// DefaultRules the match rules for the six semantic fields
func DefaultRules() []MatchRule {
	return []MatchRule{
		{Field: model.FieldSchemeID, Fragments: []string{"schemeid"}},
		{Field: model.FieldSchemeName, Fragments: []string{"schemename"}},
		{Field: model.FieldDailyWaterDemand, Fragments: []string{"waterdemand", "meter3", "daily"}},
		{Field: model.FieldYesterdayWaterProduction, Fragments: []string{"oht", "watersupply", "meter3", "yesterday"}},
		{Field: model.FieldTodayWaterProduction, Fragments: []string{"today", "waterproduction", "meter3"}},
		{Field: model.FieldLastDataReceiveDate, Fragments: []string{"lastdatareceivedate"}, Optional: true},
	}
}

// FieldMapper resolves semantic fields against table headers
type FieldMapper struct {
	rules []MatchRule
}

// NewFieldMapper creates a mapper with the default rules
func NewFieldMapper() *FieldMapper {
	return &FieldMapper{rules: DefaultRules()}
}

// Rules returns a copy of the mapper's rules.
func (m *FieldMapper) Rules() []MatchRule {
	out := make([]MatchRule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Resolve maps every semantic field to a column of the table.
//
// Each field takes the first column, left to right, whose normalized header
// contains all of the rule's fragments. Later matches are reported as
// ambiguities and otherwise ignored. If any required field has no match the
// whole resolution fails with *UnresolvedFieldError; unmatched optional fields
// are listed in Resolution.Unmapped.
func (m *FieldMapper) Resolve(headers []model.Header) (*Resolution, error) {
	return m.ResolveFlat(FlattenHeaders(headers))
}

// ResolveFlat is Resolve for headers that are already flattened.
func (m *FieldMapper) ResolveFlat(columnNames []string) (*Resolution, error) {
	normalized := make([]string, len(columnNames))
	for i, col := range columnNames {
		normalized[i] = NormalizeColumnName(col)
	}

	res := &Resolution{
		Mappings: make(map[model.SemanticField]FieldMapping, len(m.rules)),
	}
	var unresolved *UnresolvedFieldError

	for _, rule := range m.rules {
		matches := matchColumns(rule, normalized)
		if len(matches) == 0 {
			if rule.Optional {
				res.Unmapped = append(res.Unmapped, rule.Field)
				continue
			}
			if unresolved == nil {
				unresolved = &UnresolvedFieldError{
					Field:     rule.Field,
					Fragments: append([]string(nil), rule.Fragments...),
					Available: append([]string(nil), columnNames...),
				}
			}
			unresolved.Missing = append(unresolved.Missing, rule.Field)
			continue
		}

		idx := matches[0]
		res.Mappings[rule.Field] = FieldMapping{
			Field:       rule.Field,
			ColumnIndex: idx,
			ColumnName:  columnNames[idx],
			Normalized:  normalized[idx],
		}

		if len(matches) > 1 {
			ignored := make([]string, 0, len(matches)-1)
			for _, j := range matches[1:] {
				ignored = append(ignored, columnNames[j])
			}
			res.Ambiguities = append(res.Ambiguities, Ambiguity{
				Field:   rule.Field,
				Chosen:  columnNames[idx],
				Ignored: ignored,
			})
		}
	}

	if unresolved != nil {
		return nil, unresolved
	}
	return res, nil
}

// matchColumns returns the indexes of every column satisfying the rule, in column order.
func matchColumns(rule MatchRule, normalized []string) []int {
	var out []int
	for idx, col := range normalized {
		if col == "" {
			continue
		}
		if ContainsAll(col, rule.Fragments) {
			out = append(out, idx)
		}
	}
	return out
}

// Resolve resolves headers with the default rules.
func Resolve(headers []model.Header) (*Resolution, error) {
	return NewFieldMapper().Resolve(headers)
}
