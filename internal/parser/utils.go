package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"swsmreport/internal/model"
)

// NormalizeColumnName strips every whitespace rune and case-folds the name.
// The result is only used for matching; lookups into the table go by column index.
func NormalizeColumnName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	// A Caser keeps state, so each call gets its own.
	return cases.Fold().String(name)
}

// FlattenHeaders flattens compound headers in column order.
func FlattenHeaders(headers []model.Header) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = h.Flatten()
	}
	return out
}

// ContainsAll reports whether text contains every keyword.
func ContainsAll(text string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}
