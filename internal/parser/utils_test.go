package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"swsmreport/internal/model"
)

func TestNormalizeColumnName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"SCHEME   ID":                         "schemeid",
		"  Scheme\tName\n":                    "schemename",
		"Daily Water Demand (Meter3)":         "dailywaterdemand(meter3)",
		"OHT Water Supply (Meter3) Yesterday": "ohtwatersupply(meter3)yesterday",
		"":                                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeColumnName(in), "input %q", in)
	}
}

func TestNormalizeColumnName_CaseFold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NormalizeColumnName("LAST DATA RECEIVE DATE"), NormalizeColumnName("last data receive date"))
	assert.Equal(t, "strasse", NormalizeColumnName("STRASSE"))
	assert.Equal(t, NormalizeColumnName("Straße"), NormalizeColumnName("STRASSE"))
}

func TestFlattenHeaders(t *testing.T) {
	t.Parallel()

	got := FlattenHeaders([]model.Header{
		{"Scheme ID"},
		{"Daily", "", "Water Demand (Meter3)"},
		{"", ""},
		{" OHT Water Supply ", "(Meter3) Yesterday"},
	})
	assert.Equal(t, []string{
		"Scheme ID",
		"Daily Water Demand (Meter3)",
		"",
		"OHT Water Supply (Meter3) Yesterday",
	}, got)
}

func TestContainsAll(t *testing.T) {
	t.Parallel()

	assert.True(t, ContainsAll("dailywaterdemand(meter3)", []string{"waterdemand", "meter3", "daily"}))
	assert.False(t, ContainsAll("waterdemand(meter3)", []string{"waterdemand", "meter3", "daily"}))
	assert.True(t, ContainsAll("anything", nil))
}
