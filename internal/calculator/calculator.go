package calculator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"swsmreport/internal/model"
	"swsmreport/internal/parser"
)

// DefaultThreshold default supplied-water percentage threshold
const DefaultThreshold = 75.0

// ErrInvalidThreshold threshold outside (0, 100]
var ErrInvalidThreshold = errors.New("threshold must be greater than 0 and at most 100")

// ZeroDemandPolicy decides whether rows with zero daily demand count as deficit.
type ZeroDemandPolicy string

const (
	// ZeroDemandExclude keeps zero-demand rows out of the deficit set.
	ZeroDemandExclude ZeroDemandPolicy = "exclude"
	// ZeroDemandInclude treats their null percentage as 0 like any other null.
	ZeroDemandInclude ZeroDemandPolicy = "include"
)

// ParseZeroDemandPolicy parses a policy name; empty means exclude.
func ParseZeroDemandPolicy(s string) (ZeroDemandPolicy, error) {
	switch ZeroDemandPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ZeroDemandExclude:
		return ZeroDemandExclude, nil
	case ZeroDemandInclude:
		return ZeroDemandInclude, nil
	default:
		return "", fmt.Errorf("unknown zero demand policy %q (want %q or %q)", s, ZeroDemandExclude, ZeroDemandInclude)
	}
}

// Options classification options
type Options struct {
	ZeroDemand ZeroDemandPolicy
}

// ValidateThreshold checks t is in (0, 100].
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t <= 0 || t > 100 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	return nil
}

// ThresholdLabel formats the deficit label, e.g. "<75%".
func ThresholdLabel(t float64) string {
	return "<" + FormatThreshold(t) + "%"
}

// thresholdDigits significant digits kept when printing a threshold
const thresholdDigits = 6

// FormatThreshold formats t with up to 6 significant digits and no trailing zeros,
// e.g. 75, 62.5 or 33.3333.
func FormatThreshold(t float64) string {
	return FormatThresholdDigits(t, thresholdDigits)
}

// FormatThresholdDigits formats t with at most digits significant digits.
func FormatThresholdDigits(t float64, digits int) string {
	return strconv.FormatFloat(t, 'g', max(digits, 1), 64)
}

// Project reads the resolved columns out of the table and coerces the numeric ones.
// Cells that do not parse become null and produce a warning; they never fail the row.
func Project(table *model.RawTable, res *parser.Resolution) ([]model.WorkingRow, []model.CoercionWarning) {
	if table == nil {
		return []model.WorkingRow{}, nil
	}

	var warnings []model.CoercionWarning
	numeric := func(rowNo int, row int, field model.SemanticField) *float64 {
		value := table.Cell(row, res.Column(field))
		f, ok := ToNumber(value)
		if !ok {
			warnings = append(warnings, model.CoercionWarning{
				RowNo: rowNo,
				Field: field,
				Value: cast.ToString(value),
			})
		}
		return f
	}

	rows := make([]model.WorkingRow, 0, len(table.Rows))
	for i := range table.Rows {
		rowNo := i + 1
		wr := model.WorkingRow{
			RowNo:                    rowNo,
			SchemeID:                 textValue(table.Cell(i, res.Column(model.FieldSchemeID))),
			SchemeName:               textValue(table.Cell(i, res.Column(model.FieldSchemeName))),
			DailyWaterDemand:         numeric(rowNo, i, model.FieldDailyWaterDemand),
			YesterdayWaterProduction: numeric(rowNo, i, model.FieldYesterdayWaterProduction),
			TodayWaterProduction:     numeric(rowNo, i, model.FieldTodayWaterProduction),
			LastDataReceiveDate:      textValue(table.Cell(i, res.Column(model.FieldLastDataReceiveDate))),
		}
		wr.Percentage = percentage(wr.YesterdayWaterProduction, wr.DailyWaterDemand)
		rows = append(rows, wr)
	}
	return rows, warnings
}

// ToNumber coerces a cell to a number.
// Blank cells give (nil, true); unparseable or non-finite values give (nil, false).
func ToNumber(value any) (*float64, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case bool:
		return nil, false
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if s == "" {
			return nil, true
		}
		value = s
	}

	f, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

func textValue(value any) any {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		return s
	}
	return value
}

func percentage(production, demand *float64) *float64 {
	if production == nil || demand == nil || *demand == 0 {
		return nil
	}
	p := *production / *demand * 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return nil
	}
	return &p
}

func orZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Classify derives the deficit and inactive sets from the working rows.
// Both keep input order and number their rows 1..N. rows is not modified.
func Classify(rows []model.WorkingRow, threshold float64, opts Options) (*model.Classification, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	policy := opts.ZeroDemand
	if policy == "" {
		policy = ZeroDemandExclude
	}

	label := ThresholdLabel(threshold)
	result := &model.Classification{
		Threshold:      threshold,
		Deficit:        []model.DeficitRow{},
		Inactive:       []model.InactiveRow{},
		ZeroDemandRows: []int{},
	}

	for _, r := range rows {
		zeroDemand := r.ZeroDemand()
		if zeroDemand {
			result.ZeroDemandRows = append(result.ZeroDemandRows, r.RowNo)
		}

		if IsDeficit(r, threshold) && !(zeroDemand && policy == ZeroDemandExclude) {
			result.Deficit = append(result.Deficit, model.DeficitRow{
				SerialNo:                 len(result.Deficit) + 1,
				RowNo:                    r.RowNo,
				SchemeID:                 r.SchemeID,
				SchemeName:               r.SchemeName,
				DailyWaterDemand:         r.DailyWaterDemand,
				YesterdayWaterProduction: r.YesterdayWaterProduction,
				Percentage:               r.Percentage,
				SuppliedWaterPercentage:  label,
			})
		}

		if IsInactive(r) {
			result.Inactive = append(result.Inactive, model.InactiveRow{
				SerialNo:                 len(result.Inactive) + 1,
				RowNo:                    r.RowNo,
				SchemeID:                 r.SchemeID,
				SchemeName:               r.SchemeName,
				YesterdayWaterProduction: r.YesterdayWaterProduction,
				TodayWaterProduction:     r.TodayWaterProduction,
				LastDataReceiveDate:      r.LastDataReceiveDate,
				SiteStatus:               model.SiteStatusInactive,
			})
		}
	}

	return result, nil
}

// IsDeficit reports whether the row's percentage, null as 0, is below threshold.
func IsDeficit(r model.WorkingRow, threshold float64) bool {
	return orZero(r.Percentage) < threshold
}

// IsInactive reports whether yesterday and today production are both zero, null as 0.
func IsInactive(r model.WorkingRow) bool {
	return orZero(r.YesterdayWaterProduction) == 0 && orZero(r.TodayWaterProduction) == 0
}
