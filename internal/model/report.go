package model

import "fmt"

// WorkingRow one projected, typed source row
type WorkingRow struct {
	// RowNo is the 1-based data row position in the source table.
	RowNo int `json:"rowNo"`

	SchemeID                 any      `json:"schemeId"`
	SchemeName               any      `json:"schemeName"`
	DailyWaterDemand         *float64 `json:"dailyWaterDemand"`
	YesterdayWaterProduction *float64 `json:"yesterdayWaterProduction"`
	TodayWaterProduction     *float64 `json:"todayWaterProduction"`
	LastDataReceiveDate      any      `json:"lastDataReceiveDate"`

	// Percentage is nil when either operand is nil or the demand is zero.
	Percentage *float64 `json:"percentage"`
}

// ZeroDemand reports whether the row has a demand that parsed as exactly zero.
func (r WorkingRow) ZeroDemand() bool {
	return r.DailyWaterDemand != nil && *r.DailyWaterDemand == 0
}

// DeficitRow a site supplying less than the threshold share of its demand
type DeficitRow struct {
	SerialNo                 int      `json:"serialNo"`
	RowNo                    int      `json:"rowNo"`
	SchemeID                 any      `json:"schemeId"`
	SchemeName               any      `json:"schemeName"`
	DailyWaterDemand         *float64 `json:"dailyWaterDemand"`
	YesterdayWaterProduction *float64 `json:"yesterdayWaterProduction"`
	Percentage               *float64 `json:"percentage"`
	SuppliedWaterPercentage  string   `json:"suppliedWaterPercentage"`
}

// InactiveRow a site with zero production yesterday and today
type InactiveRow struct {
	SerialNo                 int      `json:"serialNo"`
	RowNo                    int      `json:"rowNo"`
	SchemeID                 any      `json:"schemeId"`
	SchemeName               any      `json:"schemeName"`
	YesterdayWaterProduction *float64 `json:"yesterdayWaterProduction"`
	TodayWaterProduction     *float64 `json:"todayWaterProduction"`
	LastDataReceiveDate      any      `json:"lastDataReceiveDate"`
	SiteStatus               string   `json:"siteStatus"`
}

// SiteStatusInactive label carried by every inactive row
const SiteStatusInactive = "ZERO/INACTIVE SITE"

// Classification the two derived row sets
type Classification struct {
	Threshold float64       `json:"threshold"`
	Deficit   []DeficitRow  `json:"deficit"`
	Inactive  []InactiveRow `json:"inactive"`
	// ZeroDemandRows lists source row numbers whose demand is zero, for manual review.
	ZeroDemandRows []int `json:"zeroDemandRows"`
}

// CoercionWarning a numeric cell that did not parse; the row continues with a null value
type CoercionWarning struct {
	RowNo int           `json:"rowNo"`
	Field SemanticField `json:"field"`
	Value string        `json:"value"`
}

func (w CoercionWarning) String() string {
	return fmt.Sprintf("row %d: %s value %q is not a number", w.RowNo, w.Field, w.Value)
}
