package model

// SemanticField a logical column the report logic needs
type SemanticField string

const (
	FieldSchemeID                 SemanticField = "SchemeId"
	FieldSchemeName               SemanticField = "SchemeName"
	FieldDailyWaterDemand         SemanticField = "DailyWaterDemand"
	FieldYesterdayWaterProduction SemanticField = "YesterdayWaterProduction"
	FieldTodayWaterProduction     SemanticField = "TodayWaterProduction"
	FieldLastDataReceiveDate      SemanticField = "LastDataReceiveDate"
)

// AllFields lists the semantic fields in the order they are resolved and reported.
var AllFields = []SemanticField{
	FieldSchemeID,
	FieldSchemeName,
	FieldDailyWaterDemand,
	FieldYesterdayWaterProduction,
	FieldTodayWaterProduction,
	FieldLastDataReceiveDate,
}

// NumericFields are coerced to nullable numbers when a working row is built.
var NumericFields = []SemanticField{
	FieldDailyWaterDemand,
	FieldYesterdayWaterProduction,
	FieldTodayWaterProduction,
}

// Label returns the output column title for the field.
func (f SemanticField) Label() string {
	switch f {
	case FieldSchemeID:
		return "Scheme Id"
	case FieldSchemeName:
		return "Scheme Name"
	case FieldDailyWaterDemand:
		return "Daily Water Demand (m^3)"
	case FieldYesterdayWaterProduction:
		return "Yesterday Water Production (m^3)"
	case FieldTodayWaterProduction:
		return "Today Water Production (m^3)"
	case FieldLastDataReceiveDate:
		return "Last Data Receive Date"
	}
	return string(f)
}

func (f SemanticField) String() string {
	return string(f)
}
