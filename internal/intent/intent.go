// Package intent defines the closed vocabulary of question shapes the
// service will answer and validates raw model output against it. The
// validator is the only trust boundary between LLM text and the SQL
// compiler; the compiler trusts a validated Intent completely.
package intent

import "time"

type QueryType string

const (
	QueryForecastForDate   QueryType = "forecast_for_date"
	QueryCurrentConditions QueryType = "current_conditions"
	QueryCompareDates      QueryType = "compare_dates"
	QueryExtremeValue      QueryType = "extreme_value"
	QueryMaxStreak         QueryType = "max_streak"
	QueryLastDayWith       QueryType = "last_day_with"
	QueryLastDayWithout    QueryType = "last_day_without"
	QueryFirstDayWith      QueryType = "first_day_with"
	QueryCountDays         QueryType = "count_days"
	QueryListDays          QueryType = "list_days"
	QueryAverageValue      QueryType = "average_value"
	QueryDataRange         QueryType = "data_range"
)

// QueryTypes lists every permitted query type, in prompt order.
var QueryTypes = []QueryType{
	QueryForecastForDate,
	QueryCurrentConditions,
	QueryCompareDates,
	QueryExtremeValue,
	QueryMaxStreak,
	QueryLastDayWith,
	QueryLastDayWithout,
	QueryFirstDayWith,
	QueryCountDays,
	QueryListDays,
	QueryAverageValue,
	QueryDataRange,
}

type Field string

const (
	FieldMinTemp       Field = "min_temp"
	FieldMaxTemp       Field = "max_temp"
	FieldWindSpeed     Field = "wind_speed"
	FieldWindDirection Field = "wind_direction"
	FieldDescription   Field = "description"
	FieldRainfall      Field = "rainfall"
	FieldVisibility    Field = "visibility"
)

// Fields lists the whitelisted condition columns.
var Fields = []Field{
	FieldMinTemp,
	FieldMaxTemp,
	FieldWindSpeed,
	FieldWindDirection,
	FieldDescription,
	FieldRainfall,
	FieldVisibility,
}

// NumericFields are the fields that support ordered comparison. Rainfall is
// numeric through SQL-side extraction of its text envelope.
var NumericFields = map[Field]bool{
	FieldMinTemp:   true,
	FieldMaxTemp:   true,
	FieldWindSpeed: true,
	FieldRainfall:  true,
}

type Operator string

const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpContains  Operator = "contains"
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"
)

// Operators lists the whitelisted condition operators.
var Operators = []Operator{
	OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpContains, OpIsNull, OpIsNotNull,
}

// OrderedOperators require a numeric field and a numeric value.
var OrderedOperators = map[Operator]bool{
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
}

type BoundKind int

const (
	BoundNone BoundKind = iota
	BoundDate
	BoundToday
	BoundFirstRecord
	BoundLastRecord
)

// Bound is one end of a date range: a concrete date, a symbolic keyword, or
// absent. The first_record/last_record sentinels mean "leave this end open",
// not a lookup of the actual extremes.
type Bound struct {
	Kind BoundKind
	Date time.Time
}

// Resolve turns a bound into a concrete date. The second return is false for
// open bounds, which are omitted from the compiled query entirely.
func (b Bound) Resolve(today time.Time) (time.Time, bool) {
	switch b.Kind {
	case BoundDate:
		return b.Date, true
	case BoundToday:
		return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC), true
	default:
		return time.Time{}, false
	}
}

type DateRange struct {
	Start Bound
	End   Bound
}

// Condition is one validated predicate. Value is float64 for ordered
// operators, string for contains and textual equality, float64 or string for
// eq/ne, and nil for the null operators.
type Condition struct {
	Field    Field
	Operator Operator
	Value    any
}

type Extreme string

const (
	ExtremeMax Extreme = "max"
	ExtremeMin Extreme = "min"
)

// Intent is a fully validated question shape. Per-type required fields have
// already been enforced; consumers may rely on the contract for each
// QueryType without re-checking.
type Intent struct {
	QueryType    QueryType
	Conditions   []Condition
	DateRange    *DateRange
	Fields       []Field
	TargetDate   Bound
	CompareDates [2]time.Time
	Limit        int
	Extreme      Extreme
}
