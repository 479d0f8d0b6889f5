package intent

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustValidate(t *testing.T, body string) Intent {
	t.Helper()
	out, err := Validate(json.RawMessage(body))
	require.NoError(t, err)
	return out
}

func assertRejected(t *testing.T, body string) {
	t.Helper()
	_, err := Validate(json.RawMessage(body))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidateForecastForDate(t *testing.T) {
	out := mustValidate(t, `{"query_type":"forecast_for_date","target_date":"2026-03-15"}`)
	assert.Equal(t, QueryForecastForDate, out.QueryType)
	assert.Equal(t, BoundDate, out.TargetDate.Kind)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), out.TargetDate.Date)
}

func TestValidateForecastForDateAcceptsToday(t *testing.T) {
	out := mustValidate(t, `{"query_type":"forecast_for_date","target_date":"today"}`)
	assert.Equal(t, BoundToday, out.TargetDate.Kind)
}

func TestValidateRejectsMissingTargetDate(t *testing.T) {
	assertRejected(t, `{"query_type":"forecast_for_date"}`)
}

func TestValidateRejectsUnknownQueryType(t *testing.T) {
	assertRejected(t, `{"query_type":"drop_table"}`)
}

func TestValidateRejectsNonObjectPayload(t *testing.T) {
	assertRejected(t, `"just a string"`)
	assertRejected(t, `[1,2,3]`)
}

func TestValidateRejectsUnknownKeys(t *testing.T) {
	assertRejected(t, `{"query_type":"current_conditions","sql":"SELECT 1"}`)
}

func TestValidateConditionWhitelist(t *testing.T) {
	assertRejected(t, `{"query_type":"last_day_with","conditions":[{"field":"guid","operator":"eq","value":"x"}]}`)
	assertRejected(t, `{"query_type":"last_day_with","conditions":[{"field":"rainfall","operator":"like","value":"x"}]}`)
}

func TestValidateOrderedOperatorRequiresNumericField(t *testing.T) {
	assertRejected(t, `{"query_type":"last_day_with","conditions":[{"field":"description","operator":"gt","value":5}]}`)
	assertRejected(t, `{"query_type":"last_day_with","conditions":[{"field":"wind_speed","operator":"gt","value":"fast"}]}`)

	out := mustValidate(t, `{"query_type":"last_day_with","conditions":[{"field":"wind_speed","operator":"gt","value":30}]}`)
	require.Len(t, out.Conditions, 1)
	assert.Equal(t, 30.0, out.Conditions[0].Value)
}

func TestValidateContainsRequiresString(t *testing.T) {
	assertRejected(t, `{"query_type":"last_day_with","conditions":[{"field":"description","operator":"contains","value":7}]}`)

	out := mustValidate(t, `{"query_type":"last_day_with","conditions":[{"field":"description","operator":"contains","value":"sunny"}]}`)
	assert.Equal(t, "sunny", out.Conditions[0].Value)
}

func TestValidateNullOperatorsRequireLiteralNull(t *testing.T) {
	assertRejected(t, `{"query_type":"last_day_with","conditions":[{"field":"visibility","operator":"is_null","value":"null"}]}`)
	assertRejected(t, `{"query_type":"last_day_with","conditions":[{"field":"visibility","operator":"is_null"}]}`)

	out := mustValidate(t, `{"query_type":"last_day_with","conditions":[{"field":"visibility","operator":"is_null","value":null}]}`)
	assert.Nil(t, out.Conditions[0].Value)
}

func TestValidateConditionCountCap(t *testing.T) {
	assertRejected(t, `{"query_type":"last_day_with","conditions":[
		{"field":"rainfall","operator":"eq","value":"0"},
		{"field":"rainfall","operator":"eq","value":"0"},
		{"field":"rainfall","operator":"eq","value":"0"},
		{"field":"rainfall","operator":"eq","value":"0"},
		{"field":"rainfall","operator":"eq","value":"0"},
		{"field":"rainfall","operator":"eq","value":"0"}]}`)
}

func TestValidateDateRangeSentinels(t *testing.T) {
	out := mustValidate(t, `{"query_type":"count_days",
		"date_range":{"start":"first_record","end":"today"},
		"conditions":[{"field":"rainfall","operator":"eq","value":"0"}]}`)
	require.NotNil(t, out.DateRange)
	assert.Equal(t, BoundFirstRecord, out.DateRange.Start.Kind)
	assert.Equal(t, BoundToday, out.DateRange.End.Kind)
}

func TestValidateDateRangeOrdering(t *testing.T) {
	assertRejected(t, `{"query_type":"count_days",
		"date_range":{"start":"2026-03-20","end":"2026-03-10"},
		"conditions":[{"field":"rainfall","operator":"eq","value":"0"}]}`)
}

func TestValidateDateRangeBadKeyword(t *testing.T) {
	assertRejected(t, `{"query_type":"count_days",
		"date_range":{"start":"yesterday","end":"today"},
		"conditions":[{"field":"rainfall","operator":"eq","value":"0"}]}`)
}

func TestValidateExtremeValueContract(t *testing.T) {
	out := mustValidate(t, `{"query_type":"extreme_value",
		"date_range":{"start":"2026-03-01","end":"2026-03-31"},
		"fields":["max_temp"],"extreme":"max"}`)
	assert.Equal(t, ExtremeMax, out.Extreme)
	assert.Equal(t, []Field{FieldMaxTemp}, out.Fields)

	assertRejected(t, `{"query_type":"extreme_value","fields":["max_temp"],"extreme":"max"}`)
	assertRejected(t, `{"query_type":"extreme_value",
		"date_range":{"start":"2026-03-01","end":"2026-03-31"},"extreme":"max"}`)
	assertRejected(t, `{"query_type":"extreme_value",
		"date_range":{"start":"2026-03-01","end":"2026-03-31"},
		"fields":["description"],"extreme":"max"}`)
	assertRejected(t, `{"query_type":"extreme_value",
		"date_range":{"start":"2026-03-01","end":"2026-03-31"},
		"fields":["max_temp"],"extreme":"highest"}`)
}

func TestValidateMaxStreakContract(t *testing.T) {
	out := mustValidate(t, `{"query_type":"max_streak",
		"date_range":{"start":"first_record","end":"last_record"},
		"conditions":[{"field":"rainfall","operator":"eq","value":"0"}]}`)
	assert.Equal(t, QueryMaxStreak, out.QueryType)

	assertRejected(t, `{"query_type":"max_streak",
		"date_range":{"start":"first_record","end":"last_record"}}`)
	assertRejected(t, `{"query_type":"max_streak",
		"conditions":[{"field":"rainfall","operator":"eq","value":"0"}]}`)
}

func TestValidateCompareDatesContract(t *testing.T) {
	out := mustValidate(t, `{"query_type":"compare_dates","compare_dates":["2026-03-10","2026-03-15"]}`)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), out.CompareDates[0])
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), out.CompareDates[1])

	assertRejected(t, `{"query_type":"compare_dates","compare_dates":["2026-03-10"]}`)
	assertRejected(t, `{"query_type":"compare_dates","compare_dates":["2026-03-10","2026-03-10"]}`)
	assertRejected(t, `{"query_type":"compare_dates"}`)
}

func TestValidateListDaysDefaultsLimit(t *testing.T) {
	out := mustValidate(t, `{"query_type":"list_days",
		"conditions":[{"field":"description","operator":"contains","value":"rain"}]}`)
	assert.Equal(t, 5, out.Limit)

	out = mustValidate(t, `{"query_type":"list_days","limit":10,
		"conditions":[{"field":"description","operator":"contains","value":"rain"}]}`)
	assert.Equal(t, 10, out.Limit)

	assertRejected(t, `{"query_type":"list_days","limit":11,
		"conditions":[{"field":"description","operator":"contains","value":"rain"}]}`)
	assertRejected(t, `{"query_type":"list_days","limit":0,
		"conditions":[{"field":"description","operator":"contains","value":"rain"}]}`)
}

func TestValidateFieldCountCap(t *testing.T) {
	assertRejected(t, `{"query_type":"average_value",
		"date_range":{"start":"2026-03-01","end":"2026-03-31"},
		"fields":["min_temp","max_temp","wind_speed","rainfall"]}`)
}

func TestValidateDataRangeNeedsNothing(t *testing.T) {
	out := mustValidate(t, `{"query_type":"data_range"}`)
	assert.Equal(t, QueryDataRange, out.QueryType)
}

func TestBoundResolve(t *testing.T) {
	today := time.Date(2026, 3, 14, 18, 45, 0, 0, time.UTC)

	date, ok := Bound{Kind: BoundToday}.Resolve(today)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), date)

	_, ok = Bound{Kind: BoundFirstRecord}.Resolve(today)
	assert.False(t, ok)
	_, ok = Bound{Kind: BoundLastRecord}.Resolve(today)
	assert.False(t, ok)
	_, ok = Bound{Kind: BoundNone}.Resolve(today)
	assert.False(t, ok)

	concrete := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	date, ok = Bound{Kind: BoundDate, Date: concrete}.Resolve(today)
	require.True(t, ok)
	assert.Equal(t, concrete, date)
}
