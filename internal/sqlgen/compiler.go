package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/forecastqa/forecastqa/internal/intent"
)

const dateLayout = "2006-01-02"

// recordColumns is the fixed projection for row-shaped results.
const recordColumns = "forecast_date, published_at, min_temp, max_temp, wind_speed, " +
	"wind_direction, description, rainfall, visibility, comments"

// Compile translates a validated intent into a parameterized plan. The
// switch is exhaustive over the query-type whitelist; the default arm is an
// internal invariant violation, not a user error.
func Compile(in intent.Intent, today time.Time) (Plan, error) {
	b := &builder{}
	var text string
	var err error

	switch in.QueryType {
	case intent.QueryForecastForDate:
		text, err = b.latestRowForDate(in.TargetDate, today)
	case intent.QueryCurrentConditions:
		text, err = b.latestRowForDate(intent.Bound{Kind: intent.BoundToday}, today)
	case intent.QueryCompareDates:
		text, err = b.compareDates(in)
	case intent.QueryExtremeValue:
		text, err = b.extremeValue(in, today)
	case intent.QueryMaxStreak:
		text, err = b.maxStreak(in, today)
	case intent.QueryLastDayWith:
		text, err = b.dayLookup(in, today, false, "DESC")
	case intent.QueryLastDayWithout:
		text, err = b.dayLookup(in, today, true, "DESC")
	case intent.QueryFirstDayWith:
		text, err = b.dayLookup(in, today, false, "ASC")
	case intent.QueryCountDays:
		text, err = b.countDays(in, today)
	case intent.QueryListDays:
		text, err = b.listDays(in, today)
	case intent.QueryAverageValue:
		text, err = b.averageValue(in, today)
	case intent.QueryDataRange:
		text = dataRangeSQL
	default:
		err = compileErrf("unhandled query type %q", in.QueryType)
	}
	if err != nil {
		return Plan{}, err
	}
	return Plan{QueryType: in.QueryType, SQL: text, Args: b.args}, nil
}

// latestRowForDate serves forecast_for_date and current_conditions: the
// most-recently-published raw row for the date, with no same-day-or-earlier
// selection.
func (b *builder) latestRowForDate(bound intent.Bound, today time.Time) (string, error) {
	date, ok := bound.Resolve(today)
	if !ok {
		return "", compileErrf("single-date query without a concrete date")
	}
	return fmt.Sprintf(
		"SELECT %s FROM forecasts WHERE forecast_date = %s ORDER BY published_at DESC LIMIT 1",
		recordColumns, b.bind(formatDate(date)),
	), nil
}

func (b *builder) compareDates(in intent.Intent) (string, error) {
	first := b.bind(formatDate(in.CompareDates[0]))
	second := b.bind(formatDate(in.CompareDates[1]))
	return fmt.Sprintf(`WITH latest AS (
SELECT %s,
       ROW_NUMBER() OVER (PARTITION BY forecast_date ORDER BY published_at DESC) AS rn
FROM forecasts
WHERE forecast_date IN (%s, %s)
)
SELECT %s FROM latest WHERE rn = 1 ORDER BY forecast_date ASC`,
		recordColumns, first, second, recordColumns), nil
}

func (b *builder) extremeValue(in intent.Intent, today time.Time) (string, error) {
	aggregate := "MAX"
	if in.Extreme == intent.ExtremeMin {
		aggregate = "MIN"
	}
	cte := b.bestPerDayCTE(in.DateRange, today)

	blocks := make([]string, 0, len(in.Fields))
	for _, field := range in.Fields {
		expr, err := numericExpr(field)
		if err != nil {
			return "", err
		}
		// Ties within a field resolve to the earliest date.
		blocks = append(blocks, fmt.Sprintf(
			"(SELECT '%s' AS field, forecast_date, published_at, description, %s AS value\n"+
				" FROM best\n"+
				" WHERE %s = (SELECT %s(%s) FROM best)\n"+
				" ORDER BY forecast_date ASC\n"+
				" LIMIT 1)",
			field, expr, expr, aggregate, expr,
		))
	}
	return cte + "\n" + strings.Join(blocks, "\nUNION ALL\n"), nil
}

// maxStreak finds the longest run of consecutive matching dates. Each
// matching date gets a group key: its day ordinal minus its rank in date
// order. Consecutive dates keep a constant key because both terms step
// together; any gap starts a new group. Ties on length go to the earliest
// start date.
func (b *builder) maxStreak(in intent.Intent, today time.Time) (string, error) {
	cte := b.bestPerDayCTE(in.DateRange, today)
	clause, err := b.conditionsClause(in.Conditions, false)
	if err != nil {
		return "", err
	}
	return cte + `,
matching AS (
SELECT forecast_date,
       (forecast_date - DATE '1970-01-01') AS day_number,
       ROW_NUMBER() OVER (ORDER BY forecast_date) AS rn
FROM best
WHERE ` + clause + `
),
grouped AS (
SELECT forecast_date, day_number - rn AS grp FROM matching
)
SELECT COUNT(*) AS streak_length,
       MIN(forecast_date) AS start_date,
       MAX(forecast_date) AS end_date
FROM grouped
GROUP BY grp
ORDER BY streak_length DESC, start_date ASC
LIMIT 1`, nil
}

func (b *builder) dayLookup(in intent.Intent, today time.Time, negate bool, direction string) (string, error) {
	cte := b.bestPerDayCTE(in.DateRange, today)
	clause, err := b.conditionsClause(in.Conditions, negate)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\nSELECT %s FROM best WHERE %s ORDER BY forecast_date %s LIMIT 1",
		cte, recordColumns, clause, direction), nil
}

func (b *builder) countDays(in intent.Intent, today time.Time) (string, error) {
	cte := b.bestPerDayCTE(in.DateRange, today)
	clause, err := b.conditionsClause(in.Conditions, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\nSELECT COUNT(*) AS day_count FROM best WHERE %s", cte, clause), nil
}

func (b *builder) listDays(in intent.Intent, today time.Time) (string, error) {
	cte := b.bestPerDayCTE(in.DateRange, today)
	clause, err := b.conditionsClause(in.Conditions, false)
	if err != nil {
		return "", err
	}
	if in.Limit <= 0 {
		return "", compileErrf("list_days without a limit")
	}
	return fmt.Sprintf("%s\nSELECT %s FROM best WHERE %s ORDER BY forecast_date DESC LIMIT %s",
		cte, recordColumns, clause, b.bind(in.Limit)), nil
}

func (b *builder) averageValue(in intent.Intent, today time.Time) (string, error) {
	cte := b.bestPerDayCTE(in.DateRange, today)
	selects := make([]string, 0, len(in.Fields))
	for _, field := range in.Fields {
		expr, err := numericExpr(field)
		if err != nil {
			return "", err
		}
		selects = append(selects, fmt.Sprintf("AVG(%s) AS avg_%s", expr, field))
	}
	text := fmt.Sprintf("%s\nSELECT %s FROM best", cte, strings.Join(selects, ", "))
	if len(in.Conditions) > 0 {
		clause, err := b.conditionsClause(in.Conditions, false)
		if err != nil {
			return "", err
		}
		text += " WHERE " + clause
	}
	return text, nil
}

const dataRangeSQL = "SELECT MIN(forecast_date) AS first_date, MAX(forecast_date) AS last_date, " +
	"COUNT(DISTINCT forecast_date) AS day_count, COUNT(*) AS record_count FROM forecasts"

// bestPerDayCTE selects the single record representing each calendar date:
// the same-day-issued record when one exists, otherwise the most recent
// record issued before the date. Records issued after the date never
// represent it.
func (b *builder) bestPerDayCTE(dates *intent.DateRange, today time.Time) string {
	where := "published_at::date <= forecast_date"
	if dates != nil {
		if start, ok := dates.Start.Resolve(today); ok {
			where += " AND forecast_date >= " + b.bind(formatDate(start))
		}
		if end, ok := dates.End.Resolve(today); ok {
			where += " AND forecast_date <= " + b.bind(formatDate(end))
		}
	}
	return fmt.Sprintf(`WITH ranked AS (
SELECT %s,
       ROW_NUMBER() OVER (
           PARTITION BY forecast_date
           ORDER BY CASE WHEN published_at::date = forecast_date THEN 0 ELSE 1 END,
                    published_at DESC
       ) AS rn
FROM forecasts
WHERE %s
),
best AS (
SELECT %s FROM ranked WHERE rn = 1
)`, recordColumns, where, recordColumns)
}

func formatDate(date time.Time) string {
	return date.Format(dateLayout)
}
