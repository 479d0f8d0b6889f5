package ask

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forecastqa/forecastqa/internal/intent"
	"github.com/forecastqa/forecastqa/internal/store"
)

const noDataAnswer = "No matching forecast data was found."

// fallbackAnswer produces a deterministic answer from the fetched rows when
// natural-language generation fails. Every query type gets usable text, so
// an answer-generation failure never fails the request.
func fallbackAnswer(queryType intent.QueryType, rows []store.Row) string {
	if len(rows) == 0 {
		return noDataAnswer
	}

	switch queryType {
	case intent.QueryForecastForDate, intent.QueryCurrentConditions,
		intent.QueryLastDayWith, intent.QueryLastDayWithout, intent.QueryFirstDayWith:
		return describeDay(rows[0])

	case intent.QueryCompareDates:
		parts := make([]string, 0, len(rows))
		for _, row := range rows {
			parts = append(parts, describeDay(row))
		}
		return strings.Join(parts, " ")

	case intent.QueryExtremeValue:
		parts := make([]string, 0, len(rows))
		for _, row := range rows {
			parts = append(parts, fmt.Sprintf("%s was %s on %s.",
				stringValue(row["field"]), stringValue(row["value"]), stringValue(row["forecast_date"])))
		}
		return strings.Join(parts, " ")

	case intent.QueryMaxStreak:
		return fmt.Sprintf("The longest matching run lasted %s days, from %s to %s.",
			stringValue(row0(rows, "streak_length")),
			stringValue(row0(rows, "start_date")),
			stringValue(row0(rows, "end_date")))

	case intent.QueryCountDays:
		return fmt.Sprintf("%s matching days were found.", stringValue(row0(rows, "day_count")))

	case intent.QueryListDays:
		dates := make([]string, 0, len(rows))
		for _, row := range rows {
			if date := stringValue(row["forecast_date"]); date != "" {
				dates = append(dates, date)
			}
		}
		if len(dates) == 0 {
			return noDataAnswer
		}
		return "Matching days: " + strings.Join(dates, ", ") + "."

	case intent.QueryAverageValue:
		return describeAverages(rows[0])

	case intent.QueryDataRange:
		return fmt.Sprintf("The archive covers %s to %s: %s days, %s forecast records.",
			stringValue(row0(rows, "first_date")),
			stringValue(row0(rows, "last_date")),
			stringValue(row0(rows, "day_count")),
			stringValue(row0(rows, "record_count")))

	default:
		return noDataAnswer
	}
}

func describeDay(row store.Row) string {
	date := stringValue(row["forecast_date"])
	if date == "" {
		return noDataAnswer
	}
	text := fmt.Sprintf("On %s the forecast was %s", date, valueOr(row["description"], "not described"))
	if min := intValue(row["min_temp"]); min != nil {
		text += fmt.Sprintf(", minimum %d", *min)
	}
	if max := intValue(row["max_temp"]); max != nil {
		text += fmt.Sprintf(", maximum %d", *max)
	}
	return text + "."
}

func describeAverages(row store.Row) string {
	parts := make([]string, 0, len(row))
	for column, value := range row {
		if !strings.HasPrefix(column, "avg_") || value == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("average %s %s",
			strings.TrimPrefix(column, "avg_"), formatNumber(value)))
	}
	if len(parts) == 0 {
		return noDataAnswer
	}
	sort.Strings(parts)
	return "Over the period: " + strings.Join(parts, ", ") + "."
}

func formatNumber(value any) string {
	switch v := value.(type) {
	case float64:
		return fmt.Sprintf("%.1f", v)
	case float32:
		return fmt.Sprintf("%.1f", v)
	default:
		return stringValue(value)
	}
}

func valueOr(value any, fallback string) string {
	if text := stringValue(value); text != "" {
		return text
	}
	return fallback
}

func row0(rows []store.Row, column string) any {
	return rows[0][column]
}
