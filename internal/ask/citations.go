package ask

import (
	"fmt"
	"time"

	"github.com/forecastqa/forecastqa/internal/store"
)

// Citation is the minimal evidence record returned with an answer so the
// underlying data point can be checked.
type Citation struct {
	ForecastDate string `json:"forecast_date"`
	PublishedAt  string `json:"published_at,omitempty"`
	Description  string `json:"description,omitempty"`
	MinTemp      *int64 `json:"min_temp,omitempty"`
	MaxTemp      *int64 `json:"max_temp,omitempty"`
}

// buildCitations reduces result rows to at most max citations, one per
// forecast date keeping the most recently published row. Aggregate rows
// without a forecast_date column produce no citation.
func buildCitations(rows []store.Row, max int) []Citation {
	type pick struct {
		row       store.Row
		published time.Time
	}
	best := make(map[string]*pick)
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		date := stringValue(row["forecast_date"])
		if date == "" {
			continue
		}
		published := timeValue(row["published_at"])
		existing, ok := best[date]
		if !ok {
			best[date] = &pick{row: row, published: published}
			order = append(order, date)
			continue
		}
		if published.After(existing.published) {
			existing.row = row
			existing.published = published
		}
	}

	citations := make([]Citation, 0, len(order))
	for _, date := range order {
		if len(citations) >= max {
			break
		}
		citations = append(citations, citationFromRow(best[date].row))
	}
	return citations
}

func citationFromRow(row store.Row) Citation {
	return Citation{
		ForecastDate: stringValue(row["forecast_date"]),
		PublishedAt:  stringValue(row["published_at"]),
		Description:  stringValue(row["description"]),
		MinTemp:      intValue(row["min_temp"]),
		MaxTemp:      intValue(row["max_temp"]),
	}
}

// stringValue renders the scan types the driver hands back for text and
// date columns. Dates come back as time.Time from pgx and as strings from
// plans that bound them as text.
func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func timeValue(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func intValue(value any) *int64 {
	switch v := value.(type) {
	case int64:
		return &v
	case int32:
		n := int64(v)
		return &n
	case int:
		n := int64(v)
		return &n
	}
	return nil
}
