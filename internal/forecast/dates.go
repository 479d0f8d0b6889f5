package forecast

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date form used throughout the service.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"02/01/2006",
	"2 January 2006",
	"January 2, 2006",
	"2006-1-2",
}

var weekdayNames = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// ResolveForecastDate turns the feed's free-text forecast date into a
// calendar date. It tries direct layouts, then relative keywords against the
// reference timestamp, then strips a leading weekday label and retries.
func ResolveForecastDate(raw string, ref time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty forecast date")
	}

	if date, ok := parseDateLayouts(trimmed); ok {
		return date, nil
	}

	switch strings.ToLower(trimmed) {
	case "today":
		return midnight(ref), nil
	case "tomorrow":
		return midnight(ref.AddDate(0, 0, 1)), nil
	}

	if rest, ok := stripWeekdayLabel(trimmed); ok {
		if date, ok := parseDateLayouts(rest); ok {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized forecast date %q", raw)
}

// Normalize resolves the raw date and fills the derived fields.
func Normalize(raw RawRecord, ref time.Time) (Record, error) {
	date, err := ResolveForecastDate(raw.ForecastDate, ref)
	if err != nil {
		return Record{}, fmt.Errorf("record %s: %w", raw.GUID, err)
	}

	rainMin, rainMax := RainfallBounds(raw.Rainfall)
	return Record{
		GUID:           raw.GUID,
		PublishedAt:    raw.PublishedAt,
		ForecastDate:   date,
		MinTemp:        raw.MinTemp,
		MaxTemp:        raw.MaxTemp,
		WindSpeed:      raw.WindSpeed,
		WindDirection:  raw.WindDirection,
		Description:    raw.Description,
		Rainfall:       raw.Rainfall,
		Visibility:     raw.Visibility,
		Comments:       raw.Comments,
		RainfallMin:    rainMin,
		RainfallMax:    rainMax,
		VisibilityCode: ClassifyVisibility(raw.Visibility),
	}, nil
}

// NormalizeBatch normalizes every record it can. A record whose date cannot
// be resolved is logged and skipped; the batch itself never fails.
func NormalizeBatch(logger *slog.Logger, raws []RawRecord, ref time.Time) []Record {
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		record, err := Normalize(raw, ref)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping forecast record",
					slog.String("guid", raw.GUID),
					slog.Any("error", err),
				)
			}
			continue
		}
		records = append(records, record)
	}
	return records
}

func parseDateLayouts(text string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, text); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}

func stripWeekdayLabel(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", false
	}
	label := strings.ToLower(strings.TrimRight(fields[0], ":,"))
	if !weekdayNames[label] {
		return "", false
	}
	return strings.Join(fields[1:], " "), true
}

func midnight(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
