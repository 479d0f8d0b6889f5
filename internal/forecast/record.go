// Package forecast holds the feed-record model and the normalization rules
// applied when forecasts enter the archive. The API service reads the
// forecasts table as-is and never calls this package; the collector job
// that polls the upstream feed and writes the table is its consumer, so
// both sides agree on date parsing, rainfall bounds and the visibility
// classes without sharing a process.
package forecast

import "time"

// Visibility is the coarse classification derived from the free-text
// visibility field at ingestion time.
type Visibility string

const (
	VisibilityGood     Visibility = "good"
	VisibilityModerate Visibility = "moderate"
	VisibilityPoor     Visibility = "poor"
	VisibilityUnknown  Visibility = ""
)

// Record is one issued forecast row. Records are append-only and keyed by
// GUID; several records may describe the same ForecastDate when the feed
// re-issues a forecast.
type Record struct {
	GUID          string
	PublishedAt   time.Time
	ForecastDate  time.Time
	MinTemp       int
	MaxTemp       int
	WindSpeed     int
	WindDirection string
	Description   string
	Rainfall      string
	Visibility    string
	Comments      string

	// Derived at ingestion, never authored by the feed.
	RainfallMin    float64
	RainfallMax    float64
	VisibilityCode Visibility
}

// RawRecord is a feed row before normalization. ForecastDate is still the
// free text the feed published.
type RawRecord struct {
	GUID          string
	PublishedAt   time.Time
	ForecastDate  string
	MinTemp       int
	MaxTemp       int
	WindSpeed     int
	WindDirection string
	Description   string
	Rainfall      string
	Visibility    string
	Comments      string
}
