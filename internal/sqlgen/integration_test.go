//go:build integration

package sqlgen_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastqa/forecastqa/internal/intent"
	"github.com/forecastqa/forecastqa/internal/sqlgen"
	"github.com/forecastqa/forecastqa/internal/store"
)

// The compiled plans are only ever asserted as text in the unit tests; this
// file runs them against a real Postgres so the window functions, the streak
// grouping arithmetic and the rainfall extraction are checked row by row.
// It needs FORECASTQA_TEST_DSN pointing at a database whose user may run
// CREATE DATABASE.

var integrationToday = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

type fixtureRow struct {
	forecastDate string
	minTemp      int
	description  string
	rainfall     sql.NullString
}

func TestMaxStreakCountsConsecutiveDaysOnPostgres(t *testing.T) {
	forecastStore, db, cleanup := newIntegrationStore(t)
	defer cleanup()

	// Rain on days 1, 2, 4, 5 and 6. The longest run is the three-day one.
	insertFixtures(t, db, []fixtureRow{
		{forecastDate: "2026-08-01", minTemp: 10, description: "light rain", rainfall: text("2")},
		{forecastDate: "2026-08-02", minTemp: 11, description: "rain showers", rainfall: text("5")},
		{forecastDate: "2026-08-03", minTemp: 12, description: "sunny", rainfall: text("0")},
		{forecastDate: "2026-08-04", minTemp: 9, description: "heavy rain", rainfall: text("10-20")},
		{forecastDate: "2026-08-05", minTemp: 8, description: "rain", rainfall: text("5-10")},
		{forecastDate: "2026-08-06", minTemp: 10, description: "rain at times", rainfall: text("5")},
		{forecastDate: "2026-08-07", minTemp: 13, description: "clear", rainfall: text("0")},
	})

	plan := compilePlan(t, intent.Intent{
		QueryType: intent.QueryMaxStreak,
		Conditions: []intent.Condition{
			{Field: intent.FieldDescription, Operator: intent.OpContains, Value: "rain"},
		},
	})

	rows := queryPlan(t, forecastStore, plan)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0]["streak_length"])
	assert.Equal(t, "2026-08-04", dateString(t, rows[0]["start_date"]))
	assert.Equal(t, "2026-08-06", dateString(t, rows[0]["end_date"]))
}

func TestLastDayWithoutNegatesTheWholeConjunction(t *testing.T) {
	forecastStore, db, cleanup := newIntegrationStore(t)
	defer cleanup()

	// The middle day is rainy but warm. It fails the conjunction, so
	// NOT(rainy AND cold) keeps it; negating each condition separately
	// would have dropped every day here.
	insertFixtures(t, db, []fixtureRow{
		{forecastDate: "2026-08-10", minTemp: 2, description: "heavy rain", rainfall: text("10-20")},
		{forecastDate: "2026-08-11", minTemp: 10, description: "light rain", rainfall: text("2")},
		{forecastDate: "2026-08-12", minTemp: 1, description: "cold rain", rainfall: text("5")},
	})

	plan := compilePlan(t, intent.Intent{
		QueryType: intent.QueryLastDayWithout,
		Conditions: []intent.Condition{
			{Field: intent.FieldDescription, Operator: intent.OpContains, Value: "rain"},
			{Field: intent.FieldMinTemp, Operator: intent.OpLt, Value: float64(5)},
		},
	})

	rows := queryPlan(t, forecastStore, plan)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-08-11", dateString(t, rows[0]["forecast_date"]))
}

func TestLastDayWithRainfallSkipsLaterDryDays(t *testing.T) {
	forecastStore, db, cleanup := newIntegrationStore(t)
	defer cleanup()

	insertFixtures(t, db, []fixtureRow{
		{forecastDate: "2026-08-20", minTemp: 10, description: "rain", rainfall: text("2")},
		{forecastDate: "2026-08-21", minTemp: 12, description: "sunny", rainfall: text("0")},
		{forecastDate: "2026-08-22", minTemp: 11, description: "showers", rainfall: text("5-10")},
		{forecastDate: "2026-08-23", minTemp: 13, description: "clear", rainfall: text("0")},
	})

	plan := compilePlan(t, intent.Intent{
		QueryType: intent.QueryLastDayWith,
		Conditions: []intent.Condition{
			{Field: intent.FieldRainfall, Operator: intent.OpGt, Value: float64(0)},
		},
	})

	rows := queryPlan(t, forecastStore, plan)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-08-22", dateString(t, rows[0]["forecast_date"]))
}

func TestRainfallExtractionEvaluatedByTheDatabase(t *testing.T) {
	forecastStore, db, cleanup := newIntegrationStore(t)
	defer cleanup()

	// One row per feed shape. The worst-case amounts are
	// 0, 5, 10, 10, 20, 0 and 0, so the mean is 45/7.
	insertFixtures(t, db, []fixtureRow{
		{forecastDate: "2026-08-01", minTemp: 10, description: "dry", rainfall: text("0")},
		{forecastDate: "2026-08-02", minTemp: 10, description: "wet", rainfall: text("5")},
		{forecastDate: "2026-08-03", minTemp: 10, description: "wet", rainfall: text("5-10")},
		{forecastDate: "2026-08-04", minTemp: 10, description: "wet", rainfall: text("5-10mm")},
		{forecastDate: "2026-08-05", minTemp: 10, description: "wet", rainfall: text("5-10, 10-20 in hills")},
		{forecastDate: "2026-08-06", minTemp: 10, description: "dry", rainfall: text("")},
		{forecastDate: "2026-08-07", minTemp: 10, description: "dry", rainfall: sql.NullString{}},
	})

	average := compilePlan(t, intent.Intent{
		QueryType: intent.QueryAverageValue,
		Fields:    []intent.Field{intent.FieldRainfall},
	})
	rows := queryPlan(t, forecastStore, average)
	require.Len(t, rows, 1)
	mean, ok := rows[0]["avg_rainfall"].(float64)
	require.True(t, ok, "avg_rainfall = %T", rows[0]["avg_rainfall"])
	assert.InDelta(t, 45.0/7.0, mean, 0.0001)

	heavy := compilePlan(t, intent.Intent{
		QueryType: intent.QueryCountDays,
		Conditions: []intent.Condition{
			{Field: intent.FieldRainfall, Operator: intent.OpGte, Value: float64(10)},
		},
	})
	rows = queryPlan(t, forecastStore, heavy)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0]["day_count"])
}

func TestBestPerDayPrefersSameDayIssuance(t *testing.T) {
	forecastStore, db, cleanup := newIntegrationStore(t)
	defer cleanup()

	// Four records target the same date: two issued the day before, a
	// same-day one published earlier in the morning than either, and one
	// issued the day after. The same-day record must win, and the one
	// issued after the date must never be selected.
	day := "2026-08-15"
	insertRecord(t, db, day, "2026-08-14 18:00:00+00", 5, "evening outlook")
	insertRecord(t, db, day, "2026-08-15 06:00:00+00", 7, "same day forecast")
	insertRecord(t, db, day, "2026-08-14 22:00:00+00", 6, "late outlook")
	insertRecord(t, db, day, "2026-08-16 08:00:00+00", 9, "retrospective")

	plan := compilePlan(t, intent.Intent{
		QueryType: intent.QueryListDays,
		Conditions: []intent.Condition{
			{Field: intent.FieldDescription, Operator: intent.OpIsNotNull},
		},
		Limit: 5,
	})

	rows := queryPlan(t, forecastStore, plan)
	require.Len(t, rows, 1)
	assert.Equal(t, "same day forecast", rows[0]["description"])
}

func compilePlan(t *testing.T, in intent.Intent) sqlgen.Plan {
	t.Helper()
	plan, err := sqlgen.Compile(in, integrationToday)
	require.NoError(t, err)
	return plan
}

func queryPlan(t *testing.T, forecastStore *store.Store, plan sqlgen.Plan) []store.Row {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	rows, err := forecastStore.Query(ctx, plan)
	require.NoError(t, err)
	return rows
}

func dateString(t *testing.T, value any) string {
	t.Helper()
	date, ok := value.(time.Time)
	require.True(t, ok, "expected time.Time, got %T", value)
	return date.Format("2006-01-02")
}

func text(value string) sql.NullString {
	return sql.NullString{String: value, Valid: true}
}

func newIntegrationStore(t *testing.T) (*store.Store, *sql.DB, func()) {
	t.Helper()

	adminDSN := strings.TrimSpace(os.Getenv("FORECASTQA_TEST_DSN"))
	if adminDSN == "" {
		t.Skip("FORECASTQA_TEST_DSN is not set")
	}

	testDSN, dropDatabase := createTemporaryDatabase(t, adminDSN)

	db, err := sql.Open("pgx", testDSN)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE forecasts (
		forecast_date  date NOT NULL,
		published_at   timestamptz NOT NULL,
		min_temp       integer,
		max_temp       integer,
		wind_speed     integer,
		wind_direction text,
		description    text,
		rainfall       text,
		visibility     text,
		comments       text
	)`)
	require.NoError(t, err)

	forecastStore := store.NewStore(db, 10*time.Second)
	cleanup := func() {
		_ = db.Close()
		dropDatabase()
	}
	return forecastStore, db, cleanup
}

// insertFixtures writes one record per date, published at 06:00 on the
// forecast date itself so the best-per-day selection keeps every row.
func insertFixtures(t *testing.T, db *sql.DB, rows []fixtureRow) {
	t.Helper()
	for _, row := range rows {
		_, err := db.Exec(
			`INSERT INTO forecasts
				(forecast_date, published_at, min_temp, max_temp, wind_speed, wind_direction, description, rainfall, visibility, comments)
			 VALUES ($1, $1::date::timestamptz + interval '6 hours', $2, $3, 12, 'NW', $4, $5, 'good', NULL)`,
			row.forecastDate, row.minTemp, row.minTemp+8, row.description, row.rainfall,
		)
		require.NoError(t, err)
	}
}

func insertRecord(t *testing.T, db *sql.DB, forecastDate, publishedAt string, minTemp int, description string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO forecasts
			(forecast_date, published_at, min_temp, max_temp, wind_speed, wind_direction, description, rainfall, visibility, comments)
		 VALUES ($1, $2::timestamptz, $3, $4, 12, 'NW', $5, '0', 'good', NULL)`,
		forecastDate, publishedAt, minTemp, minTemp+8, description,
	)
	require.NoError(t, err)
}

func createTemporaryDatabase(t *testing.T, adminDSN string) (string, func()) {
	t.Helper()

	parsed, err := url.Parse(adminDSN)
	require.NoError(t, err)
	require.NotEmpty(t, strings.TrimPrefix(parsed.Path, "/"), "admin DSN must include a database name")

	adminDB, err := sql.Open("pgx", adminDSN)
	require.NoError(t, err)

	name := fmt.Sprintf("forecastqa_it_sqlgen_%d", time.Now().UnixNano())
	_, err = adminDB.Exec(`CREATE DATABASE ` + name)
	require.NoError(t, err)

	testURL := *parsed
	testURL.Path = "/" + name
	testDSN := testURL.String()

	cleanup := func() {
		defer func() { _ = adminDB.Close() }()
		if _, err := adminDB.Exec(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1`, name); err != nil {
			t.Fatalf("terminate test db sessions: %v", err)
		}
		if _, err := adminDB.Exec(`DROP DATABASE ` + name); err != nil {
			t.Fatalf("DROP DATABASE failed: %v", err)
		}
	}
	return testDSN, cleanup
}
