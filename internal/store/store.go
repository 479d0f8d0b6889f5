package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/forecastqa/forecastqa/internal/observability"
	"github.com/forecastqa/forecastqa/internal/sqlgen"
)

// Row is one result row keyed by column name. Plans control their own
// projections, so the store scans generically instead of binding to a
// per-query struct.
type Row map[string]any

type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewStore(db *sql.DB, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &Store{db: db, queryTimeout: queryTimeout}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping forecast db: %w", err)
	}
	return nil
}

// Query executes a compiled plan and returns every row.
func (s *Store) Query(ctx context.Context, plan sqlgen.Plan) ([]Row, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	started := time.Now()
	rows, err := s.db.QueryContext(queryCtx, plan.SQL, plan.Args...)
	observability.ObserveDBQuery(time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("run %s query: %w", plan.QueryType, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	results := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	return results, nil
}

// normalizeValue turns driver byte slices into strings so rows are safe to
// hold past the scan and trivial to serialize.
func normalizeValue(value any) any {
	if raw, ok := value.([]byte); ok {
		return string(raw)
	}
	return value
}
