// Package postgres upserts forecast rows into PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const schema = `
CREATE TABLE IF NOT EXISTS ipc_forecasts (
	run_id            TEXT        NOT NULL,
	district          TEXT        NOT NULL,
	province          TEXT        NOT NULL,
	prediction_period TEXT        NOT NULL,
	ipc_phase         SMALLINT    CHECK (ipc_phase BETWEEN 1 AND 5),
	justification     TEXT,
	summary           TEXT        NOT NULL DEFAULT '',
	articles          JSONB       NOT NULL DEFAULT '[]',
	features          JSONB       NOT NULL DEFAULT '{}',
	weather_data      JSONB       NOT NULL DEFAULT '{}',
	processed_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, district)
)`

const upsertQuery = `
INSERT INTO ipc_forecasts (
	run_id, district, province, prediction_period, ipc_phase, justification,
	summary, articles, features, weather_data, processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10::jsonb, $11)
ON CONFLICT (run_id, district) DO UPDATE SET
	province          = EXCLUDED.province,
	prediction_period = EXCLUDED.prediction_period,
	ipc_phase         = EXCLUDED.ipc_phase,
	justification     = EXCLUDED.justification,
	summary           = EXCLUDED.summary,
	articles          = EXCLUDED.articles,
	features          = EXCLUDED.features,
	weather_data      = EXCLUDED.weather_data,
	processed_at      = EXCLUDED.processed_at`

// Store writes result rows to the ipc_forecasts table.
// It implements pipeline.ResultSink.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// EnsureSchema creates the forecast table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create ipc_forecasts: %w", err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "postgres" }

// WriteResults upserts all rows in one transaction.
func (s *Store) WriteResults(ctx context.Context, rows []domain.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PreparexContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args, err := upsertArgs(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert %s: %w", row.District, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	s.logger.Debug("results stored", "count", len(rows))
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// upsertArgs returns the positional arguments of upsertQuery for a row.
func upsertArgs(row domain.ResultRow) ([]any, error) {
	articles, err := jsonColumn(row.Articles, "[]")
	if err != nil {
		return nil, fmt.Errorf("encode articles for %s: %w", row.District, err)
	}
	features, err := jsonColumn(row.Features, "{}")
	if err != nil {
		return nil, fmt.Errorf("encode features for %s: %w", row.District, err)
	}
	weather, err := jsonColumn(row.Weather, "{}")
	if err != nil {
		return nil, fmt.Errorf("encode weather for %s: %w", row.District, err)
	}

	var phase sql.NullInt16
	if row.Phase != nil {
		phase = sql.NullInt16{Int16: int16(*row.Phase), Valid: true}
	}
	var justification sql.NullString
	if row.Justification != nil {
		justification = sql.NullString{String: *row.Justification, Valid: true}
	}

	return []any{
		row.RunID,
		row.District,
		row.Province,
		row.PredictionPeriod,
		phase,
		justification,
		row.Summary,
		articles,
		features,
		weather,
		row.ProcessedAt.UTC().Truncate(time.Microsecond),
	}, nil
}

func jsonColumn(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
