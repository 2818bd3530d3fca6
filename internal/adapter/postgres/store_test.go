package postgres

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertArgs(t *testing.T) {
	phase := domain.PhaseStressed
	justification := "Stable markets."
	processed := time.Date(2024, 11, 2, 8, 0, 0, 123456789, time.UTC)
	row := domain.ResultRow{
		RunID:            "run-3",
		District:         "Swat",
		Province:         "Khyber Pakhtunkhwa",
		PredictionPeriod: "Nov-Mar,2024-2025",
		Phase:            &phase,
		Justification:    &justification,
		Summary:          "brief",
		Articles:         []domain.Article{{Location: "Swat", Date: "2024-09-01", Title: "T", Content: "C"}},
		Features:         map[string]int{"floods": 1},
		Weather:          domain.WeatherMonths{"2024-09": {"rain_sum": 2}},
		ProcessedAt:      processed,
	}

	args, err := upsertArgs(row)
	require.NoError(t, err)
	require.Len(t, args, strings.Count(upsertQuery, "$"))

	assert.Equal(t, "run-3", args[0])
	assert.Equal(t, "Swat", args[1])
	assert.Equal(t, sql.NullInt16{Int16: 2, Valid: true}, args[4])
	assert.Equal(t, sql.NullString{String: "Stable markets.", Valid: true}, args[5])
	assert.Equal(t, "brief", args[6])
	assert.JSONEq(t, `[{"location":"Swat","date":"2024-09-01","title":"T","content":"C"}]`, args[7].(string))
	assert.JSONEq(t, `{"floods":1}`, args[8].(string))
	assert.JSONEq(t, `{"2024-09":{"rain_sum":2}}`, args[9].(string))
	assert.Equal(t, time.Date(2024, 11, 2, 8, 0, 0, 123456000, time.UTC), args[10])
}

func TestUpsertArgs_NullPrediction(t *testing.T) {
	args, err := upsertArgs(domain.ResultRow{RunID: "run-3", District: "Dadu"})
	require.NoError(t, err)

	assert.Equal(t, sql.NullInt16{}, args[4])
	assert.Equal(t, sql.NullString{}, args[5])
	assert.Equal(t, "[]", args[7])
	assert.Equal(t, "{}", args[8])
	assert.Equal(t, "{}", args[9])
}

func TestUpsertQuery_ConflictKey(t *testing.T) {
	assert.Contains(t, upsertQuery, "ON CONFLICT (run_id, district)")
	assert.Contains(t, schema, "PRIMARY KEY (run_id, district)")
}

func TestStore_EmptyBatchIsNoop(t *testing.T) {
	s := NewStore(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "postgres", s.Name())
	assert.NoError(t, s.WriteResults(context.Background(), nil))
}
