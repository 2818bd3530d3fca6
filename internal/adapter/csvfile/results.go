package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
)

// ResultColumns is the column order of the consolidated result table.
var ResultColumns = []string{
	"district",
	"province",
	"prediction_period",
	"ipc_phase",
	"articles",
	"justification",
	"features",
	"weather_data",
	"summary",
	"run_id",
	"processed_at",
}

// ResultWriter writes the consolidated result table. Each call replaces the
// file; a run with no rows still produces the header.
type ResultWriter struct {
	path string
}

// NewResultWriter creates a writer for path.
func NewResultWriter(path string) *ResultWriter {
	return &ResultWriter{path: path}
}

// Name identifies the sink in logs and metrics.
func (w *ResultWriter) Name() string { return "csv" }

// Path returns the output file path.
func (w *ResultWriter) Path() string { return w.path }

// WriteResults writes rows to a temporary file and renames it into place.
func (w *ResultWriter) WriteResults(_ context.Context, rows []domain.ResultRow) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := encodeResults(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod results file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close results file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace results file: %w", err)
	}
	return nil
}

func encodeResults(out io.Writer, rows []domain.ResultRow) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(ResultColumns); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}
	for _, row := range rows {
		rec, err := encodeRow(row)
		if err != nil {
			return fmt.Errorf("encode %s: %w", row.District, err)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", row.District, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeRow(row domain.ResultRow) ([]string, error) {
	articles, err := compactJSON(row.Articles, "[]")
	if err != nil {
		return nil, err
	}
	features, err := compactJSON(row.Features, "{}")
	if err != nil {
		return nil, err
	}
	weather, err := compactJSON(row.Weather, "{}")
	if err != nil {
		return nil, err
	}

	var phase, justification string
	if row.Phase != nil {
		phase = strconv.Itoa(int(*row.Phase))
	}
	if row.Justification != nil {
		justification = *row.Justification
	}

	return []string{
		row.District,
		row.Province,
		row.PredictionPeriod,
		phase,
		articles,
		justification,
		features,
		weather,
		row.Summary,
		row.RunID,
		row.ProcessedAt.UTC().Format(time.RFC3339),
	}, nil
}

func compactJSON[T any](v T, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

// Record is one raw row of a result table, keyed by column name.
type Record struct {
	Line   int
	Fields map[string]string
}

// ReadRecords reads a result table without interpreting its cells.
func ReadRecords(path string) (header []string, records []Record, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err = r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read results header: %w", err)
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return header, records, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read results line %d: %w", line, err)
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			fields[col] = rec[i]
		}
		records = append(records, Record{Line: line, Fields: fields})
	}
}

// DecodeRecord interprets a raw record as a result row.
func DecodeRecord(rec Record) (domain.ResultRow, error) {
	f := rec.Fields
	row := domain.ResultRow{
		RunID:            f["run_id"],
		District:         f["district"],
		Province:         f["province"],
		PredictionPeriod: f["prediction_period"],
		Summary:          f["summary"],
	}

	if s := f["ipc_phase"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return row, fmt.Errorf("line %d: ipc_phase %q: %w", rec.Line, s, err)
		}
		phase := domain.IPCPhase(n)
		row.Phase = &phase
	}
	if s := f["justification"]; s != "" {
		row.Justification = &s
	}

	jsonCols := []struct {
		name string
		dst  any
	}{
		{"articles", &row.Articles},
		{"features", &row.Features},
		{"weather_data", &row.Weather},
	}
	for _, c := range jsonCols {
		s, ok := f[c.name]
		if !ok || s == "" {
			continue
		}
		if err := json.Unmarshal([]byte(s), c.dst); err != nil {
			return row, fmt.Errorf("line %d: %s: %w", rec.Line, c.name, err)
		}
	}

	if s := f["processed_at"]; s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return row, fmt.Errorf("line %d: processed_at %q: %w", rec.Line, s, err)
		}
		row.ProcessedAt = t
	}
	return row, nil
}
