// Package report renders forecast rows as a Markdown summary.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/mattn/go-runewidth"
)

// Markdown renders a per-district table followed by the number of districts
// in each phase. Columns are padded by display width so names in wide
// scripts stay aligned.
func Markdown(rows []domain.ResultRow) string {
	var b strings.Builder

	b.WriteString("# IPC forecast")
	if len(rows) > 0 && rows[0].PredictionPeriod != "" {
		b.WriteString(": " + rows[0].PredictionPeriod)
	}
	b.WriteString("\n\n")
	if len(rows) > 0 && rows[0].RunID != "" {
		fmt.Fprintf(&b, "Run `%s`, %d districts.\n\n", rows[0].RunID, len(rows))
	}

	table := [][]string{{"District", "Province", "Phase", "Phase name", "Articles"}}
	counts := make(map[string]int)
	for _, row := range rows {
		phase, name := "-", "None"
		if row.Phase != nil {
			phase, name = strconv.Itoa(int(*row.Phase)), row.Phase.String()
		}
		counts[name]++
		table = append(table, []string{row.District, row.Province, phase, name, strconv.Itoa(len(row.Articles))})
	}
	writeTable(&b, table)

	b.WriteString("\n## Districts per phase\n\n")
	summary := [][]string{{"Phase", "Districts"}}
	for p := domain.PhaseMinimal; p <= domain.PhaseFamine; p++ {
		label := fmt.Sprintf("%d %s", int(p), p)
		summary = append(summary, []string{label, strconv.Itoa(counts[p.String()])})
	}
	summary = append(summary, []string{"None", strconv.Itoa(counts["None"])})
	writeTable(&b, summary)

	return b.String()
}

// writeTable writes a header row, a separator, and the body, padding every
// cell to its column's display width.
func writeTable(b *strings.Builder, table [][]string) {
	widths := make([]int, len(table[0]))
	for _, row := range table {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell), 3)
		}
	}

	line := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	line(table[0])
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	line(sep)
	for _, row := range table[1:] {
		line(row)
	}
}

// Writer writes the Markdown summary to a file after each run.
// It implements pipeline.ResultSink.
type Writer struct {
	path string
}

// NewWriter creates a report writer for path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "report" }

// WriteResults replaces the report file with a summary of rows.
func (w *Writer) WriteResults(_ context.Context, rows []domain.ResultRow) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(w.path, []byte(Markdown(rows)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
