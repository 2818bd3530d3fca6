package csvfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
)

// ResponseWriter writes one <district>_response.txt file per result row.
type ResponseWriter struct {
	dir string
}

// NewResponseWriter creates a writer that places files in dir.
func NewResponseWriter(dir string) *ResponseWriter {
	return &ResponseWriter{dir: dir}
}

// Name identifies the sink in logs and metrics.
func (w *ResponseWriter) Name() string { return "responses" }

// WriteResults writes every row's file, continuing past individual failures.
func (w *ResponseWriter) WriteResults(_ context.Context, rows []domain.ResultRow) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create responses directory: %w", err)
	}

	var errs []error
	for _, row := range rows {
		path := filepath.Join(w.dir, ResponseFileName(row.District))
		if err := os.WriteFile(path, []byte(FormatResponse(row)), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write response for %s: %w", row.District, err))
		}
	}
	return errors.Join(errs...)
}

// ResponseFileName maps a district name to its response file name.
func ResponseFileName(district string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, district)
	return name + "_response.txt"
}

// FormatResponse renders a row as "IPC PHASE: <n|None>" followed by the justification.
func FormatResponse(row domain.ResultRow) string {
	var b strings.Builder
	b.WriteString("IPC PHASE: ")
	if row.Phase != nil {
		fmt.Fprintf(&b, "%d", int(*row.Phase))
	} else {
		b.WriteString("None")
	}
	b.WriteString("\n")
	if row.Justification != nil {
		b.WriteString(*row.Justification)
	}
	return b.String()
}
