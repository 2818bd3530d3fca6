// Package csvfile reads the article dataset and writes forecast results as
// CSV and plain-text files.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
)

// ArticleColumns is the column order of the article dataset.
var ArticleColumns = []string{"location", "date", "title", "content", "relevant_features"}

var requiredArticleColumns = []string{"location", "date", "title", "content"}

// LoadArticles reads the article dataset. Columns are matched by header name
// and relevant_features is optional. Rows with unparseable dates are dropped
// and counted in a warning.
func LoadArticles(path string, logger *slog.Logger) ([]domain.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open articles: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read articles header: %w", err)
	}
	idx := columnIndex(header)
	for _, col := range requiredArticleColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("articles %s: missing column %q", path, col)
		}
	}

	var (
		articles []domain.Article
		badDates int
	)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read articles line %d: %w", line, err)
		}

		a := domain.Article{
			Location: strings.TrimSpace(field(rec, idx, "location")),
			Date:     strings.TrimSpace(field(rec, idx, "date")),
			Title:    field(rec, idx, "title"),
			Content:  field(rec, idx, "content"),
			Features: domain.ParseFeatureList(field(rec, idx, "relevant_features")),
		}
		a.Published, err = domain.ParseArticleDate(a.Date)
		if err != nil {
			badDates++
			continue
		}
		articles = append(articles, a)
	}

	if badDates > 0 {
		logger.Warn("dropped articles with unparseable dates", "path", path, "count", badDates)
	}
	logger.Info("articles loaded", "path", path, "count", len(articles))
	return articles, nil
}

// LoadTitles returns the set of titles already present in an article file.
// A missing file yields an empty set.
func LoadTitles(path string) (map[string]struct{}, error) {
	titles := make(map[string]struct{})

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return titles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open articles: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return titles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read articles header: %w", err)
	}
	idx := columnIndex(header)
	if _, ok := idx["title"]; !ok {
		return nil, fmt.Errorf("articles %s: missing column %q", path, "title")
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return titles, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read articles: %w", err)
		}
		if t := strings.TrimSpace(field(rec, idx, "title")); t != "" {
			titles[t] = struct{}{}
		}
	}
}

// ArticleAppender appends classified articles to the dataset, writing the
// header when the file is new. It is safe for concurrent use.
type ArticleAppender struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// NewArticleAppender opens path for appending.
func NewArticleAppender(path string) (*ArticleAppender, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create articles directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open articles for append: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat articles: %w", err)
	}

	a := &ArticleAppender{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := a.w.Write(ArticleColumns); err != nil {
			f.Close()
			return nil, fmt.Errorf("write articles header: %w", err)
		}
	}
	return a, nil
}

// Append writes one article and flushes it to disk.
func (a *ArticleAppender) Append(article domain.Article) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := []string{
		article.Location,
		article.Date,
		article.Title,
		article.Content,
		strings.Join(article.Features, ", "),
	}
	if err := a.w.Write(rec); err != nil {
		return fmt.Errorf("append article: %w", err)
	}
	a.w.Flush()
	return a.w.Error()
}

// Close flushes and closes the file.
func (a *ArticleAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.w.Flush()
	return errors.Join(a.w.Error(), a.f.Close())
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		idx[h] = i
	}
	return idx
}

func field(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}
