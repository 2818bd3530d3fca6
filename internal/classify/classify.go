// Package classify tags scraped articles with a location and food-security
// features and appends them to the article dataset.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
)

// ArticleSink receives classified articles. Calls come from a single goroutine.
type ArticleSink interface {
	Append(article domain.Article) error
}

// sourceArticle is one entry of a scraped-article JSON file.
type sourceArticle struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

// Stats counts what happened to each article of a run.
type Stats struct {
	Files      int
	Classified int
	Skipped    int
	Failed     int
}

// Service classifies articles through a bounded worker pool.
type Service struct {
	ref        *domain.Reference
	classifier domain.Classifier
	workers    int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Service.
func New(ref *domain.Reference, classifier domain.Classifier, workers int, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		ref:        ref,
		classifier: classifier,
		workers:    max(workers, 1),
		logger:     logger,
		metrics:    metrics,
	}
}

type task struct {
	district string
	article  sourceArticle
}

type outcome struct {
	article domain.Article
	err     error
}

// SourceFiles lists the <district>_*.json files in dir in name order.
func SourceFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// SourceDistrict returns the district encoded in a source file name, the
// part before the first underscore.
func SourceDistrict(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	district, _, _ := strings.Cut(base, "_")
	return district
}

func loadSource(path string) ([]sourceArticle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var articles []sourceArticle
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return articles, nil
}

// Run classifies every article in files and appends the results to sink.
// Articles with empty content or a title already in seen are skipped; seen
// is updated with every title taken. Failed articles are logged and counted.
func (s *Service) Run(ctx context.Context, files []string, seen map[string]struct{}, sink ArticleSink) (Stats, error) {
	var stats Stats
	jobs := make(chan task)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				a, err := s.classify(ctx, t)
				results <- outcome{article: a, err: err}
			}
		}()
	}

	// The dispatcher owns stats.Files and stats.Skipped until results is closed.
	go func() {
		defer close(jobs)
		for _, path := range files {
			articles, err := loadSource(path)
			if err != nil {
				s.logger.Error("read source file failed", "path", path, "error", err)
				continue
			}
			stats.Files++
			district := SourceDistrict(path)
			s.logger.Info("source file loaded", "path", path, "district", district, "articles", len(articles))

			for _, a := range articles {
				a.Title = strings.TrimSpace(a.Title)
				a.Date = strings.TrimSpace(a.Date)
				a.Content = strings.TrimSpace(a.Content)
				if _, dup := seen[a.Title]; dup || a.Content == "" {
					stats.Skipped++
					s.metrics.ArticlesClassified.WithLabelValues("skipped").Inc()
					s.logger.Debug("article skipped", "title", a.Title, "duplicate", dup)
					continue
				}
				seen[a.Title] = struct{}{}

				select {
				case jobs <- task{district: district, article: a}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var writeErrs []error
	for out := range results {
		if out.err != nil {
			stats.Failed++
			s.metrics.ArticlesClassified.WithLabelValues("failed").Inc()
			s.logger.Warn("article classification failed", "error", out.err)
			continue
		}
		if err := sink.Append(out.article); err != nil {
			writeErrs = append(writeErrs, err)
			continue
		}
		stats.Classified++
		s.metrics.ArticlesClassified.WithLabelValues("classified").Inc()
	}

	s.logger.Info("classification finished",
		"files", stats.Files,
		"classified", stats.Classified,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, errors.Join(writeErrs...)
}

func (s *Service) classify(ctx context.Context, t task) (domain.Article, error) {
	prompt, err := domain.ComposeClassification(s.ref, t.article.Content)
	if err != nil {
		return domain.Article{}, err
	}
	text, err := s.classifier.Classify(ctx, prompt)
	if err != nil {
		return domain.Article{}, fmt.Errorf("classify %q: %w", t.article.Title, err)
	}
	c, err := domain.ParseClassification(text, s.ref)
	if err != nil {
		return domain.Article{}, fmt.Errorf("classify %q: %w", t.article.Title, err)
	}

	location := t.district
	if len(c.Locations) > 0 {
		location = c.Locations[0]
	}
	date := t.article.Date
	if d, err := domain.ParseArticleDate(date); err == nil {
		date = d.Format(domain.DateLayout)
	}
	return domain.Article{
		Location: location,
		Date:     date,
		Title:    t.article.Title,
		Content:  t.article.Content,
		Features: c.Features,
	}, nil
}
