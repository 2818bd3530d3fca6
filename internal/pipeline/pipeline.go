package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/google/uuid"
)

// ResultSink persists the rows of a completed run.
type ResultSink interface {
	Name() string
	WriteResults(ctx context.Context, rows []domain.ResultRow) error
}

// Options fixes the run-level inputs shared by every district.
type Options struct {
	Window           domain.Window
	PredictionPeriod string
	NumberOfArticles int
	Workers          int
	// Seed fixes article sampling. Zero draws a fresh seed per run.
	Seed      uint64
	Variables []string
	Summarize bool
}

// Deps are the collaborators of a Pipeline. Summarizer is only required
// when Options.Summarize is set.
type Deps struct {
	Reference  *domain.Reference
	Geocoder   domain.Geocoder
	Weather    domain.WeatherSource
	Predictor  domain.Predictor
	Summarizer domain.Summarizer
	Composer   *domain.Composer
	Sinks      []ResultSink
}

// Pipeline forecasts every reference district through a bounded worker pool.
type Pipeline struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	last    atomic.Pointer[RunStatus]
}

// New creates a Pipeline with the given stages and observability.
func New(deps Deps, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if deps.Composer == nil {
		deps.Composer = domain.NewComposer(domain.ComposerOptions{BackdateMonths: opts.Window.BackdateMonths})
	}
	return &Pipeline{
		deps:    deps,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// DistrictOutcome is the terminal state of one district. Row is nil for
// skipped districts and for failures before prediction.
type DistrictOutcome struct {
	District string
	Province string
	State    domain.DistrictState
	Err      error
	Row      *domain.ResultRow

	index int
}

// RunSummary describes a completed run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	// Outcomes and Rows are in reference order.
	Outcomes []DistrictOutcome
	Rows     []domain.ResultRow
}

// Count returns the number of districts that ended in state.
func (s *RunSummary) Count(state domain.DistrictState) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// RunStatus is a summary of the most recently finished run.
type RunStatus struct {
	RunID      string                       `json:"run_id"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Rows       int                          `json:"rows"`
	States     map[domain.DistrictState]int `json:"states"`
	Cancelled  bool                         `json:"cancelled"`
}

// LastRun returns the status of the most recently finished run.
func (p *Pipeline) LastRun() (RunStatus, bool) {
	st := p.last.Load()
	if st == nil {
		return RunStatus{}, false
	}
	return *st, true
}

func (s *RunSummary) status(cancelled bool) *RunStatus {
	st := &RunStatus{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Rows:       len(s.Rows),
		States:     make(map[domain.DistrictState]int),
		Cancelled:  cancelled,
	}
	for _, o := range s.Outcomes {
		st.States[o.State]++
	}
	return st
}

type job struct {
	index    int
	district domain.District
}

// Run forecasts every district and writes the rows to all sinks. Per-district
// failures never end the run. On cancellation the rows collected so far are
// still written and ctx.Err() is returned.
func (p *Pipeline) Run(ctx context.Context, articles []domain.Article) (*RunSummary, error) {
	summary := &RunSummary{RunID: uuid.NewString(), StartedAt: domain.Now()}
	logger := p.logger.With("run_id", summary.RunID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	seed := p.opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	windowed := domain.FilterWindow(articles, p.opts.Window.Start())
	districts := p.deps.Reference.Districts()
	logger.Info("run started",
		"districts", len(districts),
		"articles", len(windowed),
		"window_start", p.opts.Window.Start().Format(domain.DateLayout),
		"workers", p.opts.Workers,
		"seed", seed,
	)

	jobs := make(chan job)
	results := make(chan DistrictOutcome)

	var wg sync.WaitGroup
	for range p.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- p.processDistrict(ctx, logger, summary.RunID, seed, windowed, j)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, d := range districts {
			select {
			case jobs <- job{index: i, district: d}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		p.record(out)
		summary.Outcomes = append(summary.Outcomes, out)
	}

	slices.SortFunc(summary.Outcomes, func(a, b DistrictOutcome) int {
		return cmp.Compare(a.index, b.index)
	})
	summary.Rows = make([]domain.ResultRow, 0, len(summary.Outcomes))
	for _, out := range summary.Outcomes {
		if out.Row != nil {
			summary.Rows = append(summary.Rows, *out.Row)
		}
	}

	flushErr := p.flush(context.WithoutCancel(ctx), logger, summary.Rows)

	summary.FinishedAt = domain.Now()
	elapsed := summary.FinishedAt.Sub(summary.StartedAt)
	p.metrics.RunDuration.Observe(elapsed.Seconds())
	p.metrics.LastRunTimestamp.Set(float64(summary.FinishedAt.Unix()))

	logger.Info("run finished",
		"rows", len(summary.Rows),
		"done", summary.Count(domain.StateDone),
		"skipped", summary.Count(domain.StateSkipped),
		"failed", summary.Count(domain.StateFailed),
		"duration", elapsed,
	)

	if err := ctx.Err(); err != nil {
		p.last.Store(summary.status(true))
		return summary, errors.Join(err, flushErr)
	}
	p.last.Store(summary.status(false))
	p.ready.Store(true)
	return summary, flushErr
}

func (p *Pipeline) record(out DistrictOutcome) {
	p.metrics.DistrictsProcessed.WithLabelValues(strings.ToLower(string(out.State))).Inc()
	if out.Row == nil {
		return
	}
	phase := "none"
	if out.Row.Phase != nil {
		phase = strconv.Itoa(int(*out.Row.Phase))
	}
	p.metrics.PhaseTotal.WithLabelValues(phase).Inc()
}

// flush writes rows to every sink, continuing past failures.
func (p *Pipeline) flush(ctx context.Context, logger *slog.Logger, rows []domain.ResultRow) error {
	var errs []error
	for _, sink := range p.deps.Sinks {
		if err := sink.WriteResults(ctx, rows); err != nil {
			logger.Error("write results failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", sink.Name(), err))
			continue
		}
		p.metrics.RowsWritten.WithLabelValues(sink.Name()).Add(float64(len(rows)))
		logger.Info("results written", "sink", sink.Name(), "rows", len(rows))
	}
	return errors.Join(errs...)
}
