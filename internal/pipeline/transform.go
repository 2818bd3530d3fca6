package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
)

// processDistrict runs sample, geolocate, weather, compose, and predict for
// one district in order. It never returns an error; failures are reported
// through the outcome state.
func (p *Pipeline) processDistrict(ctx context.Context, logger *slog.Logger, runID string, seed uint64, articles []domain.Article, j job) DistrictOutcome {
	d := j.district
	logger = logger.With("district", d.Name)
	out := DistrictOutcome{District: d.Name, Province: d.Province, State: domain.StatePending, index: j.index}

	transition := func(s domain.DistrictState) {
		out.State = s
		logger.Debug("district state", "state", s)
	}
	fail := func(state domain.DistrictState, err error) DistrictOutcome {
		out.Err = err
		transition(state)
		if state == domain.StateSkipped {
			logger.Info("district skipped", "reason", err)
		} else {
			logger.Warn("district failed", "error", err)
		}
		return out
	}

	transition(domain.StateSampling)
	sample, err := domain.Sample(d.Name, d.Province, articles, p.opts.NumberOfArticles, domain.NewSampleRand(seed, j.index))
	if err != nil {
		return fail(domain.StateSkipped, err)
	}
	p.metrics.ArticlesSampled.Observe(float64(len(sample)))

	transition(domain.StateGeolocating)
	coords, err := p.deps.Geocoder.Geocode(ctx, d.Name)
	if err != nil {
		return fail(domain.StateFailed, err)
	}

	transition(domain.StateWeatherFetch)
	weather, err := p.deps.Weather.MonthlyAverages(ctx, domain.WeatherQuery{
		Coordinates: coords,
		Start:       p.opts.Window.Start(),
		End:         p.opts.Window.End(),
		Variables:   p.opts.Variables,
	})
	if err != nil {
		return fail(domain.StateFailed, err)
	}

	transition(domain.StateComposing)
	req := domain.PredictionRequest{
		District:         d.Name,
		Province:         d.Province,
		PredictionPeriod: p.opts.PredictionPeriod,
		Articles:         sample,
		Weather:          weather,
	}
	if p.opts.Summarize && p.deps.Summarizer != nil {
		req.Summary = p.summarize(ctx, logger, d.Name, sample)
	}
	prompt, err := p.deps.Composer.Compose(req)
	if err != nil {
		return fail(domain.StateFailed, err)
	}

	transition(domain.StatePredicting)
	result, err := p.deps.Predictor.Predict(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return fail(domain.StateFailed, err)
		}
		row := domain.NewResultRow(runID, req, nil)
		out.Row = &row
		return fail(domain.StateFailed, err)
	}

	row := domain.NewResultRow(runID, req, result)
	out.Row = &row
	transition(domain.StateDone)
	logger.Info("district forecast", "phase", int(result.Phase), "articles", len(sample))
	return out
}

// summarize returns a brief of the sampled articles, or "" when the model
// call fails so the full listing is used instead.
func (p *Pipeline) summarize(ctx context.Context, logger *slog.Logger, district string, articles []domain.Article) string {
	prompt, err := p.deps.Composer.ComposeSummaryRequest(district, articles)
	if err != nil {
		logger.Warn("compose summary request failed", "error", err)
		return ""
	}
	summary, err := p.deps.Summarizer.Summarize(ctx, prompt)
	if err != nil {
		logger.Warn("summarize failed, using full article listing", "error", err)
		return ""
	}
	return summary
}
