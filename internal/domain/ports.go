package domain

import "context"

// Geocoder resolves a district name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, district string) (Coordinates, error)
}

// WeatherSource returns monthly means of daily archive variables.
type WeatherSource interface {
	MonthlyAverages(ctx context.Context, q WeatherQuery) (WeatherMonths, error)
}

// Predictor asks a language model for a phase forecast. A returned error
// means no usable result; callers record the district without a phase.
type Predictor interface {
	Predict(ctx context.Context, p Prompt) (*PredictionResult, error)
}

// Summarizer condenses a district's articles into a short brief.
type Summarizer interface {
	Summarize(ctx context.Context, p Prompt) (string, error)
}

// Classifier returns the raw JSON classification of an article, to be
// decoded with [ParseClassification].
type Classifier interface {
	Classify(ctx context.Context, p Prompt) (string, error)
}
