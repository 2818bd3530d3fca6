package domain

import "errors"

// District-local failure kinds. None of these end a run; the orchestrator
// resolves each to a skipped district or a partial row.
var (
	ErrGeolocation          = errors.New("geolocation failed")
	ErrWeatherUnavailable   = errors.New("weather data unavailable")
	ErrPredictionParse      = errors.New("prediction response could not be parsed")
	ErrModelRefusal         = errors.New("model refused to answer")
	ErrInsufficientArticles = errors.New("no articles available")
	ErrClassificationParse  = errors.New("classification response could not be parsed")
)
