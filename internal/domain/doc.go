// Package domain models district-level food security forecasting for Pakistan.
//
// # Data Source
//
// Articles come from a pre-scraped news dataset (Dawn, Jang, UrduPoint and
// similar outlets). Each row carries a location label assigned during
// classification, a publication date, a title, the body text, and an
// optional comma-separated list of food security feature tags.
//
// Location labels:
//
//	A district name from the reference list, e.g. "Tharparkar"
//	A province name when no single district is central, e.g. "Sindh"
//	"Pakistan" for national coverage (never sampled for a district)
//
// Date format:
//
//	ISO 8601 calendar dates, "2024-06-17". Longer timestamps are accepted
//	and truncated to the date. Rows with unparseable dates are dropped at load.
//
// # IPC Scale
//
// The Integrated Food Security Phase Classification is ordinal:
//
//	1 Minimal | 2 Stressed | 3 Crisis | 4 Emergency | 5 Famine
//
// A forecast targets a prediction period such as "Nov-Mar,2024-2025" whose
// first day is the prediction start. Evidence is restricted to a backdate
// window of N months before that start, which simulates early warning lead
// time.
//
// # Sampling
//
// Up to k articles are taken per district. When the district has at least k
// articles in the window, the k most recent are used. Otherwise all district
// articles are used and the remainder is drawn at random, without
// replacement, from articles labelled with the district's province. See
// [Sample].
//
// # Weather
//
// Daily archive observations between the window start and the prediction
// start (both inclusive) are averaged per calendar month. Months are keyed
// "YYYY-MM". Null observations are excluded from the mean; a variable with no
// observations in a month is omitted for that month. See [AggregateMonthly].
//
// # Model Responses
//
// Two response protocols are supported. Free-text responses must contain an
// "IPC Phase:" line and a "Justification:" section, see
// [ParseFreeTextPrediction]. Structured responses are JSON objects with
// ipc_phase and justification fields, see [ParseStructuredPrediction].
// Both are validated before a [PredictionResult] is returned.
package domain
