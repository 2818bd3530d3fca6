package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IPCPhase is a phase on the five-level IPC scale.
type IPCPhase int

const (
	PhaseMinimal IPCPhase = iota + 1
	PhaseStressed
	PhaseCrisis
	PhaseEmergency
	PhaseFamine
)

var phaseNames = map[IPCPhase]string{
	PhaseMinimal:   "Minimal",
	PhaseStressed:  "Stressed",
	PhaseCrisis:    "Crisis",
	PhaseEmergency: "Emergency",
	PhaseFamine:    "Famine",
}

// Valid reports whether p is one of the five defined phases.
func (p IPCPhase) Valid() bool {
	return p >= PhaseMinimal && p <= PhaseFamine
}

func (p IPCPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("IPCPhase(%d)", int(p))
}

// Prompt is a single-turn model request.
type Prompt struct {
	System string
	User   string
}

// PredictionRequest is the per-district input to prompt composition.
type PredictionRequest struct {
	District         string
	Province         string
	PredictionPeriod string
	Articles         []Article
	Weather          WeatherMonths
	// Summary replaces the article listing when set.
	Summary string
}

// PredictionResult is a validated phase forecast.
type PredictionResult struct {
	Phase         IPCPhase `json:"ipc_phase" validate:"min=1,max=5"`
	Justification string   `json:"justification" validate:"required"`
	// Raw is the model output the result was parsed from.
	Raw string `json:"-"`
}

// Validate checks the phase range and that a justification is present.
func (r PredictionResult) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrPredictionParse, err)
	}
	return nil
}

// ResultRow is one district's output record. A nil Phase means the
// prediction step failed after articles and weather were gathered.
type ResultRow struct {
	RunID            string         `json:"run_id"`
	District         string         `json:"district"`
	Province         string         `json:"province"`
	PredictionPeriod string         `json:"prediction_period"`
	Phase            *IPCPhase      `json:"ipc_phase"`
	Justification    *string        `json:"justification"`
	Summary          string         `json:"summary,omitempty"`
	Articles         []Article      `json:"articles"`
	Features         map[string]int `json:"features"`
	Weather          WeatherMonths  `json:"weather_data"`
	ProcessedAt      time.Time      `json:"processed_at"`
}

// NewResultRow builds a row from a request and an optional prediction.
func NewResultRow(runID string, req PredictionRequest, result *PredictionResult) ResultRow {
	row := ResultRow{
		RunID:            runID,
		District:         req.District,
		Province:         req.Province,
		PredictionPeriod: req.PredictionPeriod,
		Summary:          req.Summary,
		Articles:         req.Articles,
		Features:         FeatureCounts(req.Articles),
		Weather:          req.Weather,
		ProcessedAt:      Now(),
	}
	if result != nil {
		phase := result.Phase
		justification := result.Justification
		row.Phase = &phase
		row.Justification = &justification
	}
	return row
}

// DistrictState is a step in a district's processing lifecycle.
type DistrictState string

const (
	StatePending      DistrictState = "PENDING"
	StateSampling     DistrictState = "SAMPLING"
	StateGeolocating  DistrictState = "GEOLOCATING"
	StateWeatherFetch DistrictState = "WEATHER_FETCH"
	StateComposing    DistrictState = "COMPOSING"
	StatePredicting   DistrictState = "PREDICTING"
	StateDone         DistrictState = "DONE"
	StateSkipped      DistrictState = "SKIPPED"
	StateFailed       DistrictState = "FAILED"
)

// Terminal reports whether no further transitions follow s.
func (s DistrictState) Terminal() bool {
	return s == StateDone || s == StateSkipped || s == StateFailed
}
