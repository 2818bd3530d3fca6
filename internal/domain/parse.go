package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// phaseRe matches "IPC Phase: 3", "**IPC Phase**: Phase 3", "ipc phase: **4**".
	phaseRe = regexp.MustCompile(`(?i)(?:\*\*)?IPC Phase(?:\*\*)?:\s*(?:\*\*)?\s*(?:Phase\s*)?(\d+)`)

	// justificationRe captures everything after the "Justification:" label.
	justificationRe = regexp.MustCompile(`(?is)(?:\*\*)?Justification(?:\*\*)?:\s*(.*)`)
)

// ParseFreeTextPrediction extracts a phase and justification from prose.
// Both labels must be present and the phase must be in 1..5.
func ParseFreeTextPrediction(text string) (*PredictionResult, error) {
	pm := phaseRe.FindStringSubmatch(text)
	if pm == nil {
		return nil, fmt.Errorf("%w: no IPC Phase line", ErrPredictionParse)
	}
	jm := justificationRe.FindStringSubmatch(text)
	if jm == nil {
		return nil, fmt.Errorf("%w: no Justification section", ErrPredictionParse)
	}

	n, err := strconv.Atoi(pm[1])
	if err != nil {
		return nil, fmt.Errorf("%w: phase %q", ErrPredictionParse, pm[1])
	}
	result := &PredictionResult{
		Phase:         IPCPhase(n),
		Justification: strings.TrimSpace(jm[1]),
		Raw:           text,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

type structuredPrediction struct {
	IPCPhase      json.RawMessage `json:"ipc_phase"`
	Justification string          `json:"justification"`
}

// ParseStructuredPrediction decodes a JSON prediction. The phase may be a
// string ("3") or a number (3). Surrounding prose or code fences are ignored.
func ParseStructuredPrediction(text string) (*PredictionResult, error) {
	obj, ok := extractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object", ErrPredictionParse)
	}
	var sp structuredPrediction
	if err := json.Unmarshal(obj, &sp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPredictionParse, err)
	}
	phase, err := decodePhase(sp.IPCPhase)
	if err != nil {
		return nil, err
	}
	result := &PredictionResult{
		Phase:         phase,
		Justification: strings.TrimSpace(sp.Justification),
		Raw:           text,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func decodePhase(raw json.RawMessage) (IPCPhase, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing ipc_phase", ErrPredictionParse)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPredictionParse, err)
		}
		raw = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: ipc_phase %s", ErrPredictionParse, raw)
	}
	return IPCPhase(n), nil
}

// Classification is the decoded location and feature tagging of an article.
type Classification struct {
	Locations []string `json:"location"`
	Features  []string `json:"relevant_features"`
}

type rawClassification struct {
	Location json.RawMessage `json:"location"`
	Features json.RawMessage `json:"relevant_features"`
}

// ParseClassification decodes a classification response and drops any
// location or feature outside the reference vocabulary. Fields may be a
// string, a list of strings, or null.
func ParseClassification(text string, ref *Reference) (*Classification, error) {
	obj, ok := extractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object", ErrClassificationParse)
	}
	var raw rawClassification
	if err := json.Unmarshal(obj, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassificationParse, err)
	}
	locations, err := stringList(raw.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: location: %w", ErrClassificationParse, err)
	}
	features, err := stringList(raw.Features)
	if err != nil {
		return nil, fmt.Errorf("%w: relevant_features: %w", ErrClassificationParse, err)
	}

	c := &Classification{}
	for _, l := range locations {
		if ref.IsLocation(l) {
			c.Locations = append(c.Locations, l)
		}
	}
	for _, f := range features {
		if ref.IsFeature(f) {
			c.Features = append(c.Features, f)
		}
	}
	return c, nil
}

func stringList(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" || strings.EqualFold(s, "none") {
			return nil, nil
		}
		return []string{s}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// extractJSONObject returns the outermost {...} span of text.
func extractJSONObject(text string) ([]byte, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(text[start : end+1]), true
}
