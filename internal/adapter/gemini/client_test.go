package gemini

import (
	"errors"
	"testing"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestPredictionSchema(t *testing.T) {
	s := predictionSchema()

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"ipc_phase", "justification"}, s.Required)
	require.Contains(t, s.Properties, "ipc_phase")
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, s.Properties["ipc_phase"].Enum)
	assert.Equal(t, genai.TypeString, s.Properties["justification"].Type)
}

func TestClassificationSchema(t *testing.T) {
	s := classificationSchema()

	for _, key := range []string{"location", "relevant_features"} {
		require.Contains(t, s.Properties, key)
		assert.Equal(t, genai.TypeArray, s.Properties[key].Type)
		assert.Equal(t, genai.TypeString, s.Properties[key].Items.Type)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{}},
			{Content: &genai.Content{Parts: []*genai.Part{{Text: `{"ipc_phase":"2",`}, {Text: `"justification":"ok"}`}}}},
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "ignored"}}}},
		},
	}

	text := responseText(resp)
	assert.Equal(t, `{"ipc_phase":"2","justification":"ok"}`, text)

	got, err := domain.ParseStructuredPrediction(text)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseStressed, got.Phase)
}

func TestResponseText_Empty(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{nil}}))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg       string
		permanent bool
	}{
		{"Error 400, Message: API key not valid, Status: INVALID_ARGUMENT, Details: []", true},
		{"Error 404, Message: model not found, Status: NOT_FOUND, Details: []", true},
		{"Error 429, Message: Please retry in 45s., Status: RESOURCE_EXHAUSTED, Details: []", false},
		{"Error 503, Message: overloaded, Status: UNAVAILABLE, Details: []", false},
		{"dial tcp: connection refused", false},
	}
	for _, tt := range tests {
		err := classifyError(errors.New(tt.msg))
		assert.Equal(t, tt.permanent, resilience.IsPermanent(err), tt.msg)
	}
}
