package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestAggregateMonthly_Mean(t *testing.T) {
	series := DailySeries{
		Dates: []string{"2024-03-01", "2024-03-02"},
		Values: map[string][]*float64{
			"temperature_2m_mean": {f(10), f(20)},
		},
	}

	got, err := AggregateMonthly(series)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, got["2024-03"]["temperature_2m_mean"], 1e-9)
}

func TestAggregateMonthly_GroupsByMonth(t *testing.T) {
	series := DailySeries{
		Dates: []string{"2024-02-28", "2024-02-29", "2024-03-01", "2024-11-01"},
		Values: map[string][]*float64{
			"rain_sum":                      {f(1), f(3), f(5), f(0)},
			"temperature_2m_max":            {f(20), nil, f(25), f(28)},
			"soil_moisture_0_to_100cm_mean": {nil, nil, nil, f(0.2)},
		},
	}

	got, err := AggregateMonthly(series)
	require.NoError(t, err)

	want := WeatherMonths{
		"2024-02": {"rain_sum": 2, "temperature_2m_max": 20},
		"2024-03": {"rain_sum": 5, "temperature_2m_max": 25},
		"2024-11": {"rain_sum": 0, "temperature_2m_max": 28, "soil_moisture_0_to_100cm_mean": 0.2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AggregateMonthly mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"2024-02", "2024-03", "2024-11"}, got.Months())
}

func TestAggregateMonthly_MonthWithOnlyNulls(t *testing.T) {
	series := DailySeries{
		Dates:  []string{"2024-05-01"},
		Values: map[string][]*float64{"rain_sum": {nil}},
	}

	got, err := AggregateMonthly(series)
	require.NoError(t, err)
	require.Contains(t, got, "2024-05")
	assert.Empty(t, got["2024-05"])
}

func TestAggregateMonthly_Empty(t *testing.T) {
	_, err := AggregateMonthly(DailySeries{})
	require.ErrorIs(t, err, ErrWeatherUnavailable)
}

func TestAggregateMonthly_BadDate(t *testing.T) {
	_, err := AggregateMonthly(DailySeries{Dates: []string{"March"}})
	require.ErrorIs(t, err, ErrWeatherUnavailable)
}
