package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// DefaultWeatherVariables are the daily archive variables requested per district.
var DefaultWeatherVariables = []string{
	"temperature_2m_mean",
	"temperature_2m_max",
	"temperature_2m_min",
	"sunshine_duration",
	"precipitation_sum",
	"rain_sum",
	"wind_speed_10m_max",
	"et0_fao_evapotranspiration",
	"relative_humidity_2m_mean",
	"soil_temperature_0_to_100cm_mean",
	"soil_moisture_0_to_100cm_mean",
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherQuery describes a daily archive request.
type WeatherQuery struct {
	Coordinates
	Start     time.Time
	End       time.Time
	Variables []string
}

// WeatherMonths maps "YYYY-MM" to per-variable monthly means.
type WeatherMonths map[string]map[string]float64

// Months returns the month keys in ascending order.
func (w WeatherMonths) Months() []string {
	return slices.Sorted(maps.Keys(w))
}

// DailySeries is a day-indexed multi-variable series. Values[v][i] is the
// observation of variable v on Dates[i]; nil marks a missing observation.
type DailySeries struct {
	Dates  []string
	Values map[string][]*float64
}

// AggregateMonthly averages a daily series per calendar month. Every month
// with at least one day gets an entry; nil observations do not count toward
// the mean.
func AggregateMonthly(s DailySeries) (WeatherMonths, error) {
	if len(s.Dates) == 0 {
		return nil, ErrWeatherUnavailable
	}

	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[string]map[string]*acc)

	for i, day := range s.Dates {
		t, err := ParseArticleDate(day)
		if err != nil {
			return nil, fmt.Errorf("%w: bad day %q", ErrWeatherUnavailable, day)
		}
		month := t.Format("2006-01")
		vars, ok := sums[month]
		if !ok {
			vars = make(map[string]*acc)
			sums[month] = vars
		}
		for name, values := range s.Values {
			if i >= len(values) || values[i] == nil {
				continue
			}
			a, ok := vars[name]
			if !ok {
				a = &acc{}
				vars[name] = a
			}
			a.sum += *values[i]
			a.count++
		}
	}

	out := make(WeatherMonths, len(sums))
	for month, vars := range sums {
		means := make(map[string]float64, len(vars))
		for name, a := range vars {
			means[name] = a.sum / float64(a.count)
		}
		out[month] = means
	}
	return out, nil
}
