package frame

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aouyang1/grid-forecaster/datasource"
)

var ErrUnknownRegressor = errors.New("unknown regressor")

// Regressor is a weather covariate usable in a multivariate forecast
type Regressor int

const (
	SunRadiation Regressor = iota
	WindSpeed
	Temperature
)

// Regressors lists every supported regressor
var Regressors = []Regressor{SunRadiation, WindSpeed, Temperature}

// String returns the user facing name
func (r Regressor) String() string {
	switch r {
	case SunRadiation:
		return "sun_radiation"
	case WindSpeed:
		return "wind_speed"
	case Temperature:
		return "temperature"
	}
	return "unknown"
}

// Column returns the weather variable backing the regressor. Sun radiation is proxied by
// cloud cover.
func (r Regressor) Column() string {
	switch r {
	case SunRadiation:
		return "CloudCover"
	case WindSpeed:
		return "WindSpeed"
	case Temperature:
		return "Temperature"
	}
	return ""
}

// Value extracts the regressor from a weather record
func (r Regressor) Value(rec datasource.WeatherRecord) float64 {
	switch r {
	case SunRadiation:
		return rec.CloudCover
	case WindSpeed:
		return rec.WindSpeed
	case Temperature:
		return rec.Temperature
	}
	return 0
}

// ParseRegressor accepts the regressor name, its weather column or a short alias
func ParseRegressor(name string) (Regressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sun", "sun_radiation", "solar", "cloud_cover", "cloudcover":
		return SunRadiation, nil
	case "wind", "wind_speed", "windspeed":
		return WindSpeed, nil
	case "temp", "temperature":
		return Temperature, nil
	}
	return 0, fmt.Errorf("%q, %w", name, ErrUnknownRegressor)
}

// ParseRegressors parses a comma separated list dropping duplicates and empty entries
func ParseRegressors(list string) ([]Regressor, error) {
	var regs []Regressor
	seen := make(map[Regressor]struct{})
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		r, err := ParseRegressor(name)
		if err != nil {
			return nil, err
		}
		if _, exists := seen[r]; exists {
			continue
		}
		seen[r] = struct{}{}
		regs = append(regs, r)
	}
	return regs, nil
}
