package forecaster

import (
	"time"

	"github.com/aouyang1/grid-forecaster/forecast"
)

// Results holds the forecast and its uncertainty band for every requested time point.
// InSample is true for points at or before the end of the training data.
type Results struct {
	T                  []time.Time         `json:"time"`
	Forecast           []float64           `json:"forecast"`
	Upper              []float64           `json:"upper"`
	Lower              []float64           `json:"lower"`
	InSample           []bool              `json:"in_sample"`
	SeriesComponents   forecast.Components `json:"series_components"`
	ResidualComponents forecast.Components `json:"residual_components"`
}

// Len returns the number of forecasted points
func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.T)
}
