package pipeline

import (
	"errors"
	"fmt"

	"github.com/aouyang1/grid-forecaster/frame"
)

const (
	MinHistoricalDays = 1
	MaxHistoricalDays = 14
	MinHorizonDays    = 1
	MaxHorizonDays    = 7
)

var (
	ErrNoRegressors        = frame.ErrNoRegressors
	ErrHistoricalDaysRange = fmt.Errorf("historical days must be between %d and %d", MinHistoricalDays, MaxHistoricalDays)
	ErrHorizonDaysRange    = fmt.Errorf("horizon days must be between %d and %d", MinHorizonDays, MaxHorizonDays)
	ErrInvalidLocation     = errors.New("latitude must be within [-90, 90] and longitude within [-180, 180]")
)

// Request is one forecast invocation. It is not modified by a run.
type Request struct {
	Metric         Metric            `json:"metric"`
	Mode           Mode              `json:"mode"`
	Regressors     []frame.Regressor `json:"regressors"`
	HistoricalDays int               `json:"historical_days"`
	HorizonDays    int               `json:"horizon_days"`
	Latitude       float64           `json:"latitude"`
	Longitude      float64           `json:"longitude"`
}

// Validate returns a guidance error for a request that cannot run. No data is fetched for an
// invalid request.
func (r Request) Validate() error {
	if _, err := r.Metric.Info(); err != nil {
		return err
	}
	if r.Mode != Univariate && r.Mode != Multivariate {
		return fmt.Errorf("mode %d, %w", int(r.Mode), ErrUnknownMode)
	}
	if r.HistoricalDays < MinHistoricalDays || r.HistoricalDays > MaxHistoricalDays {
		return fmt.Errorf("got %d, %w", r.HistoricalDays, ErrHistoricalDaysRange)
	}
	if r.HorizonDays < MinHorizonDays || r.HorizonDays > MaxHorizonDays {
		return fmt.Errorf("got %d, %w", r.HorizonDays, ErrHorizonDaysRange)
	}
	if r.Mode == Multivariate {
		if len(r.Regressors) == 0 {
			return fmt.Errorf("multivariate mode, %w", ErrNoRegressors)
		}
		if r.Latitude < -90 || r.Latitude > 90 || r.Longitude < -180 || r.Longitude > 180 {
			return fmt.Errorf("got (%f, %f), %w", r.Latitude, r.Longitude, ErrInvalidLocation)
		}
	}
	return nil
}

// HorizonHours returns the number of hourly steps forecasted past the history
func (r Request) HorizonHours() int {
	return r.HorizonDays * 24
}
