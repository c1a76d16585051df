package options

import (
	"time"

	"github.com/aouyang1/grid-forecaster/feature"
)

const LabelEventWeekend = feature.EventWeekend

// WeekendOptions lets us model weekends with a separate bias from weekdays.
type WeekendOptions struct {
	Enabled bool `json:"enabled"`
}

// GenerateFeatures returns a mask set to 1 on saturdays and sundays
func (w WeekendOptions) GenerateFeatures(t []time.Time) *feature.Set {
	eFeat := feature.NewSet()
	if !w.Enabled || len(t) == 0 {
		return eFeat
	}
	mask := make([]float64, len(t))
	for i, tPnt := range t {
		switch tPnt.Weekday() {
		case time.Saturday, time.Sunday:
			mask[i] = 1.0
		}
	}
	eFeat.Set(feature.NewEvent(LabelEventWeekend), mask)
	return eFeat
}
