package options

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/be"

	"github.com/aouyang1/grid-forecaster/feature"
)

const LabelEventHoliday = string(feature.EventKindHoliday)

// HolidayOptions models Belgian public holidays as events. Every holiday gets its own
// feature shared across years so that an effect learnt in the training window carries
// over to the same holiday in the forecast horizon.
type HolidayOptions struct {
	Enabled   bool          `json:"enabled"`
	DurBefore time.Duration `json:"duration_before"`
	DurAfter  time.Duration `json:"duration_after"`
}

// Events returns the observed Belgian holidays overlapping start and end. Holidays are
// expressed as naive midnight timestamps to line up with naive series timestamps.
func (h HolidayOptions) Events(start, end time.Time) []Event {
	if !h.Enabled {
		return nil
	}
	var events []Event
	for _, hol := range be.Holidays {
		events = append(events, holidayEvents(hol, start, end, h.DurBefore, h.DurAfter)...)
	}
	return events
}

func holidayEvents(hol *cal.Holiday, start, end time.Time, durBefore, durAfter time.Duration) []Event {
	var events []Event
	name := feature.HolidayEventName(hol.Name)
	for year := start.Year(); year <= end.Year(); year++ {
		_, observed := hol.Calc(year)
		if observed.IsZero() {
			continue
		}
		y, m, d := observed.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, start.Location())

		ev := NewEvent(name, day.Add(-durBefore), day.Add(24*time.Hour).Add(durAfter))
		if ev.End.Before(start) || ev.Start.After(end) {
			continue
		}
		events = append(events, ev)
	}
	return events
}

// GenerateFeatures returns a mask feature per holiday
func (h HolidayOptions) GenerateFeatures(t []time.Time) *feature.Set {
	eFeat := feature.NewSet()
	if !h.Enabled || len(t) == 0 {
		return eFeat
	}
	registerEvents(eFeat, t, h.Events(t[0], t[len(t)-1]))
	return eFeat
}
