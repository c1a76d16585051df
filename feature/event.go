package feature

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// EventKind groups calendar events by where their mask comes from
type EventKind string

const (
	EventKindHoliday EventKind = "holiday"
	EventKindWeekend EventKind = "weekend"
	EventKindCustom  EventKind = "custom"
)

// Names of the generated calendar events. A Belgian public holiday is named holiday_ followed
// by the lowercased holiday name, e.g. holiday_national_day.
const (
	EventHolidayPrefix = "holiday_"
	EventWeekend       = "weekend"
)

// HolidayEventName returns the event name of a public holiday such as "Assumption of Mary"
func HolidayEventName(holiday string) string {
	return EventHolidayPrefix + strings.ToLower(strings.ReplaceAll(holiday, " ", "_"))
}

// Event is a calendar mask modeled with its own bias. The grid models carry one event per
// Belgian public holiday, shared across years, and a single weekend event. Any other name
// is a user supplied event.
type Event struct {
	Name string `json:"name"`
}

// NewEvent creates a new event instance given a name
func NewEvent(name string) *Event {
	return &Event{name}
}

func (e Event) String() string {
	return fmt.Sprintf("event_%s", e.Name)
}

// Kind classifies the event from its name
func (e Event) Kind() EventKind {
	switch {
	case e.Name == EventWeekend:
		return EventKindWeekend
	case strings.HasPrefix(e.Name, EventHolidayPrefix) && len(e.Name) > len(EventHolidayPrefix):
		return EventKindHoliday
	}
	return EventKindCustom
}

// Holiday returns the holiday part of a public holiday event name, e.g. national_day, and
// false for any other kind of event
func (e Event) Holiday() (string, bool) {
	if e.Kind() != EventKindHoliday {
		return "", false
	}
	return strings.TrimPrefix(e.Name, EventHolidayPrefix), true
}

// Get returns the name or kind label along with whether the label exists
func (e Event) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return e.Name, true
	case "kind":
		return string(e.Kind()), true
	}
	return "", false
}

func (e Event) Type() FeatureType {
	return FeatureTypeEvent
}

// Decode returns the labels persisted with a model. The kind is derived so only the name
// is stored.
func (e Event) Decode() map[string]string {
	return map[string]string{"name": e.Name}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var labels struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &labels); err != nil {
		return fmt.Errorf("unable to decode event labels, %w", err)
	}
	e.Name = labels.Name
	return nil
}
