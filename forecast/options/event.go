package options

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/grid-forecaster/feature"
	"github.com/aouyang1/grid-forecaster/forecast/util"
)

var (
	ErrStartAfterEnd = errors.New("event start time is after end time")
	ErrUnsetTime     = errors.New("unset event start or end time")
	ErrNoEventName   = errors.New("no event name")
)

// Event represents a time span to model separately with its own bias. Events sharing a
// name share a single feature.
type Event struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewEvent(name string, start, end time.Time) Event {
	return Event{
		Name:  name,
		Start: start,
		End:   end,
	}
}

func (e *Event) Valid() error {
	if e.Start.IsZero() || e.End.IsZero() {
		return ErrUnsetTime
	}
	if e.Start.After(e.End) {
		return ErrStartAfterEnd
	}
	if e.Name == "" {
		return ErrNoEventName
	}
	return nil
}

func (e *Event) contains(tPnt time.Time) bool {
	return !tPnt.Before(e.Start) && tPnt.Before(e.End)
}

type EventOptions struct {
	Events []Event `json:"events"`
}

// GenerateFeatures returns a mask feature per event name set to 1 inside the event span
func (e EventOptions) GenerateFeatures(t []time.Time) *feature.Set {
	eFeat := feature.NewSet()
	registerEvents(eFeat, t, e.Events)
	return eFeat
}

func registerEvents(eFeat *feature.Set, t []time.Time, events []Event) {
	for _, ev := range events {
		if err := ev.Valid(); err != nil {
			slog.Warn("not separately modelling invalid event", "name", ev.Name, "error", err.Error())
			continue
		}

		feat := feature.NewEvent(strings.ReplaceAll(ev.Name, " ", "_"))
		mask, exists := eFeat.Get(feat)
		if !exists || len(mask) != len(t) {
			mask = make([]float64, len(t))
		}
		for i, tPnt := range t {
			if ev.contains(tPnt) {
				mask[i] = 1.0
			}
		}
		eFeat.Set(feat, mask)
	}
}

func (e EventOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	noCfg := " None"
	if len(e.Events) > 0 {
		noCfg = ""
		if _, err := fmt.Fprintf(tbl, "%s%sName\tStart\tEnd\t\n", prefix, util.IndentExpand(indent, indentGrowth+1)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s%sEvents:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg); err != nil {
		return err
	}
	for _, ev := range e.Events {
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%s\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			ev.Name, ev.Start.Format(time.DateTime), ev.End.Format(time.DateTime)); err != nil {
			return err
		}
	}
	return tbl.Flush()
}
