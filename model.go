package forecaster

import (
	"fmt"
	"io"

	"github.com/aouyang1/grid-forecaster/forecast"
)

// Model is the serializeable form of a fit Forecaster
type Model struct {
	Options        *Options       `json:"options"`
	TrainingPoints int            `json:"training_points"`
	Series         forecast.Model `json:"series_model"`
	Uncertainty    forecast.Model `json:"uncertainty_model"`
}

// TablePrint writes a human readable summary of the series and uncertainty models
func (m Model) TablePrint(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Series:"); err != nil {
		return err
	}
	if err := m.Series.TablePrint(w, "", "  "); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "\nUncertainty:"); err != nil {
		return err
	}
	if err := m.Uncertainty.TablePrint(w, "", "  "); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
