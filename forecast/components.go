package forecast

import "slices"

// Components is the additive decomposition of a forecast. Trend includes the intercept.
type Components struct {
	Trend       []float64 `json:"trend"`
	Seasonality []float64 `json:"seasonality"`
	Event       []float64 `json:"event"`
	Regressor   []float64 `json:"regressor"`
}

func (c Components) Copy() Components {
	return Components{
		Trend:       slices.Clone(c.Trend),
		Seasonality: slices.Clone(c.Seasonality),
		Event:       slices.Clone(c.Event),
		Regressor:   slices.Clone(c.Regressor),
	}
}

// Append returns the components of c followed by the components of next
func (c Components) Append(next Components) Components {
	return Components{
		Trend:       append(slices.Clone(c.Trend), next.Trend...),
		Seasonality: append(slices.Clone(c.Seasonality), next.Seasonality...),
		Event:       append(slices.Clone(c.Event), next.Event...),
		Regressor:   append(slices.Clone(c.Regressor), next.Regressor...),
	}
}
