package pipeline

import (
	"fmt"
	"slices"
	"time"

	forecaster "github.com/aouyang1/grid-forecaster"
	"github.com/aouyang1/grid-forecaster/forecast"
	"github.com/aouyang1/grid-forecaster/frame"
)

// Engine fits a training frame and forecasts arbitrary times. A fresh engine is built for every
// run.
type Engine interface {
	Fit(tf frame.TrainingFrame) error
	Predict(t []time.Time, x map[string][]float64) (*forecaster.Results, error)
	RegressorCoefficients() ([]frame.RegressorCoefficient, error)
}

// calendarEngine is implemented by engines that model public holidays and weekends
type calendarEngine interface {
	EventCoefficients() ([]forecast.EventCoefficient, error)
}

// EngineFactory builds an unfit engine
type EngineFactory func() (Engine, error)

// NewForecasterFactory returns a factory of engines backed by a Forecaster with the given
// options. Regressors are taken from the training frame at fit time.
func NewForecasterFactory(opt *forecaster.Options) EngineFactory {
	opt = opt.Copy()
	return func() (Engine, error) {
		return &forecasterEngine{opt: opt.Copy()}, nil
	}
}

type forecasterEngine struct {
	opt *forecaster.Options
	f   *forecaster.Forecaster
}

func (e *forecasterEngine) Fit(tf frame.TrainingFrame) error {
	opt := e.opt.Copy()
	opt.SeriesOptions.Regressors = slices.Clone(tf.Regressors)

	f, err := forecaster.New(opt)
	if err != nil {
		return fmt.Errorf("unable to initialize forecaster, %w", err)
	}
	if err := f.Fit(tf.DS, tf.Y, tf.X); err != nil {
		return err
	}
	e.f = f
	return nil
}

func (e *forecasterEngine) Predict(t []time.Time, x map[string][]float64) (*forecaster.Results, error) {
	if e.f == nil {
		return nil, forecaster.ErrUntrained
	}
	return e.f.Predict(t, x)
}

func (e *forecasterEngine) RegressorCoefficients() ([]frame.RegressorCoefficient, error) {
	if e.f == nil {
		return nil, forecaster.ErrUntrained
	}
	coefs, err := e.f.RegressorCoefficients()
	if err != nil {
		return nil, err
	}
	return frame.NewRegressorCoefficients(coefs), nil
}

func (e *forecasterEngine) EventCoefficients() ([]forecast.EventCoefficient, error) {
	if e.f == nil {
		return nil, forecaster.ErrUntrained
	}
	return e.f.EventCoefficients()
}
