// Package forecaster fits an additive forecast of a time series with optional external
// regressors along with an uncertainty band derived from the series residual.
package forecaster

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/go-echarts/go-echarts/v2/components"
	"gonum.org/v1/gonum/stat"

	"github.com/aouyang1/grid-forecaster/forecast"
	"github.com/aouyang1/grid-forecaster/stats"
	"github.com/aouyang1/grid-forecaster/timedataset"
)

var (
	ErrInsufficientResidual = errors.New("insufficient samples from residual after outlier removal")
	ErrEmptyTimeDataset     = errors.New("no timedataset or uninitialized")
	ErrNoOptionsInModel     = errors.New("no options set in model")
	ErrCannotInferInterval  = errors.New("cannot infer interval from training data time")
	ErrUntrained            = errors.New("forecaster has not been fit")
)

const (
	MinResidualWindow       = 2
	MinResidualSize         = 2
	MinResidualWindowFactor = 4
)

// Forecaster fits a forecast model and can be used to generate forecasts
type Forecaster struct {
	opt *Options

	seriesForecast   *forecast.Forecast
	residualForecast *forecast.Forecast

	fitTrainingData *timedataset.TimeDataset
	trainingPoints  int
	residual        []float64
}

// New creates a new instance of a Forecaster using the provided options. If no options are provided
// a default is used.
func New(opt *Options) (*Forecaster, error) {
	f := &Forecaster{
		opt: opt.Copy(),
	}

	seriesForecast, err := forecast.New(f.opt.SeriesOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize forecast series, %w", err)
	}
	f.seriesForecast = seriesForecast

	residualForecast, err := forecast.New(f.opt.ResidualOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize forecast residual, %w", err)
	}
	f.residualForecast = residualForecast
	return f, nil
}

// NewFromModel creates a new instance of Forecaster from a pre-existing model. This should be generated from
// from a previous forecaster call to Model().
func NewFromModel(model Model) (*Forecaster, error) {
	if model.Options == nil {
		return nil, ErrNoOptionsInModel
	}
	opt := model.Options.Copy()
	opt.SeriesOptions = model.Series.Options.Copy()
	opt.ResidualOptions = model.Uncertainty.Options.Copy()

	seriesForecast, err := forecast.NewFromModel(model.Series)
	if err != nil {
		return nil, fmt.Errorf("unable to load from series model, %w", err)
	}
	residualForecast, err := forecast.NewFromModel(model.Uncertainty)
	if err != nil {
		return nil, fmt.Errorf("unable to load from residual model, %w", err)
	}
	f := &Forecaster{
		opt:              opt,
		seriesForecast:   seriesForecast,
		residualForecast: residualForecast,
		trainingPoints:   model.TrainingPoints,
	}
	return f, nil
}

// Fit uses the input time series and regressor columns to fit the series and uncertainty
// models. x may be nil when no regressors are configured.
func (f *Forecaster) Fit(t []time.Time, y []float64, x map[string][]float64) error {
	if f == nil {
		return ErrEmptyTimeDataset
	}
	td, err := timedataset.NewMultivariateDataset(t, y, x)
	if err != nil {
		return fmt.Errorf("unable to create training dataset, %w", err)
	}
	f.fitTrainingData = td.Copy()

	residual, err := f.fitSeriesWithOutliers(td)
	if err != nil {
		return err
	}
	f.residual = residual

	if err := f.fitResidual(td.T, residual); err != nil {
		return err
	}
	return nil
}

func (f *Forecaster) fitSeriesWithOutliers(td *timedataset.TimeDataset) ([]float64, error) {
	// iterate to remove outliers
	numPasses := 0
	if f.opt.OutlierOptions != nil {
		numPasses = f.opt.OutlierOptions.NumPasses
	}

	var residual []float64
	for i := 0; i <= numPasses; i++ {
		if err := f.seriesForecast.Fit(td.T, td.Y, td.X); err != nil {
			return nil, fmt.Errorf("unable to forecast series, %w", err)
		}

		residual = f.seriesForecast.Residuals()

		// break out if no outlier options provided
		if f.opt.OutlierOptions == nil || i == numPasses {
			break
		}

		outlierIdxs := stats.DetectOutliers(
			residual,
			f.opt.OutlierOptions.LowerPercentile,
			f.opt.OutlierOptions.UpperPercentile,
			f.opt.OutlierOptions.TukeyFactor,
		)

		// no more outliers detected with outlier options so break early
		if len(outlierIdxs) == 0 {
			break
		}

		for _, idx := range outlierIdxs {
			td.Y[idx] = math.NaN()
		}
	}

	f.trainingPoints = 0
	for _, v := range td.Y {
		if !math.IsNaN(v) {
			f.trainingPoints++
		}
	}
	return residual, nil
}

func (f *Forecaster) fitResidual(t []time.Time, residual []float64) error {
	residualT := make([]time.Time, 0, len(residual))
	residualY := make([]float64, 0, len(residual))
	for i, r := range residual {
		if math.IsNaN(r) {
			continue
		}
		residualT = append(residualT, t[i])
		residualY = append(residualY, r)
	}
	if len(residualY) < MinResidualSize {
		return ErrInsufficientResidual
	}

	// compute rolling window standard deviation of residual for uncertainty bands
	// the window is not necessarily a block of continuous time but could jump across
	// outlier points

	// limit residual window to a quarter of the resulting residual output
	if len(residualY)/MinResidualWindowFactor < f.opt.ResidualWindow {
		f.opt.ResidualWindow = len(residualY) / MinResidualWindowFactor
	}
	if f.opt.ResidualWindow < MinResidualWindow {
		f.opt.ResidualWindow = MinResidualWindow
	}

	stddevSeries, err := stats.RollingStdDev(residualY, f.opt.ResidualWindow, f.opt.ResidualZscore)
	if err != nil {
		return fmt.Errorf("unable to compute rolling residual deviation, %w", err)
	}

	// shifting by half the residual window since computing the residual series is similar to a
	// finite impulse response filtering having a group delay of window/2.
	start := f.opt.ResidualWindow / 2
	stddevT := residualT[start : start+len(stddevSeries)]

	// too few points for a rolling window so fall back to a constant band
	if len(stddevSeries) < MinResidualSize {
		_, stddev := stat.MeanStdDev(residualY, nil)
		stddevT = residualT
		stddevSeries = make([]float64, len(residualT))
		for i := range stddevSeries {
			stddevSeries[i] = f.opt.ResidualZscore * stddev
		}
	}

	if err := f.residualForecast.Fit(stddevT, stddevSeries, nil); err != nil {
		return fmt.Errorf("unable to forecast residual, %w", err)
	}

	return nil
}

// Predict takes in any set of time samples along with the regressor values at those times and
// generates a forecast, upper, lower values per time point. The band half width grows with the
// square root of the number of hours past the end of the training data.
func (f *Forecaster) Predict(t []time.Time, x map[string][]float64) (*Results, error) {
	if f == nil || f.seriesForecast == nil {
		return nil, ErrUntrained
	}
	seriesRes, seriesComp, err := f.seriesForecast.Predict(t, x)
	if err != nil {
		return nil, fmt.Errorf("unable to predict series forecasts, %w", err)
	}
	residualRes, residualComp, err := f.residualForecast.Predict(t, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to predict residual forecasts, %w", err)
	}

	trainEnd := f.seriesForecast.TrainEndTime()
	n := float64(max(f.trainingPoints, 1))

	r := &Results{
		T:                  slices.Clone(t),
		Forecast:           seriesRes,
		Upper:              make([]float64, len(seriesRes)),
		Lower:              make([]float64, len(seriesRes)),
		InSample:           make([]bool, len(seriesRes)),
		SeriesComponents:   seriesComp,
		ResidualComponents: residualComp,
	}
	for i := range seriesRes {
		// cap residual predictions to be greater than or equal to 0
		halfWidth := math.Max(residualRes[i], 0)
		if math.IsNaN(residualRes[i]) {
			halfWidth = 0
		}
		if steps := t[i].Sub(trainEnd).Hours(); steps > 0 {
			halfWidth *= math.Sqrt(1 + steps/n)
		} else {
			r.InSample[i] = true
		}
		r.Upper[i] = seriesRes[i] + halfWidth
		r.Lower[i] = seriesRes[i] - halfWidth
	}
	return r, nil
}

// Residuals returns the difference between the final series fit against the training data
func (f *Forecaster) Residuals() []float64 {
	return slices.Clone(f.residual)
}

// TrainComponents returns the series components over the training data
func (f *Forecaster) TrainComponents() forecast.Components {
	return f.seriesForecast.TrainComponents()
}

// SeriesIntercept returns the intercept of the series fit
func (f *Forecaster) SeriesIntercept() float64 {
	return f.seriesForecast.Intercept()
}

// SeriesCoefficients returns all coefficient weight associated with the component label string
func (f *Forecaster) SeriesCoefficients() (map[string]float64, error) {
	return f.seriesForecast.Coefficients()
}

// ResidualIntercept returns the intercept of the uncertainty fit
func (f *Forecaster) ResidualIntercept() float64 {
	return f.residualForecast.Intercept()
}

// ResidualCoefficients returns all uncertainty coefficient weights associated with the component label string
func (f *Forecaster) ResidualCoefficients() (map[string]float64, error) {
	return f.residualForecast.Coefficients()
}

// RegressorCoefficients returns the per unit effect of every regressor on the series
func (f *Forecaster) RegressorCoefficients() ([]forecast.RegressorCoefficient, error) {
	if f == nil || f.seriesForecast == nil {
		return nil, ErrUntrained
	}
	return f.seriesForecast.RegressorCoefficients()
}

// EventCoefficients returns the learnt bias of each calendar event of the series model
func (f *Forecaster) EventCoefficients() ([]forecast.EventCoefficient, error) {
	if f == nil || f.seriesForecast == nil {
		return nil, ErrUntrained
	}
	return f.seriesForecast.EventCoefficients()
}

// Model generates a serializeable representation of the fit options, series model, and uncertainty model. This
// can be used to initialize a new Forecaster for immediate predictions skipping the training step.
func (f *Forecaster) Model() (Model, error) {
	seriesModel, err := f.seriesForecast.Model()
	if err != nil {
		return Model{}, fmt.Errorf("unable to fetch series model, %w", err)
	}
	residualModel, err := f.residualForecast.Model()
	if err != nil {
		return Model{}, fmt.Errorf("unable to fetch residual model, %w", err)
	}
	m := Model{
		Options:        f.opt.Copy(),
		TrainingPoints: f.trainingPoints,
		Series:         seriesModel,
		Uncertainty:    residualModel,
	}
	return m, nil
}

// SeriesModelEq returns a string representation of the fit series model represented as
// y ~ b + m1x1 + m2x2 ...
func (f *Forecaster) SeriesModelEq() (string, error) {
	return f.seriesForecast.ModelEq()
}

// ResidualModelEq returns a string representation of the fit uncertainty model represented as
// y ~ b + m1x1 + m2x2 ...
func (f *Forecaster) ResidualModelEq() (string, error) {
	return f.residualForecast.ModelEq()
}

// TrainingData returns the training data used to fit the current forecaster model
func (f *Forecaster) TrainingData() *timedataset.TimeDataset {
	return f.fitTrainingData
}

// PlotOpts sets the horizon to forecast out along with the regressor values over the horizon.
// By default 10% of the training size is forecasted at the training interval when no
// regressors are configured.
type PlotOpts struct {
	HorizonCnt      int
	HorizonInterval time.Duration
	HorizonX        map[string][]float64
}

// PlotFit uses the Apache Echarts library to write an html page showing the resulting fit,
// model components, and fit residual
func (f *Forecaster) PlotFit(w io.Writer, opt *PlotOpts) error {
	td := f.TrainingData()
	if td == nil {
		return ErrEmptyTimeDataset
	}

	tSlice := timedataset.TimeSlice(td.T)
	interval, err := tSlice.EstimateFreq()
	if err != nil {
		return ErrCannotInferInterval
	}
	horizonCnt := len(td.T) / 10
	var horizonX map[string][]float64
	if opt != nil {
		horizonCnt = opt.HorizonCnt
		horizonX = opt.HorizonX
		if opt.HorizonInterval > 0 {
			interval = opt.HorizonInterval
		}
	}
	if len(f.opt.SeriesOptions.Regressors) > 0 && horizonX == nil {
		horizonCnt = 0
	}

	t := append(slices.Clone(td.T), tSlice.Extend(horizonCnt, interval)...)
	x := make(map[string][]float64, len(td.X))
	for name, col := range td.X {
		x[name] = append(slices.Clone(col), horizonX[name]...)
	}

	res, err := f.Predict(t, x)
	if err != nil {
		return fmt.Errorf("unable to predict with horizon, %w", err)
	}

	actual := make([]float64, len(t))
	residuals := make([]float64, len(t))
	for i := range t {
		actual[i] = math.NaN()
		residuals[i] = math.NaN()
	}
	copy(actual, td.Y)
	copy(residuals, f.residual)

	page := components.NewPage()
	page.AddCharts(
		LineForecaster("Forecast Fit", actual, res),
		LineComponents("Forecast Components", res),
		LineTSeries(
			"Forecast Residual",
			[]string{"Residual"},
			t,
			[][]float64{residuals},
		),
	)
	return page.Render(w)
}
