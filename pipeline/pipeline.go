// Package pipeline runs one forecast end to end: fetch the grid series, normalize it, join
// weather regressors when requested, fit an engine and predict over the history and horizon.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	forecaster "github.com/aouyang1/grid-forecaster"
	"github.com/aouyang1/grid-forecaster/datasource"
	"github.com/aouyang1/grid-forecaster/forecast"
	"github.com/aouyang1/grid-forecaster/frame"
	"github.com/aouyang1/grid-forecaster/logging"
	"github.com/aouyang1/grid-forecaster/series"
)

var ErrNoSource = errors.New("no data source configured")

const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageMerge     = "merge"
	StageFit       = "fit"
	StagePredict   = "predict"

	tracerName = "github.com/aouyang1/grid-forecaster/pipeline"
)

var tracer = otel.Tracer(tracerName)

// StageError tags a failure with the pipeline stage it happened in
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed, %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// IsStage reports whether err failed in the given stage
func IsStage(err error, stage string) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == stage
}

// Result is everything a run produces. Forecast covers the history and the horizon on one
// contiguous time axis. Coefficients is empty for univariate runs.
type Result struct {
	RunID        uuid.UUID                    `json:"run_id"`
	Request      Request                      `json:"request"`
	ValueName    string                       `json:"value_name"`
	Input        series.Series                `json:"input"`
	Forecast     frame.ForecastFrame          `json:"forecast"`
	Display      []frame.DisplayRow           `json:"display"`
	Coefficients []frame.RegressorCoefficient `json:"coefficients"`
	Charts       Artifacts                    `json:"-"`
}

// Artifacts holds the charts of a run
type Artifacts struct {
	Forecast   *charts.Line
	Components *charts.Line
}

// Render writes both charts as a single html page
func (a Artifacts) Render(w io.Writer) error {
	page := components.NewPage()
	if a.Forecast != nil {
		page.AddCharts(a.Forecast)
	}
	if a.Components != nil {
		page.AddCharts(a.Components)
	}
	return page.Render(w)
}

// Orchestrator wires a data source to a fresh engine per run. It holds no per run state so one
// orchestrator can serve concurrent runs.
type Orchestrator struct {
	Source    datasource.Source
	NewEngine EngineFactory
	Logger    *logrus.Logger
	Now       func() time.Time
}

// NewOrchestrator returns an orchestrator backed by a Forecaster with the given options
func NewOrchestrator(src datasource.Source, opt *forecaster.Options, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		Source:    src,
		NewEngine: NewForecasterFactory(opt),
		Logger:    logger,
		Now:       time.Now,
	}
}

type run struct {
	id    uuid.UUID
	title string
	log   *logrus.Entry
}

func (o *Orchestrator) newRun(title string) run {
	logger := o.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	id := uuid.New()
	if title == "" {
		title = "Forecast"
	}
	return run{
		id:    id,
		title: title,
		log:   logger.WithField(logging.FieldRunID, id.String()),
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o *Orchestrator) engine() (Engine, error) {
	if o.NewEngine == nil {
		return NewForecasterFactory(nil)()
	}
	return o.NewEngine()
}

func startSpan(ctx context.Context, r run, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(logging.FieldRunID, r.id.String()))
	return tracer.Start(ctx, stage, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Run validates the request, fetches the last HistoricalDays of the metric and forecasts
// HorizonDays past the last observation. Rows outside [now - HistoricalDays, now] are dropped.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if o.Source == nil {
		return nil, ErrNoSource
	}
	info, err := req.Metric.Info()
	if err != nil {
		return nil, err
	}

	r := o.newRun(fmt.Sprintf("%s (%s)", info.Title, info.Unit))
	r.log = r.log.WithFields(logrus.Fields{
		logging.FieldMetric: info.Name,
		logging.FieldMode:   req.Mode.String(),
	})
	startTime := time.Now()

	end := datasource.Naive(o.now())
	start := end.AddDate(0, 0, -req.HistoricalDays)

	fetchCtx, span := startSpan(ctx, r, StageFetch,
		attribute.String("dataset_id", info.DatasetID),
		attribute.String("metric", info.Name),
	)
	raw, err := o.Source.FetchGridSeries(fetchCtx, info.DatasetID, info.ValueField, start, end)
	endSpan(span, err)
	if err != nil {
		return nil, stageError(StageFetch, fmt.Errorf("unable to fetch %s series, %w", info.Name, err))
	}

	_, span = startSpan(ctx, r, StageNormalize, attribute.Int("raw_rows", len(raw)))
	s := series.Normalize(raw, info.Strategy).Window(start, end)
	if req.Mode == Multivariate {
		s = series.ResampleHourly(s)
	}
	span.SetAttributes(attribute.Int("rows", len(s)))
	endSpan(span, nil)
	r.log.WithFields(logrus.Fields{
		logging.FieldStage: StageNormalize,
		logging.FieldRows:  len(s),
		"raw_rows":         len(raw),
	}).Debug("normalized grid series")

	var res *Result
	switch req.Mode {
	case Multivariate:
		var tf frame.TrainingFrame
		tf, err = o.mergeWeather(ctx, r, s, req.Regressors, req.Latitude, req.Longitude)
		if err != nil {
			return nil, err
		}
		res, err = o.runMultivariate(ctx, r, tf, req.Latitude, req.Longitude, req.HorizonHours())
	default:
		res, err = o.runUnivariate(ctx, r, s, req.HorizonHours())
	}
	if err != nil {
		r.log.WithError(err).Error("forecast run failed")
		return nil, err
	}
	res.Request = req
	res.ValueName = info.ValueField

	r.log.WithFields(logrus.Fields{
		logging.FieldRows:     res.Forecast.Len(),
		logging.FieldDuration: time.Since(startTime).String(),
	}).Info("completed forecast run")
	return res, nil
}

func (o *Orchestrator) mergeWeather(ctx context.Context, r run, s series.Series, regs []frame.Regressor, lat, lon float64) (frame.TrainingFrame, error) {
	if len(s) == 0 {
		return frame.TrainingFrame{}, fmt.Errorf("no grid series to merge, %w", forecast.ErrInsufficientTrainingData)
	}

	fetchCtx, span := startSpan(ctx, r, StageFetch, attribute.String("provider", "rebase"))
	weather, err := o.Source.FetchWeather(fetchCtx, s.Start(), s.End(), lat, lon)
	endSpan(span, err)
	if err != nil {
		return frame.TrainingFrame{}, stageError(StageFetch, fmt.Errorf("unable to fetch training weather, %w", err))
	}

	_, span = startSpan(ctx, r, StageMerge, attribute.Int("weather_rows", len(weather)))
	tf, err := frame.Merge(s, weather, regs)
	endSpan(span, err)
	if err != nil {
		return frame.TrainingFrame{}, stageError(StageMerge, fmt.Errorf("unable to merge weather, %w", err))
	}
	r.log.WithFields(logrus.Fields{
		logging.FieldStage: StageMerge,
		logging.FieldRows:  tf.Len(),
		"series_rows":      len(s),
		"weather_rows":     len(weather),
	}).Debug("merged weather regressors")
	return tf, nil
}

// RunUnivariate fits the series on time alone and forecasts horizonHours hourly steps past the
// last observation
func (o *Orchestrator) RunUnivariate(ctx context.Context, s series.Series, horizonHours int) (*Result, error) {
	return o.runUnivariate(ctx, o.newRun(""), s, horizonHours)
}

func (o *Orchestrator) runUnivariate(ctx context.Context, r run, s series.Series, horizonHours int) (*Result, error) {
	tf := frame.NewTrainingFrame(s)
	eng, err := o.fit(ctx, r, tf)
	if err != nil {
		return nil, err
	}

	t := append(slices.Clone(tf.DS), futureGrid(s.End(), horizonHours)...)
	return o.predict(ctx, r, eng, s, t, nil)
}

// RunMultivariate fits the series with every regressor column of the frame, fetches the
// weather forecast over the horizon and forecasts the future hours that have weather. Future
// hours without weather are dropped.
func (o *Orchestrator) RunMultivariate(ctx context.Context, tf frame.TrainingFrame, lat, lon float64, horizonHours int) (*Result, error) {
	if o.Source == nil {
		return nil, ErrNoSource
	}
	return o.runMultivariate(ctx, o.newRun(""), tf, lat, lon, horizonHours)
}

func (o *Orchestrator) runMultivariate(ctx context.Context, r run, tf frame.TrainingFrame, lat, lon float64, horizonHours int) (*Result, error) {
	if len(tf.Regressors) == 0 {
		return nil, ErrNoRegressors
	}
	regs := make([]frame.Regressor, 0, len(tf.Regressors))
	for _, col := range tf.Regressors {
		reg, err := frame.ParseRegressor(col)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	eng, err := o.fit(ctx, r, tf)
	if err != nil {
		return nil, err
	}

	last := tf.DS[len(tf.DS)-1]
	future := futureGrid(last, horizonHours)

	var (
		matched []time.Time
		futureX map[string][]float64
	)
	if len(future) > 0 {
		fetchCtx, span := startSpan(ctx, r, StageFetch, attribute.String("provider", "rebase"))
		weather, err := o.Source.FetchWeather(fetchCtx, future[0], future[len(future)-1], lat, lon)
		endSpan(span, err)
		if err != nil {
			return nil, stageError(StageFetch, fmt.Errorf("unable to fetch forecast weather, %w", err))
		}
		matched, futureX = frame.WeatherColumns(future, weather, regs)
	}
	if dropped := len(future) - len(matched); dropped > 0 {
		r.log.WithFields(logrus.Fields{
			logging.FieldStage: StageMerge,
			"dropped":          dropped,
			"horizon":          len(future),
		}).Warn("dropped future hours without weather")
	}

	t := append(slices.Clone(tf.DS), matched...)
	x := make(map[string][]float64, len(tf.X))
	for col, vals := range tf.X {
		x[col] = append(slices.Clone(vals), futureX[col]...)
	}

	res, err := o.predict(ctx, r, eng, tf.Series(), t, x)
	if err != nil {
		return nil, err
	}
	coefs, err := eng.RegressorCoefficients()
	if err != nil {
		return nil, fmt.Errorf("unable to compute regressor coefficients, %w", err)
	}
	res.Coefficients = coefs
	return res, nil
}

func (o *Orchestrator) fit(ctx context.Context, r run, tf frame.TrainingFrame) (Engine, error) {
	if tf.Len() < 2 {
		return nil, fmt.Errorf("got %d rows, %w", tf.Len(), forecast.ErrInsufficientTrainingData)
	}
	eng, err := o.engine()
	if err != nil {
		return nil, fmt.Errorf("unable to build engine, %w", err)
	}

	_, span := startSpan(ctx, r, StageFit,
		attribute.Int("rows", tf.Len()),
		attribute.StringSlice("regressors", tf.Regressors),
	)
	start := time.Now()
	err = eng.Fit(tf)
	endSpan(span, err)
	if err != nil {
		return nil, stageError(StageFit, fmt.Errorf("unable to fit forecast, %w", err))
	}
	r.log.WithFields(logrus.Fields{
		logging.FieldStage:    StageFit,
		logging.FieldRows:     tf.Len(),
		logging.FieldDuration: time.Since(start).String(),
	}).Debug("fit forecast")
	logCalendarEffects(r, eng)
	return eng, nil
}

func logCalendarEffects(r run, eng Engine) {
	ce, ok := eng.(calendarEngine)
	if !ok {
		return
	}
	coefs, err := ce.EventCoefficients()
	if err != nil {
		r.log.WithError(err).Debug("no calendar effects")
		return
	}
	for _, c := range coefs {
		r.log.WithFields(logrus.Fields{
			logging.FieldStage: StageFit,
			"event":            c.Name,
			"kind":             string(c.Kind),
			"coef":             c.Coef,
		}).Debug("calendar effect")
	}
}

func (o *Orchestrator) predict(ctx context.Context, r run, eng Engine, input series.Series, t []time.Time, x map[string][]float64) (*Result, error) {
	_, span := startSpan(ctx, r, StagePredict, attribute.Int("rows", len(t)))
	fr, err := eng.Predict(t, x)
	endSpan(span, err)
	if err != nil {
		return nil, stageError(StagePredict, fmt.Errorf("unable to predict forecast, %w", err))
	}

	ff, err := frame.NewForecastFrame(fr)
	if err != nil {
		return nil, err
	}
	return &Result{
		RunID:        r.id,
		Input:        input,
		Forecast:     ff,
		Display:      frame.Display(ff),
		Coefficients: []frame.RegressorCoefficient{},
		Charts: Artifacts{
			Forecast:   forecaster.LineForecaster(r.title, alignActual(input, fr.T), fr),
			Components: forecaster.LineComponents(r.title+" Components", fr),
		},
	}, nil
}

// futureGrid returns n hourly steps after last
func futureGrid(last time.Time, n int) []time.Time {
	t := make([]time.Time, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		t = append(t, last.Add(time.Duration(i)*time.Hour))
	}
	return t
}

// alignActual maps the observed series onto t with NaNs where nothing was observed
func alignActual(s series.Series, t []time.Time) []float64 {
	byTime := make(map[time.Time]float64, len(s))
	for _, p := range s {
		byTime[p.T] = p.Value
	}
	actual := make([]float64, len(t))
	for i, tPnt := range t {
		v, exists := byTime[tPnt]
		if !exists {
			v = math.NaN()
		}
		actual[i] = v
	}
	return actual
}
