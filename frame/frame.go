// Package frame holds the tabular inputs and outputs of a forecast run
package frame

import (
	"errors"
	"fmt"
	"time"

	forecaster "github.com/aouyang1/grid-forecaster"
	"github.com/aouyang1/grid-forecaster/datasource"
	"github.com/aouyang1/grid-forecaster/forecast"
	"github.com/aouyang1/grid-forecaster/series"
)

var (
	ErrNoRegressors       = errors.New("at least one regressor is required")
	ErrResultsLenMismatch = errors.New("forecast results have mismatched lengths")
)

// ModeAdditive is the only way regressors enter the model
const ModeAdditive = "additive"

// TrainingFrame is the canonical ds/y training table with one dense column per regressor
type TrainingFrame struct {
	DS         []time.Time          `json:"ds"`
	Y          []float64            `json:"y"`
	Regressors []string             `json:"regressors"`
	X          map[string][]float64 `json:"x"`
}

// NewTrainingFrame returns a frame without regressors from a series
func NewTrainingFrame(s series.Series) TrainingFrame {
	return TrainingFrame{DS: s.Times(), Y: s.Values()}
}

// Len returns the number of rows
func (tf TrainingFrame) Len() int {
	return len(tf.DS)
}

// Series returns the ds/y columns as a series
func (tf TrainingFrame) Series() series.Series {
	s := make(series.Series, len(tf.DS))
	for i := range tf.DS {
		s[i] = series.Point{T: tf.DS[i], Value: tf.Y[i]}
	}
	return s
}

// Merge inner joins the target series with the weather records on exact timestamp equality
// adding one column per regressor. When several weather records share a timestamp the last
// one wins.
func Merge(target series.Series, weather []datasource.WeatherRecord, regs []Regressor) (TrainingFrame, error) {
	if len(regs) == 0 {
		return TrainingFrame{}, ErrNoRegressors
	}
	regs = dedupe(regs)

	byTime := make(map[time.Time]datasource.WeatherRecord, len(weather))
	for _, rec := range weather {
		byTime[rec.Timestamp] = rec
	}

	tf := TrainingFrame{
		DS:         make([]time.Time, 0, len(target)),
		Y:          make([]float64, 0, len(target)),
		Regressors: make([]string, 0, len(regs)),
		X:          make(map[string][]float64, len(regs)),
	}
	for _, r := range regs {
		tf.Regressors = append(tf.Regressors, r.Column())
		tf.X[r.Column()] = make([]float64, 0, len(target))
	}
	for _, p := range target {
		rec, exists := byTime[p.T]
		if !exists {
			continue
		}
		tf.DS = append(tf.DS, p.T)
		tf.Y = append(tf.Y, p.Value)
		for _, r := range regs {
			tf.X[r.Column()] = append(tf.X[r.Column()], r.Value(rec))
		}
	}
	return tf, nil
}

// WeatherColumns aligns weather records to the times t keeping only the times with weather.
// The returned times are the subset of t that matched.
func WeatherColumns(t []time.Time, weather []datasource.WeatherRecord, regs []Regressor) ([]time.Time, map[string][]float64) {
	byTime := make(map[time.Time]datasource.WeatherRecord, len(weather))
	for _, rec := range weather {
		byTime[rec.Timestamp] = rec
	}
	regs = dedupe(regs)

	matched := make([]time.Time, 0, len(t))
	x := make(map[string][]float64, len(regs))
	for _, r := range regs {
		x[r.Column()] = make([]float64, 0, len(t))
	}
	for _, tPnt := range t {
		rec, exists := byTime[tPnt]
		if !exists {
			continue
		}
		matched = append(matched, tPnt)
		for _, r := range regs {
			x[r.Column()] = append(x[r.Column()], r.Value(rec))
		}
	}
	return matched, x
}

func dedupe(regs []Regressor) []Regressor {
	seen := make(map[Regressor]struct{}, len(regs))
	out := make([]Regressor, 0, len(regs))
	for _, r := range regs {
		if _, exists := seen[r]; exists {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ForecastRow is one point of a forecast with its band and additive components
type ForecastRow struct {
	DS              time.Time `json:"ds"`
	YHat            float64   `json:"yhat"`
	YHatLower       float64   `json:"yhat_lower"`
	YHatUpper       float64   `json:"yhat_upper"`
	Trend           float64   `json:"trend"`
	Seasonality     float64   `json:"seasonality"`
	Holidays        float64   `json:"holidays"`
	ExtraRegressors float64   `json:"extra_regressors"`
	InSample        bool      `json:"in_sample"`
}

// ForecastFrame holds the forecast over the history and the future horizon
type ForecastFrame struct {
	Rows []ForecastRow `json:"rows"`
}

// NewForecastFrame converts forecast results into rows
func NewForecastFrame(res *forecaster.Results) (ForecastFrame, error) {
	if res == nil {
		return ForecastFrame{}, nil
	}
	n := len(res.T)
	comp := res.SeriesComponents
	for _, col := range [][]float64{res.Forecast, res.Upper, res.Lower, comp.Trend, comp.Seasonality, comp.Event, comp.Regressor} {
		if len(col) != n {
			return ForecastFrame{}, fmt.Errorf("expected %d values, but got %d, %w", n, len(col), ErrResultsLenMismatch)
		}
	}
	if len(res.InSample) != n {
		return ForecastFrame{}, fmt.Errorf("expected %d in sample flags, but got %d, %w", n, len(res.InSample), ErrResultsLenMismatch)
	}

	rows := make([]ForecastRow, n)
	for i := range rows {
		rows[i] = ForecastRow{
			DS:              res.T[i],
			YHat:            res.Forecast[i],
			YHatLower:       res.Lower[i],
			YHatUpper:       res.Upper[i],
			Trend:           comp.Trend[i],
			Seasonality:     comp.Seasonality[i],
			Holidays:        comp.Event[i],
			ExtraRegressors: comp.Regressor[i],
			InSample:        res.InSample[i],
		}
	}
	return ForecastFrame{Rows: rows}, nil
}

// Len returns the number of rows
func (ff ForecastFrame) Len() int {
	return len(ff.Rows)
}

// Future returns the rows after the training data
func (ff ForecastFrame) Future() []ForecastRow {
	var out []ForecastRow
	for _, row := range ff.Rows {
		if !row.InSample {
			out = append(out, row)
		}
	}
	return out
}

// DisplayRow is the subset of a forecast shown to users
type DisplayRow struct {
	DS        time.Time `json:"ds"`
	YHat      float64   `json:"yhat"`
	YHatLower float64   `json:"yhat_lower"`
	YHatUpper float64   `json:"yhat_upper"`
}

// Display projects the forecast onto its display columns
func Display(ff ForecastFrame) []DisplayRow {
	rows := make([]DisplayRow, len(ff.Rows))
	for i, row := range ff.Rows {
		rows[i] = DisplayRow{
			DS:        row.DS,
			YHat:      row.YHat,
			YHatLower: row.YHatLower,
			YHatUpper: row.YHatUpper,
		}
	}
	return rows
}

// RegressorCoefficient is the additive effect of one unit of a regressor on the series
type RegressorCoefficient struct {
	Regressor string  `json:"regressor"`
	Mode      string  `json:"regressor_mode"`
	Center    float64 `json:"center"`
	CoefLower float64 `json:"coef_lower"`
	Coef      float64 `json:"coef"`
	CoefUpper float64 `json:"coef_upper"`
}

// NewRegressorCoefficients converts model coefficients into the additive coefficient table
func NewRegressorCoefficients(coefs []forecast.RegressorCoefficient) []RegressorCoefficient {
	out := make([]RegressorCoefficient, 0, len(coefs))
	for _, c := range coefs {
		out = append(out, RegressorCoefficient{
			Regressor: c.Name,
			Mode:      ModeAdditive,
			Center:    c.Center,
			CoefLower: c.CoefLower,
			Coef:      c.Coef,
			CoefUpper: c.CoefUpper,
		})
	}
	return out
}
