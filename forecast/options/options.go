// Package options contains all forecast options for a linear fit of a time series with
// optional external regressors
package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/aouyang1/grid-forecaster/feature"
)

const (
	LabelTimeEpoch = "epoch"

	LabelSeasDaily  = "daily"
	LabelSeasWeekly = "weekly"

	DefaultRegularization = 1e-4
)

var (
	ErrUnknownTimeFeature = errors.New("unknown time feature")
	ErrMissingRegressor   = errors.New("missing regressor column")
	ErrRegressorLen       = errors.New("regressor length does not match time")
)

// Options configures a forecast by specifying growth, changepoints, seasonality orders,
// events, regressors and an L2 regularization parameter where higher values shrink the
// coefficients of features that contribute the least to the fit.
type Options struct {
	GrowthType string `json:"growth_type"`

	ChangepointOptions ChangepointOptions `json:"changepoint_options"`
	SeasonalityOptions SeasonalityOptions `json:"seasonality_options"`
	EventOptions       EventOptions       `json:"event_options"`
	HolidayOptions     HolidayOptions     `json:"holiday_options"`
	WeekendOptions     WeekendOptions     `json:"weekend_options"`

	// Regressors names the external columns passed alongside the time series
	Regressors []string `json:"regressors"`

	Regularization float64 `json:"regularization"`
}

// NewDefaultOptions returns a set of default forecast options
func NewDefaultOptions() *Options {
	return &Options{
		GrowthType:         feature.GrowthLinear,
		ChangepointOptions: NewDefaultChangepointOptions(),
		SeasonalityOptions: NewDefaultSeasonalityOptions(),
		Regularization:     DefaultRegularization,
	}
}

// Copy returns a copy of the options safe to mutate during a fit
func (o *Options) Copy() *Options {
	if o == nil {
		return NewDefaultOptions()
	}
	cp := *o
	cp.ChangepointOptions.Changepoints = append([]Changepoint(nil), o.ChangepointOptions.Changepoints...)
	cp.SeasonalityOptions.SeasonalityConfigs = append([]SeasonalityConfig(nil), o.SeasonalityOptions.SeasonalityConfigs...)
	cp.EventOptions.Events = append([]Event(nil), o.EventOptions.Events...)
	cp.Regressors = append([]string(nil), o.Regressors...)
	return &cp
}

// GenerateTimeFeatures returns the epoch time feature and the growth features. The growth
// features are scaled against the training window.
func (o *Options) GenerateTimeFeatures(t []time.Time, trainStartTime, trainEndTime time.Time) (*feature.Set, *feature.Set) {
	if o == nil {
		o = NewDefaultOptions()
	}

	tFeat := feature.NewSet()
	epochFeat := feature.NewTime(LabelTimeEpoch)
	epoch := epochFeat.Generate(t)
	tFeat.Set(epochFeat, epoch)

	gFeat := feature.NewSet()
	if o.GrowthType == feature.GrowthLinear && trainEndTime.After(trainStartTime) {
		linear := feature.Linear()
		gFeat.Set(linear, linear.Generate(epoch, trainStartTime, trainEndTime))
	}
	return tFeat, gFeat
}

// GenerateFourierFeatures creates the sine and cosine features of every configured
// seasonality order from the epoch time feature
func (o *Options) GenerateFourierFeatures(tFeat *feature.Set) (*feature.Set, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	epoch, exists := tFeat.Get(feature.NewTime(LabelTimeEpoch))
	if !exists {
		return nil, ErrUnknownTimeFeature
	}

	x := feature.NewSet()
	for _, seasCfg := range o.SeasonalityOptions.SeasonalityConfigs {
		period := seasCfg.Period.Seconds()
		for _, order := range seasCfg.OrderList() {
			sinFeat := feature.NewSeasonality(seasCfg.Name, feature.FourierCompSin, order)
			cosFeat := feature.NewSeasonality(seasCfg.Name, feature.FourierCompCos, order)
			x.Set(sinFeat, sinFeat.Generate(epoch, period))
			x.Set(cosFeat, cosFeat.Generate(epoch, period))
		}
	}
	return x, nil
}

// GenerateEventFeatures combines custom events, holidays and weekends into event masks
func (o *Options) GenerateEventFeatures(t []time.Time) *feature.Set {
	if o == nil {
		o = NewDefaultOptions()
	}
	eFeat := o.EventOptions.GenerateFeatures(t)
	eFeat.Update(o.HolidayOptions.GenerateFeatures(t))
	eFeat.Update(o.WeekendOptions.GenerateFeatures(t))
	return eFeat
}

// RegressorScale stores the center and scale used to standardize a regressor column
type RegressorScale struct {
	Name   string  `json:"name"`
	Center float64 `json:"center"`
	Scale  float64 `json:"scale"`
}

// GenerateRegressorFeatures standardizes every configured regressor column with its scale.
// Every configured regressor must be present with the same length as t.
func (o *Options) GenerateRegressorFeatures(n int, x map[string][]float64, scales []RegressorScale) (*feature.Set, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	rFeat := feature.NewSet()
	for _, scale := range scales {
		col, exists := x[scale.Name]
		if !exists {
			return nil, fmt.Errorf("%q not found, %w", scale.Name, ErrMissingRegressor)
		}
		if len(col) != n {
			return nil, fmt.Errorf("%q has %d values for %d time points, %w", scale.Name, len(col), n, ErrRegressorLen)
		}
		data := make([]float64, n)
		for i, v := range col {
			data[i] = (v - scale.Center) / scale.Scale
		}
		rFeat.Set(feature.NewRegressor(scale.Name), data)
	}
	return rFeat, nil
}
