package forecaster

import (
	"github.com/aouyang1/grid-forecaster/forecast/options"
)

const (
	DefaultResidualWindow = 24
	DefaultResidualZscore = 1.96
)

// OutlierOptions configures the passes of outlier removal on the series residual. Points
// outside the tukey fences of the residual percentiles are ignored on the next pass.
type OutlierOptions struct {
	NumPasses       int     `json:"num_passes"`
	UpperPercentile float64 `json:"upper_percentile"`
	LowerPercentile float64 `json:"lower_percentile"`
	TukeyFactor     float64 `json:"tukey_factor"`
}

// NewOutlierOptions returns the default outlier options
func NewOutlierOptions() *OutlierOptions {
	return &OutlierOptions{
		NumPasses:       3,
		UpperPercentile: 0.9,
		LowerPercentile: 0.1,
		TukeyFactor:     1.5,
	}
}

// Options configures the series model, the uncertainty model fit on the rolling standard
// deviation of the series residual, and the outlier removal between the two.
type Options struct {
	SeriesOptions   *options.Options `json:"series_options"`
	ResidualOptions *options.Options `json:"residual_options"`

	OutlierOptions *OutlierOptions `json:"outlier_options"`
	ResidualWindow int             `json:"residual_window"`
	ResidualZscore float64         `json:"residual_zscore"`
}

// NewDefaultOptions returns a daily and weekly seasonal series model with a daily seasonal
// uncertainty model and no outlier removal
func NewDefaultOptions() *Options {
	residualOpt := options.NewDefaultOptions()
	residualOpt.SeasonalityOptions.SeasonalityConfigs = []options.SeasonalityConfig{
		options.NewDailySeasonalityConfig(2),
	}
	return &Options{
		SeriesOptions:   options.NewDefaultOptions(),
		ResidualOptions: residualOpt,
		ResidualWindow:  DefaultResidualWindow,
		ResidualZscore:  DefaultResidualZscore,
	}
}

// Copy returns a copy of the options with the residual model stripped of regressors since
// the uncertainty is only a function of time
func (o *Options) Copy() *Options {
	if o == nil {
		return NewDefaultOptions()
	}
	cp := &Options{
		SeriesOptions:   o.SeriesOptions.Copy(),
		ResidualOptions: o.ResidualOptions.Copy(),
		ResidualWindow:  o.ResidualWindow,
		ResidualZscore:  o.ResidualZscore,
	}
	cp.ResidualOptions.Regressors = nil
	if o.OutlierOptions != nil {
		outlier := *o.OutlierOptions
		cp.OutlierOptions = &outlier
	}
	if cp.ResidualWindow <= 0 {
		cp.ResidualWindow = DefaultResidualWindow
	}
	if cp.ResidualZscore <= 0 {
		cp.ResidualZscore = DefaultResidualZscore
	}
	return cp
}
