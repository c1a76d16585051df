package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aouyang1/grid-forecaster/series"
)

var (
	ErrUnknownMetric = errors.New("unknown metric")
	ErrUnknownMode   = errors.New("unknown mode")
)

// Metric is a Belgian grid series that can be forecasted
type Metric int

const (
	Load Metric = iota
	Solar
	Wind
)

// MetricInfo describes where a metric lives on the Elia platform and how its rows collapse
// into one series
type MetricInfo struct {
	Metric     Metric          `json:"-"`
	Name       string          `json:"name"`
	DatasetID  string          `json:"dataset_id"`
	ValueField string          `json:"value_field"`
	Strategy   series.Strategy `json:"-"`
	Title      string          `json:"title"`
	Unit       string          `json:"unit"`
}

var metricTable = map[Metric]MetricInfo{
	Load: {
		Metric:     Load,
		Name:       "load",
		DatasetID:  "ods003",
		ValueField: "eliagridload",
		Strategy:   series.PassThrough,
		Title:      "Total Load",
		Unit:       "MW",
	},
	Solar: {
		Metric:     Solar,
		Name:       "solar",
		DatasetID:  "ods032",
		ValueField: "mostrecentforecast",
		Strategy:   series.SumSubSeries,
		Title:      "Solar Power Forecast",
		Unit:       "MW",
	},
	Wind: {
		Metric:     Wind,
		Name:       "wind",
		DatasetID:  "ods031",
		ValueField: "mostrecentforecast",
		Strategy:   series.SumSubSeries,
		Title:      "Wind Power Forecast",
		Unit:       "MW",
	},
}

// Metrics lists every supported metric in display order
func Metrics() []MetricInfo {
	return []MetricInfo{metricTable[Load], metricTable[Solar], metricTable[Wind]}
}

// Info looks up the dataset of a metric
func (m Metric) Info() (MetricInfo, error) {
	info, exists := metricTable[m]
	if !exists {
		return MetricInfo{}, fmt.Errorf("metric %d, %w", int(m), ErrUnknownMetric)
	}
	return info, nil
}

func (m Metric) String() string {
	if info, exists := metricTable[m]; exists {
		return info.Name
	}
	return "unknown"
}

// ParseMetric accepts the metric name or its title
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "load", "total load":
		return Load, nil
	case "solar", "solar power forecast":
		return Solar, nil
	case "wind", "wind power forecast":
		return Wind, nil
	}
	return 0, fmt.Errorf("%q, %w", name, ErrUnknownMetric)
}

// Mode selects whether weather regressors enter the model
type Mode int

const (
	Univariate Mode = iota
	Multivariate
)

func (m Mode) String() string {
	switch m {
	case Univariate:
		return "univariate"
	case Multivariate:
		return "multivariate"
	}
	return "unknown"
}

// ParseMode accepts univariate or multivariate
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "univariate", "uni":
		return Univariate, nil
	case "multivariate", "multi":
		return Multivariate, nil
	}
	return 0, fmt.Errorf("%q, %w", name, ErrUnknownMode)
}
