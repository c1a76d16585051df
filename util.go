package forecaster

import (
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const chartTimeFormat = "2006-01-02 15:04"

func chartTimes(t []time.Time) []string {
	out := make([]string, len(t))
	for i, tPnt := range t {
		out[i] = tPnt.Format(chartTimeFormat)
	}
	return out
}

// lineData converts values to line points leaving gaps where a value is NaN
func lineData(y []float64) []opts.LineData {
	data := make([]opts.LineData, 0, len(y))
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			data = append(data, opts.LineData{Value: nil})
			continue
		}
		data = append(data, opts.LineData{Value: v})
	}
	return data
}

func newLine(title string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
		charts.WithTooltipOpts(
			opts.Tooltip{
				Trigger: "axis",
			},
		),
	)
	return line
}

// LineTSeries generates an echart multi-line chart for some arbitrary time/value combination. The input
// y is a slice of series that must have the same length as the input time slice.
func LineTSeries(title string, seriesName []string, t []time.Time, y [][]float64) *charts.Line {
	line := newLine(title)
	line.SetXAxis(chartTimes(t))
	for i, series := range seriesName {
		if i >= len(y) {
			break
		}
		line.AddSeries(series, lineData(y[i]))
	}
	return line
}

// LineForecaster generates an echart line chart for a forecast result plotting the actual values
// along with the forecasted, upper, lower values. actual must be aligned with the result times
// with NaNs where no observation exists.
func LineForecaster(title string, actual []float64, res *Results) *charts.Line {
	line := newLine(title)
	if res == nil {
		return line
	}
	line.SetXAxis(chartTimes(res.T)).
		AddSeries("Actual", lineData(actual)).
		AddSeries("Forecast", lineData(res.Forecast)).
		AddSeries("Upper", lineData(res.Upper)).
		AddSeries("Lower", lineData(res.Lower))
	return line
}

// LineComponents generates an echart line chart of the additive series components of a result
func LineComponents(title string, res *Results) *charts.Line {
	line := newLine(title)
	if res == nil {
		return line
	}
	comp := res.SeriesComponents
	line.SetXAxis(chartTimes(res.T)).
		AddSeries("Trend", lineData(comp.Trend)).
		AddSeries("Seasonality", lineData(comp.Seasonality)).
		AddSeries("Holidays", lineData(comp.Event)).
		AddSeries("Regressors", lineData(comp.Regressor))
	return line
}
