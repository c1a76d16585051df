package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forecaster "github.com/aouyang1/grid-forecaster"
	"github.com/aouyang1/grid-forecaster/datasource"
	"github.com/aouyang1/grid-forecaster/forecast"
	"github.com/aouyang1/grid-forecaster/frame"
	"github.com/aouyang1/grid-forecaster/series"
)

var (
	testNow     = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	errUpstream = errors.New("upstream unavailable")
)

type mockSource struct {
	mu sync.Mutex

	grid       []datasource.GridRecord
	weather    []datasource.WeatherRecord
	gridErr    error
	weatherErr error

	gridCalls    int
	weatherCalls int
	datasetIDs   []string
	fields       []string
	gridStarts   []time.Time
	gridEnds     []time.Time
}

func (m *mockSource) FetchGridSeries(ctx context.Context, datasetID, field string, start, end time.Time) ([]datasource.GridRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gridCalls++
	m.datasetIDs = append(m.datasetIDs, datasetID)
	m.fields = append(m.fields, field)
	m.gridStarts = append(m.gridStarts, start)
	m.gridEnds = append(m.gridEnds, end)
	if m.gridErr != nil {
		return nil, m.gridErr
	}
	return m.grid, nil
}

func (m *mockSource) FetchWeather(ctx context.Context, start, end time.Time, lat, lon float64) ([]datasource.WeatherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weatherCalls++
	if m.weatherErr != nil {
		return nil, m.weatherErr
	}
	var out []datasource.WeatherRecord
	for _, rec := range m.weather {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func temperatureAt(t time.Time) float64 {
	hours := t.Sub(testNow).Hours()
	return 10 + 3*math.Sin(2*math.Pi*hours/37)
}

// hourly load over the week before testNow driven by a daily cycle and temperature
func generateGrid(days int) []datasource.GridRecord {
	start := testNow.AddDate(0, 0, -days)
	n := days * 24
	recs := make([]datasource.GridRecord, 0, n)
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		v := 1000 + 100*math.Sin(2*math.Pi*float64(t.Hour())/24) + 5*temperatureAt(t)
		recs = append(recs, datasource.GridRecord{Datetime: t, Value: v, Valid: true})
	}
	return recs
}

func generateWeather(start, end time.Time) []datasource.WeatherRecord {
	var recs []datasource.WeatherRecord
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		recs = append(recs, datasource.WeatherRecord{
			Timestamp:   t,
			CloudCover:  50,
			WindSpeed:   4 + math.Cos(2*math.Pi*t.Sub(testNow).Hours()/29),
			Temperature: temperatureAt(t),
		})
	}
	return recs
}

func newTestOrchestrator(src datasource.Source) (*Orchestrator, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	o := NewOrchestrator(src, forecaster.NewDefaultOptions(), logger)
	o.Now = func() time.Time { return testNow }
	return o, hook
}

func assertBands(t *testing.T, ff frame.ForecastFrame) {
	t.Helper()
	for _, row := range ff.Rows {
		assert.LessOrEqual(t, row.YHatLower, row.YHat)
		assert.LessOrEqual(t, row.YHat, row.YHatUpper)
	}
}

func TestRequestValidate(t *testing.T) {
	valid := Request{Metric: Load, Mode: Univariate, HistoricalDays: 7, HorizonDays: 2}

	testData := map[string]struct {
		mutate func(r *Request)
		err    error
	}{
		"valid univariate": {
			mutate: func(r *Request) {},
		},
		"valid multivariate": {
			mutate: func(r *Request) {
				r.Mode = Multivariate
				r.Regressors = []frame.Regressor{frame.Temperature}
			},
		},
		"unknown metric": {
			mutate: func(r *Request) { r.Metric = Metric(9) },
			err:    ErrUnknownMetric,
		},
		"unknown mode": {
			mutate: func(r *Request) { r.Mode = Mode(9) },
			err:    ErrUnknownMode,
		},
		"too few days": {
			mutate: func(r *Request) { r.HistoricalDays = 0 },
			err:    ErrHistoricalDaysRange,
		},
		"too many days": {
			mutate: func(r *Request) { r.HistoricalDays = 15 },
			err:    ErrHistoricalDaysRange,
		},
		"horizon too long": {
			mutate: func(r *Request) { r.HorizonDays = 8 },
			err:    ErrHorizonDaysRange,
		},
		"multivariate without regressors": {
			mutate: func(r *Request) { r.Mode = Multivariate },
			err:    ErrNoRegressors,
		},
		"bad location": {
			mutate: func(r *Request) {
				r.Mode = Multivariate
				r.Regressors = []frame.Regressor{frame.WindSpeed}
				r.Latitude = 120
			},
			err: ErrInvalidLocation,
		},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			req := valid
			td.mutate(&req)
			err := req.Validate()
			if td.err == nil {
				assert.Nil(t, err)
				return
			}
			assert.ErrorIs(t, err, td.err)
		})
	}
}

func TestMetricTable(t *testing.T) {
	testData := map[string]struct {
		name      string
		metric    Metric
		datasetID string
		field     string
		strategy  series.Strategy
	}{
		"load":  {"Load", Load, "ods003", "eliagridload", series.PassThrough},
		"solar": {"solar", Solar, "ods032", "mostrecentforecast", series.SumSubSeries},
		"wind":  {" Wind Power Forecast ", Wind, "ods031", "mostrecentforecast", series.SumSubSeries},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			m, err := ParseMetric(td.name)
			require.Nil(t, err)
			assert.Equal(t, td.metric, m)

			info, err := m.Info()
			require.Nil(t, err)
			assert.Equal(t, td.datasetID, info.DatasetID)
			assert.Equal(t, td.field, info.ValueField)
			assert.Equal(t, td.strategy, info.Strategy)
			assert.Equal(t, name, m.String())
		})
	}

	_, err := ParseMetric("hydro")
	assert.ErrorIs(t, err, ErrUnknownMetric)
	assert.Len(t, Metrics(), 3)

	mode, err := ParseMode("multi")
	require.Nil(t, err)
	assert.Equal(t, Multivariate, mode)
	_, err = ParseMode("hybrid")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestRunUnivariate(t *testing.T) {
	src := &mockSource{grid: generateGrid(7)}
	o, hook := newTestOrchestrator(src)

	req := Request{Metric: Load, Mode: Univariate, HistoricalDays: 7, HorizonDays: 2}
	res, err := o.Run(context.Background(), req)
	require.Nil(t, err)

	assert.Equal(t, 1, src.gridCalls)
	assert.Equal(t, 0, src.weatherCalls)
	assert.Equal(t, []string{"ods003"}, src.datasetIDs)
	assert.Equal(t, []string{"eliagridload"}, src.fields)

	assert.Equal(t, req, res.Request)
	assert.Equal(t, "eliagridload", res.ValueName)
	assert.Len(t, res.Input, 7*24)
	require.Equal(t, 7*24+48, res.Forecast.Len())
	assert.Len(t, res.Display, res.Forecast.Len())
	assert.Empty(t, res.Coefficients)

	future := res.Forecast.Future()
	require.Len(t, future, 48)
	last := res.Input.End()
	for i, row := range future {
		assert.Equal(t, last.Add(time.Duration(i+1)*time.Hour), row.DS)
	}
	assertBands(t, res.Forecast)

	for _, entry := range hook.AllEntries() {
		assert.Equal(t, res.RunID.String(), entry.Data["run_id"])
	}
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "completed forecast run", hook.LastEntry().Message)
}

func TestRunMultivariate(t *testing.T) {
	src := &mockSource{
		grid:    generateGrid(7),
		weather: generateWeather(testNow.AddDate(0, 0, -8), testNow.AddDate(0, 0, 3)),
	}
	o, _ := newTestOrchestrator(src)

	req := Request{
		Metric:         Load,
		Mode:           Multivariate,
		Regressors:     []frame.Regressor{frame.Temperature, frame.WindSpeed, frame.Temperature},
		HistoricalDays: 7,
		HorizonDays:    2,
		Latitude:       50.85,
		Longitude:      4.35,
	}
	res, err := o.Run(context.Background(), req)
	require.Nil(t, err)

	assert.Equal(t, 1, src.gridCalls)
	assert.Equal(t, 2, src.weatherCalls)
	require.Equal(t, 7*24+48, res.Forecast.Len())
	assert.Len(t, res.Forecast.Future(), 48)
	assertBands(t, res.Forecast)

	require.Len(t, res.Coefficients, 2)
	coefs := make(map[string]frame.RegressorCoefficient)
	for _, c := range res.Coefficients {
		assert.Equal(t, frame.ModeAdditive, c.Mode)
		assert.LessOrEqual(t, c.CoefLower, c.Coef)
		assert.LessOrEqual(t, c.Coef, c.CoefUpper)
		coefs[c.Regressor] = c
	}
	require.Contains(t, coefs, "Temperature")
	require.Contains(t, coefs, "WindSpeed")
	assert.InDelta(t, 5.0, coefs["Temperature"].Coef, 0.5)
	assert.InDelta(t, 10.0, coefs["Temperature"].Center, 0.5)
}

func TestRunMultivariateMissingFutureWeather(t *testing.T) {
	src := &mockSource{
		grid:    generateGrid(3),
		weather: generateWeather(testNow.AddDate(0, 0, -3), testNow.Add(-time.Hour)),
	}
	o, hook := newTestOrchestrator(src)

	tf, err := frame.Merge(series.Normalize(src.grid, series.PassThrough), src.weather, []frame.Regressor{frame.Temperature})
	require.Nil(t, err)

	res, err := o.RunMultivariate(context.Background(), tf, 50.85, 4.35, 24)
	require.Nil(t, err)
	assert.Equal(t, tf.Len(), res.Forecast.Len())
	assert.Empty(t, res.Forecast.Future())
	assert.Len(t, res.Coefficients, 1)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, 24, entry.Data["dropped"])
		}
	}
	assert.True(t, warned)
}

func TestRunErrors(t *testing.T) {
	testData := map[string]struct {
		src *mockSource
		req Request
		err error

		gridCalls    int
		weatherCalls int
	}{
		"invalid request fetches nothing": {
			src:       &mockSource{grid: generateGrid(7)},
			req:       Request{Metric: Load, Mode: Multivariate, HistoricalDays: 7, HorizonDays: 2},
			err:       ErrNoRegressors,
			gridCalls: 0,
		},
		"grid fetch failure": {
			src:       &mockSource{gridErr: errUpstream},
			req:       Request{Metric: Wind, HistoricalDays: 7, HorizonDays: 2},
			err:       errUpstream,
			gridCalls: 1,
		},
		"empty series": {
			src:       &mockSource{},
			req:       Request{Metric: Solar, HistoricalDays: 1, HorizonDays: 1},
			err:       forecast.ErrInsufficientTrainingData,
			gridCalls: 1,
		},
		"single point": {
			src:       &mockSource{grid: generateGrid(7)[:1]},
			req:       Request{Metric: Load, HistoricalDays: 7, HorizonDays: 1},
			err:       forecast.ErrInsufficientTrainingData,
			gridCalls: 1,
		},
		"all null values": {
			src: &mockSource{grid: []datasource.GridRecord{
				{Datetime: testNow.Add(-2 * time.Hour)},
				{Datetime: testNow.Add(-time.Hour)},
			}},
			req:       Request{Metric: Load, HistoricalDays: 7, HorizonDays: 1},
			err:       forecast.ErrInsufficientTrainingData,
			gridCalls: 1,
		},
		"weather fetch failure": {
			src: &mockSource{grid: generateGrid(7), weatherErr: errUpstream},
			req: Request{
				Metric: Load, Mode: Multivariate, Regressors: []frame.Regressor{frame.SunRadiation},
				HistoricalDays: 7, HorizonDays: 1,
			},
			err:          errUpstream,
			gridCalls:    1,
			weatherCalls: 1,
		},
		"no weather overlap": {
			src: &mockSource{grid: generateGrid(7)},
			req: Request{
				Metric: Load, Mode: Multivariate, Regressors: []frame.Regressor{frame.Temperature},
				HistoricalDays: 7, HorizonDays: 1,
			},
			err:          forecast.ErrInsufficientTrainingData,
			gridCalls:    1,
			weatherCalls: 1,
		},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			o, _ := newTestOrchestrator(td.src)
			res, err := o.Run(context.Background(), td.req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, td.err)
			assert.Equal(t, td.gridCalls, td.src.gridCalls)
			assert.Equal(t, td.weatherCalls, td.src.weatherCalls)
			if errors.Is(td.err, errUpstream) {
				assert.True(t, IsStage(err, StageFetch))
			}
		})
	}
}

func TestRunSumsRegions(t *testing.T) {
	var grid []datasource.GridRecord
	for _, rec := range generateGrid(2) {
		for _, region := range []string{"Flanders", "Wallonia"} {
			r := rec
			r.SubID = region
			r.Value = rec.Value / 2
			grid = append(grid, r)
		}
	}
	src := &mockSource{grid: grid}
	o, _ := newTestOrchestrator(src)

	res, err := o.Run(context.Background(), Request{Metric: Solar, HistoricalDays: 2, HorizonDays: 1})
	require.Nil(t, err)
	assert.Equal(t, []string{"ods032"}, src.datasetIDs)
	require.Len(t, res.Input, 48)
	assert.InDelta(t, generateGrid(2)[0].Value, res.Input[0].Value, 1e-9)
}

func TestRunLogsCalendarEffects(t *testing.T) {
	testData := map[string]struct {
		weekends bool
		expected []string
	}{
		"weekends modeled": {
			weekends: true,
			expected: []string{"weekend"},
		},
		"no calendar events": {},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			o, hook := newTestOrchestrator(&mockSource{grid: generateGrid(14)})
			opt := forecaster.NewDefaultOptions()
			opt.SeriesOptions.WeekendOptions.Enabled = td.weekends
			o.NewEngine = NewForecasterFactory(opt)

			_, err := o.Run(context.Background(), Request{Metric: Load, HistoricalDays: 14, HorizonDays: 1})
			require.Nil(t, err)

			var events []string
			for _, entry := range hook.AllEntries() {
				if entry.Message != "calendar effect" {
					continue
				}
				assert.Equal(t, "weekend", entry.Data["kind"])
				events = append(events, entry.Data["event"].(string))
			}
			assert.Equal(t, td.expected, events)
		})
	}
}

func TestRunClipsToWindow(t *testing.T) {
	grid := generateGrid(9)
	grid = append(grid, datasource.GridRecord{Datetime: testNow.Add(time.Hour), Value: 1000, Valid: true})
	src := &mockSource{grid: grid}
	o, _ := newTestOrchestrator(src)
	o.Now = func() time.Time { return testNow.Add(30 * time.Minute) }

	res, err := o.Run(context.Background(), Request{Metric: Load, HistoricalDays: 2, HorizonDays: 1})
	require.Nil(t, err)

	windowStart := testNow.Add(30*time.Minute).AddDate(0, 0, -2)
	windowEnd := testNow.Add(30 * time.Minute)
	assert.Equal(t, []time.Time{windowStart}, src.gridStarts)
	assert.Equal(t, []time.Time{windowEnd}, src.gridEnds)

	require.Len(t, res.Input, 47)
	for _, p := range res.Input {
		assert.False(t, p.T.Before(windowStart))
		assert.False(t, p.T.After(windowEnd))
	}
	assert.Equal(t, testNow.Add(-time.Hour), res.Input.End())
	assert.Equal(t, testNow, res.Forecast.Future()[0].DS)
}

func TestArtifactsRender(t *testing.T) {
	src := &mockSource{grid: generateGrid(2)}
	o, _ := newTestOrchestrator(src)

	res, err := o.Run(context.Background(), Request{Metric: Load, HistoricalDays: 2, HorizonDays: 1})
	require.Nil(t, err)

	var buf bytes.Buffer
	require.Nil(t, res.Charts.Render(&buf))
	assert.Contains(t, buf.String(), "echarts")
	assert.Contains(t, buf.String(), "Total Load")

	buf.Reset()
	require.Nil(t, Artifacts{}.Render(&buf))
}

type failingEngine struct{}

func (failingEngine) Fit(tf frame.TrainingFrame) error { return errUpstream }

func (failingEngine) Predict(t []time.Time, x map[string][]float64) (*forecaster.Results, error) {
	return nil, errUpstream
}

func (failingEngine) RegressorCoefficients() ([]frame.RegressorCoefficient, error) {
	return nil, errUpstream
}

func TestRunEngineFactory(t *testing.T) {
	src := &mockSource{grid: generateGrid(2)}
	o, _ := newTestOrchestrator(src)

	var built int
	o.NewEngine = func() (Engine, error) {
		built++
		return failingEngine{}, nil
	}
	_, err := o.Run(context.Background(), Request{Metric: Load, HistoricalDays: 2, HorizonDays: 1})
	assert.ErrorIs(t, err, errUpstream)
	assert.True(t, IsStage(err, StageFit))
	assert.Equal(t, 1, built)

	eng, err := NewForecasterFactory(nil)()
	require.Nil(t, err)
	_, err = eng.Predict(nil, nil)
	assert.ErrorIs(t, err, forecaster.ErrUntrained)
	_, err = eng.RegressorCoefficients()
	assert.ErrorIs(t, err, forecaster.ErrUntrained)
}
