package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aouyang1/grid-forecaster/datasource"
)

var t0 = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time {
	return t0.Add(d)
}

func TestNormalize(t *testing.T) {
	raw := []datasource.GridRecord{
		{Datetime: at(time.Hour), SubID: "Flanders", Value: 2, Valid: true},
		{Datetime: at(0), SubID: "Flanders", Value: 1, Valid: true},
		{Datetime: at(0), SubID: "Wallonia", Value: 4, Valid: true},
		{Datetime: at(time.Hour), SubID: "Wallonia", Valid: false},
		{Datetime: at(2 * time.Hour), SubID: "Wallonia", Valid: false},
		{Datetime: at(time.Hour), SubID: "Brussels", Value: 0.5, Valid: true},
	}

	testData := map[string]struct {
		strategy Strategy
		expected Series
	}{
		"sum sub series": {
			strategy: SumSubSeries,
			expected: Series{
				{T: at(0), Value: 5},
				{T: at(time.Hour), Value: 2.5},
			},
		},
		"pass through keeps last": {
			strategy: PassThrough,
			expected: Series{
				{T: at(0), Value: 4},
				{T: at(time.Hour), Value: 0.5},
			},
		},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, Normalize(raw, td.strategy))
		})
	}

	assert.Empty(t, Normalize(nil, PassThrough))
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := []datasource.GridRecord{
		{Datetime: at(2 * time.Hour), Value: 3, Valid: true},
		{Datetime: at(0), Value: 1, Valid: true},
	}
	first := Normalize(raw, SumSubSeries)
	again := make([]datasource.GridRecord, 0, len(first))
	for _, p := range first {
		again = append(again, datasource.GridRecord{Datetime: p.T, Value: p.Value, Valid: true})
	}
	assert.Equal(t, first, Normalize(again, SumSubSeries))
	assert.Equal(t, first, Normalize(again, PassThrough))
}

func TestResampleHourly(t *testing.T) {
	s := Series{
		{T: at(0), Value: 1},
		{T: at(15 * time.Minute), Value: 2},
		{T: at(30 * time.Minute), Value: 3},
		{T: at(45 * time.Minute), Value: 6},
		{T: at(3*time.Hour + 30*time.Minute), Value: 10},
	}
	expected := Series{
		{T: at(0), Value: 3},
		{T: at(3 * time.Hour), Value: 10},
	}
	res := ResampleHourly(s)
	assert.Equal(t, expected, res)
	assert.Equal(t, res, ResampleHourly(res))
	assert.Empty(t, ResampleHourly(nil))
}

func TestSeriesHelpers(t *testing.T) {
	s := Series{
		{T: at(0), Value: 1},
		{T: at(time.Hour), Value: 2},
		{T: at(2 * time.Hour), Value: 3},
	}
	assert.Equal(t, []time.Time{at(0), at(time.Hour), at(2 * time.Hour)}, s.Times())
	assert.Equal(t, []float64{1, 2, 3}, s.Values())
	assert.Equal(t, at(0), s.Start())
	assert.Equal(t, at(2*time.Hour), s.End())
	assert.Equal(t, Series{{T: at(time.Hour), Value: 2}, {T: at(2 * time.Hour), Value: 3}}, s.Window(at(30*time.Minute), at(3*time.Hour)))
	assert.Empty(t, s.Window(at(5*time.Hour), at(6*time.Hour)))

	var empty Series
	assert.True(t, empty.Start().IsZero())
	assert.True(t, empty.End().IsZero())
	assert.Equal(t, "sum_sub_series", SumSubSeries.String())
}
