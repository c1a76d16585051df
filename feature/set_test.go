package feature

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSetSet(t *testing.T) {
	testData := map[string]struct {
		init     *Set
		f        Feature
		data     []float64
		expected *Set
	}{
		"initial set": {
			init: NewSet(),
			f:    NewEvent("holiday"),
			data: []float64{1, 2, 3, 4},
			expected: &Set{
				m:      4,
				set:    map[string][]float64{"event_holiday": {1, 2, 3, 4}},
				labels: []Feature{NewEvent("holiday")},
			},
		},
		"longer data pads existing": {
			init: NewSet().Set(NewEvent("holiday"), []float64{1, 2, 3, 4}),
			f:    NewRegressor("Temperature"),
			data: []float64{1, 2, 3, 4, 5, 6},
			expected: &Set{
				m: 6,
				set: map[string][]float64{
					"event_holiday":   {1, 2, 3, 4, 0, 0},
					"reg_Temperature": {1, 2, 3, 4, 5, 6},
				},
				labels: []Feature{NewEvent("holiday"), NewRegressor("Temperature")},
			},
		},
		"shorter data is padded": {
			init: NewSet().Set(NewEvent("holiday"), []float64{1, 2, 3, 4}),
			f:    NewRegressor("WindSpeed"),
			data: []float64{1, 2},
			expected: &Set{
				m: 4,
				set: map[string][]float64{
					"event_holiday": {1, 2, 3, 4},
					"reg_WindSpeed": {1, 2, 0, 0},
				},
				labels: []Feature{NewEvent("holiday"), NewRegressor("WindSpeed")},
			},
		},
		"override keeps order": {
			init: NewSet().Set(NewEvent("holiday"), []float64{1, 2, 3, 4}),
			f:    NewEvent("holiday"),
			data: []float64{5, 6, 7, 8},
			expected: &Set{
				m:      4,
				set:    map[string][]float64{"event_holiday": {5, 6, 7, 8}},
				labels: []Feature{NewEvent("holiday")},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			s := td.init.Set(td.f, td.data)
			assert.Equal(t, td.expected, s)
		})
	}
}

func TestSetDel(t *testing.T) {
	s := NewSet().
		Set(NewEvent("holiday"), []float64{1, 2}).
		Set(NewRegressor("CloudCover"), []float64{3, 4})

	s = s.Del(NewEvent("unknown"))
	assert.Equal(t, 2, s.Len())

	s = s.Del(NewEvent("holiday"))
	assert.Equal(t, []Feature{NewRegressor("CloudCover")}, s.Labels())

	s = s.Del(NewRegressor("CloudCover"))
	assert.Equal(t, NewSet(), s)
}

func TestSetUpdateAndFilter(t *testing.T) {
	s := NewSet().Set(Intercept(), []float64{1, 1, 1})
	other := NewSet().
		Set(NewSeasonality("daily", FourierCompSin, 1), []float64{0, 1, 0}).
		Set(NewRegressor("WindSpeed"), []float64{4, 5, 6})

	s.Update(other).Update(nil)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.Rows())

	seas := s.Filter(FeatureTypeSeasonality)
	assert.Equal(t, []Feature{NewSeasonality("daily", FourierCompSin, 1)}, seas.Labels())

	regs := s.Filter(FeatureTypeRegressor, FeatureTypeGrowth)
	assert.Equal(t, []Feature{Intercept(), NewRegressor("WindSpeed")}, regs.Labels())

	idx, exists := s.FeatureLabels().Index(NewRegressor("WindSpeed"))
	assert.True(t, exists)
	assert.Equal(t, 2, idx)
}

func TestMatrix(t *testing.T) {
	testData := map[string]struct {
		init      *Set
		intercept bool
		expected  *mat.Dense
	}{
		"nil": {nil, true, nil},
		"initialized empty": {
			init:      NewSet(),
			intercept: true,
			expected:  nil,
		},
		"with intercept": {
			init:      NewSet().Set(NewEvent("holiday"), []float64{1, 2, 3, 4}),
			intercept: true,
			expected: mat.NewDense(4, 2, []float64{
				1, 1,
				1, 2,
				1, 3,
				1, 4,
			}),
		},
		"without intercept": {
			init: NewSet().
				Set(NewEvent("holiday"), []float64{1, 2}).
				Set(NewRegressor("Temperature"), []float64{3, 4}),
			intercept: false,
			expected: mat.NewDense(2, 2, []float64{
				1, 3,
				2, 4,
			}),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := td.init.Matrix(td.intercept)
			if td.expected == nil {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			resR, resC := res.Dims()
			expR, expC := td.expected.Dims()
			assert.Equal(t, expR, resR, "matrix rows")
			assert.Equal(t, expC, resC, "matrix columns")

			for i := 0; i < resR; i++ {
				assert.Equal(t, td.expected.RawRowView(i), res.RawRowView(i), fmt.Sprintf("row: %d", i))
			}
		})
	}
}

func TestRemoveZeroOnlyFeatures(t *testing.T) {
	s := NewSet().
		Set(NewTime("valid"), []float64{1, 2, 3, 4}).
		Set(NewEvent("never"), []float64{0, 0, 0, 0}).
		Set(NewRegressor("constant"), []float64{0, 0, 0, 0})

	s = s.RemoveZeroOnlyFeatures()
	assert.Equal(t, []Feature{NewTime("valid")}, s.Labels())

	vals, exists := s.Get(NewTime("valid"))
	assert.True(t, exists)
	assert.Equal(t, []float64{1, 2, 3, 4}, vals)

	var nilSet *Set
	assert.Nil(t, nilSet.RemoveZeroOnlyFeatures())
}
