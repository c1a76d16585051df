package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectOutliers(t *testing.T) {
	testData := map[string]struct {
		y        []float64
		expected []int
	}{
		"empty": {
			y:        nil,
			expected: nil,
		},
		"no outliers": {
			y:        []float64{1, 2, 3, 2, 1, 2, 3, 2},
			expected: nil,
		},
		"single spike": {
			y:        []float64{1, 2, 1, 2, 1, 100, 2, 1, 2, 1},
			expected: []int{5},
		},
		"nan ignored": {
			y:        []float64{1, 2, math.NaN(), 2, 1, -100, 2, 1, 2, 1},
			expected: []int{5},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := DetectOutliers(td.y, 0.25, 0.75, 1.5)
			assert.Equal(t, td.expected, res)
		})
	}
}

func TestRollingStdDev(t *testing.T) {
	_, err := RollingStdDev([]float64{1, 2, 3}, 1, 1)
	assert.ErrorIs(t, err, ErrWindowTooSmall)

	_, err = RollingStdDev([]float64{1, 2, 3}, 4, 1)
	assert.ErrorIs(t, err, ErrWindowTooLarge)

	res, err := RollingStdDev([]float64{1, 3, 1, 3, 5}, 2, 2.0)
	require.NoError(t, err)
	require.Len(t, res, 4)

	// sample stddev of a pair {a, b} is |a-b|/sqrt(2)
	expected := []float64{
		2 * 2 / math.Sqrt2,
		2 * 2 / math.Sqrt2,
		2 * 2 / math.Sqrt2,
		2 * 2 / math.Sqrt2,
	}
	assert.InDeltaSlice(t, expected, res, 1e-9)

	res, err = RollingStdDev([]float64{math.NaN(), math.NaN(), 1, 2}, 2, 1.0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res[0]))
	assert.True(t, math.IsNaN(res[1]))
	assert.InDelta(t, 1/math.Sqrt2, res[2], 1e-9)
}

func TestStandardize(t *testing.T) {
	center, scale := Standardize([]float64{2, 4, 6})
	assert.InDelta(t, 4.0, center, 1e-9)
	assert.InDelta(t, 2.0, scale, 1e-9)

	center, scale = Standardize([]float64{5, 5, 5})
	assert.InDelta(t, 5.0, center, 1e-9)
	assert.Equal(t, 1.0, scale)

	center, scale = Standardize(nil)
	assert.Equal(t, 0.0, center)
	assert.Equal(t, 1.0, scale)
}
