package timedataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnivariateDataset(t *testing.T) {
	testData := map[string]struct {
		t        []time.Time
		y        []float64
		expected *TimeDataset
		err      error
	}{
		"no training data": {
			err: ErrNoTrainingData,
		},
		"length mismatch": {
			y:   []float64{1},
			err: ErrDatasetLenMismatch,
		},
		"non increasing time": {
			t: []time.Time{
				time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			y:   []float64{1, 2},
			err: ErrNonMontonic,
		},
		"duplicate time": {
			t: []time.Time{
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			y:   []float64{1, 2},
			err: ErrNonMontonic,
		},
		"valid": {
			t: []time.Time{
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
			},
			y: []float64{1, 2},
			expected: &TimeDataset{
				T: []time.Time{
					time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
					time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
				},
				Y: []float64{1, 2},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			ds, err := NewUnivariateDataset(td.t, td.y)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, ds)
		})
	}
}

func TestNewMultivariateDataset(t *testing.T) {
	tSeries := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}

	_, err := NewMultivariateDataset(tSeries, []float64{1, 2}, map[string][]float64{
		"Temperature": {3},
	})
	assert.ErrorIs(t, err, ErrRegressorLenMismatch)

	x := map[string][]float64{
		"WindSpeed":   {5, 6},
		"Temperature": {3, 4},
	}
	ds, err := NewMultivariateDataset(tSeries, []float64{1, 2}, x)
	require.NoError(t, err)
	assert.Equal(t, []string{"Temperature", "WindSpeed"}, ds.Regressors())
	assert.Equal(t, 2, ds.Len())

	// input columns are copied
	x["Temperature"][0] = 100
	assert.Equal(t, []float64{3, 4}, ds.X["Temperature"])
}

func TestCopy(t *testing.T) {
	tSeries := []time.Time{
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	ds, err := NewMultivariateDataset(tSeries, []float64{0, 1}, map[string][]float64{"CloudCover": {10, 20}})
	require.NoError(t, err)

	nextDs := ds.Copy()
	require.Equal(t, ds, nextDs)

	ds.X["CloudCover"][1] = 0
	ds.T = []time.Time{
		time.Date(1970, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 4, 0, 0, 0, 0, time.UTC),
	}
	require.NotEqual(t, nextDs, ds)
	assert.Equal(t, []float64{10, 20}, nextDs.X["CloudCover"])

	var nilDs *TimeDataset
	assert.Nil(t, nilDs.Copy())
	assert.Equal(t, 0, nilDs.Len())
}
