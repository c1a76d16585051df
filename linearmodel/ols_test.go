package linearmodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func testModel(t *testing.T, model Model, x, y mat.Matrix, intercept float64, coef []float64, tol float64) {
	err := model.Fit(x, y)
	require.Nil(t, err)

	assert.InDelta(t, intercept, model.Intercept(), tol, "intercept")

	c := model.Coef()
	assert.InDeltaSlice(t, coef, c, tol, "coefficients")

	r2, err := model.Score(x, y)
	require.Nil(t, err)
	assert.InDelta(t, 1.0, r2, tol, "score")
}

func toDense(rows [][]float64) *mat.Dense {
	m, n := len(rows), len(rows[0])
	d := mat.NewDense(m, n, nil)
	for i, row := range rows {
		d.SetRow(i, row)
	}
	return d
}

func TestOLSOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt      *OLSOptions
		err      error
		expected *OLSOptions
	}{
		"nil": {nil, nil, NewDefaultOLSOptions()},
		"valid": {
			&OLSOptions{FitIntercept: true, Ridge: 0.1}, nil,
			&OLSOptions{FitIntercept: true, Ridge: 0.1},
		},
		"negative ridge": {
			opt: &OLSOptions{Ridge: -1},
			err: ErrNegativePenalty,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt, err := td.opt.Validate()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, opt)
		})
	}
}

func TestOLSRegression(t *testing.T) {
	tol := 1e-5
	testData := map[string]struct {
		x         [][]float64
		y         []float64
		opt       *OLSOptions
		intercept float64
		coef      []float64
	}{
		"intercept": {
			x: [][]float64{
				{0, 0},
				{3, 5},
				{9, 20},
				{12, 6},
				{15, 10},
			},
			y:         []float64{2, 31, 109, 62, 87},
			intercept: 2.0,
			coef:      []float64{3.0, 4.0},
		},
		"no intercept": {
			x: [][]float64{
				{1, 0, 0},
				{1, 3, 5},
				{1, 9, 20},
				{1, 12, 6},
				{1, 15, 10},
			},
			y:         []float64{2, 31, 109, 62, 87},
			opt:       &OLSOptions{FitIntercept: false},
			intercept: 0.0,
			coef:      []float64{2.0, 3.0, 4.0},
		},
		"zero column": {
			x: [][]float64{
				{0, 0},
				{3, 0},
				{9, 0},
				{12, 0},
			},
			y:         []float64{1, 7, 19, 25},
			intercept: 1.0,
			coef:      []float64{2.0, 0.0},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			model, err := NewOLSRegression(td.opt)
			require.Nil(t, err)

			x := toDense(td.x)
			y := mat.NewDense(len(td.y), 1, td.y)
			testModel(t, model, x, y, td.intercept, td.coef, tol)
		})
	}
}

func TestOLSRidge(t *testing.T) {
	x := toDense([][]float64{{0}, {1}, {2}, {3}, {4}})
	y := mat.NewDense(5, 1, []float64{1, 3, 5, 7, 9})

	plain, err := NewOLSRegression(nil)
	require.NoError(t, err)
	require.NoError(t, plain.Fit(x, y))

	ridge, err := NewOLSRegression(&OLSOptions{FitIntercept: true, Ridge: 10})
	require.NoError(t, err)
	require.NoError(t, ridge.Fit(x, y))

	assert.InDelta(t, 2.0, plain.Coef()[0], 1e-9)
	assert.Less(t, ridge.Coef()[0], plain.Coef()[0])
	assert.Greater(t, ridge.Coef()[0], 0.0)

	// closed form ridge with an unpenalized intercept: beta = Sxy / (Sxx + lambda)
	assert.InDelta(t, 20.0/(10.0+10.0), ridge.Coef()[0], 1e-9)
}

func TestOLSUnderdetermined(t *testing.T) {
	x := toDense([][]float64{{1, 2, 3}})
	y := mat.NewDense(1, 1, []float64{1})

	model, err := NewOLSRegression(nil)
	require.NoError(t, err)
	assert.ErrorIs(t, model.Fit(x, y), ErrUnderdetermined)

	_, err = model.Predict(x)
	assert.ErrorIs(t, err, ErrUntrained)

	ridge, err := NewOLSRegression(&OLSOptions{FitIntercept: true, Ridge: 1})
	require.NoError(t, err)
	assert.NoError(t, ridge.Fit(x, y))
}

func TestOLSStdErr(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	noise := []float64{0.5, -0.3, 0.2, -0.6, 0.1, 0.4, -0.2, -0.1, 0.3, -0.3}
	ys := make([]float64, len(xs))
	for i := range xs {
		ys[i] = 1 + 2*xs[i] + noise[i]
	}

	model, err := NewOLSRegression(nil)
	require.NoError(t, err)

	x := mat.NewDense(len(xs), 1, xs)
	y := mat.NewDense(len(ys), 1, ys)
	require.NoError(t, model.Fit(x, y))

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	assert.InDelta(t, alpha, model.Intercept(), 1e-9)
	assert.InDelta(t, beta, model.Coef()[0], 1e-9)

	var rss, sxx float64
	mean := stat.Mean(xs, nil)
	for i := range xs {
		res := ys[i] - alpha - beta*xs[i]
		rss += res * res
		sxx += (xs[i] - mean) * (xs[i] - mean)
	}
	sigma2 := rss / float64(len(xs)-2)
	expectedSlope := math.Sqrt(sigma2 / sxx)
	expectedIntercept := math.Sqrt(sigma2 * (1.0/float64(len(xs)) + mean*mean/sxx))

	require.Len(t, model.CoefStdErr(), 1)
	assert.InDelta(t, expectedSlope, model.CoefStdErr()[0], 1e-9)
	assert.InDelta(t, expectedIntercept, model.InterceptStdErr(), 1e-9)
}

func TestOLSPredictMismatch(t *testing.T) {
	model, err := NewOLSRegression(nil)
	require.NoError(t, err)
	require.NoError(t, model.Fit(
		toDense([][]float64{{0}, {1}, {2}}),
		mat.NewDense(3, 1, []float64{0, 1, 2}),
	))

	_, err = model.Predict(toDense([][]float64{{0, 1}}))
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)

	_, err = model.Predict(nil)
	assert.ErrorIs(t, err, ErrNoDesignMatrix)
}
