package linearmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// singularTol is the smallest magnitude of an R diagonal entry treated as non-zero.
// Columns below it are rank deficient and get a zero coefficient.
const singularTol = 1e-12

// OLSOptions represents input options to run the OLS Regression
type OLSOptions struct {
	// FitIntercept adds a constant 1.0 feature as the first column if set to true
	FitIntercept bool `json:"fit_intercept"`

	// Ridge is an L2 penalty on every coefficient except the intercept
	Ridge float64 `json:"ridge"`
}

// Validate runs basic validation on OLS options
func (o *OLSOptions) Validate() (*OLSOptions, error) {
	if o == nil {
		o = NewDefaultOLSOptions()
	}
	if o.Ridge < 0 {
		return nil, ErrNegativePenalty
	}
	return o, nil
}

// NewDefaultOLSOptions returns a default set of OLS Regression options
func NewDefaultOLSOptions() *OLSOptions {
	return &OLSOptions{
		FitIntercept: true,
	}
}

// OLSRegression computes ordinary least squares using QR factorization. A ridge penalty is
// applied by augmenting the design matrix with sqrt(ridge) scaled identity rows.
type OLSRegression struct {
	opt       *OLSOptions
	coef      []float64
	intercept float64

	coefStdErr      []float64
	interceptStdErr float64
	trained         bool
}

// NewOLSRegression initializes an ordinary least squares model ready for fitting
func NewOLSRegression(opt *OLSOptions) (*OLSRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &OLSRegression{
		opt: opt,
	}, nil
}

// Fit the model according to the given training data
func (o *OLSRegression) Fit(x, y mat.Matrix) error {
	if o == nil || o.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, _ := x.Dims()

	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	design := o.design(x)
	_, n := design.Dims()
	if m < n && o.opt.Ridge == 0 {
		return fmt.Errorf("%d observations for %d features, %w", m, n, ErrUnderdetermined)
	}

	// stack the penalty rows under the observations, the intercept row stays zero
	rows := m
	if o.opt.Ridge > 0 {
		rows += n
	}
	a := mat.NewDense(rows, n, nil)
	a.Slice(0, m, 0, n).(*mat.Dense).Copy(design)
	if o.opt.Ridge > 0 {
		penalty := math.Sqrt(o.opt.Ridge)
		start := 0
		if o.opt.FitIntercept {
			start = 1
		}
		for j := start; j < n; j++ {
			a.Set(m+j, j, penalty)
		}
	}
	b := make([]float64, rows)
	mat.Col(b[:m], 0, y)

	qr := new(mat.QR)
	qr.Factorize(a)

	q := new(mat.Dense)
	r := new(mat.Dense)
	qr.QTo(q)
	qr.RTo(r)

	qtb := make([]float64, n)
	col := make([]float64, rows)
	for j := 0; j < n; j++ {
		mat.Col(col, j, q)
		qtb[j] = floats.Dot(col, b)
	}
	c := backSubstitute(r, qtb, n)

	stdErr := o.stdErr(design, b[:m], r, c)

	if o.opt.FitIntercept {
		o.intercept = c[0]
		o.coef = c[1:]
		o.interceptStdErr = stdErr[0]
		o.coefStdErr = stdErr[1:]
	} else {
		o.intercept = 0
		o.coef = c
		o.interceptStdErr = 0
		o.coefStdErr = stdErr
	}
	o.trained = true

	return nil
}

func (o *OLSRegression) design(x mat.Matrix) mat.Matrix {
	if !o.opt.FitIntercept {
		return x
	}
	m, n := x.Dims()
	withOnes := mat.NewDense(m, n+1, nil)
	for i := 0; i < m; i++ {
		withOnes.Set(i, 0, 1.0)
	}
	withOnes.Slice(0, m, 1, n+1).(*mat.Dense).Copy(x)
	return withOnes
}

// backSubstitute solves the upper triangular system r*c = b for the first n rows.
// Rank deficient columns are left at zero.
func backSubstitute(r mat.Matrix, b []float64, n int) []float64 {
	c := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		d := r.At(i, i)
		if math.Abs(d) < singularTol {
			continue
		}
		c[i] = b[i]
		for j := i + 1; j < n; j++ {
			c[i] -= c[j] * r.At(i, j)
		}
		c[i] /= d
	}
	return c
}

// stdErr computes the coefficient standard errors from sigma^2 * (R^T R)^-1 where sigma^2
// is the residual variance of the observations.
func (o *OLSRegression) stdErr(design mat.Matrix, y []float64, r mat.Matrix, c []float64) []float64 {
	m, n := design.Dims()
	se := make([]float64, n)
	dof := m - n
	if dof <= 0 {
		return se
	}

	var rss float64
	row := make([]float64, n)
	for i := 0; i < m; i++ {
		mat.Row(row, i, design)
		res := y[i] - floats.Dot(row, c)
		rss += res * res
	}
	sigma2 := rss / float64(dof)

	// column k of R^-1 solves R*z = e_k
	rinv := make([][]float64, n)
	e := make([]float64, n)
	for k := 0; k < n; k++ {
		e[k] = 1
		rinv[k] = backSubstitute(r, e, n)
		e[k] = 0
	}
	for j := 0; j < n; j++ {
		var sum float64
		for k := 0; k < n; k++ {
			sum += rinv[k][j] * rinv[k][j]
		}
		se[j] = math.Sqrt(sigma2 * sum)
	}
	return se
}

// Predict using the OLS model
func (o *OLSRegression) Predict(x mat.Matrix) ([]float64, error) {
	if o == nil || o.opt == nil {
		return nil, ErrNoOptions
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	if !o.trained {
		return nil, ErrUntrained
	}

	m, n := x.Dims()
	if n != len(o.coef) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, len(o.coef), ErrFeatureLenMismatch)
	}

	res := make([]float64, m)
	row := make([]float64, n)
	for i := 0; i < m; i++ {
		mat.Row(row, i, x)
		res[i] = o.intercept + floats.Dot(row, o.coef)
	}
	return res, nil
}

// Score computes the coefficient of determination of the prediction
func (o *OLSRegression) Score(x, y mat.Matrix) (float64, error) {
	if o == nil || o.opt == nil {
		return 0.0, ErrNoOptions
	}
	if x == nil {
		return 0.0, ErrNoDesignMatrix
	}
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}

	m, _ := x.Dims()
	ym, _ := y.Dims()
	if m != ym {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}

	res, err := o.Predict(x)
	if err != nil {
		return 0.0, err
	}

	ySlice := mat.Col(nil, 0, y)
	return stat.RSquaredFrom(res, ySlice, nil), nil
}

// Intercept returns the computed intercept if FitIntercept is set to true. Defaults to 0.0 if not set.
func (o *OLSRegression) Intercept() float64 {
	return o.intercept
}

// Coef returns a slice of the trained coefficients in the same order of the training feature Matrix by column.
func (o *OLSRegression) Coef() []float64 {
	c := make([]float64, len(o.coef))
	copy(c, o.coef)
	return c
}

// InterceptStdErr returns the standard error of the intercept
func (o *OLSRegression) InterceptStdErr() float64 {
	return o.interceptStdErr
}

// CoefStdErr returns the standard error of each coefficient in the same order as Coef
func (o *OLSRegression) CoefStdErr() []float64 {
	se := make([]float64, len(o.coefStdErr))
	copy(se, o.coefStdErr)
	return se
}
