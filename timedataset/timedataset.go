package timedataset

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

var (
	ErrNoTrainingData       = errors.New("no training data")
	ErrNonMontonic          = errors.New("time feature is not monotonic")
	ErrDatasetLenMismatch   = errors.New("time feature has a different length than observations")
	ErrRegressorLenMismatch = errors.New("regressor has a different length than time feature")
	ErrCannotInferFreq      = errors.New("cannot infer frequency from time slice")
)

// TimeDataset represents a time series storing a slice of time points and values
// along with optional named regressor columns aligned to each time point.
type TimeDataset struct {
	T []time.Time
	Y []float64
	X map[string][]float64
}

// NewUnivariateDataset returns an instance of a TimeDataset given a time and value slice.
func NewUnivariateDataset(t []time.Time, y []float64) (*TimeDataset, error) {
	return NewMultivariateDataset(t, y, nil)
}

// NewMultivariateDataset returns a TimeDataset with regressor columns. Every regressor
// must have the same length as the time slice. Time must be strictly increasing.
func NewMultivariateDataset(t []time.Time, y []float64, x map[string][]float64) (*TimeDataset, error) {
	if len(y) == 0 {
		return nil, ErrNoTrainingData
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time feature has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrDatasetLenMismatch,
		)
	}
	for _, name := range slices.Sorted(maps.Keys(x)) {
		if len(x[name]) != len(t) {
			return nil, fmt.Errorf(
				"regressor %q has length of %d, but time has a length of %d, %w",
				name, len(x[name]), len(t), ErrRegressorLenMismatch,
			)
		}
	}

	for i := 1; i < len(t); i++ {
		if !t[i].After(t[i-1]) {
			return nil, fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMontonic)
		}
	}

	td := &TimeDataset{
		T: slices.Clone(t),
		Y: slices.Clone(y),
	}
	if len(x) > 0 {
		td.X = make(map[string][]float64, len(x))
		for name, col := range x {
			td.X[name] = slices.Clone(col)
		}
	}
	return td, nil
}

// Copy returns a deep copy of the dataset
func (td *TimeDataset) Copy() *TimeDataset {
	if td == nil {
		return nil
	}
	cp := &TimeDataset{
		T: slices.Clone(td.T),
		Y: slices.Clone(td.Y),
	}
	if td.X != nil {
		cp.X = make(map[string][]float64, len(td.X))
		for name, col := range td.X {
			cp.X[name] = slices.Clone(col)
		}
	}
	return cp
}

// Regressors returns the sorted regressor column names
func (td *TimeDataset) Regressors() []string {
	if td == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(td.X))
}

// Len returns the number of observations
func (td *TimeDataset) Len() int {
	if td == nil {
		return 0
	}
	return len(td.T)
}
