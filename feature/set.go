package feature

import (
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Set holds the generated data of each feature keyed by the string representation of
// the feature. Labels keep insertion order which is also the column order of Matrix.
// All columns share the same length; shorter columns are zero padded.
type Set struct {
	m      int
	set    map[string][]float64
	labels []Feature
}

func NewSet() *Set {
	return &Set{
		set: make(map[string][]float64),
	}
}

// Len returns the number of features in the set
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.labels)
}

// Rows returns the number of observations per feature
func (s *Set) Rows() int {
	if s == nil {
		return 0
	}
	return s.m
}

// Set stores the data for a feature overriding any existing data for the same label
func (s *Set) Set(f Feature, data []float64) *Set {
	if s == nil {
		s = NewSet()
	}
	if s.set == nil {
		s.set = make(map[string][]float64)
	}

	if len(data) > s.m {
		s.m = len(data)
		for label, existing := range s.set {
			s.set[label] = pad(existing, s.m)
		}
	}

	label := f.String()
	if _, exists := s.set[label]; !exists {
		s.labels = append(s.labels, f)
	}
	s.set[label] = pad(data, s.m)
	return s
}

func pad(data []float64, m int) []float64 {
	if len(data) >= m {
		return data
	}
	out := make([]float64, m)
	copy(out, data)
	return out
}

// Get returns the data for a feature along with whether it exists
func (s *Set) Get(f Feature) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	data, exists := s.set[f.String()]
	return data, exists
}

// Del removes a feature from the set
func (s *Set) Del(f Feature) *Set {
	if s == nil {
		return nil
	}
	label := f.String()
	if _, exists := s.set[label]; !exists {
		return s
	}
	delete(s.set, label)
	s.labels = slices.DeleteFunc(s.labels, func(feat Feature) bool {
		return feat.String() == label
	})
	if len(s.labels) == 0 {
		return NewSet()
	}
	return s
}

// Update copies every feature of the other set into this set
func (s *Set) Update(other *Set) *Set {
	if s == nil {
		s = NewSet()
	}
	if other == nil {
		return s
	}
	for _, f := range other.labels {
		s.Set(f, other.set[f.String()])
	}
	return s
}

// Labels returns the features in insertion order
func (s *Set) Labels() []Feature {
	if s == nil {
		return nil
	}
	return slices.Clone(s.labels)
}

// FeatureLabels returns the features as a Labels index
func (s *Set) FeatureLabels() *Labels {
	return NewLabels(s.Labels())
}

// Filter returns a new set containing only the features of the given types
func (s *Set) Filter(types ...FeatureType) *Set {
	out := NewSet()
	if s == nil {
		return out
	}
	for _, f := range s.labels {
		if slices.Contains(types, f.Type()) {
			out.Set(f, s.set[f.String()])
		}
	}
	return out
}

// Matrix returns a matrix representation of the Set to be used with matrix methods.
// The matrix has m rows representing the number of observations and n columns representing
// the number of features with an optional leading column of ones.
func (s *Set) Matrix(intercept bool) *mat.Dense {
	if s == nil || len(s.labels) == 0 || s.m == 0 {
		return nil
	}

	n := len(s.labels)
	offset := 0
	if intercept {
		n += 1
		offset = 1
	}

	obs := make([]float64, s.m*n)
	for i := 0; i < s.m; i++ {
		if intercept {
			obs[n*i] = 1.0
		}
		for j, f := range s.labels {
			obs[n*i+j+offset] = s.set[f.String()][i]
		}
	}
	return mat.NewDense(s.m, n, obs)
}

// RemoveZeroOnlyFeatures drops every feature whose data is all zeros
func (s *Set) RemoveZeroOnlyFeatures() *Set {
	if s == nil {
		return nil
	}
	for _, f := range s.Labels() {
		zeros := true
		for _, v := range s.set[f.String()] {
			if v != 0 {
				zeros = false
				break
			}
		}
		if zeros {
			s = s.Del(f)
		}
	}
	return s
}
