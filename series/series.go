// Package series turns raw provider rows into a single time ordered series
package series

import (
	"slices"
	"sort"
	"time"

	"github.com/aouyang1/grid-forecaster/datasource"
)

// Strategy selects how the rows of one timestamp collapse into a single value
type Strategy int

const (
	// PassThrough keeps the last valid row of a timestamp
	PassThrough Strategy = iota
	// SumSubSeries sums the valid rows of every sub series, e.g. regions, at a timestamp
	SumSubSeries
)

func (s Strategy) String() string {
	switch s {
	case PassThrough:
		return "pass_through"
	case SumSubSeries:
		return "sum_sub_series"
	}
	return "unknown"
}

// Point is a single observation of a series
type Point struct {
	T     time.Time `json:"datetime"`
	Value float64   `json:"value"`
}

// Series is a slice of points sorted ascending by time
type Series []Point

// Normalize collapses the raw rows into one point per distinct timestamp sorted ascending.
// Rows with a null value contribute nothing.
func Normalize(raw []datasource.GridRecord, strategy Strategy) Series {
	values := make(map[time.Time]float64)
	order := make([]time.Time, 0, len(raw))
	for _, rec := range raw {
		if !rec.Valid {
			continue
		}
		prev, exists := values[rec.Datetime]
		if !exists {
			order = append(order, rec.Datetime)
		}
		switch strategy {
		case SumSubSeries:
			values[rec.Datetime] = prev + rec.Value
		default:
			values[rec.Datetime] = rec.Value
		}
	}

	sort.Slice(order, func(i, j int) bool {
		return order[i].Before(order[j])
	})
	s := make(Series, 0, len(order))
	for _, t := range order {
		s = append(s, Point{T: t, Value: values[t]})
	}
	return s
}

// ResampleHourly averages all points within each hour, stamping the bucket at the top of the
// hour. Hours without points are absent.
func ResampleHourly(s Series) Series {
	type bucket struct {
		sum float64
		cnt int
	}
	buckets := make(map[time.Time]*bucket)
	order := make([]time.Time, 0, len(s))
	for _, p := range s {
		h := p.T.Truncate(time.Hour)
		b, exists := buckets[h]
		if !exists {
			b = &bucket{}
			buckets[h] = b
			order = append(order, h)
		}
		b.sum += p.Value
		b.cnt++
	}

	sort.Slice(order, func(i, j int) bool {
		return order[i].Before(order[j])
	})
	out := make(Series, 0, len(order))
	for _, h := range order {
		b := buckets[h]
		out = append(out, Point{T: h, Value: b.sum / float64(b.cnt)})
	}
	return out
}

// Times returns the time of every point
func (s Series) Times() []time.Time {
	t := make([]time.Time, len(s))
	for i, p := range s {
		t[i] = p.T
	}
	return t
}

// Values returns the value of every point
func (s Series) Values() []float64 {
	v := make([]float64, len(s))
	for i, p := range s {
		v[i] = p.Value
	}
	return v
}

// Start returns the first time of the series or the zero time if empty
func (s Series) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].T
}

// End returns the last time of the series or the zero time if empty
func (s Series) End() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].T
}

// Window returns the points within [start, end]
func (s Series) Window(start, end time.Time) Series {
	lo := sort.Search(len(s), func(i int) bool { return !s[i].T.Before(start) })
	hi := sort.Search(len(s), func(i int) bool { return s[i].T.After(end) })
	if lo >= hi {
		return Series{}
	}
	return slices.Clone(s[lo:hi])
}
