package timedataset

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateT returns n points at the given interval ending just before the hour of now.
// Points are expressed in UTC so they behave like naive wall-clock timestamps.
func GenerateT(n int, interval time.Duration, nowFunc func() time.Time) []time.Time {
	t := make([]time.Time, 0, n)
	ct := nowFunc().UTC().Truncate(time.Hour).Add(-time.Duration(n) * interval)
	for i := 0; i < n; i++ {
		t = append(t, ct.Add(interval*time.Duration(i)))
	}
	return t
}

type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

func (s Series) Scale(c float64) Series {
	floats.Scale(c, s)
	return s
}

func (s Series) MaskWithWeekend(t []time.Time) Series {
	for i := range s {
		switch t[i].Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			s[i] = 0.0
		}
	}
	return s
}

func GenerateConstY(n int, val float64) Series {
	y := make([]float64, n)
	floats.AddConst(val, y)
	return Series(y)
}

func GenerateWaveY(t []time.Time, amp, periodSec, order, timeOffset float64) Series {
	y := make([]float64, 0, len(t))
	for _, tPnt := range t {
		val := amp * math.Sin(2.0*math.Pi*order/periodSec*(float64(tPnt.Unix())+timeOffset))
		y = append(y, val)
	}
	return Series(y)
}

// GenerateLinearY returns a ramp growing by slope per hour from the first point
func GenerateLinearY(t []time.Time, slope float64) Series {
	y := make([]float64, len(t))
	if len(t) == 0 {
		return Series(y)
	}
	for i, tPnt := range t {
		y[i] = slope * tPnt.Sub(t[0]).Hours()
	}
	return Series(y)
}

// GenerateNoise returns normally distributed noise scaled by noiseScale. A nil source
// falls back to the global generator.
func GenerateNoise(n int, noiseScale float64, src *rand.Rand) Series {
	y := make([]float64, n)
	for i := range y {
		if src == nil {
			y[i] = rand.NormFloat64() * noiseScale
			continue
		}
		y[i] = src.NormFloat64() * noiseScale
	}
	return Series(y)
}
