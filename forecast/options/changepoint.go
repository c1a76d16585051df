package options

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/grid-forecaster/feature"
	"github.com/aouyang1/grid-forecaster/forecast/util"
)

const (
	DefaultAutoNumChangepoints = 10
	DefaultAutoRange           = 0.8
)

// Changepoint describes a point in time that will change the ongoing trend. This will
// include a bias and optionally a growth feature.
type Changepoint struct {
	T    time.Time `json:"time"`
	Name string    `json:"name"`
}

func NewChangepoint(name string, t time.Time) Changepoint {
	return Changepoint{t, name}
}

// ChangepointOptions configures the changepoint fit to either use auto-detection
// by evenly placing N changepoints in the first AutoRange fraction of the training window
// or a known list of changepoints.
type ChangepointOptions struct {
	Changepoints        []Changepoint `json:"changepoints"`
	EnableGrowth        bool          `json:"enable_growth"`
	Auto                bool          `json:"auto"`
	AutoNumChangepoints int           `json:"auto_num_changepoints"`
	AutoRange           float64       `json:"auto_range"`
}

func (c ChangepointOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	noCfg := " None"
	if len(c.Changepoints) > 0 {
		noCfg = ""
		if _, err := fmt.Fprintf(tbl, "%s%sName\tDatetime\t\n", prefix, util.IndentExpand(indent, indentGrowth+1)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s%sChangepoints:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg); err != nil {
		return err
	}
	for _, chpt := range c.Changepoints {
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			chpt.Name, chpt.T.Format(time.DateTime)); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

// NewDefaultChangepointOptions generates a set of default changepoint options
func NewDefaultChangepointOptions() ChangepointOptions {
	return ChangepointOptions{
		Auto:                false,
		AutoNumChangepoints: DefaultAutoNumChangepoints,
		AutoRange:           DefaultAutoRange,
		EnableGrowth:        true,
	}
}

// GenerateAutoChangepoints replaces the changepoints with N evenly spaced points after the
// first training point and within the auto range of the training window.
func (c *ChangepointOptions) GenerateAutoChangepoints(t []time.Time) []Changepoint {
	if !c.Auto || len(t) < 2 {
		return c.Changepoints
	}

	if c.AutoNumChangepoints <= 0 {
		c.AutoNumChangepoints = DefaultAutoNumChangepoints
	}
	if c.AutoRange <= 0 || c.AutoRange > 1 {
		c.AutoRange = DefaultAutoRange
	}
	n := c.AutoNumChangepoints

	minTime, maxTime := t[0], t[len(t)-1]
	window := time.Duration(float64(maxTime.Sub(minTime)) * c.AutoRange)
	step := window / time.Duration(n)
	if step <= 0 {
		return c.Changepoints
	}

	chpts := make([]Changepoint, 0, n)
	for i := 1; i <= n; i++ {
		chpts = append(chpts, NewChangepoint("auto_"+strconv.Itoa(i-1), minTime.Add(step*time.Duration(i))))
	}

	c.Changepoints = chpts
	return chpts
}

// GenerateFeatures computes the bias and slope features of every changepoint up to the
// training end time. Bias is 1 from the changepoint onwards and slope ramps from 0 at the
// changepoint to 1 at the training end.
func (c ChangepointOptions) GenerateFeatures(t []time.Time, trainStartTime, trainEndTime time.Time) *feature.Set {
	feat := feature.NewSet()
	for i, chpt := range c.Changepoints {
		// changepoints outside the training window would only produce constant features
		if !chpt.T.After(trainStartTime) || !chpt.T.Before(trainEndTime) {
			continue
		}

		name := strconv.Itoa(i)
		if chpt.Name != "" {
			name = chpt.Name
		}

		delta := trainEndTime.Sub(chpt.T).Seconds()
		bias := make([]float64, len(t))
		var growth []float64
		if c.EnableGrowth {
			growth = make([]float64, len(t))
		}
		for j, tPnt := range t {
			if tPnt.Before(chpt.T) {
				continue
			}
			bias[j] = 1.0
			if c.EnableGrowth {
				growth[j] = tPnt.Sub(chpt.T).Seconds() / delta
			}
		}

		feat.Set(feature.NewChangepoint(name, feature.ChangepointCompBias), bias)
		if c.EnableGrowth {
			feat.Set(feature.NewChangepoint(name, feature.ChangepointCompSlope), growth)
		}
	}
	return feat
}
