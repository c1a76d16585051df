package feature

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	GrowthIntercept = "intercept"
	GrowthLinear    = "linear"
)

// Growth is a trend feature spanning the whole series
type Growth struct {
	Name string `json:"name"`
}

func NewGrowth(name string) *Growth {
	return &Growth{name}
}

func Intercept() *Growth {
	return NewGrowth(GrowthIntercept)
}

func Linear() *Growth {
	return NewGrowth(GrowthLinear)
}

// String returns the string representation of the growth feature
func (g Growth) String() string {
	return fmt.Sprintf("growth_%s", g.Name)
}

// Get returns the value of an arbitrary label and returns the value along with whether
// the label exists
func (g Growth) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return g.Name, true
	}
	return "", false
}

// Type returns the type of this feature
func (g Growth) Type() FeatureType {
	return FeatureTypeGrowth
}

// Decode converts the feature into a map of label values
func (g Growth) Decode() map[string]string {
	return map[string]string{"name": g.Name}
}

// UnmarshalJSON is the custom unmarshalling to convert a map[string]string
// to a growth feature
func (g *Growth) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	g.Name = labelStr.Name
	return nil
}

// Generate computes the growth feature from epoch seconds. The linear ramp is 0 at the
// training start and 1 at the training end so it extrapolates past the end.
func (g Growth) Generate(epoch []float64, trainStart, trainEnd time.Time) []float64 {
	out := make([]float64, len(epoch))
	switch g.Name {
	case GrowthIntercept:
		for i := range out {
			out[i] = 1.0
		}
	case GrowthLinear:
		start := float64(trainStart.UnixNano()) / 1e9
		span := trainEnd.Sub(trainStart).Seconds()
		if span <= 0 {
			return out
		}
		for i, e := range epoch {
			out[i] = (e - start) / span
		}
	}
	return out
}
