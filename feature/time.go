package feature

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Time is a raw time derived feature such as the unix epoch. It is not fit directly but
// used to derive seasonality and growth features.
type Time struct {
	Name string `json:"name"`
}

func NewTime(name string) *Time {
	return &Time{name}
}

func (t Time) String() string {
	return fmt.Sprintf("tfeat_%s", t.Name)
}

func (t Time) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return t.Name, true
	}
	return "", false
}

func (t Time) Type() FeatureType {
	return FeatureTypeTime
}

func (t Time) Decode() map[string]string {
	return map[string]string{"name": t.Name}
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	t.Name = labelStr.Name
	return nil
}

// Generate returns the unix epoch in seconds of each time point
func (t Time) Generate(tSeries []time.Time) []float64 {
	epoch := make([]float64, len(tSeries))
	for i, tPnt := range tSeries {
		epoch[i] = float64(tPnt.UnixNano()) / 1e9
	}
	return epoch
}
