package feature

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

type ChangepointComp string

const (
	ChangepointCompBias  ChangepointComp = "bias"
	ChangepointCompSlope ChangepointComp = "slope"
)

// Changepoint is a jump (bias) or trend change (slope) starting at a point in time
type Changepoint struct {
	Name            string          `json:"name"`
	ChangepointComp ChangepointComp `json:"changepoint_component"`
}

func NewChangepoint(name string, comp ChangepointComp) *Changepoint {
	return &Changepoint{name, comp}
}

func (c Changepoint) String() string {
	return fmt.Sprintf("chpnt_%s_%s", c.Name, c.ChangepointComp)
}

func (c Changepoint) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return c.Name, true
	case "changepoint_component":
		return string(c.ChangepointComp), true
	}
	return "", false
}

func (c Changepoint) Type() FeatureType {
	return FeatureTypeChangepoint
}

func (c Changepoint) Decode() map[string]string {
	return map[string]string{
		"name":                  c.Name,
		"changepoint_component": string(c.ChangepointComp),
	}
}

func (c *Changepoint) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name            string          `json:"name"`
		ChangepointComp ChangepointComp `json:"changepoint_component"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	c.Name = labelStr.Name
	c.ChangepointComp = labelStr.ChangepointComp
	return nil
}
