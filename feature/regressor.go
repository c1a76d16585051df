package feature

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Regressor is an external covariate column such as a weather variable
type Regressor struct {
	Name string `json:"name"`
}

func NewRegressor(name string) *Regressor {
	return &Regressor{name}
}

func (r Regressor) String() string {
	return fmt.Sprintf("reg_%s", r.Name)
}

func (r Regressor) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return r.Name, true
	}
	return "", false
}

func (r Regressor) Type() FeatureType {
	return FeatureTypeRegressor
}

func (r Regressor) Decode() map[string]string {
	return map[string]string{"name": r.Name}
}

func (r *Regressor) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	r.Name = labelStr.Name
	return nil
}
