// Package feature defines the typed labels of every column in a forecast design matrix
// and a Set to hold the generated column data.
package feature

type FeatureType int

const (
	FeatureTypeChangepoint FeatureType = iota
	FeatureTypeSeasonality
	FeatureTypeTime
	FeatureTypeGrowth
	FeatureTypeEvent
	FeatureTypeRegressor
)

func (f FeatureType) String() string {
	switch f {
	case FeatureTypeChangepoint:
		return "changepoint"
	case FeatureTypeSeasonality:
		return "seasonality"
	case FeatureTypeTime:
		return "time"
	case FeatureTypeGrowth:
		return "growth"
	case FeatureTypeEvent:
		return "event"
	case FeatureTypeRegressor:
		return "regressor"
	}
	return "unknown"
}

// Feature is a label describing a single column of the design matrix
type Feature interface {
	String() string
	Get(string) (string, bool)
	Type() FeatureType
	Decode() map[string]string
}
