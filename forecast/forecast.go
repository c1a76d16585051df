package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aouyang1/grid-forecaster/feature"
	"github.com/aouyang1/grid-forecaster/forecast/options"
	"github.com/aouyang1/grid-forecaster/linearmodel"
	"github.com/aouyang1/grid-forecaster/stats"
	"github.com/aouyang1/grid-forecaster/timedataset"
)

var (
	ErrUninitializedForecast    = errors.New("uninitialized forecast")
	ErrInsufficientTrainingData = errors.New("insufficient training data after removing Nans")
	ErrNoModelCoefficients      = errors.New("no model coefficients from fit")
	ErrUntrainedForecast        = errors.New("forecast has not been trained yet")
)

// CoefIntervalZ is the z-score of the 95% interval reported around regressor coefficients
const CoefIntervalZ = 1.959964

// Forecast represents a single forecast model of a time series. This is a linear model
// fit by ridge regularized least squares. The series is decomposed into an intercept, a
// trend (growth and changepoints), seasonal components, events and external regressors.
type Forecast struct {
	opt    *options.Options
	scores *Scores // score calculations after training

	// model coefficients
	fLabels *feature.Labels

	trainStartTime time.Time
	trainEndTime   time.Time
	regScales      []options.RegressorScale

	residual        []float64
	trainComponents Components

	coef       []float64
	coefStdErr []float64
	intercept  float64
	trained    bool
}

// New creates a new forecast instance with the given options. If none are provided, a default
// is used. The options are copied since fitting adapts them to the training data.
func New(opt *options.Options) (*Forecast, error) {
	return &Forecast{opt: opt.Copy()}, nil
}

// NewFromModel creates a new forecast instance given a forecast Model to initialize. This
// instance can be used for inference immediately and does not need to be trained again.
func NewFromModel(model Model) (*Forecast, error) {
	labels, err := model.Weights.FeatureLabels()
	if err != nil {
		return nil, fmt.Errorf("unable to decode feature labels, %w", err)
	}

	f := &Forecast{
		opt:            model.Options.Copy(),
		fLabels:        feature.NewLabels(labels),
		trainStartTime: model.TrainStartTime,
		trainEndTime:   model.TrainEndTime,
		regScales:      append([]options.RegressorScale(nil), model.RegressorScales...),
		intercept:      model.Weights.Intercept,
		coef:           model.Weights.Coefficients(),
		coefStdErr:     model.Weights.StdErrs(),
		scores:         model.Scores,
		trained:        true,
	}
	return f, nil
}

func (f *Forecast) generateFeatures(t []time.Time, x map[string][]float64) (*feature.Set, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}

	tFeat, feat := f.opt.GenerateTimeFeatures(t, f.trainStartTime, f.trainEndTime)

	seasFeat, err := f.opt.GenerateFourierFeatures(tFeat)
	if err != nil {
		return nil, fmt.Errorf("unable to generate seasonality features, %w", err)
	}
	feat.Update(seasFeat)

	feat.Update(f.opt.ChangepointOptions.GenerateFeatures(t, f.trainStartTime, f.trainEndTime))
	feat.Update(f.opt.GenerateEventFeatures(t))

	regFeat, err := f.opt.GenerateRegressorFeatures(len(t), x, f.regScales)
	if err != nil {
		return nil, fmt.Errorf("unable to generate regressor features, %w", err)
	}
	feat.Update(regFeat)

	return feat, nil
}

// Fit takes the input training data and fits a forecast model for possible changepoints,
// seasonal components, events, regressors and intercept. x holds one column per regressor
// configured in the options and may be nil for a univariate fit.
func (f *Forecast) Fit(t []time.Time, y []float64, x map[string][]float64) error {
	if f == nil {
		return ErrUninitializedForecast
	}

	trainingData, err := timedataset.NewMultivariateDataset(t, y, x)
	if err != nil {
		return fmt.Errorf("unable to create training dataset, %w", err)
	}
	for _, name := range f.opt.Regressors {
		if _, exists := trainingData.X[name]; !exists {
			return fmt.Errorf("%q not in training data, %w", name, options.ErrMissingRegressor)
		}
	}

	trainingT, trainingY, trainingX := dropNaNs(trainingData, f.opt.Regressors)
	if len(trainingT) <= 1 {
		return ErrInsufficientTrainingData
	}

	tSlice := timedataset.TimeSlice(trainingT)
	f.trainStartTime = tSlice.StartTime()
	f.trainEndTime = tSlice.EndTime()
	freq, err := tSlice.EstimateFreq()
	if err != nil {
		return fmt.Errorf("unable to estimate training frequency, %w", err)
	}

	f.opt.SeasonalityOptions = f.opt.SeasonalityOptions.Active(freq, tSlice.Span())
	f.opt.ChangepointOptions.GenerateAutoChangepoints(trainingT)

	f.regScales = make([]options.RegressorScale, 0, len(f.opt.Regressors))
	for _, name := range f.opt.Regressors {
		center, scale := stats.Standardize(trainingX[name])
		f.regScales = append(f.regScales, options.RegressorScale{Name: name, Center: center, Scale: scale})
	}

	feat, err := f.generateFeatures(trainingT, trainingX)
	if err != nil {
		return err
	}
	feat = feat.RemoveZeroOnlyFeatures()
	f.fLabels = feat.FeatureLabels()

	// scale the target so the regularization strength does not depend on its magnitude
	yScale := floats.Max(absAll(trainingY))
	if yScale == 0 {
		yScale = 1
	}
	scaledY := make([]float64, len(trainingY))
	floats.ScaleTo(scaledY, 1/yScale, trainingY)

	model, err := linearmodel.NewOLSRegression(&linearmodel.OLSOptions{
		FitIntercept: true,
		Ridge:        f.opt.Regularization,
	})
	if err != nil {
		return fmt.Errorf("unable to initialize linear model, %w", err)
	}

	var design mat.Matrix = feat.Matrix(false)
	if design == nil {
		// intercept only model
		design = mat.NewDense(len(trainingT), 1, nil)
	}
	if err := model.Fit(design, mat.NewDense(len(scaledY), 1, scaledY)); err != nil {
		return fmt.Errorf("unable to fit linear model, %w", err)
	}

	f.intercept = model.Intercept() * yScale
	f.coef = model.Coef()
	f.coefStdErr = model.CoefStdErr()
	if f.fLabels.Len() == 0 {
		f.coef = nil
		f.coefStdErr = nil
	}
	floats.Scale(yScale, f.coef)
	floats.Scale(yScale, f.coefStdErr)
	f.trained = true

	// use input training to include NaNs
	predicted, comp, err := f.Predict(trainingData.T, trainingData.X)
	if err != nil {
		return err
	}
	f.trainComponents = comp

	scores, err := NewScores(predicted, trainingData.Y)
	if err != nil {
		return err
	}
	f.scores = scores

	residual := make([]float64, len(trainingData.T))
	floats.SubTo(residual, trainingData.Y, predicted)
	f.residual = residual

	return nil
}

func absAll(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = math.Abs(v)
	}
	return out
}

// dropNaNs removes every observation where the target or a regressor is NaN
func dropNaNs(td *timedataset.TimeDataset, regressors []string) ([]time.Time, []float64, map[string][]float64) {
	t := make([]time.Time, 0, len(td.T))
	y := make([]float64, 0, len(td.Y))
	x := make(map[string][]float64, len(regressors))
	for _, name := range regressors {
		x[name] = make([]float64, 0, len(td.T))
	}

	for i := range td.T {
		if math.IsNaN(td.Y[i]) {
			continue
		}
		valid := true
		for _, name := range regressors {
			if math.IsNaN(td.X[name][i]) {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		t = append(t, td.T[i])
		y = append(y, td.Y[i])
		for _, name := range regressors {
			x[name] = append(x[name], td.X[name][i])
		}
	}
	return t, y, x
}

// Predict takes a slice of times in any order along with the regressor values at those
// times and produces the predicted value for those times given a pre-trained model.
func (f *Forecast) Predict(t []time.Time, x map[string][]float64) ([]float64, Components, error) {
	if f == nil {
		return nil, Components{}, ErrUninitializedForecast
	}

	if !f.trained {
		return nil, Components{}, ErrUntrainedForecast
	}

	feat, err := f.generateFeatures(t, x)
	if err != nil {
		return nil, Components{}, err
	}

	comp := Components{
		Trend:       f.runInference(feat.Filter(feature.FeatureTypeGrowth, feature.FeatureTypeChangepoint), len(t), true),
		Seasonality: f.runInference(feat.Filter(feature.FeatureTypeSeasonality), len(t), false),
		Event:       f.runInference(feat.Filter(feature.FeatureTypeEvent), len(t), false),
		Regressor:   f.runInference(feat.Filter(feature.FeatureTypeRegressor), len(t), false),
	}

	res := make([]float64, len(t))
	floats.Add(res, comp.Trend)
	floats.Add(res, comp.Seasonality)
	floats.Add(res, comp.Event)
	floats.Add(res, comp.Regressor)
	return res, comp, nil
}

// runInference sums the weighted features that were part of the fit. Features unknown to
// the model, e.g. a holiday never seen in training, contribute nothing.
func (f *Forecast) runInference(x *feature.Set, n int, withIntercept bool) []float64 {
	out := make([]float64, n)
	if withIntercept {
		floats.AddConst(f.intercept, out)
	}
	for _, label := range x.Labels() {
		wIdx, exists := f.fLabels.Index(label)
		if !exists {
			continue
		}
		data, _ := x.Get(label)
		floats.AddScaled(out, f.coef[wIdx], data)
	}
	return out
}

// FeatureLabels returns the slice of feature labels in the order of the coefficients
func (f *Forecast) FeatureLabels() []feature.Feature {
	if f == nil {
		return nil
	}
	return f.fLabels.Labels()
}

// Coefficients returns a forecast model map of coefficients keyed by the string
// representation of each feature label
func (f *Forecast) Coefficients() (map[string]float64, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}

	labels := f.fLabels.Labels()
	if len(labels) == 0 || len(f.coef) == 0 {
		return nil, ErrNoModelCoefficients
	}
	coef := make(map[string]float64, len(f.coef))
	for i, c := range f.coef {
		coef[labels[i].String()] = c
	}
	return coef, nil
}

// Intercept returns the intercept of the forecast model
func (f *Forecast) Intercept() float64 {
	if f == nil {
		return 0
	}
	return f.intercept
}

// RegressorCoefficient is the effect of one unit of a regressor on the series
type RegressorCoefficient struct {
	Name      string  `json:"regressor"`
	Center    float64 `json:"center"`
	Coef      float64 `json:"coef"`
	CoefLower float64 `json:"coef_lower"`
	CoefUpper float64 `json:"coef_upper"`
}

// RegressorCoefficients returns the coefficient of every regressor expressed per unit of the
// raw regressor along with a 95% interval from the coefficient standard error. A regressor
// without a coefficient, e.g. a constant column, has an effect of zero.
func (f *Forecast) RegressorCoefficients() ([]RegressorCoefficient, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}
	if !f.trained {
		return nil, ErrUntrainedForecast
	}

	res := make([]RegressorCoefficient, 0, len(f.regScales))
	for _, scale := range f.regScales {
		rc := RegressorCoefficient{Name: scale.Name, Center: scale.Center}
		if idx, exists := f.fLabels.Index(feature.NewRegressor(scale.Name)); exists {
			rc.Coef = f.coef[idx] / scale.Scale
			var se float64
			if idx < len(f.coefStdErr) {
				se = f.coefStdErr[idx] / scale.Scale
			}
			rc.CoefLower = rc.Coef - CoefIntervalZ*se
			rc.CoefUpper = rc.Coef + CoefIntervalZ*se
		}
		res = append(res, rc)
	}
	return res, nil
}

// EventCoefficient is the bias a calendar event adds to the series
type EventCoefficient struct {
	Name string            `json:"event"`
	Kind feature.EventKind `json:"kind"`
	Coef float64           `json:"coef"`
}

// EventCoefficients returns the fitted bias of every holiday, weekend and custom event in
// coefficient order
func (f *Forecast) EventCoefficients() ([]EventCoefficient, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}
	if !f.trained {
		return nil, ErrUntrainedForecast
	}
	events, pos := f.fLabels.Events()
	res := make([]EventCoefficient, 0, len(events))
	for i, ev := range events {
		res = append(res, EventCoefficient{Name: ev.Name, Kind: ev.Kind(), Coef: f.coef[pos[i]]})
	}
	return res, nil
}

// Regressors returns the names of the regressors the model was fit with
func (f *Forecast) Regressors() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.regScales))
	for _, scale := range f.regScales {
		names = append(names, scale.Name)
	}
	return names
}

// Model returns the serializeable format of the forecast model composing of the
// forecast options, intercept, coefficients with their feature labels, and the
// model fit scores
func (f *Forecast) Model() (Model, error) {
	if f == nil {
		return Model{}, ErrUninitializedForecast
	}
	if !f.trained {
		return Model{}, ErrUntrainedForecast
	}

	fws := make([]FeatureWeight, 0, len(f.coef))
	labels := f.fLabels.Labels()
	for i, c := range f.coef {
		fw := NewFeatureWeight(labels[i], c)
		if i < len(f.coefStdErr) {
			fw.StdErr = f.coefStdErr[i]
		}
		fws = append(fws, fw)
	}
	m := Model{
		TrainStartTime:  f.trainStartTime,
		TrainEndTime:    f.trainEndTime,
		Options:         f.opt.Copy(),
		Scores:          f.scores,
		RegressorScales: append([]options.RegressorScale(nil), f.regScales...),
		Weights: Weights{
			Intercept: f.intercept,
			Coef:      fws,
		},
	}
	return m, nil
}

// ModelEq returns a string representation of the model linear equation in the format of
// y ~ b + m1x1 + m2x2 + ...
func (f *Forecast) ModelEq() (string, error) {
	if f == nil {
		return "", ErrUninitializedForecast
	}

	coef, err := f.Coefficients()
	if err != nil {
		return "", err
	}

	eq := fmt.Sprintf("y ~ %.2f", f.Intercept())
	for _, label := range f.fLabels.Labels() {
		w := coef[label.String()]
		if w == 0 {
			continue
		}
		eq += fmt.Sprintf("%+.2f*%s", w, label)
	}
	return eq, nil
}

// Scores returns the fit scores for evaluating how well the resulting model
// fit the training data
func (f *Forecast) Scores() Scores {
	if f == nil || f.scores == nil {
		return Scores{}
	}
	return *f.scores
}

// Residuals returns a slice of values representing the difference between the
// training data and the fit data
func (f *Forecast) Residuals() []float64 {
	if f == nil {
		return nil
	}
	res := make([]float64, len(f.residual))
	copy(res, f.residual)
	return res
}

// TrainStartTime returns the first non NaN training time
func (f *Forecast) TrainStartTime() time.Time {
	if f == nil {
		return time.Time{}
	}
	return f.trainStartTime
}

// TrainEndTime returns the last non NaN training time
func (f *Forecast) TrainEndTime() time.Time {
	if f == nil {
		return time.Time{}
	}
	return f.trainEndTime
}

// TrainComponents returns the components of the fit over the training data
func (f *Forecast) TrainComponents() Components {
	if f == nil {
		return Components{}
	}
	return f.trainComponents.Copy()
}
