package prediction

import (
	"fmt"
	"math"
	"sort"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/domain/service"
	"Naly/pkg/apperr"
	"Naly/pkg/util"
)

const (
	bullMultiplier = 1.15
	bearMultiplier = 0.85
	intervalLevel  = 0.95
)

// scenarioPriors are the fixed scenario probabilities. They do not follow the
// ensemble's dispersion.
var scenarioPriors = []struct {
	Type        models.ScenarioType
	Multiplier  float64
	Probability float64
}{
	{models.ScenarioBull, bullMultiplier, 0.25},
	{models.ScenarioBase, 1.0, 0.50},
	{models.ScenarioBear, bearMultiplier, 0.25},
}

// runForecaster expands one model's point estimate into bull/base/bear.
// ok is false when the series is shorter than the model's minimum.
func runForecaster(f service.Forecaster, prices []float64, now time.Time) (models.ModelPrediction, bool) {
	if len(prices) < f.MinHistory() {
		return models.ModelPrediction{}, false
	}
	value := f.Predict(prices)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return models.ModelPrediction{}, false
	}
	conf := modelConfidence[f.Type()]

	scenarios := make([]models.PredictionScenario, 0, len(scenarioPriors))
	for _, sp := range scenarioPriors {
		v := value * sp.Multiplier
		scenarios = append(scenarios, models.PredictionScenario{
			Type:        sp.Type,
			Probability: sp.Probability,
			PriceTarget: models.PriceTarget{
				Value:      v,
				Range:      models.PriceRange{Low: v, High: v, Median: v},
				Confidence: conf,
			},
		})
	}
	return models.ModelPrediction{
		ModelType:  f.Type(),
		Prediction: value,
		Confidence: conf,
		Scenarios:  scenarios,
		Timestamp:  now,
	}, true
}

// combine builds the ensemble from model predictions. Each scenario value is
// the weighted mean over the models that produced it, normalised by the
// weight actually present. When none of the present models has a positive
// weight they count equally.
func combine(preds []models.ModelPrediction, weights models.ModelWeights) (*models.EnsemblePrediction, error) {
	if len(preds) == 0 {
		return nil, apperr.InsufficientData("no model produced a prediction")
	}

	w := make([]float64, len(preds))
	var total float64
	for i, p := range preds {
		w[i] = weights[p.ModelType]
		total += w[i]
	}
	if total <= 0 {
		for i := range w {
			w[i] = 1
		}
		total = float64(len(preds))
	}

	out := &models.EnsemblePrediction{}
	for _, sp := range scenarioPriors {
		var sum, confSum float64
		values := make([]float64, 0, len(preds))
		for i, p := range preds {
			v, conf := scenarioValue(p, sp.Type, sp.Multiplier)
			sum += w[i] * v
			confSum += w[i] * conf
			values = append(values, v)
		}
		value := sum / total
		lo, hi := util.MinMax(values)
		out.Scenarios = append(out.Scenarios, models.PredictionScenario{
			Type:        sp.Type,
			Probability: sp.Probability,
			Description: scenarioDescription(sp.Type, value),
			KeyDrivers:  defaultDrivers(sp.Type),
			PriceTarget: models.PriceTarget{
				Value:      value,
				Range:      models.PriceRange{Low: lo, High: hi, Median: median(values)},
				Confidence: confSum / total,
			},
		})
	}

	for i, p := range preds {
		out.ModelContributions = append(out.ModelContributions, models.ModelContribution{
			ModelType:    p.ModelType,
			Weight:       w[i],
			Contribution: w[i] / total,
		})
	}
	out.Uncertainty = uncertainty(out.Scenarios)
	return out, nil
}

// scenarioValue reads the scenario target of p, deriving it from the point
// estimate when the model did not emit that scenario.
func scenarioValue(p models.ModelPrediction, t models.ScenarioType, multiplier float64) (float64, float64) {
	if s, ok := p.Scenario(t); ok {
		return s.PriceTarget.Value, s.PriceTarget.Confidence
	}
	return p.Prediction * multiplier, p.Confidence
}

// uncertainty measures spread across the scenario values. The interval is
// [min, max] with a fixed 0.95 label.
func uncertainty(scenarios []models.PredictionScenario) models.Uncertainty {
	values := make([]float64, len(scenarios))
	probs := make([]float64, len(scenarios))
	for i, s := range scenarios {
		values[i] = s.PriceTarget.Value
		probs[i] = s.Probability
	}
	lo, hi := util.MinMax(values)
	return models.Uncertainty{
		Variance:           util.Variance(values),
		StandardDeviation:  util.StdDev(values),
		ConfidenceInterval: models.ConfidenceInterval{Lower: lo, Upper: hi, Level: intervalLevel},
		Entropy:            entropy(probs),
	}
}

// entropy is the Shannon entropy in bits.
func entropy(probs []float64) float64 {
	var h float64
	for _, p := range probs {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

func scenarioDescription(t models.ScenarioType, value float64) string {
	switch t {
	case models.ScenarioBull:
		return fmt.Sprintf("Upside case: momentum extends and price reaches %.2f", value)
	case models.ScenarioBear:
		return fmt.Sprintf("Downside case: the move reverses and price falls to %.2f", value)
	default:
		return fmt.Sprintf("Base case: price settles near %.2f as the move is digested", value)
	}
}

func defaultDrivers(t models.ScenarioType) []string {
	switch t {
	case models.ScenarioBull:
		return []string{"sustained buying pressure", "positive follow-through news"}
	case models.ScenarioBear:
		return []string{"profit taking", "broader market weakness"}
	default:
		return []string{"trend continuation at current pace"}
	}
}

// timeHorizon maps event magnitude to the forecast horizon.
func timeHorizon(magnitude float64) string {
	switch {
	case magnitude > 80:
		return "1 week"
	case magnitude > 60:
		return "1 month"
	case magnitude > 40:
		return "3 months"
	default:
		return "6 months"
	}
}
