package models

import "time"

type ScenarioType string

const (
	ScenarioBull ScenarioType = "BULL_CASE"
	ScenarioBase ScenarioType = "BASE_CASE"
	ScenarioBear ScenarioType = "BEAR_CASE"
)

type ModelType string

const (
	ModelLSTM             ModelType = "LSTM"
	ModelRandomForest     ModelType = "RANDOM_FOREST"
	ModelLinearRegression ModelType = "LINEAR_REGRESSION"
	ModelARIMA            ModelType = "ARIMA"
)

// ModelWeights maps each forecasting model to its ensemble weight.
type ModelWeights map[ModelType]float64

// DefaultModelWeights returns the weights used before any calibration.
func DefaultModelWeights() ModelWeights {
	return ModelWeights{
		ModelLSTM:             0.3,
		ModelRandomForest:     0.25,
		ModelLinearRegression: 0.2,
		ModelARIMA:            0.25,
	}
}

type PriceRange struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Median float64 `json:"median"`
}

type PriceTarget struct {
	Value      float64    `json:"value"`
	Range      PriceRange `json:"range"`
	Confidence float64    `json:"confidence"`
	Timeframe  string     `json:"timeframe"`
}

type PredictionScenario struct {
	Type        ScenarioType `json:"type"`
	Probability float64      `json:"probability"`
	Description string       `json:"description"`
	KeyDrivers  []string     `json:"keyDrivers"`
	PriceTarget PriceTarget  `json:"priceTarget"`
}

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

type Uncertainty struct {
	Variance           float64            `json:"variance"`
	StandardDeviation  float64            `json:"standardDeviation"`
	ConfidenceInterval ConfidenceInterval `json:"confidenceInterval"`
	Entropy            float64            `json:"entropy"`
}

type ModelContribution struct {
	ModelType    ModelType `json:"modelType"`
	Weight       float64   `json:"weight"`
	Contribution float64   `json:"contribution"`
}

type Performance struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1Score"`
}

// ModelPrediction is the output of one forecasting model.
type ModelPrediction struct {
	ModelType  ModelType            `json:"modelType"`
	Prediction float64              `json:"prediction"`
	Confidence float64              `json:"confidence"`
	Scenarios  []PredictionScenario `json:"scenarios"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Scenario returns the scenario of type st, if present.
func (p ModelPrediction) Scenario(st ScenarioType) (PredictionScenario, bool) {
	return FindScenario(p.Scenarios, st)
}

type EnsemblePrediction struct {
	Scenarios          []PredictionScenario `json:"scenarios"`
	Uncertainty        Uncertainty          `json:"uncertainty"`
	ModelContributions []ModelContribution  `json:"modelContributions"`
	Performance        Performance          `json:"performance"`
}

type ModelMetadata struct {
	Models         []ModelType         `json:"models"`
	Weights        ModelWeights        `json:"weights"`
	Contributions  []ModelContribution `json:"contributions"`
	DataPoints     int                 `json:"dataPoints"`
	Performance    Performance         `json:"performance"`
	ScenarioSource string              `json:"scenarioSource"`
}

type PredictiveAnalysis struct {
	EventID       string               `json:"eventId"`
	Scenarios     []PredictionScenario `json:"scenarios"`
	TimeHorizon   string               `json:"timeHorizon"`
	Methodology   string               `json:"methodology"`
	ModelMetadata ModelMetadata        `json:"modelMetadata"`
	Uncertainty   Uncertainty          `json:"uncertainty"`
	LastUpdated   time.Time            `json:"lastUpdated"`
}

// PredictionContext carries optional inputs for GeneratePrediction.
type PredictionContext struct {
	CausalAnalysis   *CausalAnalysis        `json:"causalAnalysis,omitempty"`
	MarketConditions map[string]interface{} `json:"marketConditions,omitempty"`
}

// PredictionOutcome is the realised price for a predicted event.
type PredictionOutcome struct {
	EventID     string    `json:"eventId"`
	ActualPrice float64   `json:"actualPrice"`
	ObservedAt  time.Time `json:"observedAt"`
}

// FindScenario returns the first scenario of type st.
func FindScenario(scenarios []PredictionScenario, st ScenarioType) (PredictionScenario, bool) {
	for _, s := range scenarios {
		if s.Type == st {
			return s, true
		}
	}
	return PredictionScenario{}, false
}
