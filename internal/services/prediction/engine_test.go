package prediction

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/domain/service"
	"Naly/internal/repository"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
)

var eventTime = time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

type fakeData struct {
	prices []float64
	calls  int
}

func (f *fakeData) GetMarketData(_ context.Context, req models.MarketDataRequest) ([]models.MarketDataPoint, error) {
	f.calls++
	out := make([]models.MarketDataPoint, len(f.prices))
	for i, p := range f.prices {
		out[i] = models.MarketDataPoint{
			Ticker:    req.Ticker,
			DataType:  models.DataTypePrice,
			Value:     p,
			Timestamp: req.EndDate.Add(-time.Duration(len(f.prices)-i) * 24 * time.Hour),
		}
	}
	return out, nil
}

type failingStore struct {
	*repository.MemoryAnalysisStore
}

func (failingStore) SavePredictiveAnalysis(context.Context, *models.PredictiveAnalysis) error {
	return errors.New("timeout")
}

func (failingStore) SaveModelWeights(context.Context, models.ModelWeights) error {
	return errors.New("timeout")
}

type scriptedGen struct {
	text string
	err  error
}

func (g scriptedGen) GenerateText(context.Context, service.TextPrompt) (string, error) {
	return g.text, g.err
}

func newEngine(t *testing.T, data MarketData, cfg Config, opts ...Option) (*Engine, *repository.MemoryAnalysisStore) {
	t.Helper()
	store := repository.NewMemoryAnalysisStore()
	base := []Option{WithForecasters(DefaultForecasters(rand.New(rand.NewSource(1)))...)}
	e := NewEngine(data, store, applogger.Nop(), append(base, opts...)...)
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return e, store
}

func event(magnitude float64) models.MarketEvent {
	return models.MarketEvent{ID: "e1", Ticker: "AAPL", EventType: "PRICE_SPIKE", Timestamp: eventTime, Magnitude: magnitude}
}

func assertCanonicalScenarios(t *testing.T, scenarios []models.PredictionScenario) {
	t.Helper()
	seen := map[models.ScenarioType]int{}
	var sum float64
	for _, s := range scenarios {
		seen[s.Type]++
		sum += s.Probability
	}
	if len(scenarios) != 3 || seen[models.ScenarioBull] != 1 || seen[models.ScenarioBase] != 1 || seen[models.ScenarioBear] != 1 {
		t.Fatalf("expected one scenario of each type, got %+v", scenarios)
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %v", sum)
	}
}

func TestGeneratePrediction(t *testing.T) {
	e, store := newEngine(t, &fakeData{prices: ramp(60, 100)}, Config{})

	got, err := e.GeneratePrediction(context.Background(), event(85), models.PredictionContext{})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	assertCanonicalScenarios(t, got.Scenarios)
	if got.TimeHorizon != "1 week" || got.Scenarios[0].PriceTarget.Timeframe != "1 week" {
		t.Fatalf("unexpected horizon %q", got.TimeHorizon)
	}
	if len(got.ModelMetadata.Models) != 4 || got.ModelMetadata.ScenarioSource != sourceEnsemble {
		t.Fatalf("unexpected metadata %+v", got.ModelMetadata)
	}

	bull, _ := models.FindScenario(got.Scenarios, models.ScenarioBull)
	base, _ := models.FindScenario(got.Scenarios, models.ScenarioBase)
	bear, _ := models.FindScenario(got.Scenarios, models.ScenarioBear)
	if math.Abs(bull.PriceTarget.Value-base.PriceTarget.Value*1.15) > 1e-6 || math.Abs(bear.PriceTarget.Value-base.PriceTarget.Value*0.85) > 1e-6 {
		t.Fatalf("scenario multipliers not applied: %v %v %v", bull.PriceTarget.Value, base.PriceTarget.Value, bear.PriceTarget.Value)
	}
	if got.Uncertainty.ConfidenceInterval.Lower != bear.PriceTarget.Value || got.Uncertainty.ConfidenceInterval.Upper != bull.PriceTarget.Value {
		t.Fatalf("interval should span bear to bull: %+v", got.Uncertainty.ConfidenceInterval)
	}
	if got.Uncertainty.ConfidenceInterval.Level != 0.95 || math.Abs(got.Uncertainty.Entropy-1.5) > 1e-12 {
		t.Fatalf("unexpected uncertainty %+v", got.Uncertainty)
	}
	if _, err := store.GetPredictiveAnalysis(context.Background(), "e1"); err != nil {
		t.Fatalf("prediction not persisted: %v", err)
	}
}

func TestShortHistorySkipsModels(t *testing.T) {
	e, _ := newEngine(t, &fakeData{prices: ramp(6, 100)}, Config{})

	got, err := e.GeneratePrediction(context.Background(), event(50), models.PredictionContext{})
	if err != nil {
		t.Fatalf("short history must not fail: %v", err)
	}
	assertCanonicalScenarios(t, got.Scenarios)
	used := map[models.ModelType]bool{}
	for _, m := range got.ModelMetadata.Models {
		used[m] = true
	}
	if len(used) != 2 || !used[models.ModelRandomForest] || !used[models.ModelLinearRegression] {
		t.Fatalf("expected only RF and LR, got %v", got.ModelMetadata.Models)
	}
	if got.TimeHorizon != "3 months" {
		t.Fatalf("unexpected horizon %q", got.TimeHorizon)
	}
}

func TestTooLittleHistory(t *testing.T) {
	e, _ := newEngine(t, &fakeData{prices: ramp(2, 100)}, Config{})
	_, err := e.GeneratePrediction(context.Background(), event(50), models.PredictionContext{})
	if !apperr.IsKind(err, apperr.KindInsufficientData) || apperr.IsRetryable(err) {
		t.Fatalf("expected non-retryable insufficient data, got %v", err)
	}
}

func TestEnsembleNormalisesByPresentWeight(t *testing.T) {
	e, _ := newEngine(t, &fakeData{}, Config{})
	now := time.Now()

	lstm, _ := runForecaster(constForecaster{models.ModelLSTM, 100}, ramp(10, 1), now)
	arima, _ := runForecaster(constForecaster{models.ModelARIMA, 200}, ramp(10, 1), now)
	got, err := e.GetEnsemblePrediction([]models.ModelPrediction{lstm, arima})
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	base, _ := models.FindScenario(got.Scenarios, models.ScenarioBase)
	want := (0.3*100 + 0.25*200) / 0.55
	if math.Abs(base.PriceTarget.Value-want) > 1e-9 {
		t.Fatalf("base = %v, want %v", base.PriceTarget.Value, want)
	}

	lr, _ := runForecaster(constForecaster{models.ModelLinearRegression, 50}, ramp(10, 1), now)
	got, err = e.GetEnsemblePrediction([]models.ModelPrediction{lr})
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	base, _ = models.FindScenario(got.Scenarios, models.ScenarioBase)
	if math.Abs(base.PriceTarget.Value-50) > 1e-9 {
		t.Fatalf("a single model must not be biased by missing weights, got %v", base.PriceTarget.Value)
	}
	assertCanonicalScenarios(t, got.Scenarios)

	if _, err := e.GetEnsemblePrediction(nil); !apperr.IsKind(err, apperr.KindInsufficientData) {
		t.Fatalf("expected insufficient data for empty input, got %v", err)
	}
}

type constForecaster struct {
	typ   models.ModelType
	value float64
}

func (c constForecaster) Type() models.ModelType { return c.typ }
func (c constForecaster) MinHistory() int        { return 1 }
func (c constForecaster) Predict([]float64) float64 {
	return c.value
}

func TestLLMNarrationAndFallback(t *testing.T) {
	narration := "BULL_CASE: Buyers chase the breakout | strong demand; short covering\n" +
		"BASE_CASE: Price consolidates gains | steady flows\n" +
		"BEAR_CASE: Gains fade as buyers step back | profit taking"
	e, _ := newEngine(t, &fakeData{prices: ramp(30, 100)}, Config{UseLLMScenarios: true},
		WithNarrator(NewLLMNarrator(scriptedGen{text: narration})))

	got, err := e.GeneratePrediction(context.Background(), event(70), models.PredictionContext{})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	bull, _ := models.FindScenario(got.Scenarios, models.ScenarioBull)
	if got.ModelMetadata.ScenarioSource != sourceLLM || bull.Description != "Buyers chase the breakout" || len(bull.KeyDrivers) != 2 {
		t.Fatalf("narration not applied: %+v", bull)
	}
	assertCanonicalScenarios(t, got.Scenarios)

	e, _ = newEngine(t, &fakeData{prices: ramp(30, 100)}, Config{UseLLMScenarios: true},
		WithNarrator(NewLLMNarrator(scriptedGen{err: apperr.AIService(apperr.SeverityMedium, errors.New("down"))})))
	got, err = e.GeneratePrediction(context.Background(), event(70), models.PredictionContext{})
	if err != nil {
		t.Fatalf("fallback must not fail: %v", err)
	}
	if got.ModelMetadata.ScenarioSource != sourceEnsemble {
		t.Fatalf("expected ensemble fallback, got %s", got.ModelMetadata.ScenarioSource)
	}
	base, _ := models.FindScenario(got.Scenarios, models.ScenarioBase)
	if base.Description == "" || base.Probability != 0.5 {
		t.Fatalf("fallback scenarios incomplete: %+v", base)
	}
}

func TestIncompleteNarrationFallsBack(t *testing.T) {
	e, _ := newEngine(t, &fakeData{prices: ramp(30, 100)}, Config{UseLLMScenarios: true},
		WithNarrator(NewLLMNarrator(scriptedGen{text: "BULL_CASE: only one line"})))
	got, err := e.GeneratePrediction(context.Background(), event(70), models.PredictionContext{})
	if err != nil || got.ModelMetadata.ScenarioSource != sourceEnsemble {
		t.Fatalf("expected ensemble fallback, got %v %v", got, err)
	}
}

func TestPersistenceFailureStillReturnsPrediction(t *testing.T) {
	store := failingStore{repository.NewMemoryAnalysisStore()}
	e := NewEngine(&fakeData{prices: ramp(30, 100)}, store, applogger.Nop(),
		WithForecasters(DefaultForecasters(rand.New(rand.NewSource(1)))...))
	if err := e.Configure(Config{}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	got, err := e.GeneratePrediction(context.Background(), event(85), models.PredictionContext{})
	if err != nil || got == nil || len(got.Scenarios) != 3 {
		t.Fatalf("expected a full prediction, got %v %v", got, err)
	}
}

func TestGenerateBeforeConfigure(t *testing.T) {
	e := NewEngine(&fakeData{}, repository.NewMemoryAnalysisStore(), applogger.Nop())
	if _, err := e.GeneratePrediction(context.Background(), event(10), models.PredictionContext{}); !apperr.IsKind(err, apperr.KindMissingConfiguration) {
		t.Fatalf("expected missing configuration, got %v", err)
	}
}

func TestConfigureRejectsBadWeights(t *testing.T) {
	e := NewEngine(&fakeData{}, repository.NewMemoryAnalysisStore(), applogger.Nop())
	bad := []models.ModelWeights{
		{models.ModelLSTM: -1},
		{"XGBOOST": 1},
		{models.ModelLSTM: 0},
	}
	for _, w := range bad {
		if err := e.Configure(Config{ModelWeights: w}); !apperr.IsKind(err, apperr.KindValidation) {
			t.Fatalf("weights %v: expected validation error, got %v", w, err)
		}
	}
}

func TestTimeHorizon(t *testing.T) {
	cases := []struct {
		magnitude float64
		want      string
	}{
		{95, "1 week"},
		{80, "1 month"},
		{61, "1 month"},
		{60, "3 months"},
		{41, "3 months"},
		{40, "6 months"},
		{0, "6 months"},
	}
	for _, tc := range cases {
		if got := timeHorizon(tc.magnitude); got != tc.want {
			t.Fatalf("magnitude %v: got %q want %q", tc.magnitude, got, tc.want)
		}
	}
}

func TestEvaluatePredictionAccuracy(t *testing.T) {
	p := models.PredictiveAnalysis{
		EventID: "e1",
		Scenarios: []models.PredictionScenario{
			{Type: models.ScenarioBase, PriceTarget: models.PriceTarget{Value: 100}},
		},
	}
	if got := EvaluatePredictionAccuracy([]models.PredictiveAnalysis{p}, []models.PredictionOutcome{{EventID: "e1", ActualPrice: 100}}); got != 1.0 {
		t.Fatalf("exact prediction should score 1, got %v", got)
	}

	off := p
	off.EventID = "e2"
	got := EvaluatePredictionAccuracy(
		[]models.PredictiveAnalysis{p, off},
		[]models.PredictionOutcome{{EventID: "e1", ActualPrice: 100}, {EventID: "e2", ActualPrice: 80}},
	)
	if math.Abs(got-(1+0.75)/2) > 1e-9 {
		t.Fatalf("unexpected mean accuracy %v", got)
	}
	if EvaluatePredictionAccuracy([]models.PredictiveAnalysis{p}, nil) != 0 {
		t.Fatalf("unmatched predictions should score 0")
	}
}

func TestEvaluatePredictionAccuracyPairsByIndex(t *testing.T) {
	pred := func(id string, base float64) models.PredictiveAnalysis {
		return models.PredictiveAnalysis{
			EventID:   id,
			Scenarios: []models.PredictionScenario{{Type: models.ScenarioBase, PriceTarget: models.PriceTarget{Value: base}}},
		}
	}
	cases := []struct {
		name     string
		preds    []models.PredictiveAnalysis
		outcomes []models.PredictionOutcome
		want     float64
	}{
		{"empty outcome ids", []models.PredictiveAnalysis{pred("e1", 100), pred("e2", 90)},
			[]models.PredictionOutcome{{ActualPrice: 100}, {ActualPrice: 100}}, (1 + 0.9) / 2},
		{"unknown outcome id", []models.PredictiveAnalysis{pred("e1", 100)},
			[]models.PredictionOutcome{{EventID: "other", ActualPrice: 80}}, 0.75},
		{"id beats position", []models.PredictiveAnalysis{pred("e1", 100), pred("e2", 100)},
			[]models.PredictionOutcome{{EventID: "e2", ActualPrice: 100}, {EventID: "e1", ActualPrice: 80}}, (0.75 + 1) / 2},
		{"claimed slot is not reused", []models.PredictiveAnalysis{pred("e1", 100), pred("e3", 100)},
			[]models.PredictionOutcome{{EventID: "e9", ActualPrice: 50}, {EventID: "e1", ActualPrice: 100}}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EvaluatePredictionAccuracy(tc.preds, tc.outcomes); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestCalibrateModels(t *testing.T) {
	e, store := newEngine(t, &fakeData{}, Config{})
	points := make([]models.MarketDataPoint, 40)
	for i := range points {
		points[i] = models.MarketDataPoint{
			DataType:  models.DataTypePrice,
			Value:     100 + float64(i),
			Timestamp: eventTime.Add(time.Duration(i) * 24 * time.Hour),
		}
	}

	weights, err := e.CalibrateModels(context.Background(), points)
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 || len(weights) != 4 {
		t.Fatalf("weights should be normalised over 4 models: %v", weights)
	}
	if weights[models.ModelLinearRegression] <= weights[models.ModelLSTM] || weights[models.ModelLinearRegression] <= weights[models.ModelRandomForest] {
		t.Fatalf("least squares should win on a linear series: %v", weights)
	}

	saved, err := store.LoadModelWeights(context.Background())
	if err != nil || math.Abs(saved[models.ModelARIMA]-weights[models.ModelARIMA]) > 1e-12 {
		t.Fatalf("weights not persisted: %v %v", saved, err)
	}
	if got := e.Weights(); math.Abs(got[models.ModelLSTM]-weights[models.ModelLSTM]) > 1e-12 {
		t.Fatalf("weights not installed: %v", got)
	}
}

func TestLoadWeights(t *testing.T) {
	e, store := newEngine(t, &fakeData{}, Config{})
	if err := e.LoadWeights(context.Background()); err != nil {
		t.Fatalf("empty store should be fine: %v", err)
	}
	want := models.ModelWeights{models.ModelLSTM: 1}
	if err := store.SaveModelWeights(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.LoadWeights(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := e.Weights(); len(got) != 1 || got[models.ModelLSTM] != 1 {
		t.Fatalf("unexpected weights %v", got)
	}
}
