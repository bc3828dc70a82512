package prediction

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/internal/domain/service"
	"Naly/internal/services/features"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
	"Naly/pkg/metrics"
	"Naly/pkg/util"
)

const (
	methodology      = "weighted ensemble of trend, noisy-mean, least-squares and differencing models"
	performanceSteps = 30
)

// MarketData is the slice of the market data gateway the engine needs.
type MarketData interface {
	GetMarketData(ctx context.Context, req models.MarketDataRequest) ([]models.MarketDataPoint, error)
}

// Engine forecasts price scenarios for market events.
type Engine struct {
	data        MarketData
	store       repository.AnalysisStore
	narrator    ScenarioNarrator
	fallback    ScenarioNarrator
	forecasters []service.Forecaster
	evaluator   service.ModelPerformanceEvaluator
	metrics     repository.Metrics
	log         *applogger.Logger
	now         func() time.Time

	mu         sync.RWMutex
	cfg        Config
	configured bool
}

// Option configures Engine.
type Option func(*Engine)

// WithNarrator sets the primary scenario narrator.
func WithNarrator(n ScenarioNarrator) Option {
	return func(e *Engine) { e.narrator = n }
}

// WithForecasters replaces the model set.
func WithForecasters(fs ...service.Forecaster) Option {
	return func(e *Engine) { e.forecasters = fs }
}

// WithEvaluator sets the model performance evaluator used by CalibrateModels.
func WithEvaluator(ev service.ModelPerformanceEvaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine with the default forecasters and a backtest
// evaluator. Configure must be called before use.
func NewEngine(data MarketData, store repository.AnalysisStore, log *applogger.Logger, opts ...Option) *Engine {
	e := &Engine{
		data:      data,
		store:     store,
		fallback:  EnsembleNarrator{},
		evaluator: BacktestEvaluator{MaxSteps: 60},
		metrics:   metrics.Nop{},
		log:       log.With("prediction"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.forecasters == nil {
		e.forecasters = DefaultForecasters(rand.New(rand.NewSource(e.now().UnixNano())))
	}
	return e
}

// Configure validates and installs cfg.
func (e *Engine) Configure(cfg Config) error {
	cfg, err := NewConfig(cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.configured = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) config() (Config, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg := e.cfg
	cfg.ModelWeights = copyWeights(e.cfg.ModelWeights)
	return cfg, e.configured
}

// Weights returns the current model weights.
func (e *Engine) Weights() models.ModelWeights {
	cfg, _ := e.config()
	return cfg.ModelWeights
}

// LoadWeights replaces the configured weights with persisted ones when the
// store has any.
func (e *Engine) LoadWeights(ctx context.Context) error {
	w, err := e.store.LoadModelWeights(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.DatabaseQuery("load model weights", err)
	}
	if err := validateWeights(w); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg.ModelWeights = copyWeights(w)
	e.mu.Unlock()
	return nil
}

// GeneratePrediction forecasts bull/base/bear scenarios for event from the
// trailing price history. Models without enough history are skipped.
func (e *Engine) GeneratePrediction(ctx context.Context, event models.MarketEvent, pctx models.PredictionContext) (*models.PredictiveAnalysis, error) {
	cfg, ok := e.config()
	if !ok {
		return nil, apperr.MissingConfiguration("prediction engine")
	}
	if event.ID == "" || event.Ticker == "" || event.Timestamp.IsZero() {
		return nil, apperr.Validation("event id, ticker and timestamp are required")
	}

	start := e.now()
	analysis, err := e.generate(ctx, cfg, event, pctx)
	e.metrics.ObserveStage("prediction", e.now().Sub(start), err)
	if err != nil {
		return nil, apperr.Wrap(err, func(err error) *apperr.Error {
			return apperr.Prediction(event.ID, err)
		})
	}
	return analysis, nil
}

func (e *Engine) generate(ctx context.Context, cfg Config, event models.MarketEvent, pctx models.PredictionContext) (*models.PredictiveAnalysis, error) {
	points, err := e.data.GetMarketData(ctx, models.MarketDataRequest{
		Ticker:    event.Ticker,
		DataTypes: []models.DataType{models.DataTypePrice},
		StartDate: event.Timestamp.Add(-time.Duration(cfg.LookbackDays) * 24 * time.Hour),
		EndDate:   event.Timestamp,
		Frequency: models.FrequencyDay,
	})
	if err != nil {
		return nil, err
	}
	prices := features.Series(points, models.DataTypePrice)

	now := e.now().UTC()
	var preds []models.ModelPrediction
	for _, f := range e.forecasters {
		p, ok := runForecaster(f, prices, now)
		if !ok {
			e.log.Debug("model skipped",
				applogger.String("model", string(f.Type())),
				applogger.Int("history", len(prices)),
				applogger.Int("required", f.MinHistory()),
			)
			continue
		}
		if p.Confidence < cfg.MinConfidence {
			continue
		}
		preds = append(preds, p)
	}
	if len(preds) == 0 {
		return nil, apperr.InsufficientData("%d prices for %s is not enough for any model", len(prices), event.Ticker)
	}

	ensemble, err := combine(preds, cfg.ModelWeights)
	if err != nil {
		return nil, err
	}
	horizon := timeHorizon(event.Magnitude)
	for i := range ensemble.Scenarios {
		ensemble.Scenarios[i].PriceTarget.Timeframe = horizon
	}
	ensemble.Performance = directionalPerformance(e.forecasters, cfg.ModelWeights, prices, performanceSteps)

	scenarios, source := e.narrate(ctx, cfg, event, ensemble, pctx)

	used := make([]models.ModelType, len(preds))
	for i, p := range preds {
		used[i] = p.ModelType
	}
	analysis := &models.PredictiveAnalysis{
		EventID:     event.ID,
		Scenarios:   scenarios,
		TimeHorizon: horizon,
		Methodology: methodology,
		ModelMetadata: models.ModelMetadata{
			Models:         used,
			Weights:        cfg.ModelWeights,
			Contributions:  ensemble.ModelContributions,
			DataPoints:     len(prices),
			Performance:    ensemble.Performance,
			ScenarioSource: source,
		},
		Uncertainty: ensemble.Uncertainty,
		LastUpdated: now,
	}

	if err := e.store.SavePredictiveAnalysis(ctx, analysis); err != nil {
		e.metrics.RecordPersistenceFailure("predictive_analysis")
		e.log.Warn("persist predictive analysis failed", applogger.String("event_id", event.ID), applogger.Error(err))
	}

	e.log.Info("prediction complete",
		applogger.String("event_id", event.ID),
		applogger.String("ticker", event.Ticker),
		applogger.Int("models", len(preds)),
		applogger.String("horizon", horizon),
		applogger.String("scenario_source", source),
	)
	return analysis, nil
}

// narrate runs the primary narrator and falls back to the ensemble's own
// scenarios on any failure.
func (e *Engine) narrate(ctx context.Context, cfg Config, event models.MarketEvent, ensemble *models.EnsemblePrediction, pctx models.PredictionContext) ([]models.PredictionScenario, string) {
	if cfg.UseLLMScenarios && e.narrator != nil {
		scenarios, err := e.narrator.Narrate(ctx, event, ensemble, pctx)
		if err == nil {
			return scenarios, sourceLLM
		}
		e.metrics.RecordFallback("prediction_scenarios")
		e.log.Warn("scenario narration failed, using ensemble scenarios",
			applogger.String("event_id", event.ID),
			applogger.Error(err),
		)
	}
	scenarios, _ := e.fallback.Narrate(ctx, event, ensemble, pctx)
	return scenarios, sourceEnsemble
}

// GetEnsemblePrediction combines model predictions with the configured weights.
func (e *Engine) GetEnsemblePrediction(preds []models.ModelPrediction) (*models.EnsemblePrediction, error) {
	cfg, ok := e.config()
	if !ok {
		return nil, apperr.MissingConfiguration("prediction engine")
	}
	return combine(preds, cfg.ModelWeights)
}

// CalibrateModels scores every model on the historical prices and turns the
// scores into new normalised weights, which are installed and persisted.
func (e *Engine) CalibrateModels(ctx context.Context, historical []models.MarketDataPoint) (models.ModelWeights, error) {
	cfg, ok := e.config()
	if !ok {
		return nil, apperr.MissingConfiguration("prediction engine")
	}
	prices := features.Series(historical, models.DataTypePrice)

	scores := make(models.ModelWeights, len(e.forecasters))
	var total float64
	for _, f := range e.forecasters {
		score, err := e.evaluator.Evaluate(ctx, f, prices)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log.Debug("model not scored", applogger.String("model", string(f.Type())), applogger.Error(err))
			continue
		}
		scores[f.Type()] = score
		total += score
	}
	if total <= 0 {
		return nil, apperr.InsufficientData("no model could be scored on %d prices", len(prices))
	}

	weights := make(models.ModelWeights, len(scores))
	for mt, s := range scores {
		weights[mt] = s / total
	}

	e.mu.Lock()
	e.cfg.ModelWeights = copyWeights(weights)
	e.mu.Unlock()

	if err := e.store.SaveModelWeights(ctx, weights); err != nil {
		e.metrics.RecordPersistenceFailure("model_weights")
		e.log.Warn("persist model weights failed", applogger.Error(err))
	}

	e.log.Info("models calibrated",
		applogger.Int("prices", len(prices)),
		applogger.Any("previous", cfg.ModelWeights),
		applogger.Any("weights", weights),
	)
	return weights, nil
}

// EvaluatePredictionAccuracy averages max(0, 1-|base-actual|/actual) over
// prediction/outcome pairs. A prediction pairs with the outcome carrying its
// event id, else with the outcome at the same index when that outcome's id
// belongs to no prediction. It is 0 when nothing pairs.
func EvaluatePredictionAccuracy(predictions []models.PredictiveAnalysis, outcomes []models.PredictionOutcome) float64 {
	byEvent := make(map[string]float64, len(outcomes))
	for _, o := range outcomes {
		if o.EventID != "" {
			byEvent[o.EventID] = o.ActualPrice
		}
	}
	claimed := make(map[string]bool, len(predictions))
	for _, p := range predictions {
		if _, ok := byEvent[p.EventID]; ok {
			claimed[p.EventID] = true
		}
	}

	var scores []float64
	for i, p := range predictions {
		price, ok := byEvent[p.EventID]
		if !ok && i < len(outcomes) && !claimed[outcomes[i].EventID] {
			price, ok = outcomes[i].ActualPrice, true
		}
		if !ok || price <= 0 {
			continue
		}
		base, ok := models.FindScenario(p.Scenarios, models.ScenarioBase)
		if !ok {
			continue
		}
		diff := (base.PriceTarget.Value - price) / price
		if diff < 0 {
			diff = -diff
		}
		scores = append(scores, util.Clamp(1-diff, 0, 1))
	}
	return util.Mean(scores)
}
