package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"Naly/internal/domain/models"
	domrepo "Naly/internal/domain/repository"
	"Naly/internal/services/chart"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
)

const (
	stageCausal     = "causal"
	stagePrediction = "prediction"
	stageNarrative  = "narrative"
	stageDashboard  = "dashboard"
	stagePublish    = "publish"

	chartLookback = 30 * 24 * time.Hour
)

type CausalStage interface {
	AnalyzeEvent(ctx context.Context, event models.MarketEvent) (*models.CausalAnalysis, error)
}

type PredictionStage interface {
	GeneratePrediction(ctx context.Context, event models.MarketEvent, pctx models.PredictionContext) (*models.PredictiveAnalysis, error)
}

type NarrativeStage interface {
	GenerateNarrative(ctx context.Context, event models.MarketEvent, causal *models.CausalAnalysis, prediction *models.PredictiveAnalysis) (*models.IntelligentNarrative, error)
}

type ChartStage interface {
	GenerateVisualization(ctx context.Context, in chart.Input, typ models.ChartType, cfg *models.ChartConfiguration) (*models.Visualization, error)
	CreateDashboard(ctx context.Context, visualizations []models.Visualization) (*models.Dashboard, error)
}

type MarketData interface {
	GetMarketData(ctx context.Context, req models.MarketDataRequest) ([]models.MarketDataPoint, error)
}

// PipelineUseCase runs causal analysis, prediction, narrative and charts for
// one event and publishes the combined result.
type PipelineUseCase struct {
	data       MarketData
	causal     CausalStage
	prediction PredictionStage
	narrative  NarrativeStage
	charts     ChartStage
	publisher  domrepo.Publisher
	metrics    domrepo.Metrics
	log        *applogger.Logger
	timeout    time.Duration
	now        func() time.Time
}

func NewPipelineUseCase(
	data MarketData,
	causal CausalStage,
	prediction PredictionStage,
	narrative NarrativeStage,
	charts ChartStage,
	publisher domrepo.Publisher,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *PipelineUseCase {
	return &PipelineUseCase{
		data:       data,
		causal:     causal,
		prediction: prediction,
		narrative:  narrative,
		charts:     charts,
		publisher:  publisher,
		metrics:    metrics,
		log:        log.With("pipeline"),
		timeout:    2 * time.Minute,
		now:        time.Now,
	}
}

// Run executes every stage it can. A failed stage is recorded in
// result.Errors and stages that do not depend on it still run. Only invalid
// input is returned as an error.
func (uc *PipelineUseCase) Run(ctx context.Context, event models.MarketEvent) (*models.PipelineResult, error) {
	if event.ID == "" || event.Ticker == "" || event.Timestamp.IsZero() {
		return nil, apperr.Validation("event id, ticker and timestamp are required")
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := uc.now()
	res := &models.PipelineResult{
		EventID: event.ID,
		Ticker:  event.Ticker,
		Errors:  map[string]string{},
	}
	fail := func(stage string, err error) {
		res.Errors[stage] = err.Error()
		uc.log.Warn("pipeline stage failed",
			applogger.String("event_id", event.ID),
			applogger.String("stage", stage),
			applogger.String("kind", string(apperr.KindOf(err))),
			applogger.Error(err),
		)
	}

	causal, err := uc.causal.AnalyzeEvent(ctx, event)
	if err != nil {
		fail(stageCausal, err)
	}
	res.CausalAnalysis = causal

	prediction, err := uc.prediction.GeneratePrediction(ctx, event, models.PredictionContext{CausalAnalysis: causal})
	if err != nil {
		fail(stagePrediction, err)
	}
	res.Prediction = prediction

	narrative, err := uc.narrative.GenerateNarrative(ctx, event, causal, prediction)
	if err != nil {
		fail(stageNarrative, err)
	}
	res.Narrative = narrative

	visualizations := uc.buildCharts(ctx, event, causal, prediction, fail)
	if len(visualizations) > 0 {
		dashboard, err := uc.charts.CreateDashboard(ctx, visualizations)
		if err != nil {
			fail(stageDashboard, err)
		}
		res.Dashboard = dashboard
		if narrative != nil {
			narrative.Visualizations = visualizations
		}
	}

	res.CompletedAt = uc.now().UTC()
	if err := uc.publisher.PublishResult(ctx, event.ID, res); err != nil {
		fail(stagePublish, err)
	}

	uc.metrics.ObserveStage("pipeline", uc.now().Sub(start), nil)
	uc.log.Info("pipeline complete",
		applogger.String("event_id", event.ID),
		applogger.String("ticker", event.Ticker),
		applogger.Int("failed_stages", len(res.Errors)),
		applogger.Duration("elapsed", uc.now().Sub(start)),
	)

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

var chartOrder = map[models.ChartType]int{
	models.ChartLine:        0,
	models.ChartFan:         1,
	models.ChartProbability: 2,
	models.ChartWaterfall:   3,
}

// buildCharts renders the charts the available outputs allow, concurrently.
func (uc *PipelineUseCase) buildCharts(ctx context.Context, event models.MarketEvent, causal *models.CausalAnalysis, prediction *models.PredictiveAnalysis, fail func(string, error)) []models.Visualization {
	type item struct {
		typ models.ChartType
		viz *models.Visualization
		err error
	}
	ch := make(chan item, len(chartOrder))
	var wg sync.WaitGroup

	render := func(typ models.ChartType, in func() (chart.Input, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			input, err := in()
			if err != nil {
				ch <- item{typ: typ, err: err}
				return
			}
			input.Ticker = event.Ticker
			v, err := uc.charts.GenerateVisualization(ctx, input, typ, nil)
			ch <- item{typ, v, err}
		}()
	}

	render(models.ChartLine, func() (chart.Input, error) {
		points, err := uc.data.GetMarketData(ctx, models.MarketDataRequest{
			Ticker:    event.Ticker,
			DataTypes: []models.DataType{models.DataTypePrice},
			StartDate: event.Timestamp.Add(-chartLookback),
			EndDate:   event.Timestamp,
			Frequency: models.FrequencyDay,
		})
		return chart.Input{Points: points}, err
	})
	if prediction != nil {
		render(models.ChartFan, func() (chart.Input, error) {
			return chart.Input{Prediction: prediction, Points: event.SourceData}, nil
		})
		render(models.ChartProbability, func() (chart.Input, error) {
			return chart.Input{Prediction: prediction}, nil
		})
	}
	if causal != nil {
		render(models.ChartWaterfall, func() (chart.Input, error) {
			return chart.Input{Causal: causal}, nil
		})
	}

	go func() { wg.Wait(); close(ch) }()

	var out []models.Visualization
	for it := range ch {
		if it.err != nil {
			fail("chart_"+string(it.typ), it.err)
			continue
		}
		out = append(out, *it.viz)
	}
	sort.Slice(out, func(i, j int) bool { return chartOrder[out[i].Type] < chartOrder[out[j].Type] })
	return out
}
