package repository

import (
	"context"
	"errors"
	"time"

	"Naly/internal/domain/models"
)

// ErrNotFound is returned by stores when no row matches.
var ErrNotFound = errors.New("not found")

// MarketDataProvider fetches raw time-series samples from an upstream source.
type MarketDataProvider interface {
	FetchMarketData(ctx context.Context, req models.MarketDataRequest) ([]models.MarketDataPoint, error)
}

// MarketStream delivers live samples for a set of tickers.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, tickers []string) error
	Read(ctx context.Context) (<-chan models.MarketDataPoint, <-chan error)
	Close() error
	IsConnected() bool
}

// AnalysisStore persists pipeline outputs. Every write is keyed by event id
// or a generated id and the last write wins.
type AnalysisStore interface {
	SaveCausalAnalysis(ctx context.Context, a *models.CausalAnalysis) error
	GetCausalAnalysis(ctx context.Context, eventID string) (*models.CausalAnalysis, error)
	SavePredictiveAnalysis(ctx context.Context, p *models.PredictiveAnalysis) error
	GetPredictiveAnalysis(ctx context.Context, eventID string) (*models.PredictiveAnalysis, error)
	SaveNarrative(ctx context.Context, n *models.IntelligentNarrative) error
	SaveNarrativeValidation(ctx context.Context, v *models.NarrativeValidation) error
	SaveVisualization(ctx context.Context, v *models.Visualization) error
	SaveModelWeights(ctx context.Context, w models.ModelWeights) error
	LoadModelWeights(ctx context.Context) (models.ModelWeights, error)
}

// Publisher emits pipeline results to downstream consumers.
type Publisher interface {
	PublishResult(ctx context.Context, eventID string, result interface{}) error
	Close() error
}

// Metrics records pipeline measurements.
type Metrics interface {
	ObserveStage(stage string, d time.Duration, err error)
	RecordFallback(stage string)
	RecordCacheResult(cache string, hit bool)
	RecordRateLimited(scope string)
	RecordPersistenceFailure(entity string)
}
