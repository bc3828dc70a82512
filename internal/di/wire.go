//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"Naly/pkg/config"
	"Naly/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideHTTPClient,

		// Repositories
		ProvideAnalysisStore,
		ProvideResultPublisher,
		ProvideMarketDataProvider,

		// Services
		ProvideGateway,
		ProvideTextGenerator,
		ProvideCausalAnalyzer,
		ProvidePredictionEngine,
		ProvideNarrativeGenerator,
		ProvideChartBuilder,

		// Use cases
		ProvidePipeline,
		ProvideCandles,
		ProvideEventHandler,
		ProvideCalibrationJob,

		// Transport and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
