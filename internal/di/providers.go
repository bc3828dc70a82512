package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/internal/domain/service"
	"Naly/internal/handler/api"
	internalrepo "Naly/internal/repository"
	"Naly/internal/service/llm"
	"Naly/internal/service/marketdata"
	"Naly/internal/service/ratelimit"
	"Naly/internal/services/causal"
	"Naly/internal/services/chart"
	"Naly/internal/services/narrative"
	"Naly/internal/services/prediction"
	"Naly/internal/usecase"
	"Naly/pkg/cache"
	pkgch "Naly/pkg/clickhouse"
	"Naly/pkg/config"
	xhttp "Naly/pkg/http"
	pkgkafka "Naly/pkg/kafka"
	applogger "Naly/pkg/logger"
	"Naly/pkg/metrics"
	"Naly/pkg/server"
)

const (
	initTimeout    = 10 * time.Second
	causalCacheTTL = time.Hour
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRedisCache connects to Redis. Nil when redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisURL(cfg.Redis.URL),
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache layers an in-memory cache over Redis when it is available.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc, cache.WithPromoteTTL(5*time.Minute))
}

// ProvideClickHouseClient creates a ClickHouse client. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithCompression(cfg.ClickHouse.Compress),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideAnalysisStore returns the ClickHouse store, or the in-memory one
// without ClickHouse, fronted by the cache for causal lookups.
func ProvideAnalysisStore(cfg *config.Config, ch *pkgch.Client, c cache.Service, m repository.Metrics, l *applogger.Logger) (repository.AnalysisStore, error) {
	var inner repository.AnalysisStore = internalrepo.NewMemoryAnalysisStore()
	if ch != nil {
		store := internalrepo.NewCHAnalysisStore(ch, cfg.ClickHouse.Database, l)
		ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
		defer cancel()
		if err := ch.InitSchema(ctx, store.Schema()); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		inner = store
	} else {
		l.Warn("clickhouse disabled, analyses are kept in memory")
	}
	return internalrepo.NewCachedAnalysisStore(inner, c, causalCacheTTL, m), nil
}

// ProvideKafkaProducer creates a Kafka producer. Nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideResultPublisher publishes pipeline results to Kafka, or drops them
// when kafka is disabled.
func ProvideResultPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ResultsTopic)
}

// ProvideHTTPClient creates the outbound client for the market data API.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.MarketData.Timeout),
		xhttp.WithRetries(cfg.MarketData.MaxRetries),
		xhttp.WithMaxElapsed(3*cfg.MarketData.Timeout),
		// Paces calls within the gateway budget.
		xhttp.WithRateLimit(cfg.MarketData.RequestsPerMinute, cfg.MarketData.RequestsPerMinute/10),
	)
}

// ProvideMarketDataProvider creates the REST market data provider.
func ProvideMarketDataProvider(client *xhttp.Client, cfg *config.Config) repository.MarketDataProvider {
	return marketdata.NewRESTProvider(client, cfg.MarketData.BaseURL, cfg.MarketData.APIKey)
}

// ProvideGateway creates the market data gateway with the request budget
// and, when a stream URL is configured, live streaming.
func ProvideGateway(
	provider repository.MarketDataProvider,
	c cache.Service,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *marketdata.Gateway {
	opts := []marketdata.Option{
		marketdata.WithCache(c),
		marketdata.WithLimiter(ratelimit.New(cfg.MarketData.RequestsPerMinute, time.Minute)),
		marketdata.WithMetrics(m),
	}
	if url := cfg.MarketData.StreamURL; url != "" {
		apiKey, ping := cfg.MarketData.APIKey, cfg.MarketData.PingInterval
		opts = append(opts, marketdata.WithStreamFactory(func() repository.MarketStream {
			return marketdata.NewWebSocketStream(url, apiKey, l, marketdata.WithPingInterval(ping))
		}))
	}
	return marketdata.NewGateway(provider, l, opts...)
}

// ProvideTextGenerator creates the LLM backend selected in config.
func ProvideTextGenerator(cfg *config.Config, l *applogger.Logger) (service.TextGenerator, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	gen, err := llm.New(ctx, llm.Config{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return gen, nil
}

// ProvideCausalAnalyzer creates and configures the causal analyzer.
func ProvideCausalAnalyzer(
	gw *marketdata.Gateway,
	store repository.AnalysisStore,
	gen service.TextGenerator,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) (*causal.Analyzer, error) {
	a := causal.NewAnalyzer(gw, store, l,
		causal.WithExplanations(causal.NewFallbackExplanations(gen, m)),
		causal.WithMetrics(m),
	)
	if err := a.Configure(causal.Config{
		ConfidenceThreshold: cfg.Causal.ConfidenceThreshold,
		MaxFactors:          cfg.Causal.MaxFactors,
		UseCache:            cfg.Causal.UseCache,
		LookbackDays:        cfg.Causal.LookbackDays,
	}); err != nil {
		return nil, fmt.Errorf("causal analyzer: %w", err)
	}
	return a, nil
}

// ProvidePredictionEngine creates and configures the prediction engine.
func ProvidePredictionEngine(
	gw *marketdata.Gateway,
	store repository.AnalysisStore,
	gen service.TextGenerator,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) (*prediction.Engine, error) {
	e := prediction.NewEngine(gw, store, l,
		prediction.WithNarrator(prediction.NewLLMNarrator(gen)),
		prediction.WithMetrics(m),
	)
	var weights models.ModelWeights
	if len(cfg.Prediction.ModelWeights) > 0 {
		weights = make(models.ModelWeights, len(cfg.Prediction.ModelWeights))
		for k, w := range cfg.Prediction.ModelWeights {
			weights[models.ModelType(k)] = w
		}
	}
	if err := e.Configure(prediction.Config{
		ModelWeights:    weights,
		LookbackDays:    cfg.Prediction.LookbackDays,
		UseLLMScenarios: cfg.Prediction.UseLLMScenarios,
	}); err != nil {
		return nil, fmt.Errorf("prediction engine: %w", err)
	}
	return e, nil
}

// ProvideNarrativeGenerator creates and configures the narrative generator.
func ProvideNarrativeGenerator(
	gen service.TextGenerator,
	store repository.AnalysisStore,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) (*narrative.Generator, error) {
	g := narrative.NewGenerator(gen, store, l, narrative.WithMetrics(m))
	if err := g.Configure(narrative.Config{
		QualityThreshold: cfg.Narrative.QualityThreshold,
		AutoValidate:     cfg.Narrative.AutoValidate,
		IncludeDeepDive:  cfg.Narrative.IncludeDeepDive,
		TargetAudience:   cfg.Narrative.TargetAudience,
	}); err != nil {
		return nil, fmt.Errorf("narrative generator: %w", err)
	}
	return g, nil
}

// ProvideChartBuilder creates the visualization builder.
func ProvideChartBuilder(store repository.AnalysisStore, m repository.Metrics, l *applogger.Logger) *chart.Builder {
	return chart.NewBuilder(store, l, chart.WithMetrics(m))
}

// ProvidePipeline creates the end-to-end pipeline use case.
func ProvidePipeline(
	gw *marketdata.Gateway,
	analyzer *causal.Analyzer,
	engine *prediction.Engine,
	writer *narrative.Generator,
	charts *chart.Builder,
	pub repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.PipelineUseCase {
	return usecase.NewPipelineUseCase(gw, analyzer, engine, writer, charts, pub, m, l)
}

// ProvideCandles creates the candles use case.
func ProvideCandles(gw *marketdata.Gateway) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(gw)
}

// ProvideHTTPHandler registers the REST and streaming routes.
func ProvideHTTPHandler(
	l *applogger.Logger,
	gw *marketdata.Gateway,
	store repository.AnalysisStore,
	analyzer *causal.Analyzer,
	engine *prediction.Engine,
	writer *narrative.Generator,
	charts *chart.Builder,
	pipeline *usecase.PipelineUseCase,
	candles *usecase.CandlesUseCase,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewPipelineEchoHandler(l, gw, analyzer, store, engine, writer, charts, pipeline, candles),
		api.NewStreamEchoHandler(l, gw),
	}
}

// ProvideEventHandler consumes market events from the events topic.
func ProvideEventHandler(cfg *config.Config, pipeline *usecase.PipelineUseCase, m repository.Metrics) *usecase.EventHandler {
	return usecase.NewEventHandler(cfg.Kafka.EventsTopic, pipeline, m)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML. Nil
// when kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	log := l.With("kafka-events")
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.HookFuncs{
			Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
				var elapsed time.Duration
				if start, ok := pkgkafka.StartTime(ctx); ok {
					elapsed = time.Since(start)
				}
				log.Warn("event handling failed",
					applogger.Duration("elapsed", elapsed),
					applogger.String("topic", topic),
					applogger.String("key", string(km.Key)),
					applogger.String("trace_id", pkgkafka.TraceID(ctx)),
					applogger.Int("partition", km.Partition),
					applogger.Error(err),
				)
			},
		},
	))
	return consumer, nil
}

// ProvideCalibrationJob schedules weight calibration. Nil when disabled.
func ProvideCalibrationJob(cfg *config.Config, gw *marketdata.Gateway, engine *prediction.Engine, l *applogger.Logger) *usecase.CalibrationJob {
	if !cfg.Calibration.Enabled {
		return nil
	}
	return usecase.NewCalibrationJob(gw, engine, cfg.Calibration.Tickers, cfg.Calibration.Years, cfg.Calibration.Schedule, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	events *usecase.EventHandler,
	consumer *pkgkafka.Consumer,
	job *usecase.CalibrationJob,
	engine *prediction.Engine,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	rc *cache.RedisCache,
) *server.App {
	app := server.New(cfg, l, handler, engine)
	if consumer != nil {
		app.SetConsumer(consumer, events)
	}
	if job != nil {
		app.SetCalibration(job)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
		app.AddReadinessCheck("clickhouse", ch.Health)
	}
	if rc != nil {
		app.AddCloser("redis", rc)
		app.AddReadinessCheck("redis", rc.Ping)
	}
	return app
}
