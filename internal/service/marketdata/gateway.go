package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/internal/service/ratelimit"
	"Naly/internal/services/features"
	"Naly/pkg/apperr"
	"Naly/pkg/cache"
	applogger "Naly/pkg/logger"
	"Naly/pkg/metrics"
)

const (
	budgetKey       = "market-data"
	recentTTL       = 5 * time.Minute
	historicalTTL   = 60 * time.Minute
	recentWindow    = 24 * time.Hour
	maxStreamTicker = 50
	minYears        = 0.1
	maxYears        = 20
)

// Gateway fetches, validates and caches market data and enforces the
// request budget in front of the provider.
type Gateway struct {
	provider      repository.MarketDataProvider
	streamFactory func() repository.MarketStream
	cache         cache.Service
	limiter       *ratelimit.Limiter
	metrics       repository.Metrics
	log           *applogger.Logger
	now           func() time.Time
}

// Option configures Gateway.
type Option func(*Gateway)

// WithCache sets the response cache.
func WithCache(c cache.Service) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithLimiter sets the request budget.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithStreamFactory sets how live streams are created.
func WithStreamFactory(f func() repository.MarketStream) Option {
	return func(g *Gateway) { g.streamFactory = f }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a gateway with an in-memory cache and a
// 100 requests/minute budget unless overridden.
func NewGateway(provider repository.MarketDataProvider, log *applogger.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		provider: provider,
		metrics:  metrics.Nop{},
		log:      log.With("market-data"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = cache.NewMemoryCache(cache.WithClock(g.now))
	}
	if g.limiter == nil {
		g.limiter = ratelimit.New(100, time.Minute, ratelimit.WithClock(g.now))
	}
	return g
}

// GetMarketData returns samples for the request, from cache when possible.
func (g *Gateway) GetMarketData(ctx context.Context, req models.MarketDataRequest) ([]models.MarketDataPoint, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	key, err := cacheKey(req)
	if err != nil {
		return nil, apperr.Validation("unserializable request: %v", err)
	}

	var cached []models.MarketDataPoint
	if err := g.cache.Get(ctx, key, &cached); err == nil {
		g.metrics.RecordCacheResult("market_data", true)
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		g.log.Warn("market data cache read failed", applogger.Error(err))
	}
	g.metrics.RecordCacheResult("market_data", false)

	if ok, resetAt := g.limiter.Allow(budgetKey); !ok {
		g.metrics.RecordRateLimited(budgetKey)
		return nil, apperr.RateLimited(resetAt).
			WithMeta("budget_limit", g.limiter.Limit()).
			WithMeta("budget_remaining", g.limiter.Remaining(budgetKey))
	}

	start := g.now()
	points, err := g.provider.FetchMarketData(ctx, req)
	g.metrics.ObserveStage("market_data", g.now().Sub(start), err)
	if err != nil {
		return nil, apperr.Wrap(err, func(err error) *apperr.Error {
			return apperr.APIConnection(0, true, "market data fetch failed").WithError(err)
		})
	}

	if err := g.cache.Set(ctx, key, points, g.ttlFor(req)); err != nil {
		g.log.Warn("market data cache write failed", applogger.Error(err))
	}

	g.log.Debug("market data fetched",
		applogger.String("ticker", req.Ticker),
		applogger.Int("points", len(points)),
		applogger.Int("budget_remaining", g.limiter.Remaining(budgetKey)),
	)
	return points, nil
}

// GetHistoricalData returns daily price and volume history over the trailing
// years. The range is aligned to whole days so repeated calls share a cache entry.
func (g *Gateway) GetHistoricalData(ctx context.Context, ticker string, years float64) ([]models.MarketDataPoint, error) {
	if years < minYears || years > maxYears {
		return nil, apperr.Validation("years must be between %.1f and %.0f, got %v", minYears, float64(maxYears), years)
	}
	end := g.now().UTC()
	start, end := features.AlignFromTo(end.Add(-time.Duration(years*365*24*float64(time.Hour))), end, models.FrequencyDay)
	return g.GetMarketData(ctx, models.MarketDataRequest{
		Ticker:    ticker,
		DataTypes: []models.DataType{models.DataTypePrice, models.DataTypeVolume},
		StartDate: start,
		EndDate:   end,
		Frequency: models.FrequencyDay,
	})
}

// StreamMarketData opens a live stream for 1 to 50 tickers. The caller must
// Close the returned handle.
func (g *Gateway) StreamMarketData(ctx context.Context, tickers []string) (*Stream, error) {
	if len(tickers) == 0 || len(tickers) > maxStreamTicker {
		return nil, apperr.Validation("between 1 and %d tickers required, got %d", maxStreamTicker, len(tickers))
	}
	clean := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			return nil, apperr.Validation("empty ticker in stream request")
		}
		clean = append(clean, t)
	}
	if g.streamFactory == nil {
		return nil, apperr.MissingConfiguration("market-data stream")
	}

	src := g.streamFactory()
	if err := src.Connect(ctx); err != nil {
		return nil, apperr.APIConnection(0, true, "stream connect failed").WithError(err)
	}
	if err := src.Subscribe(ctx, clean); err != nil {
		_ = src.Close()
		return nil, apperr.APIConnection(0, true, "stream subscribe failed").WithError(err)
	}

	sctx, cancel := context.WithCancel(ctx)
	points, errs := src.Read(sctx)
	g.log.Info("market data stream opened", applogger.Strings("tickers", clean))
	return &Stream{points: points, errs: errs, cancel: cancel, src: src}, nil
}

func (g *Gateway) ttlFor(req models.MarketDataRequest) time.Duration {
	if g.now().Sub(req.EndDate) < recentWindow {
		return recentTTL
	}
	return historicalTTL
}

func normalizeRequest(req models.MarketDataRequest) (models.MarketDataRequest, error) {
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Ticker == "" {
		return req, apperr.Validation("ticker is required")
	}
	if len(req.DataTypes) == 0 {
		return req, apperr.Validation("at least one data type is required")
	}
	for _, dt := range req.DataTypes {
		if !dt.IsValid() {
			return req, apperr.Validation("unknown data type %q", dt)
		}
	}
	if !req.StartDate.Before(req.EndDate) {
		return req, apperr.Validation("startDate must be before endDate")
	}
	req.Frequency = models.NormalizeFrequency(string(req.Frequency))
	return req, nil
}

func cacheKey(req models.MarketDataRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return cache.Key("md", cache.Digest(string(b))), nil
}

// Stream is a live market data subscription.
type Stream struct {
	points <-chan models.MarketDataPoint
	errs   <-chan error
	cancel context.CancelFunc
	src    repository.MarketStream
	once   sync.Once
}

// Points yields samples until the stream is closed or fails.
func (s *Stream) Points() <-chan models.MarketDataPoint { return s.points }

// Errors yields at most one terminal error.
func (s *Stream) Errors() <-chan error { return s.errs }

// Close stops reading and closes the connection.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.src.Close()
		s.cancel()
	})
	return err
}
