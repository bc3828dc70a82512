package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"Naly/pkg/apperr"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	stageDuration *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	cacheResults  *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	persistFails  *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered on reg
// (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "naly_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naly_errors_total",
				Help: "Total number of pipeline errors by kind",
			},
			[]string{"stage", "kind"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naly_fallbacks_total",
				Help: "Times a deterministic fallback replaced generated text",
			},
			[]string{"stage"},
		),
		cacheResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naly_cache_requests_total",
				Help: "Cache lookups by result",
			},
			[]string{"cache", "result"},
		),
		rateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naly_rate_limited_total",
				Help: "Requests rejected by the request budget",
			},
			[]string{"scope"},
		),
		persistFails: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naly_persistence_failures_total",
				Help: "Best-effort writes that failed and were discarded",
			},
			[]string{"entity"},
		),
	}
}

// ObserveStage records stage latency and, on failure, its error kind.
func (r *Recorder) ObserveStage(stage string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		r.errorsTotal.WithLabelValues(stage, string(apperr.KindOf(err))).Inc()
	}
	r.stageDuration.WithLabelValues(stage, result).Observe(d.Seconds())
}

// RecordFallback counts a fallback to deterministic output.
func (r *Recorder) RecordFallback(stage string) {
	r.fallbacks.WithLabelValues(stage).Inc()
}

// RecordCacheResult counts a cache hit or miss.
func (r *Recorder) RecordCacheResult(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheResults.WithLabelValues(cache, result).Inc()
}

// RecordRateLimited counts a rejected request.
func (r *Recorder) RecordRateLimited(scope string) {
	r.rateLimited.WithLabelValues(scope).Inc()
}

// RecordPersistenceFailure counts a discarded storage error.
func (r *Recorder) RecordPersistenceFailure(entity string) {
	r.persistFails.WithLabelValues(entity).Inc()
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) ObserveStage(string, time.Duration, error) {}
func (Nop) RecordFallback(string)                     {}
func (Nop) RecordCacheResult(string, bool)            {}
func (Nop) RecordRateLimited(string)                  {}
func (Nop) RecordPersistenceFailure(string)           {}
