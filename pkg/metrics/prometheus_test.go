package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"Naly/pkg/apperr"
)

func TestRecorderCountsErrorsByKind(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ObserveStage("causal", time.Millisecond, nil)
	r.ObserveStage("causal", time.Millisecond, apperr.Validation("bad"))
	r.ObserveStage("causal", time.Millisecond, errors.New("plain"))

	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("causal", string(apperr.KindValidation))); got != 1 {
		t.Fatalf("validation errors = %v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("causal", string(apperr.KindUnknown))); got != 1 {
		t.Fatalf("unknown errors = %v", got)
	}
}

func TestRecorderCache(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.RecordCacheResult("market_data", true)
	r.RecordCacheResult("market_data", false)
	r.RecordCacheResult("market_data", false)
	if got := testutil.ToFloat64(r.cacheResults.WithLabelValues("market_data", "miss")); got != 2 {
		t.Fatalf("misses = %v", got)
	}
}
