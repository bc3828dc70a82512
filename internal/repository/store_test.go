package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"Naly/internal/domain/models"
	domrepo "Naly/internal/domain/repository"
	"Naly/pkg/cache"
	"Naly/pkg/metrics"
)

type countingStore struct {
	*MemoryAnalysisStore
	gets int
}

func (c *countingStore) GetCausalAnalysis(ctx context.Context, id string) (*models.CausalAnalysis, error) {
	c.gets++
	return c.MemoryAnalysisStore.GetCausalAnalysis(ctx, id)
}

func TestCachedStoreServesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryAnalysisStore: NewMemoryAnalysisStore()}
	s := NewCachedAnalysisStore(inner, cache.NewMemoryCache(), time.Hour, metrics.Nop{})

	a := &models.CausalAnalysis{EventID: "e1", ConfidenceScore: 0.7}
	if err := s.SaveCausalAnalysis(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetCausalAnalysis(ctx, "e1")
	if err != nil || got.ConfidenceScore != 0.7 {
		t.Fatalf("unexpected %+v %v", got, err)
	}
	if inner.gets != 0 {
		t.Fatalf("expected cache hit, inner called %d times", inner.gets)
	}
}

func TestCachedStoreMissFallsThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryAnalysisStore: NewMemoryAnalysisStore()}
	_ = inner.MemoryAnalysisStore.SaveCausalAnalysis(ctx, &models.CausalAnalysis{EventID: "e2"})
	s := NewCachedAnalysisStore(inner, cache.NewMemoryCache(), time.Hour, metrics.Nop{})

	if _, err := s.GetCausalAnalysis(ctx, "e2"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := s.GetCausalAnalysis(ctx, "e2"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if inner.gets != 1 {
		t.Fatalf("expected one inner lookup, got %d", inner.gets)
	}
	if _, err := s.GetCausalAnalysis(ctx, "missing"); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type downCache struct{}

func (downCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("dial tcp: connection refused")
}

func (downCache) Get(context.Context, string, interface{}) error {
	return errors.New("dial tcp: connection refused")
}

func (downCache) Delete(context.Context, ...string) error { return nil }

type failureCounter struct {
	metrics.Nop
	failures int
}

func (f *failureCounter) RecordPersistenceFailure(string) { f.failures++ }

func TestCachedStoreSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryAnalysisStore: NewMemoryAnalysisStore()}
	m := &failureCounter{}
	s := NewCachedAnalysisStore(inner, downCache{}, time.Hour, m)

	if err := s.SaveCausalAnalysis(ctx, &models.CausalAnalysis{EventID: "e3", ConfidenceScore: 0.6}); err != nil {
		t.Fatalf("save must not fail on cache outage: %v", err)
	}
	got, err := s.GetCausalAnalysis(ctx, "e3")
	if err != nil || got.ConfidenceScore != 0.6 {
		t.Fatalf("expected inner store result, got %+v %v", got, err)
	}
	if inner.gets != 1 {
		t.Fatalf("expected one inner lookup, got %d", inner.gets)
	}
	// save write, get read, refill write
	if m.failures != 3 {
		t.Fatalf("expected 3 cache failures, got %d", m.failures)
	}
}

func TestMemoryStoreModelWeights(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAnalysisStore()
	if _, err := s.LoadModelWeights(ctx); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	w := models.ModelWeights{models.ModelLSTM: 0.6, models.ModelARIMA: 0.4}
	_ = s.SaveModelWeights(ctx, w)
	w[models.ModelLSTM] = 0
	got, err := s.LoadModelWeights(ctx)
	if err != nil || got[models.ModelLSTM] != 0.6 {
		t.Fatalf("weights should be copied, got %v %v", got, err)
	}
}

type recordingProducer struct {
	topic string
	key   []byte
	value interface{}
}

func (r *recordingProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	r.topic, r.key, r.value = topic, key, value
	return nil
}

func (r *recordingProducer) Close() error { return nil }

func TestKafkaPublisherKeysByEvent(t *testing.T) {
	rp := &recordingProducer{}
	p := NewKafkaPublisher(rp, "results")
	if err := p.PublishResult(context.Background(), "evt-9", map[string]int{"a": 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	b, _ := json.Marshal(rp.value)
	if rp.topic != "results" || string(rp.key) != "evt-9" || string(b) != `{"a":1}` {
		t.Fatalf("unexpected publish %s %s %s", rp.topic, rp.key, b)
	}
}
