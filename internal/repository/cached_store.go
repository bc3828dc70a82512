package repository

import (
	"context"
	"errors"
	"time"

	"Naly/internal/domain/models"
	domrepo "Naly/internal/domain/repository"
	"Naly/pkg/cache"
)

const causalCachePrefix = "causal"

// CachedAnalysisStore fronts an AnalysisStore with a cache for the
// causal-analysis lookup by event id. Cache failures degrade to the inner
// store and are counted as persistence failures.
type CachedAnalysisStore struct {
	domrepo.AnalysisStore
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
}

var _ domrepo.AnalysisStore = (*CachedAnalysisStore)(nil)

func NewCachedAnalysisStore(inner domrepo.AnalysisStore, c cache.Service, ttl time.Duration, m domrepo.Metrics) *CachedAnalysisStore {
	return &CachedAnalysisStore{AnalysisStore: inner, cache: c, ttl: ttl, metrics: m}
}

func (s *CachedAnalysisStore) SaveCausalAnalysis(ctx context.Context, a *models.CausalAnalysis) error {
	if err := s.AnalysisStore.SaveCausalAnalysis(ctx, a); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, cache.Key(causalCachePrefix, a.EventID), a, s.ttl); err != nil {
		s.metrics.RecordPersistenceFailure("causal_cache")
	}
	return nil
}

func (s *CachedAnalysisStore) GetCausalAnalysis(ctx context.Context, eventID string) (*models.CausalAnalysis, error) {
	key := cache.Key(causalCachePrefix, eventID)

	var hit models.CausalAnalysis
	if err := s.cache.Get(ctx, key, &hit); err == nil {
		s.metrics.RecordCacheResult(causalCachePrefix, true)
		return &hit, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.RecordPersistenceFailure("causal_cache")
	}
	s.metrics.RecordCacheResult(causalCachePrefix, false)

	a, err := s.AnalysisStore.GetCausalAnalysis(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, a, s.ttl); err != nil {
		s.metrics.RecordPersistenceFailure("causal_cache")
	}
	return a, nil
}
