package repository

import (
	"context"
	"sync"

	"Naly/internal/domain/models"
	domrepo "Naly/internal/domain/repository"
)

// MemoryAnalysisStore keeps pipeline outputs in process. Used when ClickHouse
// is disabled and in tests.
type MemoryAnalysisStore struct {
	mu             sync.RWMutex
	causal         map[string]models.CausalAnalysis
	predictive     map[string]models.PredictiveAnalysis
	narratives     map[string]models.IntelligentNarrative
	validations    []models.NarrativeValidation
	visualizations map[string]models.Visualization
	weights        models.ModelWeights
}

var _ domrepo.AnalysisStore = (*MemoryAnalysisStore)(nil)

func NewMemoryAnalysisStore() *MemoryAnalysisStore {
	return &MemoryAnalysisStore{
		causal:         make(map[string]models.CausalAnalysis),
		predictive:     make(map[string]models.PredictiveAnalysis),
		narratives:     make(map[string]models.IntelligentNarrative),
		visualizations: make(map[string]models.Visualization),
	}
}

func (s *MemoryAnalysisStore) SaveCausalAnalysis(_ context.Context, a *models.CausalAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.causal[a.EventID] = *a
	return nil
}

func (s *MemoryAnalysisStore) GetCausalAnalysis(_ context.Context, eventID string) (*models.CausalAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.causal[eventID]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	return &a, nil
}

func (s *MemoryAnalysisStore) SavePredictiveAnalysis(_ context.Context, p *models.PredictiveAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictive[p.EventID] = *p
	return nil
}

func (s *MemoryAnalysisStore) GetPredictiveAnalysis(_ context.Context, eventID string) (*models.PredictiveAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.predictive[eventID]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	return &p, nil
}

func (s *MemoryAnalysisStore) SaveNarrative(_ context.Context, n *models.IntelligentNarrative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narratives[n.ID] = *n
	return nil
}

// Narrative returns a stored narrative by id.
func (s *MemoryAnalysisStore) Narrative(id string) (models.IntelligentNarrative, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.narratives[id]
	return n, ok
}

func (s *MemoryAnalysisStore) SaveNarrativeValidation(_ context.Context, v *models.NarrativeValidation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validations = append(s.validations, *v)
	return nil
}

// Validations returns a copy of all recorded validations.
func (s *MemoryAnalysisStore) Validations() []models.NarrativeValidation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.NarrativeValidation(nil), s.validations...)
}

func (s *MemoryAnalysisStore) SaveVisualization(_ context.Context, v *models.Visualization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visualizations[v.ID] = *v
	return nil
}

// Visualization returns a stored visualization by id.
func (s *MemoryAnalysisStore) Visualization(id string) (models.Visualization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visualizations[id]
	return v, ok
}

func (s *MemoryAnalysisStore) SaveModelWeights(_ context.Context, w models.ModelWeights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = make(models.ModelWeights, len(w))
	for k, v := range w {
		s.weights[k] = v
	}
	return nil
}

func (s *MemoryAnalysisStore) LoadModelWeights(_ context.Context) (models.ModelWeights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.weights) == 0 {
		return nil, domrepo.ErrNotFound
	}
	out := make(models.ModelWeights, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out, nil
}
