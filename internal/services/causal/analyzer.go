package causal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
	"Naly/pkg/metrics"
	"Naly/pkg/util"
)

const (
	methodology        = "multi-hypothesis causal inference over price, volume, news and calendar patterns"
	sourceRelevance    = 0.9
	minAltLikelihood   = 0.3
	minAlternatives    = 2
	recentEvidenceSpan = 7 * 24 * time.Hour
	contextLead        = 24 * time.Hour
	sampleFrequency    = models.FrequencyDay
)

// MarketData is the slice of the market data gateway the analyzer needs.
type MarketData interface {
	GetMarketData(ctx context.Context, req models.MarketDataRequest) ([]models.MarketDataPoint, error)
}

// Analyzer explains market events.
type Analyzer struct {
	data         MarketData
	store        repository.AnalysisStore
	explanations ExplanationSource
	metrics      repository.Metrics
	log          *applogger.Logger
	now          func() time.Time

	mu         sync.RWMutex
	cfg        Config
	configured bool
}

// Option configures Analyzer.
type Option func(*Analyzer)

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithExplanations sets the source of extra alternative explanations.
func WithExplanations(src ExplanationSource) Option {
	return func(a *Analyzer) { a.explanations = src }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates an analyzer. Configure must be called before use.
func NewAnalyzer(data MarketData, store repository.AnalysisStore, log *applogger.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		data:         data,
		store:        store,
		explanations: TemplateExplanations{},
		metrics:      metrics.Nop{},
		log:          log.With("causal"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configure validates and installs cfg.
func (a *Analyzer) Configure(cfg Config) error {
	cfg, err := NewConfig(cfg)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.cfg = cfg
	a.configured = true
	a.mu.Unlock()
	return nil
}

func (a *Analyzer) config() (Config, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg, a.configured
}

// AnalyzeEvent proposes causal hypotheses for event, selects a root cause and
// contributing factors and builds the evidence chain. With UseCache a stored
// analysis for the same event id is returned without recomputation.
func (a *Analyzer) AnalyzeEvent(ctx context.Context, event models.MarketEvent) (*models.CausalAnalysis, error) {
	cfg, ok := a.config()
	if !ok {
		return nil, apperr.MissingConfiguration("causal analyzer")
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	start := a.now()
	analysis, err := a.analyze(ctx, cfg, event)
	a.metrics.ObserveStage("causal", a.now().Sub(start), err)
	if err != nil {
		return nil, apperr.Wrap(err, func(err error) *apperr.Error {
			return apperr.Analysis(event.ID, err)
		})
	}
	return analysis, nil
}

func (a *Analyzer) analyze(ctx context.Context, cfg Config, event models.MarketEvent) (*models.CausalAnalysis, error) {
	if cfg.UseCache {
		cached, err := a.store.GetCausalAnalysis(ctx, event.ID)
		switch {
		case err == nil:
			a.metrics.RecordCacheResult("causal_analysis", true)
			return cached, nil
		case !errors.Is(err, repository.ErrNotFound):
			a.log.Warn("causal cache lookup failed", applogger.String("event_id", event.ID), applogger.Error(err))
		}
		a.metrics.RecordCacheResult("causal_analysis", false)
	}

	points, err := a.data.GetMarketData(ctx, models.MarketDataRequest{
		Ticker: event.Ticker,
		DataTypes: []models.DataType{
			models.DataTypePrice,
			models.DataTypeVolume,
			models.DataTypeNews,
			models.DataTypeSentiment,
		},
		StartDate: event.Timestamp.Add(-time.Duration(cfg.LookbackDays) * 24 * time.Hour),
		EndDate:   event.Timestamp.Add(contextLead),
		Frequency: sampleFrequency,
	})
	if err != nil {
		return nil, err
	}

	hyps := generateHypotheses(splitInputs(event, points))
	sort.SliceStable(hyps, func(i, j int) bool {
		return hyps[i].factor.Score() > hyps[j].factor.Score()
	})

	var root models.CausalFactor
	contributing := []models.CausalFactor{}
	selected := map[int]bool{}
	if len(hyps) == 0 {
		root = defaultRootCause(event)
	} else {
		root = hyps[0].factor
		selected[0] = true
		for i := 1; i < len(hyps) && len(contributing) < cfg.MaxFactors-1; i++ {
			if hyps[i].factor.Confidence < cfg.ConfidenceThreshold {
				continue
			}
			contributing = append(contributing, hyps[i].factor)
			selected[i] = true
		}
	}

	chain := buildEvidenceChain(root, contributing, event)
	alternatives := a.alternatives(ctx, cfg, event, root, hyps, selected)

	analysis := &models.CausalAnalysis{
		EventID:                 event.ID,
		RootCause:               root,
		ContributingFactors:     contributing,
		ConfidenceScore:         overallConfidence(root, contributing, chain, event.Timestamp),
		Methodology:             methodology,
		EvidenceChain:           chain,
		AlternativeExplanations: alternatives,
		CreatedAt:               a.now().UTC(),
	}

	a.save(ctx, analysis)

	a.log.Info("causal analysis complete",
		applogger.String("event_id", event.ID),
		applogger.String("ticker", event.Ticker),
		applogger.String("root_cause", string(root.Type)),
		applogger.Int("hypotheses", len(hyps)),
		applogger.Float64("confidence", analysis.ConfidenceScore),
	)
	return analysis, nil
}

func (a *Analyzer) alternatives(ctx context.Context, cfg Config, event models.MarketEvent, root models.CausalFactor, hyps []hypothesis, selected map[int]bool) []string {
	out := []string{}
	for i, h := range hyps {
		if selected[i] || h.likelihood < minAltLikelihood {
			continue
		}
		out = append(out, h.factor.Description)
	}

	if len(out) < minAlternatives && a.explanations != nil {
		extra, err := a.explanations.Alternatives(ctx, event, root, minAlternatives)
		if err != nil {
			a.log.Warn("alternative explanations unavailable", applogger.String("event_id", event.ID), applogger.Error(err))
		}
		out = append(out, extra...)
	}

	if len(out) > cfg.MaxAlternatives {
		out = out[:cfg.MaxAlternatives]
	}
	return out
}

// save persists the analysis. Storage failures are logged and dropped so the
// caller still receives its result.
func (a *Analyzer) save(ctx context.Context, analysis *models.CausalAnalysis) {
	if err := a.store.SaveCausalAnalysis(ctx, analysis); err != nil {
		a.metrics.RecordPersistenceFailure("causal_analysis")
		a.log.Warn("persist causal analysis failed",
			applogger.String("event_id", analysis.EventID),
			applogger.Error(err),
		)
	}
}

func buildEvidenceChain(root models.CausalFactor, contributing []models.CausalFactor, event models.MarketEvent) []models.EvidenceItem {
	chain := append([]models.EvidenceItem{}, root.SupportingEvidence...)
	for _, f := range contributing {
		chain = append(chain, f.SupportingEvidence...)
	}
	chain = append(chain, evidenceFrom(event.SourceData, sourceRelevance, "event_source", "event sample")...)

	sort.SliceStable(chain, func(i, j int) bool {
		if chain[i].RelevanceScore != chain[j].RelevanceScore {
			return chain[i].RelevanceScore > chain[j].RelevanceScore
		}
		return chain[i].Timestamp.After(chain[j].Timestamp)
	})
	return chain
}

// overallConfidence blends 60% root cause, 25% contributing average and 15%
// evidence quality.
func overallConfidence(root models.CausalFactor, contributing []models.CausalFactor, chain []models.EvidenceItem, ref time.Time) float64 {
	var contribAvg float64
	if len(contributing) > 0 {
		conf := make([]float64, len(contributing))
		for i, f := range contributing {
			conf[i] = f.Confidence
		}
		contribAvg = util.Mean(conf)
	}
	score := root.Confidence*0.6 + contribAvg*0.25 + evidenceQuality(chain, ref)*0.15
	return util.Clamp(score, 0, 1)
}

func evidenceQuality(chain []models.EvidenceItem, ref time.Time) float64 {
	if len(chain) == 0 {
		return 0
	}
	rel := make([]float64, len(chain))
	recent := 0
	for i, e := range chain {
		rel[i] = e.RelevanceScore
		if util.WithinWindow(e.Timestamp, ref, recentEvidenceSpan) {
			recent++
		}
	}
	return util.Mean(rel)*0.7 + float64(recent)/float64(len(chain))*0.3
}

func validateEvent(e models.MarketEvent) error {
	switch {
	case e.ID == "":
		return apperr.Validation("event id is required")
	case e.Ticker == "":
		return apperr.Validation("event ticker is required")
	case e.Timestamp.IsZero():
		return apperr.Validation("event timestamp is required")
	}
	return nil
}
