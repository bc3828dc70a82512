package narrative

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/internal/domain/service"
	"Naly/internal/service/llm"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
	"Naly/pkg/metrics"
	"Naly/pkg/util"
)

const (
	maxTags      = 10
	maxKeyPoints = 5

	// Weights of the quality blend.
	accuracyWeight    = 0.4
	readabilityWeight = 0.35
	biasWeight        = 0.25
)

// Generator writes intelligent narratives for analysed events.
type Generator struct {
	gen     service.TextGenerator
	store   repository.AnalysisStore
	metrics repository.Metrics
	log     *applogger.Logger
	now     func() time.Time
	newID   func() string

	mu         sync.RWMutex
	cfg        Config
	configured bool
}

// Option configures Generator.
type Option func(*Generator)

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithIDs overrides narrative id generation.
func WithIDs(newID func() string) Option {
	return func(g *Generator) { g.newID = newID }
}

// NewGenerator creates a generator. Configure must be called before use.
func NewGenerator(gen service.TextGenerator, store repository.AnalysisStore, log *applogger.Logger, opts ...Option) *Generator {
	g := &Generator{
		gen:     gen,
		store:   store,
		metrics: metrics.Nop{},
		log:     log.With("narrative"),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configure validates and installs cfg.
func (g *Generator) Configure(cfg Config) error {
	cfg, err := NewConfig(cfg)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.cfg = cfg
	g.configured = true
	g.mu.Unlock()
	return nil
}

func (g *Generator) config() (Config, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg, g.configured
}

// GenerateNarrative writes the summary, explanation, prediction and optional
// deep-dive sections for event. causal and prediction may be nil. With
// AutoValidate the narrative is scored and published when it passes.
func (g *Generator) GenerateNarrative(ctx context.Context, event models.MarketEvent, causal *models.CausalAnalysis, prediction *models.PredictiveAnalysis) (*models.IntelligentNarrative, error) {
	cfg, ok := g.config()
	if !ok {
		return nil, apperr.MissingConfiguration("narrative generator")
	}
	if event.ID == "" || event.Ticker == "" {
		return nil, apperr.Validation("event id and ticker are required")
	}

	start := g.now()
	n, err := g.generate(ctx, cfg, event, causal, prediction)
	g.metrics.ObserveStage("narrative", g.now().Sub(start), err)
	if err != nil {
		return nil, apperr.Wrap(err, func(err error) *apperr.Error {
			return apperr.AIService(apperr.SeverityMedium, err).WithMeta("event_id", event.ID)
		})
	}
	return n, nil
}

func (g *Generator) generate(ctx context.Context, cfg Config, event models.MarketEvent, causal *models.CausalAnalysis, prediction *models.PredictiveAnalysis) (*models.IntelligentNarrative, error) {
	facts := eventContext(event, causal, prediction)
	system := fmt.Sprintf(writerSystemPrompt, cfg.TargetAudience)

	write := func(s section, confidence float64) (models.ContentSection, error) {
		text, err := g.gen.GenerateText(ctx, service.TextPrompt{
			SystemPrompt: system,
			UserPrompt:   facts + "\n" + s.instruction,
			Temperature:  s.temperature,
			MaxTokens:    s.maxTokens,
		})
		if err != nil {
			return models.ContentSection{}, fmt.Errorf("%s section: %w", strings.ToLower(s.title), err)
		}
		content := strings.TrimSpace(text)
		return models.ContentSection{
			Title:      s.title,
			Content:    content,
			KeyPoints:  g.keyPoints(ctx, content),
			Confidence: confidence,
		}, nil
	}

	now := g.now().UTC()
	n := &models.IntelligentNarrative{
		ID:        g.newID(),
		EventID:   event.ID,
		Headline:  headline(event, causal),
		Status:    models.NarrativeDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	if n.Summary, err = write(summarySection, causalConfidence(causal)); err != nil {
		return nil, err
	}
	if n.Explanation, err = write(explanationSection, rootConfidence(causal)); err != nil {
		return nil, err
	}
	if n.Prediction, err = write(predictionSection, baseConfidence(prediction)); err != nil {
		return nil, err
	}
	if cfg.IncludeDeepDive {
		deep, err := write(deepDiveSection, util.Mean([]float64{causalConfidence(causal), baseConfidence(prediction)}))
		if err != nil {
			return nil, err
		}
		n.DeepDive = &deep
	}
	n.Metadata = buildMetadata(n, cfg.TargetAudience, event)
	n.Metadata.Version = 1

	g.save(ctx, n)

	if cfg.AutoValidate {
		g.validate(ctx, cfg, n)
	}

	g.log.Info("narrative generated",
		applogger.String("event_id", event.ID),
		applogger.String("narrative_id", n.ID),
		applogger.Int("reading_time", n.Metadata.ReadingTime),
		applogger.String("status", string(n.Status)),
	)
	return n, nil
}

// keyPoints extracts bullet points from content. When extraction fails the
// leading sentences are used instead.
func (g *Generator) keyPoints(ctx context.Context, content string) []string {
	text, err := g.gen.GenerateText(ctx, service.TextPrompt{
		UserPrompt:  fmt.Sprintf(keyPointsPrompt, content),
		Temperature: keyPointsTemp,
		MaxTokens:   keyPointsTokens,
	})
	var points []string
	if err == nil {
		points = llm.ParseList(text)
	}
	if len(points) == 0 {
		if err != nil {
			g.metrics.RecordFallback("narrative_key_points")
			g.log.Debug("key point extraction failed", applogger.Error(err))
		}
		points = leadingSentences(content, 3)
	}
	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return points
}

// AdaptNarrative re-renders every section of n for profile. The result is a
// new draft narrative with its own id and the same event id; n is not changed.
func (g *Generator) AdaptNarrative(ctx context.Context, n *models.IntelligentNarrative, profile models.UserProfile) (*models.IntelligentNarrative, error) {
	cfg, ok := g.config()
	if !ok {
		return nil, apperr.MissingConfiguration("narrative generator")
	}
	if n == nil || n.ID == "" {
		return nil, apperr.Validation("narrative is required")
	}
	if err := validate.Struct(profile); err != nil {
		return nil, apperr.Validation("user profile: %v", err)
	}

	rewrite := func(s *models.ContentSection, budget section) (models.ContentSection, error) {
		text, err := g.gen.GenerateText(ctx, service.TextPrompt{
			SystemPrompt: fmt.Sprintf(writerSystemPrompt, orDefault(profile.ExperienceLevel, cfg.TargetAudience)),
			UserPrompt:   adaptPrompt(s, profile),
			Temperature:  budget.temperature,
			MaxTokens:    budget.maxTokens,
		})
		if err != nil {
			return models.ContentSection{}, fmt.Errorf("adapt %s: %w", strings.ToLower(s.Title), err)
		}
		content := strings.TrimSpace(text)
		return models.ContentSection{
			Title:      s.Title,
			Content:    content,
			KeyPoints:  g.keyPoints(ctx, content),
			Confidence: s.Confidence,
		}, nil
	}

	now := g.now().UTC()
	out := &models.IntelligentNarrative{
		ID:             g.newID(),
		EventID:        n.EventID,
		Headline:       n.Headline,
		Visualizations: append([]models.Visualization(nil), n.Visualizations...),
		Status:         models.NarrativeDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var err error
	if out.Summary, err = rewrite(&n.Summary, summarySection); err != nil {
		return nil, g.adaptErr(n, err)
	}
	if out.Explanation, err = rewrite(&n.Explanation, explanationSection); err != nil {
		return nil, g.adaptErr(n, err)
	}
	if out.Prediction, err = rewrite(&n.Prediction, predictionSection); err != nil {
		return nil, g.adaptErr(n, err)
	}
	if n.DeepDive != nil {
		deep, err := rewrite(n.DeepDive, deepDiveSection)
		if err != nil {
			return nil, g.adaptErr(n, err)
		}
		out.DeepDive = &deep
	}

	audience := orDefault(profile.ExperienceLevel, n.Metadata.TargetAudience)
	out.Metadata = buildMetadata(out, audience, models.MarketEvent{})
	out.Metadata.TopicalTags = mergeTags(n.Metadata.TopicalTags, out.Metadata.TopicalTags)
	out.Metadata.Version = n.Metadata.Version + 1
	out.Metadata.AdaptedFor = orDefault(profile.UserID, audience)
	out.Metadata.SourceID = n.ID

	g.save(ctx, out)

	g.log.Info("narrative adapted",
		applogger.String("source_id", n.ID),
		applogger.String("narrative_id", out.ID),
		applogger.String("adapted_for", out.Metadata.AdaptedFor),
	)
	return out, nil
}

func (g *Generator) adaptErr(n *models.IntelligentNarrative, err error) error {
	return apperr.Wrap(err, func(err error) *apperr.Error {
		return apperr.AIService(apperr.SeverityMedium, err).WithMeta("narrative_id", n.ID)
	})
}

// ValidateNarrative scores n on a 0-100 scale and stores the validation.
// With AutoValidate a passing narrative is promoted to PUBLISHED.
func (g *Generator) ValidateNarrative(ctx context.Context, n *models.IntelligentNarrative) (float64, error) {
	cfg, ok := g.config()
	if !ok {
		return 0, apperr.MissingConfiguration("narrative generator")
	}
	if n == nil || n.ID == "" {
		return 0, apperr.Validation("narrative is required")
	}
	return g.validate(ctx, cfg, n).QualityScore, nil
}

func (g *Generator) validate(ctx context.Context, cfg Config, n *models.IntelligentNarrative) models.NarrativeValidation {
	text := fullText(n)

	accuracy := accuracyScore(n)
	readability := FleschReadingEase(text) / 100
	bias := biasScore(Sentiment(text))
	score := 100 * (accuracyWeight*accuracy + readabilityWeight*readability + biasWeight*bias)

	v := models.NarrativeValidation{
		NarrativeID:  n.ID,
		QualityScore: score,
		Accuracy:     accuracy,
		Readability:  readability,
		Bias:         bias,
		Passed:       score >= cfg.QualityThreshold,
		ValidatedAt:  g.now().UTC(),
	}
	if err := g.store.SaveNarrativeValidation(ctx, &v); err != nil {
		g.metrics.RecordPersistenceFailure("narrative_validation")
		g.log.Warn("persist narrative validation failed", applogger.String("narrative_id", n.ID), applogger.Error(err))
	}

	if cfg.AutoValidate && v.Passed && n.Status != models.NarrativePublished {
		n.Status = models.NarrativePublished
		n.UpdatedAt = v.ValidatedAt
		g.save(ctx, n)
	}

	g.log.Debug("narrative validated",
		applogger.String("narrative_id", n.ID),
		applogger.Float64("score", score),
		applogger.Bool("passed", v.Passed),
	)
	return v
}

func (g *Generator) save(ctx context.Context, n *models.IntelligentNarrative) {
	if err := g.store.SaveNarrative(ctx, n); err != nil {
		g.metrics.RecordPersistenceFailure("narrative")
		g.log.Warn("persist narrative failed", applogger.String("narrative_id", n.ID), applogger.Error(err))
	}
}

func buildMetadata(n *models.IntelligentNarrative, audience string, event models.MarketEvent) models.NarrativeMetadata {
	text := fullText(n)
	seed := []string{event.Ticker, strings.ReplaceAll(strings.ToLower(event.EventType), "_", " ")}
	return models.NarrativeMetadata{
		ReadingTime:     ReadingTime(text),
		ComplexityLevel: ComplexityLevel(FleschReadingEase(text)),
		TargetAudience:  audience,
		TopicalTags:     ExtractTags(text, maxTags, seed...),
		Sentiment:       Sentiment(text),
	}
}

func mergeTags(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, t := range b {
		if len(out) >= maxTags {
			break
		}
		dup := false
		for _, have := range out {
			if have == t {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t)
		}
	}
	return out
}

func fullText(n *models.IntelligentNarrative) string {
	parts := []string{n.Headline}
	for _, s := range n.Sections() {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n")
}

// accuracyScore is a fixed assessment: 0.9 when every section carries key
// points, 0.85 otherwise.
func accuracyScore(n *models.IntelligentNarrative) float64 {
	for _, s := range n.Sections() {
		if len(s.KeyPoints) == 0 {
			return 0.85
		}
	}
	return 0.9
}

// biasScore falls from 0.9 as the lexicon sentiment moves away from neutral.
func biasScore(sentiment float64) float64 {
	if sentiment < 0 {
		sentiment = -sentiment
	}
	return util.Clamp(0.9-2*sentiment, 0, 1)
}

func headline(event models.MarketEvent, causal *models.CausalAnalysis) string {
	kind := strings.ReplaceAll(strings.ToLower(event.EventType), "_", " ")
	if kind == "" {
		kind = "market move"
	}
	if causal == nil || causal.RootCause.Description == "" {
		return fmt.Sprintf("%s: %s", event.Ticker, kind)
	}
	return fmt.Sprintf("%s %s: %s", event.Ticker, kind, causal.RootCause.Description)
}

func causalConfidence(c *models.CausalAnalysis) float64 {
	if c == nil {
		return 0.5
	}
	return c.ConfidenceScore
}

func rootConfidence(c *models.CausalAnalysis) float64 {
	if c == nil {
		return 0.5
	}
	return c.RootCause.Confidence
}

func baseConfidence(p *models.PredictiveAnalysis) float64 {
	if p == nil {
		return 0.5
	}
	if base, ok := models.FindScenario(p.Scenarios, models.ScenarioBase); ok {
		return base.PriceTarget.Confidence
	}
	return 0.5
}

func leadingSentences(text string, n int) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' }) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == n {
			break
		}
	}
	return out
}
