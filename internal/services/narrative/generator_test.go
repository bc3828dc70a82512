package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/domain/service"
	"Naly/internal/repository"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
)

const (
	sectionText = "The stock rose on strong demand. Buyers stepped in. The trend may hold."
	adaptedText = "Prices went up. Many people bought. It may keep going."
)

var eventTime = time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

type scriptedGen struct {
	mu           sync.Mutex
	prompts      []service.TextPrompt
	failKeys     bool
	failSections bool
}

func (g *scriptedGen) GenerateText(_ context.Context, p service.TextPrompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	switch {
	case strings.HasPrefix(p.UserPrompt, "List the 3 to 5"):
		if g.failKeys {
			return "", apperr.AIService(apperr.SeverityLow, errors.New("overloaded"))
		}
		return "- Demand lifted the stock\n- Buyers stepped in", nil
	case g.failSections:
		return "", apperr.AIService(apperr.SeverityMedium, errors.New("upstream down"))
	case strings.HasPrefix(p.UserPrompt, "Rewrite the section"):
		return adaptedText, nil
	default:
		return sectionText, nil
	}
}

func (g *scriptedGen) sectionPrompts() []service.TextPrompt {
	var out []service.TextPrompt
	for _, p := range g.prompts {
		if !strings.HasPrefix(p.UserPrompt, "List the 3 to 5") {
			out = append(out, p)
		}
	}
	return out
}

type failingStore struct {
	*repository.MemoryAnalysisStore
}

func (failingStore) SaveNarrative(context.Context, *models.IntelligentNarrative) error {
	return errors.New("disk full")
}

func (failingStore) SaveNarrativeValidation(context.Context, *models.NarrativeValidation) error {
	return errors.New("disk full")
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("n-%d", n)
	}
}

func newGenerator(t *testing.T, gen service.TextGenerator, cfg Config) (*Generator, *repository.MemoryAnalysisStore) {
	t.Helper()
	store := repository.NewMemoryAnalysisStore()
	g := NewGenerator(gen, store, applogger.Nop(),
		WithIDs(sequentialIDs()),
		WithClock(func() time.Time { return eventTime }),
	)
	if err := g.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return g, store
}

func testEvent() models.MarketEvent {
	return models.MarketEvent{ID: "e1", Ticker: "AAPL", EventType: "PRICE_SPIKE", Timestamp: eventTime, Magnitude: 85, Significance: 0.9}
}

func testCausal() *models.CausalAnalysis {
	return &models.CausalAnalysis{
		EventID:         "e1",
		RootCause:       models.CausalFactor{Type: models.FactorMarketSentiment, Description: "Price rally on heavy buying", Impact: models.ImpactHigh, Confidence: 0.74},
		ConfidenceScore: 0.72,
	}
}

func testPrediction() *models.PredictiveAnalysis {
	return &models.PredictiveAnalysis{
		EventID:     "e1",
		TimeHorizon: "1 week",
		Scenarios: []models.PredictionScenario{
			{Type: models.ScenarioBull, Probability: 0.25, PriceTarget: models.PriceTarget{Value: 115, Confidence: 0.7}},
			{Type: models.ScenarioBase, Probability: 0.5, PriceTarget: models.PriceTarget{Value: 100, Confidence: 0.68}},
			{Type: models.ScenarioBear, Probability: 0.25, PriceTarget: models.PriceTarget{Value: 85, Confidence: 0.7}},
		},
	}
}

func TestGenerateNarrative(t *testing.T) {
	gen := &scriptedGen{}
	g, store := newGenerator(t, gen, Config{AutoValidate: true, IncludeDeepDive: true})

	n, err := g.GenerateNarrative(context.Background(), testEvent(), testCausal(), testPrediction())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n.ID != "n-1" || n.EventID != "e1" || n.DeepDive == nil {
		t.Fatalf("unexpected narrative %+v", n)
	}
	if !strings.Contains(n.Headline, "Price rally on heavy buying") {
		t.Fatalf("headline should name the root cause: %q", n.Headline)
	}

	budgets := []struct {
		tokens int
		temp   float64
	}{{300, 0.5}, {800, 0.4}, {600, 0.7}, {1000, 0.5}}
	prompts := gen.sectionPrompts()
	if len(prompts) != len(budgets) || len(gen.prompts) != 2*len(budgets) {
		t.Fatalf("expected 4 section calls each followed by key points, got %d of %d", len(prompts), len(gen.prompts))
	}
	for i, b := range budgets {
		if prompts[i].MaxTokens != b.tokens || prompts[i].Temperature != b.temp {
			t.Fatalf("section %d: got %d/%v want %d/%v", i, prompts[i].MaxTokens, prompts[i].Temperature, b.tokens, b.temp)
		}
	}

	for _, s := range n.Sections() {
		if s.Content != sectionText || len(s.KeyPoints) != 2 {
			t.Fatalf("unexpected section %+v", s)
		}
	}
	if n.Summary.Confidence != 0.72 || n.Explanation.Confidence != 0.74 || n.Prediction.Confidence != 0.68 {
		t.Fatalf("unexpected section confidences %v %v %v", n.Summary.Confidence, n.Explanation.Confidence, n.Prediction.Confidence)
	}

	md := n.Metadata
	if md.ReadingTime != 1 || md.Version != 1 || md.TargetAudience != "retail" {
		t.Fatalf("unexpected metadata %+v", md)
	}
	if len(md.TopicalTags) == 0 || md.TopicalTags[0] != "aapl" || len(md.TopicalTags) > 10 {
		t.Fatalf("unexpected tags %v", md.TopicalTags)
	}
	if md.Sentiment <= 0 {
		t.Fatalf("positive text should score positive sentiment, got %v", md.Sentiment)
	}

	if n.Status != models.NarrativePublished {
		t.Fatalf("passing narrative should be published, got %s", n.Status)
	}
	stored, ok := store.Narrative("n-1")
	if !ok || stored.Status != models.NarrativePublished {
		t.Fatalf("published narrative not persisted: %+v", stored)
	}
	if vs := store.Validations(); len(vs) != 1 || !vs[0].Passed || vs[0].NarrativeID != "n-1" {
		t.Fatalf("validation not recorded: %+v", vs)
	}
}

func TestGenerateWithoutDeepDive(t *testing.T) {
	gen := &scriptedGen{}
	g, store := newGenerator(t, gen, Config{})

	n, err := g.GenerateNarrative(context.Background(), testEvent(), nil, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n.DeepDive != nil || len(gen.prompts) != 6 {
		t.Fatalf("deep dive should be skipped, got %d calls", len(gen.prompts))
	}
	if n.Status != models.NarrativeDraft || len(store.Validations()) != 0 {
		t.Fatalf("narrative should stay a draft without auto validation")
	}
	if n.Summary.Confidence != 0.5 {
		t.Fatalf("missing analyses should give neutral confidence, got %v", n.Summary.Confidence)
	}
}

func TestKeyPointsFallBackToSentences(t *testing.T) {
	g, _ := newGenerator(t, &scriptedGen{failKeys: true}, Config{})

	n, err := g.GenerateNarrative(context.Background(), testEvent(), testCausal(), testPrediction())
	if err != nil {
		t.Fatalf("key point failures must not fail the narrative: %v", err)
	}
	want := []string{"The stock rose on strong demand", "Buyers stepped in", "The trend may hold"}
	if strings.Join(n.Summary.KeyPoints, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v want %v", n.Summary.KeyPoints, want)
	}
}

func TestSectionFailurePropagates(t *testing.T) {
	g, store := newGenerator(t, &scriptedGen{failSections: true}, Config{})

	_, err := g.GenerateNarrative(context.Background(), testEvent(), testCausal(), testPrediction())
	if !apperr.IsKind(err, apperr.KindAIService) {
		t.Fatalf("expected AI service error, got %v", err)
	}
	if _, ok := store.Narrative("n-1"); ok {
		t.Fatalf("failed narrative must not be stored")
	}
}

func TestPersistenceFailureStillReturnsNarrative(t *testing.T) {
	g := NewGenerator(&scriptedGen{}, failingStore{repository.NewMemoryAnalysisStore()}, applogger.Nop())
	if err := g.Configure(Config{AutoValidate: true}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	n, err := g.GenerateNarrative(context.Background(), testEvent(), testCausal(), testPrediction())
	if err != nil || n == nil || n.Summary.Content == "" || n.ID == "" {
		t.Fatalf("expected a full narrative, got %+v %v", n, err)
	}
}

func TestAdaptNarrative(t *testing.T) {
	g, store := newGenerator(t, &scriptedGen{}, Config{IncludeDeepDive: true})
	original, err := g.GenerateNarrative(context.Background(), testEvent(), testCausal(), testPrediction())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	before := *original

	profile := models.UserProfile{UserID: "u1", ExperienceLevel: "beginner", PreferredComplexity: "simple", RiskTolerance: "conservative"}
	adapted, err := g.AdaptNarrative(context.Background(), original, profile)
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}

	if adapted.ID == original.ID || adapted.EventID != original.EventID {
		t.Fatalf("adaptation needs a new id for the same event: %s %s", adapted.ID, adapted.EventID)
	}
	if adapted.Metadata.SourceID != original.ID || adapted.Metadata.Version != 2 || adapted.Metadata.AdaptedFor != "u1" {
		t.Fatalf("unexpected adapted metadata %+v", adapted.Metadata)
	}
	if adapted.Summary.Content != adaptedText || adapted.DeepDive == nil || adapted.DeepDive.Content != adaptedText {
		t.Fatalf("sections not rewritten: %+v", adapted.Summary)
	}
	if original.Summary.Content != before.Summary.Content || original.ID != before.ID || original.DeepDive.Content != sectionText {
		t.Fatalf("original narrative was modified")
	}
	if _, ok := store.Narrative(adapted.ID); !ok {
		t.Fatalf("adapted narrative not stored")
	}

	bad := models.UserProfile{ExperienceLevel: "guru"}
	if _, err := g.AdaptNarrative(context.Background(), original, bad); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateNarrativeThreshold(t *testing.T) {
	g, store := newGenerator(t, &scriptedGen{}, Config{})
	n, err := g.GenerateNarrative(context.Background(), testEvent(), testCausal(), testPrediction())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	score, err := g.ValidateNarrative(context.Background(), n)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if score < 70 || score > 100 {
		t.Fatalf("unexpected score %v", score)
	}
	if n.Status != models.NarrativeDraft {
		t.Fatalf("without auto validation the status must not change")
	}

	strict, _ := newGenerator(t, &scriptedGen{}, Config{AutoValidate: true, QualityThreshold: 99})
	n2, err := strict.GenerateNarrative(context.Background(), testEvent(), testCausal(), testPrediction())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n2.Status != models.NarrativeDraft {
		t.Fatalf("narrative below threshold must stay a draft")
	}
	if len(store.Validations()) != 1 {
		t.Fatalf("expected one validation row, got %d", len(store.Validations()))
	}
}

func TestGeneratorRequiresConfiguration(t *testing.T) {
	g := NewGenerator(&scriptedGen{}, repository.NewMemoryAnalysisStore(), applogger.Nop())
	if _, err := g.GenerateNarrative(context.Background(), testEvent(), nil, nil); !apperr.IsKind(err, apperr.KindMissingConfiguration) {
		t.Fatalf("expected missing configuration, got %v", err)
	}
	if err := g.Configure(Config{QualityThreshold: 150}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := g.Configure(Config{TargetAudience: "kids"}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
