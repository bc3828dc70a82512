package prediction

import (
	"context"
	"fmt"
	"strings"

	"Naly/internal/domain/models"
	"Naly/internal/domain/service"
	"Naly/pkg/apperr"
)

const (
	sourceLLM      = "llm"
	sourceEnsemble = "ensemble"
)

// ScenarioNarrator writes descriptions and key drivers for ensemble
// scenarios. Implementations must keep types, probabilities and price
// targets unchanged.
type ScenarioNarrator interface {
	Narrate(ctx context.Context, event models.MarketEvent, ensemble *models.EnsemblePrediction, pctx models.PredictionContext) ([]models.PredictionScenario, error)
}

// LLMNarrator asks a text generator for one line per scenario in the form
// "BULL_CASE: description | driver; driver".
type LLMNarrator struct {
	gen service.TextGenerator
}

func NewLLMNarrator(gen service.TextGenerator) *LLMNarrator {
	return &LLMNarrator{gen: gen}
}

func (n *LLMNarrator) Narrate(ctx context.Context, event models.MarketEvent, ensemble *models.EnsemblePrediction, pctx models.PredictionContext) ([]models.PredictionScenario, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s event at %s, magnitude %.0f/100.\n", event.Ticker, event.EventType, event.Timestamp.Format("2006-01-02"), event.Magnitude)
	if ca := pctx.CausalAnalysis; ca != nil {
		fmt.Fprintf(&b, "Root cause: %s (confidence %.2f).\n", ca.RootCause.Description, ca.RootCause.Confidence)
		for _, f := range ca.ContributingFactors {
			fmt.Fprintf(&b, "Contributing: %s.\n", f.Description)
		}
	}
	b.WriteString("Ensemble scenarios:\n")
	for _, s := range ensemble.Scenarios {
		fmt.Fprintf(&b, "%s: target %.2f (range %.2f-%.2f), probability %.2f\n",
			s.Type, s.PriceTarget.Value, s.PriceTarget.Range.Low, s.PriceTarget.Range.High, s.Probability)
	}
	b.WriteString("For each scenario write exactly one line: TYPE: one-sentence description | driver; driver; driver")

	text, err := n.gen.GenerateText(ctx, service.TextPrompt{
		SystemPrompt: "You are an equity strategist. Do not change the numbers you are given.",
		UserPrompt:   b.String(),
		Temperature:  0.7,
		MaxTokens:    600,
	})
	if err != nil {
		return nil, err
	}
	return applyNarration(ensemble.Scenarios, text)
}

// applyNarration copies scenarios and fills descriptions and drivers from the
// model's lines. Every scenario must be covered.
func applyNarration(scenarios []models.PredictionScenario, text string) ([]models.PredictionScenario, error) {
	lines := map[models.ScenarioType]string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "0123456789.)-*• ")
		typ, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		lines[models.ScenarioType(strings.ToUpper(strings.TrimSpace(typ)))] = strings.TrimSpace(rest)
	}

	out := make([]models.PredictionScenario, len(scenarios))
	for i, s := range scenarios {
		line, ok := lines[s.Type]
		if !ok || line == "" {
			return nil, apperr.AIService(apperr.SeverityLow, fmt.Errorf("narration missing %s", s.Type))
		}
		desc, drivers, _ := strings.Cut(line, "|")
		s.Description = strings.TrimSpace(desc)
		if parsed := splitDrivers(drivers); len(parsed) > 0 {
			s.KeyDrivers = parsed
		}
		out[i] = s
	}
	return out, nil
}

func splitDrivers(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ";") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// EnsembleNarrator returns the ensemble's own scenarios, with key drivers
// taken from the causal context when present.
type EnsembleNarrator struct{}

func (EnsembleNarrator) Narrate(_ context.Context, _ models.MarketEvent, ensemble *models.EnsemblePrediction, pctx models.PredictionContext) ([]models.PredictionScenario, error) {
	out := append([]models.PredictionScenario(nil), ensemble.Scenarios...)
	if ca := pctx.CausalAnalysis; ca != nil {
		for i := range out {
			if out[i].Type == models.ScenarioBear {
				continue
			}
			drivers := []string{ca.RootCause.Description}
			for _, f := range ca.ContributingFactors {
				drivers = append(drivers, f.Description)
			}
			out[i].KeyDrivers = drivers
		}
	}
	return out, nil
}
