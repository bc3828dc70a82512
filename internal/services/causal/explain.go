package causal

import (
	"context"
	"fmt"
	"strings"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/internal/domain/service"
	"Naly/internal/service/llm"
	"Naly/pkg/metrics"
)

// ExplanationSource proposes extra alternative explanations for an event.
type ExplanationSource interface {
	Alternatives(ctx context.Context, event models.MarketEvent, root models.CausalFactor, n int) ([]string, error)
}

// LLMExplanations asks a text generator for alternatives.
type LLMExplanations struct {
	gen service.TextGenerator
}

func NewLLMExplanations(gen service.TextGenerator) *LLMExplanations {
	return &LLMExplanations{gen: gen}
}

func (l *LLMExplanations) Alternatives(ctx context.Context, event models.MarketEvent, root models.CausalFactor, n int) ([]string, error) {
	text, err := l.gen.GenerateText(ctx, service.TextPrompt{
		SystemPrompt: "You are a market analyst. Answer with a plain list, one explanation per line, no preamble.",
		UserPrompt: fmt.Sprintf(
			"A %s event hit %s at %s with magnitude %.0f/100 and significance %.2f.\n"+
				"The leading explanation is: %s (%s, confidence %.2f).\n"+
				"Give %d other plausible explanations, each under 25 words.",
			event.EventType, event.Ticker, event.Timestamp.Format("2006-01-02 15:04 MST"),
			event.Magnitude, event.Significance, root.Description, root.Type, root.Confidence, n,
		),
		Temperature: 0.6,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, err
	}
	items := llm.ParseList(text)
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

// TemplateExplanations produces fixed alternatives from the event alone.
type TemplateExplanations struct{}

func (TemplateExplanations) Alternatives(_ context.Context, event models.MarketEvent, root models.CausalFactor, n int) ([]string, error) {
	candidates := []string{
		fmt.Sprintf("Broad market movement carried %s rather than a company-specific catalyst", event.Ticker),
		fmt.Sprintf("Sector rotation shifted flows into or out of %s", event.Ticker),
		fmt.Sprintf("Positioning and liquidity effects amplified an otherwise minor %s move", strings.ToLower(event.EventType)),
	}
	if root.Type == models.FactorMarketSentiment {
		candidates[0] = fmt.Sprintf("Macro-economic news moved the whole market, including %s", event.Ticker)
	}
	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// FallbackExplanations tries Primary and falls back to Fallback on error or
// an empty answer.
type FallbackExplanations struct {
	Primary  ExplanationSource
	Fallback ExplanationSource
	Metrics  repository.Metrics
}

// NewFallbackExplanations asks gen first and falls back to the templates.
// A nil gen goes straight to the templates.
func NewFallbackExplanations(gen service.TextGenerator, m repository.Metrics) FallbackExplanations {
	f := FallbackExplanations{Fallback: TemplateExplanations{}, Metrics: m}
	if gen != nil {
		f.Primary = NewLLMExplanations(gen)
	}
	return f
}

func (f FallbackExplanations) Alternatives(ctx context.Context, event models.MarketEvent, root models.CausalFactor, n int) ([]string, error) {
	if f.Primary != nil {
		items, err := f.Primary.Alternatives(ctx, event, root, n)
		if err == nil && len(items) > 0 {
			return items, nil
		}
	}
	m := f.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	m.RecordFallback("causal_alternatives")
	return f.Fallback.Alternatives(ctx, event, root, n)
}
