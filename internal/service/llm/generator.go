package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"Naly/internal/domain/service"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
)

const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"

	defaultClaudeModel = "claude-3-5-haiku-latest"
	defaultGeminiModel = "gemini-2.0-flash"
	defaultMaxTokens   = 1024
)

// Config selects and tunes the text-generation backend.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// completeFunc sends one prompt to a backend and returns its text.
type completeFunc func(ctx context.Context, p service.TextPrompt) (string, error)

// Generator implements service.TextGenerator with pacing, a per-call
// timeout and typed errors around a provider backend.
type Generator struct {
	provider string
	model    string
	timeout  time.Duration
	limiter  *rate.Limiter
	complete completeFunc
	log      *applogger.Logger
}

var _ service.TextGenerator = (*Generator)(nil)

// New builds a generator for cfg.Provider. Without an API key it returns
// Unavailable so callers take their deterministic fallbacks.
func New(ctx context.Context, cfg Config, log *applogger.Logger) (service.TextGenerator, error) {
	log = log.With("llm")
	if cfg.APIKey == "" {
		log.Warn("no llm api key configured, text generation disabled", applogger.String("provider", cfg.Provider))
		return Unavailable{Reason: "no api key for " + cfg.Provider}, nil
	}

	switch cfg.Provider {
	case ProviderClaude:
		if cfg.Model == "" {
			cfg.Model = defaultClaudeModel
		}
		return newGenerator(cfg, claudeBackend(cfg.APIKey, cfg.Model), log), nil
	case ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = defaultGeminiModel
		}
		complete, err := geminiBackend(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return newGenerator(cfg, complete, log), nil
	default:
		return nil, apperr.Validation("unknown llm provider %q", cfg.Provider)
	}
}

func newGenerator(cfg Config, complete completeFunc, log *applogger.Logger) *Generator {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Generator{
		provider: cfg.Provider,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		complete: complete,
		log:      log,
	}
}

// GenerateText sends the prompt and returns the trimmed response text.
// Failures are AI_SERVICE_ERROR; an exhausted context is returned as is.
func (g *Generator) GenerateText(ctx context.Context, p service.TextPrompt) (string, error) {
	if p.UserPrompt == "" {
		return "", apperr.Validation("empty user prompt")
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaultMaxTokens
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm pacing: %w", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.complete(ctx, p)
	if err != nil {
		g.log.Warn("text generation failed",
			applogger.String("provider", g.provider),
			applogger.String("model", g.model),
			applogger.Duration("elapsed", time.Since(start)),
			applogger.Error(err),
		)
		return "", apperr.AIService(apperr.SeverityMedium, err).
			WithMeta("provider", g.provider).
			WithMeta("model", g.model)
	}
	if text == "" {
		return "", apperr.AIService(apperr.SeverityMedium, errors.New("empty completion")).
			WithMeta("provider", g.provider)
	}

	g.log.Debug("text generated",
		applogger.String("provider", g.provider),
		applogger.Int("chars", len(text)),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

// Unavailable always fails with AI_SERVICE_ERROR.
type Unavailable struct {
	Reason string
}

func (u Unavailable) GenerateText(context.Context, service.TextPrompt) (string, error) {
	return "", apperr.AIService(apperr.SeverityLow, errors.New("text generation unavailable: "+u.Reason))
}
