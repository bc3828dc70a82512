package llm

import (
	"context"
	"errors"
	"testing"

	"Naly/internal/domain/service"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
)

func TestGeneratorAppliesDefaultsAndReturnsText(t *testing.T) {
	var seen service.TextPrompt
	g := newGenerator(Config{Provider: "fake", RequestsPerSecond: 100}, func(_ context.Context, p service.TextPrompt) (string, error) {
		seen = p
		return "fine", nil
	}, applogger.Nop())

	out, err := g.GenerateText(context.Background(), service.TextPrompt{UserPrompt: "hi", Temperature: 0.4})
	if err != nil || out != "fine" {
		t.Fatalf("unexpected result %q %v", out, err)
	}
	if seen.MaxTokens != defaultMaxTokens || seen.Temperature != 0.4 {
		t.Fatalf("prompt not forwarded correctly: %+v", seen)
	}
}

func TestGeneratorWrapsBackendFailure(t *testing.T) {
	g := newGenerator(Config{Provider: "fake", Model: "m"}, func(context.Context, service.TextPrompt) (string, error) {
		return "", errors.New("overloaded")
	}, applogger.Nop())

	_, err := g.GenerateText(context.Background(), service.TextPrompt{UserPrompt: "hi"})
	if !apperr.IsKind(err, apperr.KindAIService) {
		t.Fatalf("expected ai service error, got %v", err)
	}
	var e *apperr.Error
	if !errors.As(err, &e) || e.Metadata["original_error"] != "overloaded" || e.Metadata["model"] != "m" {
		t.Fatalf("metadata lost: %+v", e)
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	g := newGenerator(Config{}, func(context.Context, service.TextPrompt) (string, error) {
		t.Fatalf("backend must not be called")
		return "", nil
	}, applogger.Nop())
	if _, err := g.GenerateText(context.Background(), service.TextPrompt{}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewWithoutKeyIsUnavailable(t *testing.T) {
	gen, err := New(context.Background(), Config{Provider: ProviderClaude}, applogger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := gen.(Unavailable); !ok {
		t.Fatalf("expected Unavailable, got %T", gen)
	}
	if _, err := gen.GenerateText(context.Background(), service.TextPrompt{UserPrompt: "x"}); !apperr.IsKind(err, apperr.KindAIService) {
		t.Fatalf("expected ai service error, got %v", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Config{Provider: "other", APIKey: "k"}, applogger.Nop()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseList(t *testing.T) {
	in := "1. Sector rotation out of tech\n\n- Profit taking after earnings\n* Options expiry\n2) Index rebalancing\n3M guidance cut"
	got := ParseList(in)
	want := []string{"Sector rotation out of tech", "Profit taking after earnings", "Options expiry", "Index rebalancing", "3M guidance cut"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d: got %q want %q", i, got[i], want[i])
		}
	}
}
