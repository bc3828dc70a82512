package llm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"Naly/internal/domain/service"
)

func geminiBackend(ctx context.Context, apiKey, model string) (completeFunc, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, p service.TextPrompt) (string, error) {
		cfg := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(p.Temperature)),
			MaxOutputTokens: int32(p.MaxTokens),
		}
		if p.SystemPrompt != "" {
			cfg.SystemInstruction = genai.NewContentFromText(p.SystemPrompt, genai.RoleUser)
		}

		contents := []*genai.Content{genai.NewContentFromText(p.UserPrompt, genai.RoleUser)}
		resp, err := client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return "", err
		}

		var b strings.Builder
		if resp != nil {
			for _, cand := range resp.Candidates {
				if cand == nil || cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part != nil && part.Text != "" {
						b.WriteString(part.Text)
					}
				}
				if b.Len() > 0 {
					break
				}
			}
		}
		if b.Len() == 0 {
			return "", errors.New("gemini returned no text")
		}
		return strings.TrimSpace(b.String()), nil
	}, nil
}
