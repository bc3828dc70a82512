package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"Naly/internal/domain/service"
)

func claudeBackend(apiKey, model string) completeFunc {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	send := client.Messages.New

	return func(ctx context.Context, p service.TextPrompt) (string, error) {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(p.MaxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(p.UserPrompt)),
			},
		}
		if p.Temperature > 0 {
			params.Temperature = anthropic.Float(p.Temperature)
		}
		if p.SystemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: p.SystemPrompt}}
		}

		resp, err := send(ctx, params)
		if err != nil {
			return "", err
		}

		var b strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if b.Len() == 0 {
			return "", errors.New("claude returned no text blocks")
		}
		return strings.TrimSpace(b.String()), nil
	}
}
