package service

import (
	"context"

	"Naly/internal/domain/models"
)

// TextPrompt is one request to a text-generation backend.
type TextPrompt struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// TextGenerator is the single capability behind every generated sentence.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt TextPrompt) (string, error)
}

// Forecaster is one heuristic price model.
type Forecaster interface {
	Type() models.ModelType
	// MinHistory is the shortest price series Predict accepts.
	MinHistory() int
	// Predict returns the next-step point estimate.
	Predict(prices []float64) float64
}

// ModelPerformanceEvaluator scores a forecaster against a price history.
// Scores are in [0,1], higher is better.
type ModelPerformanceEvaluator interface {
	Evaluate(ctx context.Context, f Forecaster, prices []float64) (float64, error)
}
