package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"Naly/internal/domain/models"
	domrepo "Naly/internal/domain/repository"
	pkgkafka "Naly/pkg/kafka"
)

var validate = validator.New()

// EventHandler consumes market events from Kafka and runs the pipeline.
type EventHandler struct {
	topic    string
	pipeline *PipelineUseCase
	metrics  domrepo.Metrics
}

func NewEventHandler(topic string, pipeline *PipelineUseCase, metrics domrepo.Metrics) *EventHandler {
	return &EventHandler{topic: topic, pipeline: pipeline, metrics: metrics}
}

func (h *EventHandler) Topic() string { return h.topic }

// Handle decodes one EventRequest. Malformed events are returned as errors so
// the consumer can retry or dead-letter them; stage failures are not.
func (h *EventHandler) Handle(ctx context.Context, b []byte) error {
	start := time.Now()

	var req models.EventRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.ObserveStage("event_decode", time.Since(start), err)
		return fmt.Errorf("decode market event: %w", err)
	}
	if err := defaults.Set(&req); err != nil {
		return fmt.Errorf("market event defaults: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		h.metrics.ObserveStage("event_decode", time.Since(start), err)
		return fmt.Errorf("invalid market event: %w", err)
	}

	_, err := h.pipeline.Run(ctx, req.ToEvent())
	h.metrics.ObserveStage("event_consume", time.Since(start), err)
	return err
}

var _ pkgkafka.MessageHandler = (*EventHandler)(nil)
