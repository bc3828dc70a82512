package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Naly/internal/domain/models"
	domrepo "Naly/internal/domain/repository"
	pkgch "Naly/pkg/clickhouse"
	applogger "Naly/pkg/logger"
)

// CHAnalysisStore implements AnalysisStore backed by ClickHouse. Entities are
// stored as JSON payloads in ReplacingMergeTree tables so the newest row per
// key wins on merge.
type CHAnalysisStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var _ domrepo.AnalysisStore = (*CHAnalysisStore)(nil)

func NewCHAnalysisStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHAnalysisStore {
	return &CHAnalysisStore{db: ch.DB(), database: database, l: l.With("clickhouse-store")}
}

// Schema returns the idempotent DDL for the store's tables.
func (s *CHAnalysisStore) Schema() []string {
	db := s.database
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.causal_analyses (
			event_id String,
			confidence Float64,
			payload String,
			created_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(created_at) ORDER BY event_id`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.predictive_analyses (
			event_id String,
			time_horizon String,
			payload String,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at) ORDER BY event_id`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.narratives (
			id String,
			event_id String,
			status LowCardinality(String),
			payload String,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at) ORDER BY id`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.narrative_validations (
			narrative_id String,
			quality_score Float64,
			passed UInt8,
			payload String,
			validated_at DateTime64(3)
		) ENGINE = MergeTree ORDER BY (narrative_id, validated_at)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.visualizations (
			id String,
			type LowCardinality(String),
			payload String,
			created_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(created_at) ORDER BY id`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.model_weights (
			model LowCardinality(String),
			weight Float64,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at) ORDER BY model`, db),
	}
}

func (s *CHAnalysisStore) SaveCausalAnalysis(ctx context.Context, a *models.CausalAnalysis) error {
	q := fmt.Sprintf("INSERT INTO %s.causal_analyses (event_id, confidence, payload, created_at) VALUES (?, ?, ?, ?)", s.database)
	return s.insertJSON(ctx, "causal_analysis", q, a, a.EventID, a.ConfidenceScore)
}

func (s *CHAnalysisStore) GetCausalAnalysis(ctx context.Context, eventID string) (*models.CausalAnalysis, error) {
	q := fmt.Sprintf("SELECT payload FROM %s.causal_analyses WHERE event_id = ? ORDER BY created_at DESC LIMIT 1", s.database)
	var out models.CausalAnalysis
	if err := s.selectJSON(ctx, "causal_analysis", q, eventID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CHAnalysisStore) SavePredictiveAnalysis(ctx context.Context, p *models.PredictiveAnalysis) error {
	q := fmt.Sprintf("INSERT INTO %s.predictive_analyses (event_id, time_horizon, payload, updated_at) VALUES (?, ?, ?, ?)", s.database)
	return s.insertJSON(ctx, "predictive_analysis", q, p, p.EventID, p.TimeHorizon)
}

func (s *CHAnalysisStore) GetPredictiveAnalysis(ctx context.Context, eventID string) (*models.PredictiveAnalysis, error) {
	q := fmt.Sprintf("SELECT payload FROM %s.predictive_analyses WHERE event_id = ? ORDER BY updated_at DESC LIMIT 1", s.database)
	var out models.PredictiveAnalysis
	if err := s.selectJSON(ctx, "predictive_analysis", q, eventID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CHAnalysisStore) SaveNarrative(ctx context.Context, n *models.IntelligentNarrative) error {
	q := fmt.Sprintf("INSERT INTO %s.narratives (id, event_id, status, payload, updated_at) VALUES (?, ?, ?, ?, ?)", s.database)
	return s.insertJSON(ctx, "narrative", q, n, n.ID, n.EventID, string(n.Status))
}

func (s *CHAnalysisStore) SaveNarrativeValidation(ctx context.Context, v *models.NarrativeValidation) error {
	passed := uint8(0)
	if v.Passed {
		passed = 1
	}
	q := fmt.Sprintf("INSERT INTO %s.narrative_validations (narrative_id, quality_score, passed, payload, validated_at) VALUES (?, ?, ?, ?, ?)", s.database)
	return s.insertJSON(ctx, "narrative_validation", q, v, v.NarrativeID, v.QualityScore, passed)
}

func (s *CHAnalysisStore) SaveVisualization(ctx context.Context, v *models.Visualization) error {
	q := fmt.Sprintf("INSERT INTO %s.visualizations (id, type, payload, created_at) VALUES (?, ?, ?, ?)", s.database)
	return s.insertJSON(ctx, "visualization", q, v, v.ID, string(v.Type))
}

func (s *CHAnalysisStore) SaveModelWeights(ctx context.Context, w models.ModelWeights) error {
	if len(w) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save model weights: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s.model_weights (model, weight, updated_at) VALUES (?, ?, ?)", s.database))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save model weights: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for model, weight := range w {
		if _, err := stmt.ExecContext(ctx, string(model), weight, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save model weights: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save model weights: %w", err)
	}
	return nil
}

func (s *CHAnalysisStore) LoadModelWeights(ctx context.Context) (models.ModelWeights, error) {
	q := fmt.Sprintf("SELECT model, argMax(weight, updated_at) FROM %s.model_weights GROUP BY model", s.database)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load model weights: %w", err)
	}
	defer rows.Close()

	out := make(models.ModelWeights)
	for rows.Next() {
		var model string
		var weight float64
		if err := rows.Scan(&model, &weight); err != nil {
			return nil, fmt.Errorf("scan model weight: %w", err)
		}
		out[models.ModelType(model)] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, domrepo.ErrNotFound
	}
	return out, nil
}

// insertJSON appends the payload and current time after keyArgs.
func (s *CHAnalysisStore) insertJSON(ctx context.Context, entity, q string, v interface{}, keyArgs ...interface{}) error {
	start := time.Now()
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", entity, err)
	}
	args := append(keyArgs, string(payload), time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse insert error", applogger.String("entity", entity), applogger.Error(err))
		return fmt.Errorf("insert %s: %w", entity, err)
	}
	s.l.Debug("clickhouse insert ok",
		applogger.String("entity", entity),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHAnalysisStore) selectJSON(ctx context.Context, entity, q, key string, dest interface{}) error {
	var payload string
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domrepo.ErrNotFound
		}
		s.l.Error("clickhouse select error", applogger.String("entity", entity), applogger.Error(err))
		return fmt.Errorf("select %s: %w", entity, err)
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return fmt.Errorf("decode %s: %w", entity, err)
	}
	return nil
}
