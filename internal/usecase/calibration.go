package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"Naly/internal/domain/models"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
)

type HistoricalData interface {
	GetHistoricalData(ctx context.Context, ticker string, years float64) ([]models.MarketDataPoint, error)
}

type Calibrator interface {
	CalibrateModels(ctx context.Context, historical []models.MarketDataPoint) (models.ModelWeights, error)
}

// CalibrationJob recalibrates the ensemble weights on a cron schedule.
// Tickers are tried in order and the first one with usable history wins.
type CalibrationJob struct {
	data     HistoricalData
	engine   Calibrator
	tickers  []string
	years    float64
	schedule string
	timeout  time.Duration
	log      *applogger.Logger

	cron *cron.Cron
	mu   sync.Mutex
}

func NewCalibrationJob(data HistoricalData, engine Calibrator, tickers []string, years float64, schedule string, log *applogger.Logger) *CalibrationJob {
	return &CalibrationJob{
		data:     data,
		engine:   engine,
		tickers:  tickers,
		years:    years,
		schedule: schedule,
		timeout:  5 * time.Minute,
		log:      log.With("calibration"),
		cron:     cron.New(),
	}
}

// Start registers the job and starts the scheduler.
func (j *CalibrationJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Error("scheduled calibration failed", applogger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("add calibration job: %w", err)
	}
	j.cron.Start()
	j.log.Info("calibration scheduler started", applogger.String("schedule", j.schedule), applogger.Strings("tickers", j.tickers))
	return nil
}

// Stop stops the scheduler and waits for a running calibration, or ctx.
func (j *CalibrationJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	j.log.Info("calibration scheduler stopped")
}

// RunOnce calibrates against the first ticker that has enough history.
// Runs do not overlap.
func (j *CalibrationJob) RunOnce(ctx context.Context) (models.ModelWeights, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.tickers) == 0 {
		return nil, apperr.Validation("no calibration tickers configured")
	}
	var lastErr error
	for _, ticker := range j.tickers {
		points, err := j.data.GetHistoricalData(ctx, ticker, j.years)
		if err != nil {
			lastErr = err
			j.log.Warn("calibration history unavailable", applogger.String("ticker", ticker), applogger.Error(err))
			continue
		}
		weights, err := j.engine.CalibrateModels(ctx, points)
		if err != nil {
			lastErr = err
			j.log.Warn("calibration failed", applogger.String("ticker", ticker), applogger.Error(err))
			continue
		}
		j.log.Info("calibration complete", applogger.String("ticker", ticker), applogger.Any("weights", weights))
		return weights, nil
	}
	return nil, fmt.Errorf("calibration failed for all tickers: %w", lastErr)
}
