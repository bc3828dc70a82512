package usecase

import (
	"context"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/services/features"
	"Naly/pkg/apperr"
)

// CandlesUseCase builds OHLC bars from gateway samples.
type CandlesUseCase struct {
	data MarketData
}

func NewCandlesUseCase(data MarketData) *CandlesUseCase {
	return &CandlesUseCase{data: data}
}

type GetCandlesParams struct {
	Ticker    string
	From      time.Time
	To        time.Time
	Frequency models.Frequency
	Limit     int
}

type GetCandlesResult struct {
	Ticker    string        `json:"ticker"`
	Frequency string        `json:"frequency"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	Count     int           `json:"count"`
	Candles   []models.OHLC `json:"candles"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Ticker == "" {
		return nil, apperr.Validation("ticker required")
	}
	if !p.From.Before(p.To) {
		return nil, apperr.Validation("from must be before to")
	}
	if p.Limit <= 0 {
		p.Limit = 1000
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}

	points, err := uc.data.GetMarketData(ctx, models.MarketDataRequest{
		Ticker:    p.Ticker,
		DataTypes: []models.DataType{models.DataTypePrice, models.DataTypeVolume},
		StartDate: p.From,
		EndDate:   p.To,
		Frequency: p.Frequency,
	})
	if err != nil {
		return nil, err
	}

	candles := features.Candles(points, p.Frequency)
	if len(candles) > p.Limit {
		candles = candles[len(candles)-p.Limit:]
	}

	return &GetCandlesResult{
		Ticker:    p.Ticker,
		Frequency: string(p.Frequency),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}
