package features

import (
	"math"
	"testing"
	"time"

	"Naly/internal/domain/models"
)

func TestSeriesOrdersByTime(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []models.MarketDataPoint{
		{DataType: models.DataTypePrice, Value: 3, Timestamp: t0.Add(2 * time.Hour)},
		{DataType: models.DataTypeVolume, Value: 99, Timestamp: t0},
		{DataType: models.DataTypePrice, Value: 1, Timestamp: t0},
		{DataType: models.DataTypePrice, Value: 2, Timestamp: t0.Add(time.Hour)},
	}
	got := Series(points, models.DataTypePrice)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected series %v", got)
	}
}

func TestPercentChangeAndVolatility(t *testing.T) {
	prices := []float64{50, 100, 101, 104, 108, 112}
	if got := PercentChange(prices, 5); math.Abs(got-0.12) > 1e-9 {
		t.Fatalf("expected 12%% change, got %v", got)
	}
	flat := []float64{100, 100, 100, 100, 100}
	if RelativeVolatility(flat, 5) != 0 {
		t.Fatalf("flat series should have zero volatility")
	}
	if PercentChange([]float64{100}, 5) != 0 {
		t.Fatalf("single price should have zero change")
	}
}

func TestVolumeRatio(t *testing.T) {
	if got := VolumeRatio([]float64{100, 100, 100, 300}); got != 3 {
		t.Fatalf("expected ratio 3, got %v", got)
	}
	if VolumeRatio([]float64{0, 10}) != 0 {
		t.Fatalf("zero prior average should yield 0")
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	r := LogReturns([]float64{100, 110, 0, 121})
	if len(r) != 3 || math.Abs(r[0]-math.Log(1.1)) > 1e-12 || r[1] != 0 || r[2] != 0 {
		t.Fatalf("unexpected returns %v", r)
	}

	cases := []struct {
		name   string
		prices []float64
		freq   models.Frequency
		want   float64
	}{
		{"flat", []float64{100, 100, 100, 100}, models.FrequencyDay, 0},
		{"too short", []float64{100, 110}, models.FrequencyDay, 0},
		// returns alternate +x and -x, so the deviation is x
		{"daily", []float64{100, 110, 100, 110, 100}, models.FrequencyDay, math.Log(1.1) * math.Sqrt(252)},
		{"weekly", []float64{100, 110, 100, 110, 100}, models.FrequencyWeek, math.Log(1.1) * math.Sqrt(52)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AnnualizedVolatility(tc.prices, 5, tc.freq); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 3, 1, 13, 45, 0, 0, time.UTC)
	to := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	f, e := AlignFromTo(from, to, models.FrequencyDay)
	if !f.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !e.Equal(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %v %v", f, e)
	}
	aligned := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if _, e := AlignFromTo(from, aligned, models.FrequencyDay); !e.Equal(aligned) {
		t.Fatalf("aligned end should not move, got %v", e)
	}
}

func TestCandles(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pt := func(dt models.DataType, h int, v float64) models.MarketDataPoint {
		return models.MarketDataPoint{DataType: dt, Timestamp: day.Add(time.Duration(h) * time.Hour), Value: v}
	}
	points := []models.MarketDataPoint{
		pt(models.DataTypePrice, 15, 103),
		pt(models.DataTypePrice, 10, 100),
		pt(models.DataTypePrice, 12, 108),
		pt(models.DataTypePrice, 13, 97),
		pt(models.DataTypeVolume, 10, 500),
		pt(models.DataTypeVolume, 14, 700),
		pt(models.DataTypePrice, 34, 110),
		pt(models.DataTypeVolume, 60, 900),
	}

	got := Candles(points, models.FrequencyDay)
	if len(got) != 2 {
		t.Fatalf("expected 2 bars, got %+v", got)
	}
	want := models.OHLC{Timestamp: day, Open: 100, High: 108, Low: 97, Close: 103, Volume: 1200}
	if got[0] != want {
		t.Fatalf("got %+v want %+v", got[0], want)
	}
	if got[1].Open != 110 || got[1].Close != 110 || got[1].Volume != 0 || !got[1].Timestamp.Equal(day.Add(24*time.Hour)) {
		t.Fatalf("unexpected second bar %+v", got[1])
	}
}
