package features

import (
	"math"
	"sort"
	"time"

	"Naly/internal/domain/models"
	"Naly/pkg/util"
)

// Series returns the values of points of type dt ordered by timestamp.
func Series(points []models.MarketDataPoint, dt models.DataType) []float64 {
	filtered := SortedByTime(models.FilterByType(points, dt))
	return models.Values(filtered)
}

// SortedByTime returns a copy of points ordered oldest first.
func SortedByTime(points []models.MarketDataPoint) []models.MarketDataPoint {
	out := append([]models.MarketDataPoint(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// LogReturns returns ln(p[i]/p[i-1]) for each consecutive pair. Pairs with a
// non-positive price contribute 0.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := range out {
		if a, b := prices[i], prices[i+1]; a > 0 && b > 0 {
			out[i] = math.Log(b / a)
		}
	}
	return out
}

// AnnualizedVolatility scales the deviation of the trailing window of log
// returns to a year of bars of f.
func AnnualizedVolatility(prices []float64, window int, f models.Frequency) float64 {
	r := util.Last(LogReturns(prices), window)
	if len(r) < 2 {
		return 0
	}
	return util.StdDev(r) * math.Sqrt(barsPerYear(f))
}

// RelativeVolatility is the coefficient of variation of the trailing window
// of prices, as a fraction.
func RelativeVolatility(prices []float64, window int) float64 {
	w := util.Last(prices, window)
	m := util.Mean(w)
	if len(w) < 2 || m == 0 {
		return 0
	}
	return util.StdDev(w) / math.Abs(m)
}

// PercentChange is the fractional change from the first to the last price of
// the trailing window.
func PercentChange(prices []float64, window int) float64 {
	w := util.Last(prices, window)
	if len(w) < 2 || w[0] == 0 {
		return 0
	}
	return (w[len(w)-1] - w[0]) / w[0]
}

// VolumeRatio compares the latest volume with the average of the earlier ones.
func VolumeRatio(volumes []float64) float64 {
	if len(volumes) < 2 {
		return 0
	}
	prior := util.Mean(volumes[:len(volumes)-1])
	if prior <= 0 {
		return 0
	}
	return volumes[len(volumes)-1] / prior
}

// barsPerYear counts trading-session bars, 252 sessions of 390 minutes.
func barsPerYear(f models.Frequency) float64 {
	switch f {
	case models.FrequencyMinute:
		return 252 * 390
	case models.Frequency5Min:
		return 252 * 78
	case models.FrequencyHour:
		return 252 * 7
	case models.FrequencyWeek:
		return 52
	default:
		return 252
	}
}

// BarDuration returns the length of one bar of f.
func BarDuration(f models.Frequency) time.Duration {
	switch f {
	case models.FrequencyMinute:
		return time.Minute
	case models.Frequency5Min:
		return 5 * time.Minute
	case models.FrequencyHour:
		return time.Hour
	case models.FrequencyWeek:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// AlignFromTo widens a time range to bar boundaries of the frequency.
func AlignFromTo(from, to time.Time, f models.Frequency) (time.Time, time.Time) {
	d := BarDuration(f)
	from = from.Truncate(d)
	if aligned := to.Truncate(d); !aligned.Equal(to) {
		to = aligned.Add(d)
	}
	return from, to
}
