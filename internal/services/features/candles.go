package features

import (
	"time"

	"Naly/internal/domain/models"
)

// Candles groups price points into OHLC bars of frequency f, oldest first.
// Volume points falling in a bar are summed into it; bars without a price
// are dropped.
func Candles(points []models.MarketDataPoint, f models.Frequency) []models.OHLC {
	d := BarDuration(f)
	var out []models.OHLC
	index := map[time.Time]int{}
	for _, p := range SortedByTime(models.FilterByType(points, models.DataTypePrice)) {
		bucket := p.Timestamp.Truncate(d)
		i, ok := index[bucket]
		if !ok {
			index[bucket] = len(out)
			out = append(out, models.OHLC{Timestamp: bucket, Open: p.Value, High: p.Value, Low: p.Value, Close: p.Value})
			continue
		}
		c := &out[i]
		if p.Value > c.High {
			c.High = p.Value
		}
		if p.Value < c.Low {
			c.Low = p.Value
		}
		c.Close = p.Value
	}
	for _, p := range models.FilterByType(points, models.DataTypeVolume) {
		if i, ok := index[p.Timestamp.Truncate(d)]; ok {
			out[i].Volume += p.Value
		}
	}
	return out
}
