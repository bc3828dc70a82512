package prediction

import (
	"math/rand"
	"sync"

	"Naly/internal/domain/models"
	"Naly/internal/domain/service"
	"Naly/pkg/util"
)

// DefaultForecasters returns the four heuristic models. rng drives the noise
// of the random-forest-like model.
func DefaultForecasters(rng *rand.Rand) []service.Forecaster {
	return []service.Forecaster{
		TrendProjection{},
		NewNoisyMean(rng),
		LeastSquares{},
		Differencing{},
	}
}

// modelConfidence is the fixed confidence each model reports.
var modelConfidence = map[models.ModelType]float64{
	models.ModelLSTM:             0.75,
	models.ModelRandomForest:     0.7,
	models.ModelLinearRegression: 0.65,
	models.ModelARIMA:            0.7,
}

// TrendProjection averages the last 10 prices and adds the window's linear
// trend projected 10 steps.
type TrendProjection struct{}

func (TrendProjection) Type() models.ModelType { return models.ModelLSTM }
func (TrendProjection) MinHistory() int        { return 10 }

func (TrendProjection) Predict(prices []float64) float64 {
	w := util.Last(prices, 10)
	trend := (w[len(w)-1] - w[0]) / float64(len(w)-1)
	return util.Mean(w) + trend*10
}

// NoisyMean perturbs the mean of the last 5 prices by a random factor scaled
// with their relative volatility.
type NoisyMean struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewNoisyMean(rng *rand.Rand) *NoisyMean { return &NoisyMean{rng: rng} }

func (*NoisyMean) Type() models.ModelType { return models.ModelRandomForest }
func (*NoisyMean) MinHistory() int        { return 5 }

func (m *NoisyMean) Predict(prices []float64) float64 {
	w := util.Last(prices, 5)
	mean := util.Mean(w)
	if mean == 0 {
		return 0
	}
	vol := util.StdDev(w) / mean

	m.mu.Lock()
	u := m.rng.Float64()*2 - 1
	m.mu.Unlock()

	return mean * (1 + u*vol)
}

// LeastSquares fits a line over the whole series and projects it one step
// past the end.
type LeastSquares struct{}

func (LeastSquares) Type() models.ModelType { return models.ModelLinearRegression }
func (LeastSquares) MinHistory() int        { return 3 }

func (LeastSquares) Predict(prices []float64) float64 {
	n := float64(len(prices))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range prices {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return prices[len(prices)-1]
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	return intercept + slope*n
}

// Differencing adds the mean of the last 5 first differences to the last price.
type Differencing struct{}

func (Differencing) Type() models.ModelType { return models.ModelARIMA }
func (Differencing) MinHistory() int        { return 10 }

func (Differencing) Predict(prices []float64) float64 {
	diffs := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		diffs = append(diffs, prices[i]-prices[i-1])
	}
	return prices[len(prices)-1] + util.Mean(util.Last(diffs, 5))
}
