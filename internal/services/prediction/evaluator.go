package prediction

import (
	"context"
	"math"

	"Naly/internal/domain/models"
	"Naly/internal/domain/service"
	"Naly/pkg/apperr"
	"Naly/pkg/util"
)

// BacktestEvaluator scores a forecaster by one-step-ahead prediction over a
// price history: each price after the model's minimum history is predicted
// from the prices before it. The score is 1/(1+10*MAPE).
type BacktestEvaluator struct {
	// MaxSteps bounds the number of trailing steps evaluated. Zero means all.
	MaxSteps int
}

var _ service.ModelPerformanceEvaluator = BacktestEvaluator{}

func (b BacktestEvaluator) Evaluate(ctx context.Context, f service.Forecaster, prices []float64) (float64, error) {
	start := f.MinHistory()
	if len(prices) <= start {
		return 0, apperr.InsufficientData("%s needs more than %d prices, got %d", f.Type(), start, len(prices))
	}
	if b.MaxSteps > 0 && len(prices)-start > b.MaxSteps {
		start = len(prices) - b.MaxSteps
	}

	var apeSum float64
	var n int
	for t := start; t < len(prices); t++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		actual := prices[t]
		if actual <= 0 {
			continue
		}
		apeSum += math.Abs(f.Predict(prices[:t])-actual) / actual
		n++
	}
	if n == 0 {
		return 0, apperr.InsufficientData("no positive prices to score %s", f.Type())
	}
	return 1 / (1 + 10*apeSum/float64(n)), nil
}

// directionalPerformance backtests the weighted ensemble's base case as an
// up/down classifier over the trailing steps of prices.
func directionalPerformance(fs []service.Forecaster, weights models.ModelWeights, prices []float64, maxSteps int) models.Performance {
	minHist := math.MaxInt
	for _, f := range fs {
		minHist = min(minHist, f.MinHistory())
	}
	start := minHist
	if maxSteps > 0 && len(prices)-start > maxSteps {
		start = len(prices) - maxSteps
	}

	var tp, fp, tn, fn float64
	for t := start; t < len(prices); t++ {
		history := prices[:t]
		var sum, total float64
		for _, f := range fs {
			if len(history) < f.MinHistory() {
				continue
			}
			w := weights[f.Type()]
			sum += w * f.Predict(history)
			total += w
		}
		if total <= 0 {
			continue
		}
		predUp := sum/total > history[len(history)-1]
		actualUp := prices[t] > history[len(history)-1]
		switch {
		case predUp && actualUp:
			tp++
		case predUp && !actualUp:
			fp++
		case !predUp && !actualUp:
			tn++
		default:
			fn++
		}
	}

	n := tp + fp + tn + fn
	if n == 0 {
		return models.Performance{}
	}
	perf := models.Performance{Accuracy: (tp + tn) / n}
	if tp+fp > 0 {
		perf.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		perf.Recall = tp / (tp + fn)
	}
	if perf.Precision+perf.Recall > 0 {
		perf.F1Score = 2 * perf.Precision * perf.Recall / (perf.Precision + perf.Recall)
	}
	perf.Accuracy = util.Clamp(perf.Accuracy, 0, 1)
	return perf
}
