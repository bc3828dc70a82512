package chart

import (
	"fmt"
	"math"

	"Naly/internal/domain/models"
	"Naly/internal/services/features"
	"Naly/pkg/apperr"
)

// Input is the data a chart is built from. Each chart type reads the field it
// needs and rejects input without it. Ticker only labels the chart.
type Input struct {
	Ticker     string
	Points     []models.MarketDataPoint
	OHLC       []models.OHLC
	Categories []models.CategoryValue
	Prediction *models.PredictiveAnalysis
	Causal     *models.CausalAnalysis
}

type transformer func(in Input) ([]models.DataSeries, error)

var transformers = map[models.ChartType]transformer{
	models.ChartLine:        lineSeries,
	models.ChartCandlestick: candlestickSeries,
	models.ChartBar:         barSeries,
	models.ChartFan:         fanSeries,
	models.ChartProbability: probabilitySeries,
	models.ChartWaterfall:   waterfallSeries,
}

// lineSeries emits one series per data type, oldest first.
func lineSeries(in Input) ([]models.DataSeries, error) {
	if len(in.Points) == 0 {
		return nil, apperr.Validation("line chart needs market data points")
	}
	var out []models.DataSeries
	byType := map[models.DataType]int{}
	for _, p := range features.SortedByTime(in.Points) {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, apperr.Validation("line chart point at %s is not a number", p.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		}
		i, ok := byType[p.DataType]
		if !ok {
			i = len(out)
			byType[p.DataType] = i
			out = append(out, models.DataSeries{Name: string(p.DataType), Color: seriesColor(i)})
		}
		out[i].Data = append(out[i].Data, models.SeriesPoint{X: p.Timestamp, Y: p.Value})
	}
	return out, nil
}

func candlestickSeries(in Input) ([]models.DataSeries, error) {
	if len(in.OHLC) == 0 {
		return nil, apperr.Validation("candlestick chart needs OHLC bars")
	}
	s := models.DataSeries{Name: "ohlc", Style: "candlestick"}
	for i, b := range in.OHLC {
		if b.High < math.Max(b.Open, b.Close) || b.Low > math.Min(b.Open, b.Close) || b.Low < 0 {
			return nil, apperr.Validation("bar %d has inconsistent open/high/low/close", i)
		}
		if i > 0 && !b.Timestamp.After(in.OHLC[i-1].Timestamp) {
			return nil, apperr.Validation("bar %d is not after the previous bar", i)
		}
		s.Data = append(s.Data, models.SeriesPoint{
			X:     b.Timestamp,
			Y:     b.Close,
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		})
	}
	return []models.DataSeries{s}, nil
}

func barSeries(in Input) ([]models.DataSeries, error) {
	if len(in.Categories) == 0 {
		return nil, apperr.Validation("bar chart needs categories")
	}
	if err := validateCategories(in.Categories); err != nil {
		return nil, err
	}
	s := models.DataSeries{Name: "values", Style: "bar"}
	for _, c := range in.Categories {
		s.Data = append(s.Data, models.SeriesPoint{X: c.Label, Y: c.Value, Label: c.Label})
	}
	return []models.DataSeries{s}, nil
}

// fanSeries draws one line per scenario from the starting price to its
// target, plus the confidence band. The start is the last price when points
// are given and the base target otherwise.
func fanSeries(in Input) ([]models.DataSeries, error) {
	p := in.Prediction
	if err := checkScenarios(p, "fan"); err != nil {
		return nil, err
	}
	base, _ := models.FindScenario(p.Scenarios, models.ScenarioBase)
	start := base.PriceTarget.Value
	if prices := features.Series(in.Points, models.DataTypePrice); len(prices) > 0 {
		start = prices[len(prices)-1]
	}
	horizon := p.TimeHorizon
	if horizon == "" {
		horizon = "horizon"
	}

	out := make([]models.DataSeries, 0, len(p.Scenarios)+1)
	for i, s := range p.Scenarios {
		out = append(out, models.DataSeries{
			Name:  string(s.Type),
			Color: scenarioColor(s.Type, i),
			Style: "dashed",
			Data: []models.SeriesPoint{
				{X: "now", Y: start},
				{
					X:     horizon,
					Y:     s.PriceTarget.Value,
					Low:   s.PriceTarget.Range.Low,
					High:  s.PriceTarget.Range.High,
					Label: fmt.Sprintf("%.0f%%", s.Probability*100),
				},
			},
		})
	}
	ci := p.Uncertainty.ConfidenceInterval
	out = append(out, models.DataSeries{
		Name:  "confidence_interval",
		Style: "area",
		Data: []models.SeriesPoint{
			{X: "now", Y: start, Low: start, High: start},
			{X: horizon, Y: base.PriceTarget.Value, Low: ci.Lower, High: ci.Upper, Label: fmt.Sprintf("%.0f%%", ci.Level*100)},
		},
	})
	return out, nil
}

func probabilitySeries(in Input) ([]models.DataSeries, error) {
	p := in.Prediction
	if err := checkScenarios(p, "probability"); err != nil {
		return nil, err
	}
	var sum float64
	s := models.DataSeries{Name: "probability", Style: "bar"}
	for _, sc := range p.Scenarios {
		if sc.Probability < 0 || sc.Probability > 1 {
			return nil, apperr.Validation("scenario %s probability %.3f is outside [0, 1]", sc.Type, sc.Probability)
		}
		sum += sc.Probability
		s.Data = append(s.Data, models.SeriesPoint{
			X:     string(sc.Type),
			Y:     sc.Probability,
			Label: fmt.Sprintf("%.0f%%", sc.Probability*100),
		})
	}
	if math.Abs(sum-1) > 1e-6 {
		return nil, apperr.Validation("scenario probabilities sum to %.4f, want 1", sum)
	}
	return []models.DataSeries{s}, nil
}

// waterfallSeries stacks causal factor scores, or plain categories, into
// running totals. Open and Close hold the total before and after each step.
func waterfallSeries(in Input) ([]models.DataSeries, error) {
	steps := in.Categories
	if c := in.Causal; c != nil {
		steps = []models.CategoryValue{{Label: string(c.RootCause.Type), Value: c.RootCause.Score()}}
		for _, f := range c.ContributingFactors {
			steps = append(steps, models.CategoryValue{Label: string(f.Type), Value: f.Score()})
		}
	}
	if len(steps) == 0 {
		return nil, apperr.Validation("waterfall chart needs a causal analysis or categories")
	}
	if err := validateCategories(steps); err != nil {
		return nil, err
	}

	s := models.DataSeries{Name: "contribution", Style: "waterfall"}
	var total float64
	for _, st := range steps {
		open := total
		total += st.Value
		s.Data = append(s.Data, models.SeriesPoint{X: st.Label, Y: st.Value, Open: open, Close: total, Label: st.Label})
	}
	s.Data = append(s.Data, models.SeriesPoint{X: "total", Y: total, Close: total, Label: "total"})
	return []models.DataSeries{s}, nil
}

func validateCategories(cs []models.CategoryValue) error {
	for i := range cs {
		if err := validate.Struct(cs[i]); err != nil {
			return apperr.Validation("category %d: %v", i, err)
		}
		if math.IsNaN(cs[i].Value) || math.IsInf(cs[i].Value, 0) {
			return apperr.Validation("category %q is not a number", cs[i].Label)
		}
	}
	return nil
}

func checkScenarios(p *models.PredictiveAnalysis, chart string) error {
	if p == nil || len(p.Scenarios) == 0 {
		return apperr.Validation("%s chart needs a prediction with scenarios", chart)
	}
	if _, ok := models.FindScenario(p.Scenarios, models.ScenarioBase); !ok {
		return apperr.Validation("%s chart needs a base case scenario", chart)
	}
	return nil
}

var palette = []string{"#2563eb", "#f59e0b", "#10b981", "#ef4444", "#8b5cf6", "#6b7280"}

func seriesColor(i int) string { return palette[i%len(palette)] }

func scenarioColor(t models.ScenarioType, i int) string {
	switch t {
	case models.ScenarioBull:
		return "#10b981"
	case models.ScenarioBear:
		return "#ef4444"
	case models.ScenarioBase:
		return "#2563eb"
	default:
		return seriesColor(i)
	}
}
