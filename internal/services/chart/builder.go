package chart

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
	"Naly/pkg/metrics"
)

const (
	annotationThreshold = 0.10
	maxAnnotations      = 5
)

var validate = validator.New()

// Builder turns analysis outputs into chart-ready visualizations.
type Builder struct {
	store   repository.AnalysisStore
	metrics repository.Metrics
	log     *applogger.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures Builder.
type Option func(*Builder)

func WithMetrics(m repository.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func WithIDs(newID func() string) Option {
	return func(b *Builder) { b.newID = newID }
}

func NewBuilder(store repository.AnalysisStore, log *applogger.Logger, opts ...Option) *Builder {
	b := &Builder{
		store:   store,
		metrics: metrics.Nop{},
		log:     log.With("chart"),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DefaultConfiguration is used when GenerateVisualization gets no config.
func DefaultConfiguration() models.ChartConfiguration {
	return models.ChartConfiguration{
		Width:      800,
		Height:     400,
		Theme:      "light",
		ShowLegend: true,
		ShowGrid:   true,
		Animate:    true,
	}
}

// GenerateVisualization builds a chart of type typ from in. A nil cfg means
// DefaultConfiguration; zero sizes and theme in cfg take the defaults.
func (b *Builder) GenerateVisualization(ctx context.Context, in Input, typ models.ChartType, cfg *models.ChartConfiguration) (*models.Visualization, error) {
	transform, ok := transformers[typ]
	if !ok {
		return nil, apperr.Validation("unsupported chart type %q", typ)
	}

	start := b.now()
	series, err := transform(in)
	b.metrics.ObserveStage("visualization", b.now().Sub(start), err)
	if err != nil {
		return nil, err
	}

	v := &models.Visualization{
		ID:          b.newID(),
		Type:        typ,
		Title:       title(in, typ),
		Description: description(typ),
		Data: models.ChartData{
			Datasets:    series,
			Annotations: annotate(typ, series),
			TimeRange:   timeRange(in),
			Filters:     []string{},
		},
		Configuration: configuration(cfg),
		Interactivity: interactivity(typ),
		CreatedAt:     b.now().UTC(),
	}

	if err := b.store.SaveVisualization(ctx, v); err != nil {
		b.metrics.RecordPersistenceFailure("visualization")
		b.log.Warn("persist visualization failed", applogger.String("visualization_id", v.ID), applogger.Error(err))
	}

	b.log.Debug("visualization generated",
		applogger.String("visualization_id", v.ID),
		applogger.String("type", string(typ)),
		applogger.Int("series", len(series)),
		applogger.Int("annotations", len(v.Data.Annotations)),
	)
	return v, nil
}

// annotate marks points of time-based charts that moved more than 10% from
// the previous point, at most five, in series order.
func annotate(typ models.ChartType, series []models.DataSeries) []models.Annotation {
	out := []models.Annotation{}
	if typ != models.ChartLine && typ != models.ChartCandlestick {
		return out
	}
	for _, s := range series {
		for i := 1; i < len(s.Data); i++ {
			if len(out) == maxAnnotations {
				return out
			}
			prev, cur := s.Data[i-1].Y, s.Data[i].Y
			if prev == 0 {
				continue
			}
			change := (cur - prev) / math.Abs(prev)
			if math.Abs(change) <= annotationThreshold {
				continue
			}
			kind := "spike"
			if change < 0 {
				kind = "drop"
			}
			importance := "medium"
			if math.Abs(change) > 2*annotationThreshold {
				importance = "high"
			}
			out = append(out, models.Annotation{
				X:          s.Data[i].X,
				Y:          cur,
				Text:       fmt.Sprintf("%s %+.1f%%", s.Name, change*100),
				Type:       kind,
				Importance: importance,
			})
		}
	}
	return out
}

func configuration(cfg *models.ChartConfiguration) models.ChartConfiguration {
	def := DefaultConfiguration()
	if cfg == nil {
		return def
	}
	out := *cfg
	if out.Width <= 0 {
		out.Width = def.Width
	}
	if out.Height <= 0 {
		out.Height = def.Height
	}
	if out.Theme == "" {
		out.Theme = def.Theme
	}
	return out
}

func interactivity(typ models.ChartType) models.Interactivity {
	switch typ {
	case models.ChartLine, models.ChartCandlestick:
		return models.Interactivity{Zoom: true, Pan: true, Hover: true, Crosshair: true}
	case models.ChartFan:
		return models.Interactivity{Zoom: true, Hover: true}
	default:
		return models.Interactivity{Hover: true}
	}
}

func timeRange(in Input) *models.TimeRange {
	var first, last time.Time
	see := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	for _, p := range in.Points {
		see(p.Timestamp)
	}
	for _, b := range in.OHLC {
		see(b.Timestamp)
	}
	if first.IsZero() {
		return nil
	}
	return &models.TimeRange{Start: first, End: last}
}

func title(in Input, typ models.ChartType) string {
	ticker := in.Ticker
	if ticker == "" && len(in.Points) > 0 {
		ticker = in.Points[0].Ticker
	}
	name := map[models.ChartType]string{
		models.ChartLine:        "Market Data",
		models.ChartCandlestick: "Price Action",
		models.ChartBar:         "Comparison",
		models.ChartFan:         "Price Scenarios",
		models.ChartProbability: "Scenario Probabilities",
		models.ChartWaterfall:   "Causal Contributions",
	}[typ]
	return strings.TrimSpace(ticker + " " + name)
}

func description(typ models.ChartType) string {
	switch typ {
	case models.ChartLine:
		return "Time series of the requested data types. Moves above 10% are annotated."
	case models.ChartCandlestick:
		return "Open, high, low and close per bar."
	case models.ChartFan:
		return "Bull, base and bear targets fanning out from the current price with the confidence band."
	case models.ChartProbability:
		return "Probability of each forecast scenario."
	case models.ChartWaterfall:
		return "Running contribution of each causal factor."
	default:
		return "Values by category."
	}
}
