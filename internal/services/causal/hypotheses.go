package causal

import (
	"fmt"
	"math"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/services/features"
)

const (
	priceWindow          = 5
	volatilityThreshold  = 0.30
	priceChangeThreshold = 0.10
	volumeRatioThreshold = 2.0
	newsWindow           = 24 * time.Hour
	earningsMagnitude    = 50
	maxLikelihood        = 0.9
	newsLikelihood       = 0.7
	earningsLikelihood   = 0.8
)

// hypothesis is one candidate explanation before ranking.
type hypothesis struct {
	name       string
	likelihood float64
	factor     models.CausalFactor
}

type inputs struct {
	event   models.MarketEvent
	prices  []models.MarketDataPoint
	volumes []models.MarketDataPoint
	news    []models.MarketDataPoint
}

func splitInputs(event models.MarketEvent, points []models.MarketDataPoint) inputs {
	sorted := features.SortedByTime(points)
	in := inputs{event: event}
	for _, p := range sorted {
		switch p.DataType {
		case models.DataTypePrice:
			in.prices = append(in.prices, p)
		case models.DataTypeVolume:
			in.volumes = append(in.volumes, p)
		case models.DataTypeNews, models.DataTypeSentiment:
			in.news = append(in.news, p)
		}
	}
	return in
}

func generateHypotheses(in inputs) []hypothesis {
	var out []hypothesis
	for _, gen := range []func(inputs) (hypothesis, bool){
		priceMovement,
		volumePattern,
		newsSentiment,
		earningsPattern,
	} {
		if h, ok := gen(in); ok {
			out = append(out, h)
		}
	}
	return out
}

func priceMovement(in inputs) (hypothesis, bool) {
	prices := models.Values(in.prices)
	if len(prices) < 2 {
		return hypothesis{}, false
	}
	vol := features.RelativeVolatility(prices, priceWindow)
	change := features.PercentChange(prices, priceWindow)
	if vol <= volatilityThreshold && math.Abs(change) <= priceChangeThreshold {
		return hypothesis{}, false
	}

	likelihood := math.Min(maxLikelihood, 0.5+math.Abs(change)*2)
	// A move past the change threshold outranks the earnings calendar.
	// Volatility alone does not.
	impact := models.ImpactHigh
	if math.Abs(change) > priceChangeThreshold {
		impact = models.ImpactDecisive
	}
	annual := features.AnnualizedVolatility(prices, priceWindow-1, sampleFrequency)

	direction := "rose"
	if change < 0 {
		direction = "fell"
	}
	trailing := in.prices[max(0, len(in.prices)-priceWindow):]
	return hypothesis{
		name:       "price-movement",
		likelihood: likelihood,
		factor: models.CausalFactor{
			Type:                 models.FactorMarketSentiment,
			Description:          fmt.Sprintf("%s %s %.1f%% over the last %d samples (volatility %.1f%%, annualized %.0f%%)", in.event.Ticker, direction, math.Abs(change)*100, len(trailing), vol*100, annual*100),
			Impact:               impact,
			Confidence:           likelihood,
			SupportingEvidence:   evidenceFrom(trailing, 0.8, "price_movement", "price sample"),
			TemporalRelationship: models.TemporalConcurrent,
		},
	}, true
}

func volumePattern(in inputs) (hypothesis, bool) {
	volumes := models.Values(in.volumes)
	ratio := features.VolumeRatio(volumes)
	if ratio <= volumeRatioThreshold {
		return hypothesis{}, false
	}

	likelihood := math.Min(maxLikelihood, 0.3+0.1*ratio)
	impact := models.ImpactModerate
	if ratio > 2*volumeRatioThreshold {
		impact = models.ImpactHigh
	}
	latest := in.volumes[len(in.volumes)-1:]
	return hypothesis{
		name:       "volume-pattern",
		likelihood: likelihood,
		factor: models.CausalFactor{
			Type:                 models.FactorVolumeAnomaly,
			Description:          fmt.Sprintf("Volume reached %.1fx its prior average", ratio),
			Impact:               impact,
			Confidence:           likelihood,
			SupportingEvidence:   evidenceFrom(latest, 0.75, "volume_anomaly", "volume sample"),
			TemporalRelationship: models.TemporalConcurrent,
		},
	}, true
}

func newsSentiment(in inputs) (hypothesis, bool) {
	var near []models.MarketDataPoint
	anticipatory := true
	for _, p := range in.news {
		if p.Timestamp.Sub(in.event.Timestamp) > newsWindow || in.event.Timestamp.Sub(p.Timestamp) > newsWindow {
			continue
		}
		near = append(near, p)
		if p.Timestamp.After(in.event.Timestamp) {
			anticipatory = false
		}
	}
	if len(near) == 0 {
		return hypothesis{}, false
	}

	rel := models.TemporalAnticipatory
	if !anticipatory {
		rel = models.TemporalLagged
	}
	return hypothesis{
		name:       "news-sentiment",
		likelihood: newsLikelihood,
		factor: models.CausalFactor{
			Type:                 models.FactorNewsEvent,
			Description:          fmt.Sprintf("%d news or sentiment signals within 24h of the event", len(near)),
			Impact:               models.ImpactModerate,
			Confidence:           newsLikelihood,
			SupportingEvidence:   evidenceFrom(near, 0.7, "news_sentiment", "news signal"),
			TemporalRelationship: rel,
		},
	}, true
}

func earningsPattern(in inputs) (hypothesis, bool) {
	switch in.event.Timestamp.Month() {
	case time.January, time.April, time.July, time.October:
	default:
		return hypothesis{}, false
	}
	if in.event.Magnitude <= earningsMagnitude {
		return hypothesis{}, false
	}
	return hypothesis{
		name:       "market-pattern",
		likelihood: earningsLikelihood,
		factor: models.CausalFactor{
			Type:                 models.FactorEarnings,
			Description:          fmt.Sprintf("Event falls in the %s earnings season with magnitude %.0f", in.event.Timestamp.Month(), in.event.Magnitude),
			Impact:               models.ImpactHigh,
			Confidence:           earningsLikelihood,
			SupportingEvidence:   evidenceFrom(in.event.SourceData, 0.6, "earnings_season", "event sample"),
			TemporalRelationship: models.TemporalAnticipatory,
		},
	}, true
}

func evidenceFrom(points []models.MarketDataPoint, relevance float64, kind, label string) []models.EvidenceItem {
	out := make([]models.EvidenceItem, 0, len(points))
	for _, p := range points {
		out = append(out, models.EvidenceItem{
			DataPoint:      p,
			RelevanceScore: relevance,
			EvidenceType:   kind,
			Timestamp:      p.Timestamp,
			Description:    fmt.Sprintf("%s %s=%.4g at %s", label, p.DataType, p.Value, p.Timestamp.Format(time.RFC3339)),
		})
	}
	return out
}

func defaultRootCause(event models.MarketEvent) models.CausalFactor {
	return models.CausalFactor{
		Type:                 models.FactorMarketSentiment,
		Description:          fmt.Sprintf("No dominant driver detected; %s moved with general market sentiment", event.Ticker),
		Impact:               models.ImpactModerate,
		Confidence:           0.5,
		SupportingEvidence:   []models.EvidenceItem{},
		TemporalRelationship: models.TemporalConcurrent,
	}
}
