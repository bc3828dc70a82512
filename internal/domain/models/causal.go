package models

import "time"

type FactorType string

const (
	FactorMarketSentiment  FactorType = "MARKET_SENTIMENT"
	FactorTechnicalPattern FactorType = "TECHNICAL_PATTERN"
	FactorVolumeAnomaly    FactorType = "VOLUME_ANOMALY"
	FactorNewsEvent        FactorType = "NEWS_EVENT"
	FactorEarnings         FactorType = "EARNINGS"
	FactorMacroEconomic    FactorType = "MACRO_ECONOMIC"
	FactorSectorRotation   FactorType = "SECTOR_ROTATION"
	FactorRegulatory       FactorType = "REGULATORY"
)

type ImpactLevel string

const (
	ImpactMinimal  ImpactLevel = "MINIMAL"
	ImpactLow      ImpactLevel = "LOW"
	ImpactModerate ImpactLevel = "MODERATE"
	ImpactHigh     ImpactLevel = "HIGH"
	ImpactDecisive ImpactLevel = "DECISIVE"
)

// Weight is the ranking multiplier of the impact level.
func (l ImpactLevel) Weight() float64 {
	switch l {
	case ImpactDecisive:
		return 1.0
	case ImpactHigh:
		return 0.8
	case ImpactModerate:
		return 0.6
	case ImpactLow:
		return 0.4
	case ImpactMinimal:
		return 0.2
	default:
		return 0
	}
}

type TemporalRelationship string

const (
	TemporalAnticipatory TemporalRelationship = "ANTICIPATORY"
	TemporalConcurrent   TemporalRelationship = "CONCURRENT"
	TemporalLagged       TemporalRelationship = "LAGGED"
)

// EvidenceItem is always derived from a MarketDataPoint.
type EvidenceItem struct {
	DataPoint      MarketDataPoint `json:"dataPoint"`
	RelevanceScore float64         `json:"relevanceScore"`
	EvidenceType   string          `json:"evidenceType"`
	Timestamp      time.Time       `json:"timestamp"`
	Description    string          `json:"description"`
}

type CausalFactor struct {
	Type                 FactorType           `json:"type"`
	Description          string               `json:"description"`
	Impact               ImpactLevel          `json:"impact"`
	Confidence           float64              `json:"confidence"`
	SupportingEvidence   []EvidenceItem       `json:"supportingEvidence"`
	TemporalRelationship TemporalRelationship `json:"temporalRelationship"`
}

// Score is the ranking key confidence × impact weight.
func (f CausalFactor) Score() float64 {
	return f.Confidence * f.Impact.Weight()
}

type CausalAnalysis struct {
	EventID                 string         `json:"eventId"`
	RootCause               CausalFactor   `json:"rootCause"`
	ContributingFactors     []CausalFactor `json:"contributingFactors"`
	ConfidenceScore         float64        `json:"confidenceScore"`
	Methodology             string         `json:"methodology"`
	EvidenceChain           []EvidenceItem `json:"evidenceChain"`
	AlternativeExplanations []string       `json:"alternativeExplanations"`
	CreatedAt               time.Time      `json:"createdAt"`
}
