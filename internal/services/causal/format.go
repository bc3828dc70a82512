package causal

import (
	"fmt"

	"Naly/internal/domain/models"
)

type FormattedSummary struct {
	RootCause           string  `json:"rootCause"`
	RootCauseType       string  `json:"rootCauseType"`
	RootCauseConfidence float64 `json:"rootCauseConfidence"`
	OverallConfidence   float64 `json:"overallConfidence"`
	ContributingCount   int     `json:"contributingCount"`
	EvidenceCount       int     `json:"evidenceCount"`
}

type FormattedFactor struct {
	Type       string  `json:"type"`
	Impact     string  `json:"impact"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
}

// FormattedCausalAnalysis is the presentation shape of a CausalAnalysis.
type FormattedCausalAnalysis struct {
	EventID      string            `json:"eventId"`
	Summary      FormattedSummary  `json:"summary"`
	Factors      []FormattedFactor `json:"factors"`
	Evidence     []string          `json:"evidence"`
	Alternatives []string          `json:"alternatives"`
	Methodology  string            `json:"methodology"`
}

// FormatCausalAnalysis flattens an analysis for display. Confidence values
// are copied unchanged.
func FormatCausalAnalysis(a *models.CausalAnalysis) FormattedCausalAnalysis {
	out := FormattedCausalAnalysis{
		EventID: a.EventID,
		Summary: FormattedSummary{
			RootCause:           a.RootCause.Description,
			RootCauseType:       string(a.RootCause.Type),
			RootCauseConfidence: a.RootCause.Confidence,
			OverallConfidence:   a.ConfidenceScore,
			ContributingCount:   len(a.ContributingFactors),
			EvidenceCount:       len(a.EvidenceChain),
		},
		Factors:      make([]FormattedFactor, 0, len(a.ContributingFactors)+1),
		Evidence:     make([]string, 0, len(a.EvidenceChain)),
		Alternatives: append([]string{}, a.AlternativeExplanations...),
		Methodology:  a.Methodology,
	}
	for _, f := range append([]models.CausalFactor{a.RootCause}, a.ContributingFactors...) {
		out.Factors = append(out.Factors, FormattedFactor{
			Type:       string(f.Type),
			Impact:     string(f.Impact),
			Confidence: f.Confidence,
			Text:       fmt.Sprintf("%s (%s impact, %.0f%% confidence)", f.Description, f.Impact, f.Confidence*100),
		})
	}
	for _, e := range a.EvidenceChain {
		out.Evidence = append(out.Evidence, fmt.Sprintf("[%.2f] %s", e.RelevanceScore, e.Description))
	}
	return out
}
