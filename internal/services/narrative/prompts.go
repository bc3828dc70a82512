package narrative

import (
	"fmt"
	"strings"

	"Naly/internal/domain/models"
)

type section struct {
	title       string
	maxTokens   int
	temperature float64
	instruction string
}

var (
	summarySection = section{
		title:       "Summary",
		maxTokens:   300,
		temperature: 0.5,
		instruction: "Write a summary of the event in two or three sentences for a general reader.",
	}
	explanationSection = section{
		title:       "What Happened and Why",
		maxTokens:   800,
		temperature: 0.4,
		instruction: "Explain the most likely cause of the move and the contributing factors. Cite the evidence given and mention the alternatives briefly.",
	}
	predictionSection = section{
		title:       "What Could Happen Next",
		maxTokens:   600,
		temperature: 0.7,
		instruction: "Describe the bull, base and bear scenarios with their probabilities and price targets. Do not change any number.",
	}
	deepDiveSection = section{
		title:       "Deep Dive",
		maxTokens:   1000,
		temperature: 0.5,
		instruction: "Write a detailed analysis covering the evidence chain, model uncertainty and the risks to the outlook.",
	}
)

const (
	writerSystemPrompt = "You are a financial journalist writing for %s investors. Be factual, balanced and plain. Write prose only, no headings."
	keyPointsPrompt    = "List the 3 to 5 most important points of the text below, one short line each, as a bulleted list.\n\n%s"
	keyPointsTokens    = 200
	keyPointsTemp      = 0.3
)

// eventContext renders the facts every section prompt shares.
func eventContext(event models.MarketEvent, causal *models.CausalAnalysis, prediction *models.PredictiveAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s %s on %s, magnitude %.0f/100, significance %.2f.\n",
		event.Ticker, event.EventType, event.Timestamp.Format("2006-01-02 15:04 MST"), event.Magnitude, event.Significance)

	if causal != nil {
		fmt.Fprintf(&b, "Root cause: %s (%s, impact %s, confidence %.2f).\n",
			causal.RootCause.Description, causal.RootCause.Type, causal.RootCause.Impact, causal.RootCause.Confidence)
		for _, f := range causal.ContributingFactors {
			fmt.Fprintf(&b, "Contributing factor: %s (confidence %.2f).\n", f.Description, f.Confidence)
		}
		for _, e := range causal.EvidenceChain {
			fmt.Fprintf(&b, "Evidence: %s.\n", e.Description)
		}
		for _, alt := range causal.AlternativeExplanations {
			fmt.Fprintf(&b, "Alternative: %s.\n", alt)
		}
		fmt.Fprintf(&b, "Overall causal confidence: %.2f.\n", causal.ConfidenceScore)
	}

	if prediction != nil {
		fmt.Fprintf(&b, "Forecast horizon: %s.\n", prediction.TimeHorizon)
		for _, s := range prediction.Scenarios {
			fmt.Fprintf(&b, "%s: %.0f%% probability, target %.2f (%.2f-%.2f). %s\n",
				s.Type, s.Probability*100, s.PriceTarget.Value, s.PriceTarget.Range.Low, s.PriceTarget.Range.High, s.Description)
		}
		u := prediction.Uncertainty
		fmt.Fprintf(&b, "Uncertainty: standard deviation %.2f, interval %.2f-%.2f.\n",
			u.StandardDeviation, u.ConfidenceInterval.Lower, u.ConfidenceInterval.Upper)
	}
	return b.String()
}

// adaptPrompt asks for one section rewritten for profile.
func adaptPrompt(s *models.ContentSection, profile models.UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the section %q for a reader with this profile.\n", s.Title)
	fmt.Fprintf(&b, "Experience: %s. Preferred complexity: %s. Risk tolerance: %s.\n",
		orDefault(profile.ExperienceLevel, "intermediate"),
		orDefault(profile.PreferredComplexity, "moderate"),
		orDefault(profile.RiskTolerance, "moderate"))
	if len(profile.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s.\n", strings.Join(profile.Interests, ", "))
	}
	b.WriteString("Keep every fact and number. Return only the rewritten text.\n\n")
	b.WriteString(s.Content)
	return b.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
