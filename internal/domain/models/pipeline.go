package models

import "time"

// PipelineResult collects every stage output for one event. Errors maps a
// stage name to its failure; stages that failed have nil outputs.
type PipelineResult struct {
	EventID        string                `json:"eventId"`
	Ticker         string                `json:"ticker"`
	CausalAnalysis *CausalAnalysis       `json:"causalAnalysis,omitempty"`
	Prediction     *PredictiveAnalysis   `json:"prediction,omitempty"`
	Narrative      *IntelligentNarrative `json:"narrative,omitempty"`
	Dashboard      *Dashboard            `json:"dashboard,omitempty"`
	Errors         map[string]string     `json:"errors,omitempty"`
	CompletedAt    time.Time             `json:"completedAt"`
}
