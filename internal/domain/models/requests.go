package models

import "time"

// Requests for pipeline HTTP endpoints. Defined in domain for consistency and reuse.

type EventRequest struct {
	ID           string                 `json:"id" validate:"required"`
	Ticker       string                 `json:"ticker" validate:"required,max=10"`
	EventType    string                 `json:"eventType" default:"price_movement"`
	Timestamp    time.Time              `json:"timestamp" validate:"required"`
	Magnitude    float64                `json:"magnitude" validate:"gte=0,lte=100"`
	Significance float64                `json:"significance" validate:"gte=0,lte=1"`
	SourceData   []MarketDataPoint      `json:"sourceData"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// ToEvent converts the request into a MarketEvent.
func (r EventRequest) ToEvent() MarketEvent {
	return MarketEvent{
		ID:           r.ID,
		Ticker:       r.Ticker,
		EventType:    r.EventType,
		Timestamp:    r.Timestamp,
		Magnitude:    r.Magnitude,
		Significance: r.Significance,
		SourceData:   r.SourceData,
		Metadata:     r.Metadata,
	}
}

type CausalRequest struct {
	Event EventRequest `json:"event" validate:"required"`
}

type PredictionRequest struct {
	Event          EventRequest    `json:"event" validate:"required"`
	CausalAnalysis *CausalAnalysis `json:"causalAnalysis"`
}

type NarrativeRequest struct {
	Event          EventRequest        `json:"event" validate:"required"`
	CausalAnalysis *CausalAnalysis     `json:"causalAnalysis" validate:"required"`
	Prediction     *PredictiveAnalysis `json:"prediction" validate:"required"`
}

type AdaptNarrativeRequest struct {
	Narrative *IntelligentNarrative `json:"narrative" validate:"required"`
	Profile   UserProfile           `json:"profile" validate:"required"`
}

type VisualizationRequest struct {
	Type        ChartType           `json:"type" validate:"required,oneof=line candlestick bar fan probability waterfall"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Points      []MarketDataPoint   `json:"points"`
	Candles     []OHLC              `json:"candles"`
	Categories  []CategoryValue     `json:"categories" validate:"dive"`
	Prediction  *PredictiveAnalysis `json:"prediction"`
	Causal      *CausalAnalysis     `json:"causal"`
	Width       int                 `json:"width" default:"800" validate:"gte=100,lte=4000"`
	Height      int                 `json:"height" default:"400" validate:"gte=100,lte=4000"`
	Theme       string              `json:"theme" default:"light" validate:"oneof=light dark"`
}

type PipelineRequest struct {
	Event EventRequest `json:"event" validate:"required"`
}

type MarketDataQuery struct {
	Ticker    string `query:"ticker" json:"ticker" validate:"required"`
	Types     string `query:"types" json:"types" default:"price"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
	Frequency string `query:"frequency" json:"frequency" default:"1day" validate:"oneof=1min 5min 1hour 1day 1week"`
}

type ValidateNarrativeRequest struct {
	Narrative *IntelligentNarrative `json:"narrative" validate:"required"`
}

type DashboardRequest struct {
	Visualizations []Visualization `json:"visualizations" validate:"required,min=1"`
}

type CandlesQuery struct {
	Ticker    string `query:"ticker" json:"ticker" validate:"required"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
	Frequency string `query:"frequency" json:"frequency" default:"1day" validate:"oneof=1min 5min 1hour 1day 1week"`
	Limit     int    `query:"limit" json:"limit" validate:"gte=0,lte=10000"`
}
