package models

import "time"

type ChartType string

const (
	ChartLine        ChartType = "line"
	ChartCandlestick ChartType = "candlestick"
	ChartBar         ChartType = "bar"
	ChartFan         ChartType = "fan"
	ChartProbability ChartType = "probability"
	ChartWaterfall   ChartType = "waterfall"
)

type SeriesPoint struct {
	X     interface{} `json:"x"`
	Y     float64     `json:"y"`
	Open  float64     `json:"open,omitempty"`
	High  float64     `json:"high,omitempty"`
	Low   float64     `json:"low,omitempty"`
	Close float64     `json:"close,omitempty"`
	Label string      `json:"label,omitempty"`
}

type DataSeries struct {
	Name  string        `json:"name"`
	Data  []SeriesPoint `json:"data"`
	Color string        `json:"color,omitempty"`
	Style string        `json:"style,omitempty"`
}

type Annotation struct {
	X          interface{} `json:"x"`
	Y          float64     `json:"y"`
	Text       string      `json:"text"`
	Type       string      `json:"type"`
	Importance string      `json:"importance"`
}

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ChartData struct {
	Datasets    []DataSeries `json:"datasets"`
	Annotations []Annotation `json:"annotations"`
	TimeRange   *TimeRange   `json:"timeRange,omitempty"`
	Filters     []string     `json:"filters"`
}

type ChartConfiguration struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Theme      string `json:"theme"`
	ShowLegend bool   `json:"showLegend"`
	ShowGrid   bool   `json:"showGrid"`
	Animate    bool   `json:"animate"`
}

type Interactivity struct {
	Zoom      bool `json:"zoom"`
	Pan       bool `json:"pan"`
	Hover     bool `json:"hover"`
	Crosshair bool `json:"crosshair"`
}

type Visualization struct {
	ID            string             `json:"id"`
	Type          ChartType          `json:"type"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Data          ChartData          `json:"data"`
	Configuration ChartConfiguration `json:"configuration"`
	Interactivity Interactivity      `json:"interactivity"`
	CreatedAt     time.Time          `json:"createdAt"`
}

type GridPosition struct {
	VisualizationID string `json:"visualizationId"`
	Row             int    `json:"row"`
	Col             int    `json:"col"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

type DashboardLayout struct {
	Columns   int            `json:"columns"`
	Rows      int            `json:"rows"`
	Positions []GridPosition `json:"positions"`
}

type DashboardInteraction struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Dashboard struct {
	ID             string                 `json:"id"`
	Layout         DashboardLayout        `json:"layout"`
	Visualizations []Visualization        `json:"visualizations"`
	Interactions   []DashboardInteraction `json:"interactions"`
}

// CategoryValue is one bar or waterfall step.
type CategoryValue struct {
	Label string  `json:"label" validate:"required"`
	Value float64 `json:"value"`
}
