package models

import "time"

// DataType is the kind of a market data sample.
type DataType string

const (
	DataTypePrice       DataType = "price"
	DataTypeVolume      DataType = "volume"
	DataTypeSentiment   DataType = "sentiment"
	DataTypeNews        DataType = "news"
	DataTypeTechnical   DataType = "technical"
	DataTypeFundamental DataType = "fundamental"
)

// IsValid reports whether d is a known data type.
func (d DataType) IsValid() bool {
	switch d {
	case DataTypePrice, DataTypeVolume, DataTypeSentiment, DataTypeNews, DataTypeTechnical, DataTypeFundamental:
		return true
	default:
		return false
	}
}

type DataPointMetadata struct {
	Reliability     float64  `json:"reliability"`
	Freshness       float64  `json:"freshness"`
	SourceQuality   float64  `json:"sourceQuality"`
	ProcessingFlags []string `json:"processingFlags,omitempty"`
}

// MarketDataPoint is a read-only time-series sample.
type MarketDataPoint struct {
	Source     string            `json:"source"`
	Timestamp  time.Time         `json:"timestamp"`
	Ticker     string            `json:"ticker"`
	DataType   DataType          `json:"dataType"`
	Value      float64           `json:"value"`
	Confidence float64           `json:"confidence"`
	Metadata   DataPointMetadata `json:"metadata"`
}

// MarketEvent is a detected, time-stamped market occurrence. Treat as immutable.
type MarketEvent struct {
	ID           string                 `json:"id"`
	Ticker       string                 `json:"ticker"`
	EventType    string                 `json:"eventType"`
	Timestamp    time.Time              `json:"timestamp"`
	Magnitude    float64                `json:"magnitude"`
	Significance float64                `json:"significance"`
	SourceData   []MarketDataPoint      `json:"sourceData,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// MarketDataRequest describes a gateway query.
type MarketDataRequest struct {
	Ticker    string     `json:"ticker"`
	DataTypes []DataType `json:"dataTypes"`
	StartDate time.Time  `json:"startDate"`
	EndDate   time.Time  `json:"endDate"`
	Frequency Frequency  `json:"frequency,omitempty"`
}

// OHLC represents one candlestick bar.
type OHLC struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// FilterByType returns the points of the given type, preserving order.
func FilterByType(points []MarketDataPoint, dt DataType) []MarketDataPoint {
	out := make([]MarketDataPoint, 0, len(points))
	for _, p := range points {
		if p.DataType == dt {
			out = append(out, p)
		}
	}
	return out
}

// Values extracts the Value field of each point.
func Values(points []MarketDataPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
