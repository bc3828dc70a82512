package models

// Frequency represents the sampling resolution of a market data request.
type Frequency string

const (
	FrequencyMinute Frequency = "1min"
	Frequency5Min   Frequency = "5min"
	FrequencyHour   Frequency = "1hour"
	FrequencyDay    Frequency = "1day"
	FrequencyWeek   Frequency = "1week"
)

// IsValidFrequency returns true if f is a supported frequency.
func IsValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyMinute, Frequency5Min, FrequencyHour, FrequencyDay, FrequencyWeek:
		return true
	default:
		return false
	}
}

// DefaultFrequency returns the default frequency.
func DefaultFrequency() Frequency { return FrequencyDay }

// NormalizeFrequency converts raw string to a valid frequency (or default).
func NormalizeFrequency(s string) Frequency {
	if s == "" {
		return DefaultFrequency()
	}
	f := Frequency(s)
	if IsValidFrequency(f) {
		return f
	}
	return DefaultFrequency()
}
