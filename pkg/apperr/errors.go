package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies pipeline errors.
type Kind string

const (
	KindMissingConfiguration Kind = "MISSING_CONFIGURATION"
	KindValidation           Kind = "VALIDATION_ERROR"
	KindInsufficientData     Kind = "INSUFFICIENT_DATA_ERROR"
	KindAPIConnection        Kind = "API_CONNECTION_ERROR"
	KindAPIRateLimit         Kind = "API_RATE_LIMIT_ERROR"
	KindAIService            Kind = "AI_SERVICE_ERROR"
	KindDatabaseQuery        Kind = "DATABASE_QUERY_ERROR"
	KindAnalysis             Kind = "ANALYSIS_ERROR"
	KindPrediction           Kind = "PREDICTION_ERROR"
	KindUnknown              Kind = "UNKNOWN_ERROR"
)

// Severity of an error as seen by operators.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is the typed error returned by pipeline stages.
type Error struct {
	Kind      Kind
	Message   string
	Severity  Severity
	Retryable bool
	ResetAt   time.Time
	Metadata  map[string]interface{}
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, severity Severity, message string) *Error {
	return &Error{
		Kind:     kind,
		Message:  message,
		Severity: severity,
		Metadata: make(map[string]interface{}),
	}
}

// WithMeta sets a single metadata entry.
func (e *Error) WithMeta(key string, value interface{}) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithError wraps an underlying error and records its message in metadata.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	if err != nil {
		e.WithMeta("original_error", err.Error())
	}
	return e
}

// MissingConfiguration is returned when a stage is used before Configure.
func MissingConfiguration(component string) *Error {
	return New(KindMissingConfiguration, SeverityCritical, component+" used before configuration").
		WithMeta("component", component)
}

// Validation reports bad input shape.
func Validation(format string, a ...interface{}) *Error {
	return New(KindValidation, SeverityLow, fmt.Sprintf(format, a...))
}

// InsufficientData reports that not enough history is available to model.
func InsufficientData(format string, a ...interface{}) *Error {
	return New(KindInsufficientData, SeverityMedium, fmt.Sprintf(format, a...))
}

// APIConnection reports an upstream failure.
func APIConnection(status int, retryable bool, message string) *Error {
	e := New(KindAPIConnection, SeverityMedium, message).WithMeta("status", status)
	e.Retryable = retryable
	return e
}

// RateLimited reports an exhausted request budget.
func RateLimited(resetAt time.Time) *Error {
	e := New(KindAPIRateLimit, SeverityMedium, "request budget exhausted").
		WithMeta("reset_at", resetAt.Format(time.RFC3339))
	e.Retryable = true
	e.ResetAt = resetAt
	return e
}

// AIService reports a text-generation failure.
func AIService(severity Severity, err error) *Error {
	return New(KindAIService, severity, "text generation failed").WithError(err)
}

// DatabaseQuery reports a persistence failure.
func DatabaseQuery(op string, err error) *Error {
	return New(KindDatabaseQuery, SeverityMedium, op+" failed").WithError(err)
}

// Analysis wraps an unexpected failure inside the causal stage.
func Analysis(eventID string, err error) *Error {
	return New(KindAnalysis, SeverityHigh, "causal analysis failed").
		WithError(err).
		WithMeta("event_id", eventID)
}

// Prediction wraps an unexpected failure inside the prediction stage.
func Prediction(eventID string, err error) *Error {
	return New(KindPrediction, SeverityHigh, "prediction failed").
		WithError(err).
		WithMeta("event_id", eventID)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// ResetAt returns the rate-limit reset time, if any.
func ResetAt(err error) (time.Time, bool) {
	var e *Error
	if errors.As(err, &e) && !e.ResetAt.IsZero() {
		return e.ResetAt, true
	}
	return time.Time{}, false
}

// Wrap keeps an existing *Error untouched and wraps anything else with wrapFn.
func Wrap(err error, wrapFn func(error) *Error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return wrapFn(err)
}
