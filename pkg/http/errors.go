package http

import (
	"errors"
	"fmt"
	"net/http"

	"Naly/pkg/apperr"
)

// AppError is an error rendered into the response envelope with Status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NotFoundErrorf builds a 404.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", fmt.Sprintf(format, a...), http.StatusNotFound)
}

// kindStatus maps pipeline error kinds to HTTP statuses. Unlisted kinds
// are server errors.
var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:       http.StatusBadRequest,
	apperr.KindInsufficientData: http.StatusUnprocessableEntity,
	apperr.KindAPIRateLimit:     http.StatusTooManyRequests,
	apperr.KindAPIConnection:    http.StatusBadGateway,
	apperr.KindAIService:        http.StatusBadGateway,
}

// FromDomainError maps a pipeline error onto an AppError by kind. The
// error's metadata, severity and retryability become params.
func FromDomainError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		return NewAppError("ERR_INTERNAL", "", "Something went wrong", http.StatusInternalServerError).WithError(err)
	}

	status, ok := kindStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	out := NewAppError("ERR_"+string(e.Kind), "", e.Message, status).WithError(err)
	for k, v := range e.Metadata {
		out.WithParam(k, v)
	}
	return out.
		WithParam("severity", string(e.Severity)).
		WithParam("retryable", e.Retryable)
}
