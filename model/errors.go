package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the pricing, quoting, checkout and reconciliation paths.
// Handlers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound                = errors.New("not found")
	ErrValidation              = errors.New("validation error")
	ErrUnsupportedLanguagePair = errors.New("unsupported language pair")
	ErrUnsupportedFormat       = errors.New("unsupported format")
	ErrSignatureVerification   = errors.New("signature verification failed")
	ErrDuplicateEvent          = errors.New("duplicate event")
	ErrUpstreamUnavailable     = errors.New("upstream unavailable")
	ErrForbidden               = errors.New("forbidden")
	ErrConflict                = errors.New("conflict")
	ErrNotPaid                 = errors.New("order not paid")
	ErrAlreadyNotified         = errors.New("notification already sent")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level problems. It unwraps to ErrValidation.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add appends a field error.
func (e *ValidationError) Add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

// Err returns nil when nothing was collected.
func (e *ValidationError) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a ValidationError for one field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: msg}}}
}

// Upstream wraps a collaborator failure (storage, payment, notification)
// so callers can match ErrUpstreamUnavailable while keeping the cause.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}

// UnsupportedPair reports a language pair the catalog cannot price.
func UnsupportedPair(p LanguagePair) error {
	return fmt.Errorf("%w: %s -> %s", ErrUnsupportedLanguagePair, p.Source, p.Target)
}
