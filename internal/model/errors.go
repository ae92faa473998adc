package model

import (
	"fmt"
	"strings"
)

// The five error kinds every component boundary propagates. User-visible
// failures always carry the kind, the component that failed, and enough
// detail to retry.

// ErrorCode constants for standard API error codes.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeQualification = "QUALIFICATION_ERROR"
	ErrCodePolicy        = "POLICY_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// FieldError names one invalid field in a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports input that failed schema or required-field checks.
// It produces no side effects.
type ValidationError struct {
	Component string
	Fields    []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Component, strings.Join(names, ", "))
}

// NewValidationError builds a ValidationError for a single bad field.
func NewValidationError(component, field, message string) *ValidationError {
	return &ValidationError{
		Component: component,
		Fields:    []FieldError{{Field: field, Message: message}},
	}
}

// UpstreamError reports a failed connector call after retries were exhausted.
type UpstreamError struct {
	Connector string
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("connector %s: %v", e.Connector, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreError reports a failed read or write against one of the three stores.
// Graph errors abort the request; vector errors degrade with a warning;
// cache errors are ignored by callers.
type StoreError struct {
	Store string // "graph", "vector", "cache"
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// QualificationError reports a deal operation against an unknown deal or
// persona. Maps to 404 semantics.
type QualificationError struct {
	Kind string // "deal", "persona", "risk"
	ID   string
}

func (e *QualificationError) Error() string {
	return fmt.Sprintf("deal: unknown %s %q", e.Kind, e.ID)
}

// PolicyError reports an attempted stage advance to commit while the commit
// gate fails. Blocking carries the full list of gate failures.
type PolicyError struct {
	DealID   string
	Blocking []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("deal %s: commit gate blocked (%d items)", e.DealID, len(e.Blocking))
}
