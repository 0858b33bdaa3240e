package models

import (
	"errors"
	"fmt"
)

// Domain error kinds. Kept distinct so callers can branch with errors.Is /
// errors.As instead of string matching.
var (
	ErrDatasetNotFound       = errors.New("dataset not found")
	ErrDatasetUnreachable    = errors.New("dataset unreachable")
	ErrDatasetAlreadyDeleted = errors.New("dataset already deleted")
	ErrDatasetNotDeleted     = errors.New("dataset not deleted")
	ErrPlatformNotFound      = errors.New("platform not found")
	ErrInvalidPlatformType   = errors.New("invalid platform type")
	ErrBlobNotFound          = errors.New("blob not found")
	ErrVersionNotFound       = errors.New("version not found")
)

// InvalidMetricValueError reports a negative counter reaching the core.
type InvalidMetricValueError struct {
	Name  string
	Value int64
}

func (e *InvalidMetricValueError) Error() string {
	return fmt.Sprintf("invalid metric value: %s=%d", e.Name, e.Value)
}

// InvalidDomainValueError reports a malformed slug, URL, enum or snapshot.
type InvalidDomainValueError struct {
	Field string
	Value string
}

func (e *InvalidDomainValueError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// LLMValidationError reports an evaluator response that failed schema
// validation.
type LLMValidationError struct {
	Reason string
}

func (e *LLMValidationError) Error() string {
	return fmt.Sprintf("llm response validation failed: %s", e.Reason)
}

// LLMTransportError wraps a transport-level evaluator failure.
type LLMTransportError struct {
	Err error
}

func (e *LLMTransportError) Error() string {
	return fmt.Sprintf("llm transport error: %v", e.Err)
}

func (e *LLMTransportError) Unwrap() error {
	return e.Err
}
