package rank

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindNetwork ErrorKind = "network"
	KindQuota   ErrorKind = "quota"
	KindParse   ErrorKind = "parse"
	KindTimeout ErrorKind = "timeout"
	KindUnknown ErrorKind = "unknown"
)

// ProviderError is a recoverable failure to obtain ranking results.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

// NewProviderError wraps err with the given kind.
func NewProviderError(kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s error", e.Kind)
	}
	return fmt.Sprintf("provider %s error: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorKindOf returns the kind of a provider failure. Errors that are not
// a *ProviderError are reported as KindUnknown.
func ErrorKindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
