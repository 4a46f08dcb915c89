package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports bad caller input. Surfaced immediately, never
// retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ProviderError reports a failure of the embedding/model provider.
// Ingestion aborts without partial writes on it.
type ProviderError struct {
	Status int
	Msg    string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider: %s: %v", e.Msg, e.Err)
	}
	return "provider: " + e.Msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StoreError reports a persistence failure, distinguishable from a
// legitimately empty result set.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// TimeoutError reports a provider or tool call that exceeded its
// patience window. Treated downstream as "no evidence", not fatal.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout: %s: %v", e.Op, e.Err) }

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
