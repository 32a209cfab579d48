package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals missing or malformed request input.
	ErrValidation = errors.New("invalid request")
	// ErrModerationRejected signals content flagged as inappropriate.
	ErrModerationRejected = errors.New("content rejected by moderation")
	// ErrQuotaExceeded signals the per-user statement cap was reached.
	ErrQuotaExceeded = errors.New("statement quota exceeded")
	// ErrNotFound signals a missing question or statement.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamProvider signals a terminal embedding/generation provider failure.
	ErrUpstreamProvider = errors.New("upstream provider error")
	// ErrVectorDimMismatch signals a stored vector of the wrong dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// QuotaExceededError wraps ErrQuotaExceeded with the offending counts.
type QuotaExceededError struct {
	Limit   int
	Current int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %d of %d statements used", ErrQuotaExceeded.Error(), e.Current, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// NewQuotaExceeded creates a quota error carrying the limit and current count.
func NewQuotaExceeded(limit, current int) error {
	return &QuotaExceededError{Limit: limit, Current: current}
}
