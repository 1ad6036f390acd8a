package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSessionBusy     = errors.New("session is processing another message")

	// Model call failures. Adapters wrap provider errors with one of these so
	// callers can branch with errors.Is while keeping the original cause.
	ErrAuthentication      = errors.New("model credentials missing or rejected")
	ErrServiceUnavailable  = errors.New("model endpoint unavailable")
	ErrRequestTimeout      = errors.New("model request timed out")
	ErrMemorySummarization = errors.New("conversation memory summarization failed")
)
