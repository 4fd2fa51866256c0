package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported marks a provider kind nothing is registered for.
	ErrUnsupported = errors.New("unsupported provider")

	// ErrMissingAPIKey is a precondition failure, reported before any
	// network call is attempted.
	ErrMissingAPIKey = errors.New("api key is required")
)

// CallError is any non-success outcome of the provider's generation endpoint:
// non-2xx status, malformed body, or transport failure.
type CallError struct {
	Provider Kind
	Status   int
	Message  string
	Err      error
}

func (e *CallError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s call failed: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s call failed: %s", e.Provider, e.Message)
}

func (e *CallError) Unwrap() error { return e.Err }
