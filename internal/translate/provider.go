package translate

import (
	"context"
	"errors"
)

// Provider is a single-call translation backend.
type Provider interface {
	// Localize translates text between two locale tags. An empty
	// sourceLocale asks the provider to auto-detect.
	Localize(ctx context.Context, text, sourceLocale, targetLocale string) (string, error)
}

// TransientError marks a failure worth retrying: timeouts, connection
// resets and provider 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient provider error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that will not heal on retry, such as bad
// credentials. The gateway disables itself when it sees one.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal provider error: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err permanently disables translation.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
