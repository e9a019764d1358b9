package detection

import "errors"

var (
	// ErrTransient marks a retryable failure (timeout, rate limit, server
	// fault). Records affected by one are retried up to the configured
	// attempt budget.
	ErrTransient = errors.New("transient detection failure")

	// ErrPermanent marks an unrecoverable failure (malformed document or
	// request). Records affected by one are failed immediately.
	ErrPermanent = errors.New("permanent detection failure")

	// ErrJobNotFound indicates an unknown job handle.
	ErrJobNotFound = errors.New("detection job not found")
)

// Transient reports whether err is retryable.
func Transient(err error) bool {
	return errors.Is(err, ErrTransient)
}
