package errors

import "errors"

var (
	ErrMediaBuyNotFound = errors.New("media buy not found")
	ErrPackageNotFound  = errors.New("media buy package not found")
	ErrInvalidBuyInput  = errors.New("invalid media buy input")
	ErrStaleTransition  = errors.New("media buy status changed concurrently")
	ErrNotApproved      = errors.New("media buy is not approved for activation")
	ErrSignalsNotReady  = errors.New("media buy signal activations are not complete")
	ErrAdapterRetryable = errors.New("retryable adapter error")
	ErrAdapterFatal     = errors.New("fatal adapter error")
)
