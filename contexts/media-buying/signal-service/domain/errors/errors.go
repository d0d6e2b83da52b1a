package errors

import "errors"

var (
	ErrActivationNotFound     = errors.New("signal activation not found")
	ErrInvalidActivationInput = errors.New("invalid signal activation input")
	ErrActivationTerminal     = errors.New("signal activation already terminal")
	ErrPollCountConflict      = errors.New("signal activation poll count conflict")
	ErrAdapterTransient       = errors.New("transient adapter error")
)
