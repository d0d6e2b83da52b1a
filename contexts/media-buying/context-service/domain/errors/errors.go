package errors

import "errors"

var (
	ErrContextNotFound = errors.New("context not found")
	ErrInvalidRequest  = errors.New("invalid context request")
)
