package errors

import "errors"

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidTaskInput = errors.New("invalid task input")
	ErrInvalidDecision  = errors.New("decision must be approve or reject")
	ErrVersionConflict  = errors.New("task version conflict")
	ErrTaskTerminal     = errors.New("task already resolved")
)
