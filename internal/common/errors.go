package common

import "errors"

var (
	// ErrValidation marks bad caller input. HTTP handlers map it to 400/422.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence marks a failed state load or save. It is retryable.
	ErrPersistence = errors.New("persistence failed")
)
