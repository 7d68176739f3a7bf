package repository

import "errors"

// Sentinel errors for persistence.
var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrInvalidInput  = errors.New("invalid input")
)
