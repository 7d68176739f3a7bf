package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("recompute backlog full")
	ErrInvalidUser  = errors.New("user id must not be empty")
)
