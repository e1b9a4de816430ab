package models

import "errors"

// Sentinel errors shared across repositories and services. Handlers map them
// to HTTP statuses with errors.Is, so a not-found result stays distinguishable
// from a connectivity failure.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
)
