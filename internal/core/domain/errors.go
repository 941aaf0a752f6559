package domain

import "errors"

var (
	// ErrInvalidInput marks a non-numeric, missing or non-finite ray field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRayNotFound is returned for an id that is not in the active set.
	ErrRayNotFound = errors.New("ray not found")
	// ErrSessionNotFound is returned for an unknown or expired session.
	ErrSessionNotFound = errors.New("session not found")
)
