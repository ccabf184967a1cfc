// Package apperr holds the sentinel errors shared across service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrRejected marks a recoverable validation failure; the wrapping
	// message carries the human-readable reason.
	ErrRejected = errors.New("rejected")
)
