// Package store defines the persistence contract shared by the listing store
// backends and provides the in-memory backend.
package store

import "errors"

var (
	// ErrNotFound is returned when the listing or claim does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by CreateClaim when the listing already holds
	// an active claim.
	ErrConflict = errors.New("listing already claimed")

	// ErrStaleState is returned by TransitionClaim when the stored claim is no
	// longer in the expected status.
	ErrStaleState = errors.New("claim state changed")
)
