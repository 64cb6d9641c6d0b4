package store

import "errors"

var (
	// ErrNoLatest is returned when no report has been saved yet.
	ErrNoLatest = errors.New("store: no latest report")

	// ErrNotFound is returned for a run id that is not in the history.
	ErrNotFound = errors.New("store: report not found")

	// ErrNoDir is returned when the store has no directory configured.
	ErrNoDir = errors.New("store: directory is required")
)
