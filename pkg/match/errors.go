package match

import "errors"

// Sentinel errors for matching runs.
var (
	// ErrInvalidInput is returned for empty node sequences, duplicated ids
	// inside one sequence, or ids the graph store does not know.
	// No partial result accompanies it.
	ErrInvalidInput = errors.New("invalid matching input")

	// ErrDimensionMismatch signals a non-square or mismatched matrix product
	// while building connectivity layers. It indicates a defect.
	ErrDimensionMismatch = errors.New("matrix dimension mismatch")

	// ErrSnapshot wraps graph-store read failures. The whole run is aborted
	// and nothing is persisted.
	ErrSnapshot = errors.New("graph snapshot read failed")

	// ErrPersist wraps failures while writing results back to the store.
	// The Result returned alongside it is complete and valid.
	ErrPersist = errors.New("persisting match results failed")

	// ErrNodeNotFound is what graph readers return for unknown node ids.
	// The engine turns it into ErrInvalidInput.
	ErrNodeNotFound = errors.New("node not found")
)
