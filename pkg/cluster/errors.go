package cluster

import "errors"

var (
	// ErrInvalidInput is returned for an empty id list, duplicate ids or a
	// cluster count outside [1, len(ids)].
	ErrInvalidInput = errors.New("invalid clustering input")

	// ErrPersist wraps failures while writing assignments back. The returned
	// Result is still valid.
	ErrPersist = errors.New("persisting cluster assignments failed")
)
