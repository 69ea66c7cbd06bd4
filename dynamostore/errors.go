package dynamostore

import "errors"

var (
	// ErrStaleContext is returned when an update's causal context no longer
	// matches the stored record: someone else wrote in between, or the
	// record was deleted. Fetch again before retrying.
	ErrStaleContext = errors.New("rivet: causal context is stale")

	// ErrBadContext is returned when a causal context token is not one this
	// backend issued.
	ErrBadContext = errors.New("rivet: malformed causal context")
)
