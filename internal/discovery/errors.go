package discovery

import "errors"

// Error taxonomy surfaced to callers. Adapter failures are recovered
// internally and never escape; everything else is all-or-nothing: either a
// complete record or one of these.
var (
	// ErrInvalidRequest means the request name is missing or too short.
	ErrInvalidRequest = errors.New("invalid discovery request")

	// ErrTimeout means the deadline elapsed while queued for a slot or
	// while the operation was running. Distinct from a slow adapter, which
	// only loses that adapter's contribution.
	ErrTimeout = errors.New("discovery timed out")

	// ErrNoDataFound means every adapter returned zero candidates.
	ErrNoDataFound = errors.New("no data found for entity")

	// ErrLowConfidence means fusion rejected the candidate set: either the
	// combined confidence stayed below the threshold or no usable name
	// resolved. Nothing is cached in that case.
	ErrLowConfidence = errors.New("discovery confidence below threshold")
)
