package telemetry

import "errors"

// Error taxonomy for the ingestion and query paths.
//
// Every boundary failure is translated into one of these kinds before it
// reaches a caller; raw driver or transport errors never escape the
// package unwrapped.
var (
	// ErrInvalidPayload is returned for malformed or incomplete
	// submissions. The caller must fix the payload; retrying the same
	// bytes will fail again.
	ErrInvalidPayload = errors.New("telemetry: invalid payload")

	// ErrStorage is returned when reading persistence fails. Safe to
	// retry: the reading log is append-only and duplicate-tolerant.
	ErrStorage = errors.New("telemetry: storage failure")

	// ErrLookupUnavailable is returned when the backing store is
	// unreachable during a query. The query service absorbs it and
	// serves the demo fallback instead of propagating.
	ErrLookupUnavailable = errors.New("telemetry: lookup unavailable")
)
