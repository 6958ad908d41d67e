package models

import "errors"

// Error taxonomy shared by the adapters, the aggregator and the insights
// proxy. Callers match with errors.Is after %w wrapping.
var (
	// ErrSourceUnavailable means an upstream provider was unreachable or
	// returned a non-success status. The adapter's category is omitted from
	// the run; the pipeline continues.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSchemaMismatch means an upstream response could not be normalized
	// into the common record schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrRateLimited is returned by the insights client when the upstream AI
	// API answered 429. It is retried with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrInsightsFailed is the generic, user-safe failure returned after
	// retries are exhausted. It carries no upstream detail.
	ErrInsightsFailed = errors.New("insight generation failed, please try again later")
)
