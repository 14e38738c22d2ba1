package services

import "errors"

// Sentinel errors shared across services. Handlers translate these into the
// appropriate HTTP responses.
var (
	// ErrProfileNotFound indicates the referenced profile does not exist
	ErrProfileNotFound = errors.New("profile not found")

	// ErrSessionNotFound indicates the referenced session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrRecommendationNotFound indicates the referenced recommendation does not exist
	ErrRecommendationNotFound = errors.New("recommendation not found")

	// ErrNotOwned indicates the entity exists but belongs to a different user
	ErrNotOwned = errors.New("resource does not belong to the requesting user")

	// ErrMissingProfile indicates an operation that requires a profile was
	// invoked on a session without one
	ErrMissingProfile = errors.New("session has no associated profile")

	// ErrNoCandidatesFound indicates retrieval exhausted every fallback tier
	// and still found nothing
	ErrNoCandidatesFound = errors.New("no matching programs found")

	// ErrCompletionFailed indicates the AI completion step failed or was cut
	// off before finishing
	ErrCompletionFailed = errors.New("AI completion failed")
)
