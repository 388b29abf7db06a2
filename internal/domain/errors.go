package domain

import "errors"

// Domain errors represent error conditions in the scrubber domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInputNotFound is returned when the input document does not exist.
	ErrInputNotFound = errors.New("scrubber: input not found")

	// ErrProtocol is returned when the generator response violates the
	// numbered-item protocol (not JSON, not an array, or too few items).
	ErrProtocol = errors.New("scrubber: protocol error")

	// ErrRateLimited is returned by generators when the service quota is exhausted.
	ErrRateLimited = errors.New("scrubber: rate limited")

	// ErrGeneratorStatus is returned by generators for a non-rate-limit error
	// status from the service. Such errors are never treated as rate limits.
	ErrGeneratorStatus = errors.New("scrubber: generator error status")

	// ErrLengthMismatch is returned when the number of rewritten texts does not
	// match the number of extracted spans.
	ErrLengthMismatch = errors.New("scrubber: length mismatch")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("scrubber: invalid configuration")

	// ErrCheckpointMismatch is returned when a stored checkpoint belongs to a
	// different input or batch plan.
	ErrCheckpointMismatch = errors.New("scrubber: checkpoint does not match input")

	// ErrInvalidTransition is returned when a run phase change is not allowed.
	ErrInvalidTransition = errors.New("scrubber: invalid phase transition")
)
