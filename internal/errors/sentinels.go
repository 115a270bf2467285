package errors

import "errors"

// Sentinel errors for the closed set of failures the coordinator surfaces
// to its caller, so callers can use errors.Is instead of string matching.
var (
	// ErrDuplicateID names a registration under an ID that is already in
	// use. No function in this module returns it: the records repository
	// assigns its own IDs, and the coordinator treats a known ID as an
	// update.
	ErrDuplicateID = errors.New("beacon: duplicate service id")

	// ErrConflictingName names a service whose instance name and type
	// collide with an existing registration; a *ConflictError matches it
	// under errors.Is. No function in this module returns it: adding a
	// service does not check for colliding names.
	ErrConflictingName = errors.New("beacon: conflicting service name")

	// ErrInternal covers caller misuse such as updating a registration
	// that does not exist.
	ErrInternal = errors.New("beacon: internal error")

	// ErrMaxRenameAttempts is returned once a service has failed to probe
	// cleanly after the maximum number of rename attempts.
	ErrMaxRenameAttempts = errors.New("beacon: maximum rename attempts exceeded")
)
