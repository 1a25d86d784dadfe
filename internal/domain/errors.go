package domain

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEngineerNotFound is returned when an availability toggle names an
	// unknown user or an account that is not an engineer.
	ErrEngineerNotFound = errors.New("engineer not found")

	// ErrStoreUnavailable wraps failures of the persistence collaborator.
	// It is never retried internally.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAssignmentConflict reports that a conditional assignment found the
	// ticket no longer eligible, usually because another writer claimed it.
	ErrAssignmentConflict = errors.New("concurrent assignment conflict")

	// ErrStatusConflict reports that a status change found the ticket no
	// longer in the expected status.
	ErrStatusConflict = errors.New("concurrent status change")

	// ErrEmailTaken is returned when creating an account with a used email.
	ErrEmailTaken = errors.New("email already registered")
)
