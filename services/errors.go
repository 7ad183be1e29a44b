package services

import "fmt"

// Error taxonomy surfaced by the review engine. Controllers map these onto
// HTTP statuses: NotFoundError 404, ConflictError 409, PermissionDeniedError
// 403, InvalidStateError 400 or 409, ValidationError 400.

// NotFoundError reports an unknown workflow, review, application or member.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ConflictError reports a duplicate active review or an exhausted
// compare-and-swap cycle. Callers may re-fetch and resubmit.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// PermissionDeniedError reports an actor lacking the role or override needed
// for an action. Not retryable without a role change.
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return e.Reason
}

// InvalidStateError reports an action against a terminal review or a malformed
// action type.
type InvalidStateError struct {
	Reason   string
	Terminal bool
}

func (e *InvalidStateError) Error() string {
	return e.Reason
}

// ValidationError reports a malformed workflow template at publish time.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
