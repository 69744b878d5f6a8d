package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrInterventionNotFound = errors.New("intervention not found")
	ErrFormatNotFound       = errors.New("code format not found")
	ErrVersionConflict      = errors.New("intervention was modified concurrently")
	ErrCommentRequired      = errors.New("forced transition requires a comment")
	ErrNotInvoiceable       = errors.New("intervention must be vehicle_received before invoicing")
	ErrAlreadyInvoiced      = errors.New("intervention is already invoiced")
	ErrInvalidTemplate      = errors.New("invalid code template")
	ErrUnknownEntityType    = errors.New("unknown entity type")
)

// InvalidTransitionError is returned when a status change is not in the
// transition table and was not forced. It carries the legal target set
// so callers can self-correct.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition from %q to %q is not allowed (allowed: %v)", e.From, e.To, e.Allowed)
}

// SequenceAllocationError is returned when the atomic increment primitive
// itself fails. No partial state was written, so the whole operation is
// safe to retry.
type SequenceAllocationError struct {
	TenantID   string
	EntityType EntityType
	Period     string
	Err        error
}

func (e *SequenceAllocationError) Error() string {
	return fmt.Sprintf("allocating sequence for tenant=%q type=%q period=%q: %v",
		e.TenantID, e.EntityType, e.Period, e.Err)
}

func (e *SequenceAllocationError) Unwrap() error { return e.Err }

// FormatResolutionError means even the built-in default template is
// missing for an entity type. That is a configuration bug, never a
// normal runtime condition.
type FormatResolutionError struct {
	EntityType EntityType
}

func (e *FormatResolutionError) Error() string {
	return fmt.Sprintf("no code format available for entity type %q, not even a built-in default", e.EntityType)
}

// UnknownStatusError is returned when a string does not name any status.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status %q", e.Value)
}

// UnknownPriorityError is returned when a string does not name a priority.
type UnknownPriorityError struct {
	Value string
}

func (e *UnknownPriorityError) Error() string {
	return fmt.Sprintf("unknown priority %q", e.Value)
}
