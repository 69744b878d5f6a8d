package domain

import "context"

// InterventionRepository defines the persistence contract for
// interventions and their transition history.
type InterventionRepository interface {
	Create(ctx context.Context, intervention Intervention) error
	GetByID(ctx context.Context, id string) (Intervention, error)
	List(ctx context.Context, filter ListFilter) ([]Intervention, error)

	// UpdateWithVersion persists the intervention only if the stored row
	// still carries expectedVersion. A mismatch returns ErrVersionConflict;
	// the caller re-reads and retries instead of overwriting.
	UpdateWithVersion(ctx context.Context, intervention Intervention, expectedVersion int64) error

	// ApplyTransition is UpdateWithVersion plus the audit record, written
	// atomically in one transaction.
	ApplyTransition(ctx context.Context, intervention Intervention, expectedVersion int64, record TransitionRecord) error

	History(ctx context.Context, interventionID string) ([]TransitionRecord, error)
}

// ListFilter holds optional criteria for listing interventions.
type ListFilter struct {
	TenantID string
	Status   *Status
	Limit    int
	Offset   int
}

// CodeFormatRepository defines the persistence contract for code format
// configuration.
type CodeFormatRepository interface {
	CreateFormat(ctx context.Context, format CodeFormat) error

	// ListActiveFormats returns active formats for (tenantID, entityType),
	// most recently created first. An empty tenantID selects the global
	// formats.
	ListActiveFormats(ctx context.Context, tenantID string, entityType EntityType) ([]CodeFormat, error)

	ListFormats(ctx context.Context, tenantID string) ([]CodeFormat, error)
	DeactivateFormat(ctx context.Context, id string) error
}

// SequenceStore is the tenant/entity/period-keyed monotonic counter.
// Next must be a single atomic increment-and-fetch at the storage layer:
// concurrent callers on the same key each receive a distinct, strictly
// increasing value. Values are never cached in process memory.
type SequenceStore interface {
	Next(ctx context.Context, tenantID string, entityType EntityType, period string) (int64, error)
}

// TransitionValidator checks that a status change is legal.
type TransitionValidator interface {
	Apply(ctx context.Context, current, target Status) error
}

// EventPublisher defines the contract for emitting workflow events.
type EventPublisher interface {
	Publish(ctx context.Context, record TransitionRecord, intervention Intervention) error
}
