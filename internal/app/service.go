package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

// documentEntityTypes maps the statuses whose entry mints a new document
// code to the entity type of that document. Entering in_quote issues the
// quote number, entering approved issues the work authorization number.
// Invoicing is not a workflow status; see MarkInvoiced.
var documentEntityTypes = map[domain.Status]domain.EntityType{
	domain.StatusInQuote:  domain.EntityQuote,
	domain.StatusApproved: domain.EntityAuthorization,
}

// WorkflowService orchestrates intervention lifecycle operations.
type WorkflowService struct {
	repo      domain.InterventionRepository
	validator domain.TransitionValidator
	codes     *CodeService
	publisher domain.EventPublisher
}

// NewWorkflowService creates a service with the given adapters.
func NewWorkflowService(repo domain.InterventionRepository, validator domain.TransitionValidator, codes *CodeService, publisher domain.EventPublisher) *WorkflowService {
	return &WorkflowService{
		repo:      repo,
		validator: validator,
		codes:     codes,
		publisher: publisher,
	}
}

// Create persists a new intervention in the "reported" state with a
// freshly minted intervention code.
func (s *WorkflowService) Create(ctx context.Context, tenantID, vehicleID, title string, priority domain.Priority, assignedTo string) (domain.Intervention, error) {
	id, err := generateID()
	if err != nil {
		return domain.Intervention{}, fmt.Errorf("generating intervention id: %w", err)
	}

	code, err := s.codes.Generate(ctx, tenantID, domain.EntityIntervention)
	if err != nil {
		return domain.Intervention{}, fmt.Errorf("generating intervention code: %w", err)
	}

	intervention := domain.NewIntervention(id, tenantID, vehicleID, title, priority, assignedTo)
	intervention.AttachCode(domain.EntityIntervention, code)

	if err := s.repo.Create(ctx, intervention); err != nil {
		return domain.Intervention{}, fmt.Errorf("creating intervention: %w", err)
	}

	return intervention, nil
}

// GetByID returns an intervention by its unique identifier.
func (s *WorkflowService) GetByID(ctx context.Context, id string) (domain.Intervention, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns interventions matching the given filter.
func (s *WorkflowService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Intervention, error) {
	return s.repo.List(ctx, filter)
}

// History returns the transition audit trail for an intervention.
func (s *WorkflowService) History(ctx context.Context, id string) ([]domain.TransitionRecord, error) {
	return s.repo.History(ctx, id)
}

// Transition applies a status change to an intervention.
//
// Unless forced, the change must be in the transition table. A forced
// transition requires a non-empty comment and is recorded with the
// forced audit flag. When the target status mints a document code, code
// generation happens before the save and its failure aborts the whole
// transition; the status change and the attached code land in a single
// versioned update, so a concurrent transition surfaces as
// domain.ErrVersionConflict for the caller to retry.
func (s *WorkflowService) Transition(ctx context.Context, id string, target domain.Status, actor, comment string, force bool) (domain.Intervention, error) {
	intervention, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Intervention{}, err
	}

	if force {
		if strings.TrimSpace(comment) == "" {
			return domain.Intervention{}, domain.ErrCommentRequired
		}
	} else if err := s.validator.Apply(ctx, intervention.Status, target); err != nil {
		return domain.Intervention{}, err
	}

	now := time.Now().UTC()
	expectedVersion := intervention.Version
	from := intervention.Status

	intervention.Status = target
	intervention.StampStage(target, now)
	intervention.UpdatedAt = now
	intervention.Version = expectedVersion + 1

	if et, ok := documentEntityTypes[target]; ok && intervention.CodeFor(et) == "" {
		code, err := s.codes.Generate(ctx, intervention.TenantID, et)
		if err != nil {
			return domain.Intervention{}, fmt.Errorf("generating %s code: %w", et, err)
		}
		intervention.AttachCode(et, code)
	}

	record := domain.TransitionRecord{
		InterventionID: intervention.ID,
		From:           from,
		To:             target,
		Actor:          actor,
		Comment:        comment,
		Forced:         force,
		CreatedAt:      now,
	}

	if err := s.repo.ApplyTransition(ctx, intervention, expectedVersion, record); err != nil {
		return domain.Intervention{}, err
	}

	if err := s.publisher.Publish(ctx, record, intervention); err != nil {
		return domain.Intervention{}, fmt.Errorf("publishing transition %q -> %q: %w", from, target, err)
	}

	return intervention, nil
}

// MarkInvoiced stamps the invoiced timestamp and mints the invoice code
// for a completed intervention. Only a vehicle_received intervention can
// be invoiced, and only once.
func (s *WorkflowService) MarkInvoiced(ctx context.Context, id, actor string) (domain.Intervention, error) {
	intervention, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Intervention{}, err
	}

	if intervention.Status != domain.StatusVehicleReceived {
		return domain.Intervention{}, domain.ErrNotInvoiceable
	}
	if intervention.InvoicedAt != nil {
		return domain.Intervention{}, domain.ErrAlreadyInvoiced
	}

	code, err := s.codes.Generate(ctx, intervention.TenantID, domain.EntityInvoice)
	if err != nil {
		return domain.Intervention{}, fmt.Errorf("generating invoice code: %w", err)
	}

	now := time.Now().UTC()
	expectedVersion := intervention.Version

	intervention.AttachCode(domain.EntityInvoice, code)
	intervention.InvoicedAt = &now
	intervention.UpdatedAt = now
	intervention.Version = expectedVersion + 1

	if err := s.repo.UpdateWithVersion(ctx, intervention, expectedVersion); err != nil {
		return domain.Intervention{}, err
	}

	return intervention, nil
}
