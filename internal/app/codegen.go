package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

// CodeService generates document codes and manages the tenant format
// configuration that drives them.
type CodeService struct {
	formats domain.CodeFormatRepository
	store   domain.SequenceStore
}

// NewCodeService creates a code service with the given adapters.
func NewCodeService(formats domain.CodeFormatRepository, store domain.SequenceStore) *CodeService {
	return &CodeService{formats: formats, store: store}
}

// Generate mints the next code for (tenant, entityType) using the
// current time to pick the period.
func (s *CodeService) Generate(ctx context.Context, tenantID string, entityType domain.EntityType) (string, error) {
	return s.GenerateAt(ctx, tenantID, entityType, time.Now().UTC())
}

// GenerateAt mints the next code for (tenant, entityType) at the given
// instant. Resolution is consulted only here, so a format change affects
// future codes only; already issued codes stay untouched.
func (s *CodeService) GenerateAt(ctx context.Context, tenantID string, entityType domain.EntityType, at time.Time) (string, error) {
	tmpl, err := s.Resolve(ctx, tenantID, entityType)
	if err != nil {
		return "", err
	}

	period := domain.Period(at)
	seq, err := s.store.Next(ctx, tenantID, entityType, period)
	if err != nil {
		return "", &domain.SequenceAllocationError{
			TenantID:   tenantID,
			EntityType: entityType,
			Period:     period,
			Err:        err,
		}
	}

	return tmpl.Render(at.Year(), int(at.Month()), seq), nil
}

// Resolve returns the applicable template for (tenant, entityType):
// the newest active tenant-specific format, else the newest active
// global format, else the built-in default.
func (s *CodeService) Resolve(ctx context.Context, tenantID string, entityType domain.EntityType) (domain.Template, error) {
	scopes := []string{""}
	if tenantID != "" {
		scopes = []string{tenantID, ""}
	}
	for _, scope := range scopes {
		formats, err := s.formats.ListActiveFormats(ctx, scope, entityType)
		if err != nil {
			return domain.Template{}, fmt.Errorf("loading code formats: %w", err)
		}
		if len(formats) == 0 {
			continue
		}
		tmpl, err := domain.ParseTemplate(formats[0].Template)
		if err != nil {
			return domain.Template{}, fmt.Errorf("configured format %q: %w", formats[0].ID, err)
		}
		return tmpl, nil
	}

	tmpl, err := domain.DefaultTemplate(entityType)
	if err != nil {
		// Missing built-in default is a configuration bug; make it loud.
		slog.ErrorContext(ctx, "code format resolution failed",
			"tenant_id", tenantID,
			"entity_type", entityType,
			"error", err,
		)
		return domain.Template{}, err
	}
	return tmpl, nil
}

// CreateFormat registers a new code format after validating its template.
// An empty tenantID creates a global format.
func (s *CodeService) CreateFormat(ctx context.Context, tenantID string, entityType domain.EntityType, template string) (domain.CodeFormat, error) {
	if _, err := domain.ParseTemplate(template); err != nil {
		return domain.CodeFormat{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.CodeFormat{}, fmt.Errorf("generating format id: %w", err)
	}

	format := domain.CodeFormat{
		ID:         id,
		TenantID:   tenantID,
		EntityType: entityType,
		Template:   template,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.formats.CreateFormat(ctx, format); err != nil {
		return domain.CodeFormat{}, fmt.Errorf("creating code format: %w", err)
	}

	return format, nil
}

// ListFormats returns all formats configured for a tenant (or the global
// ones for an empty tenantID).
func (s *CodeService) ListFormats(ctx context.Context, tenantID string) ([]domain.CodeFormat, error) {
	return s.formats.ListFormats(ctx, tenantID)
}

// DeactivateFormat retires a format. Codes already issued under it are
// never rewritten.
func (s *CodeService) DeactivateFormat(ctx context.Context, id string) error {
	return s.formats.DeactivateFormat(ctx, id)
}
