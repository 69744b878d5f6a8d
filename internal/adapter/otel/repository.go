package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

const tracerName = "github.com/oumiche/impact-auto-plus-sub006/internal/adapter/otel"

// TracingRepository wraps a domain.InterventionRepository with
// OpenTelemetry tracing. Each method creates a span with semantic
// attributes and records errors.
type TracingRepository struct {
	next   domain.InterventionRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.InterventionRepository.
var _ domain.InterventionRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.InterventionRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, iv domain.Intervention) error {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.Create",
		trace.WithAttributes(
			attribute.String("intervention.id", iv.ID),
			attribute.String("tenant.id", iv.TenantID),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, iv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Intervention, error) {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.GetByID",
		trace.WithAttributes(attribute.String("intervention.id", id)),
	)
	defer span.End()

	iv, err := r.next.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return iv, err
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Intervention, error) {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.TenantID != "" {
		span.SetAttributes(attribute.String("filter.tenant_id", filter.TenantID))
	}
	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}

	interventions, err := r.next.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(interventions)))
	}
	return interventions, err
}

func (r *TracingRepository) UpdateWithVersion(ctx context.Context, iv domain.Intervention, expectedVersion int64) error {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.UpdateWithVersion",
		trace.WithAttributes(
			attribute.String("intervention.id", iv.ID),
			attribute.String("intervention.status", string(iv.Status)),
			attribute.Int64("intervention.expected_version", expectedVersion),
		),
	)
	defer span.End()

	err := r.next.UpdateWithVersion(ctx, iv, expectedVersion)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) ApplyTransition(ctx context.Context, iv domain.Intervention, expectedVersion int64, rec domain.TransitionRecord) error {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.ApplyTransition",
		trace.WithAttributes(
			attribute.String("intervention.id", iv.ID),
			attribute.String("transition.from", string(rec.From)),
			attribute.String("transition.to", string(rec.To)),
			attribute.Bool("transition.forced", rec.Forced),
			attribute.Int64("intervention.expected_version", expectedVersion),
		),
	)
	defer span.End()

	err := r.next.ApplyTransition(ctx, iv, expectedVersion, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) History(ctx context.Context, interventionID string) ([]domain.TransitionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.History",
		trace.WithAttributes(attribute.String("intervention.id", interventionID)),
	)
	defer span.End()

	records, err := r.next.History(ctx, interventionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(records)))
	}
	return records, err
}
