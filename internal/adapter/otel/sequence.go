package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

// TracingSequenceStore wraps a domain.SequenceStore with OpenTelemetry
// tracing. Sequence allocation is the hottest shared resource in the
// system, so its spans carry the full counter key.
type TracingSequenceStore struct {
	next   domain.SequenceStore
	tracer trace.Tracer
}

// Compile-time check: TracingSequenceStore implements domain.SequenceStore.
var _ domain.SequenceStore = (*TracingSequenceStore)(nil)

// NewTracingSequenceStore creates a tracing decorator around the given store.
func NewTracingSequenceStore(next domain.SequenceStore) *TracingSequenceStore {
	return &TracingSequenceStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingSequenceStore) Next(ctx context.Context, tenantID string, entityType domain.EntityType, period string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "SequenceStore.Next",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("sequence.entity_type", string(entityType)),
			attribute.String("sequence.period", period),
		),
	)
	defer span.End()

	value, err := s.next.Next(ctx, tenantID, entityType, period)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("sequence.value", value))
	}
	return value, err
}
