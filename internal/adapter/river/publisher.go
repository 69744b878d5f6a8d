package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// TransitionJobArgs carries the data needed to process a workflow
// transition asynchronously. River serializes this as JSON into its job
// queue table. It includes a snapshot of the intervention at the time
// the transition was recorded, so the worker never needs to query the
// database.
type TransitionJobArgs struct {
	InterventionID    string `json:"intervention_id"`
	TenantID          string `json:"tenant_id"`
	VehicleID         string `json:"vehicle_id"`
	From              string `json:"from"`
	To                string `json:"to"`
	Actor             string `json:"actor"`
	Forced            bool   `json:"forced"`
	Progress          int    `json:"progress"`
	QuoteCode         string `json:"quote_code,omitempty"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "intervention.transitioned" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a workflow transition as an async job in River.
func (p *Publisher) Publish(ctx context.Context, rec domain.TransitionRecord, iv domain.Intervention) error {
	_, err := p.client.Insert(ctx, TransitionJobArgs{
		InterventionID:    iv.ID,
		TenantID:          iv.TenantID,
		VehicleID:         iv.VehicleID,
		From:              string(rec.From),
		To:                string(rec.To),
		Actor:             rec.Actor,
		Forced:            rec.Forced,
		Progress:          iv.Progress(),
		QuoteCode:         iv.QuoteCode,
		AuthorizationCode: iv.AuthorizationCode,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}
