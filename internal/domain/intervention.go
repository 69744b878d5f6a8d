package domain

import "time"

// Status represents the lifecycle state of an intervention.
type Status string

const (
	StatusReported               Status = "reported"
	StatusInPrediagnostic        Status = "in_prediagnostic"
	StatusPrediagnosticCompleted Status = "prediagnostic_completed"
	StatusInQuote                Status = "in_quote"
	StatusQuoteReceived          Status = "quote_received"
	StatusInApproval             Status = "in_approval"
	StatusApproved               Status = "approved"
	StatusInRepair               Status = "in_repair"
	StatusRepairCompleted        Status = "repair_completed"
	StatusInReception            Status = "in_reception"
	StatusVehicleReceived        Status = "vehicle_received"
	StatusCancelled              Status = "cancelled"
)

// Priority classifies how urgent an intervention is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority validates a priority string.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, nil
	}
	return "", &UnknownPriorityError{Value: s}
}

// Transition defines a valid state change from Src to Dst.
type Transition struct {
	Src Status
	Dst Status
}

// Transitions defines all valid state changes in the intervention workflow.
// This is domain knowledge consumed by the FSM adapter and the pure
// workflow helpers; the order here fixes the order of NextActions.
var Transitions = []Transition{
	{Src: StatusReported, Dst: StatusInPrediagnostic},
	{Src: StatusReported, Dst: StatusCancelled},
	{Src: StatusInPrediagnostic, Dst: StatusPrediagnosticCompleted},
	{Src: StatusInPrediagnostic, Dst: StatusCancelled},
	{Src: StatusPrediagnosticCompleted, Dst: StatusInQuote},
	{Src: StatusPrediagnosticCompleted, Dst: StatusCancelled},
	{Src: StatusInQuote, Dst: StatusQuoteReceived},
	{Src: StatusInQuote, Dst: StatusCancelled},
	{Src: StatusQuoteReceived, Dst: StatusInApproval},
	{Src: StatusQuoteReceived, Dst: StatusCancelled},
	{Src: StatusInApproval, Dst: StatusApproved},
	{Src: StatusInApproval, Dst: StatusCancelled},
	{Src: StatusApproved, Dst: StatusInRepair},
	{Src: StatusApproved, Dst: StatusCancelled},
	{Src: StatusInRepair, Dst: StatusRepairCompleted},
	{Src: StatusInRepair, Dst: StatusCancelled},
	{Src: StatusRepairCompleted, Dst: StatusInReception},
	{Src: StatusRepairCompleted, Dst: StatusCancelled},
	{Src: StatusInReception, Dst: StatusVehicleReceived},
	{Src: StatusInReception, Dst: StatusCancelled},
}

// Intervention is the core domain entity: one repair case for one vehicle,
// scoped to a tenant. It is mutated only through workflow transitions,
// guarded by the Version field (optimistic locking).
type Intervention struct {
	ID         string
	TenantID   string
	VehicleID  string
	Title      string
	Priority   Priority
	Status     Status
	Version    int64
	AssignedTo string

	// Codes are issued once and never rewritten; legacy codes issued
	// under an earlier template stay valid as opaque strings.
	Code              string
	QuoteCode         string
	AuthorizationCode string
	InvoiceCode       string

	ReportedDate  time.Time
	StartedDate   *time.Time
	CompletedDate *time.Time
	ClosedDate    *time.Time
	InvoicedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewIntervention creates an intervention in the initial "reported" state.
func NewIntervention(id, tenantID, vehicleID, title string, priority Priority, assignedTo string) Intervention {
	now := time.Now().UTC()
	return Intervention{
		ID:           id,
		TenantID:     tenantID,
		VehicleID:    vehicleID,
		Title:        title,
		Priority:     priority,
		Status:       StatusReported,
		Version:      1,
		AssignedTo:   assignedTo,
		ReportedDate: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// StampStage records the stage timestamp for the given target status,
// if that status has one and it has not been set yet. Timestamps are
// set at most once; re-entering a stage through a forced transition
// never rewinds them.
func (i *Intervention) StampStage(target Status, now time.Time) {
	switch target {
	case StatusInRepair:
		if i.StartedDate == nil {
			i.StartedDate = &now
		}
	case StatusRepairCompleted:
		if i.CompletedDate == nil {
			i.CompletedDate = &now
		}
	case StatusVehicleReceived, StatusCancelled:
		if i.ClosedDate == nil {
			i.ClosedDate = &now
		}
	}
}

// CodeFor returns the code already attached for the given entity type.
func (i *Intervention) CodeFor(et EntityType) string {
	switch et {
	case EntityIntervention:
		return i.Code
	case EntityQuote:
		return i.QuoteCode
	case EntityAuthorization:
		return i.AuthorizationCode
	case EntityInvoice:
		return i.InvoiceCode
	}
	return ""
}

// AttachCode stores a freshly generated code for the given entity type.
// Attaching over an existing code is a no-op: issued codes are immutable.
func (i *Intervention) AttachCode(et EntityType, code string) {
	if i.CodeFor(et) != "" {
		return
	}
	switch et {
	case EntityIntervention:
		i.Code = code
	case EntityQuote:
		i.QuoteCode = code
	case EntityAuthorization:
		i.AuthorizationCode = code
	case EntityInvoice:
		i.InvoiceCode = code
	}
}

// TransitionRecord is one entry in an intervention's audit history.
// Forced transitions carry Forced=true and a mandatory comment so they
// stay distinguishable from natural ones.
type TransitionRecord struct {
	ID             int64
	InterventionID string
	From           Status
	To             Status
	Actor          string
	Comment        string
	Forced         bool
	CreatedAt      time.Time
}
