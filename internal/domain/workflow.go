package domain

import "time"

// Stage groups statuses for UI and reporting.
type Stage string

const (
	StageIntake    Stage = "intake"
	StageDiagnosis Stage = "diagnosis"
	StageQuoting   Stage = "quoting"
	StageApproval  Stage = "approval"
	StageRepair    Stage = "repair"
	StageHandover  Stage = "handover"
	StageTerminal  Stage = "terminal"
)

// statusOrder lists every status in forward workflow order, terminals last.
var statusOrder = []Status{
	StatusReported,
	StatusInPrediagnostic,
	StatusPrediagnosticCompleted,
	StatusInQuote,
	StatusQuoteReceived,
	StatusInApproval,
	StatusApproved,
	StatusInRepair,
	StatusRepairCompleted,
	StatusInReception,
	StatusVehicleReceived,
	StatusCancelled,
}

// progressWeights assigns each status its fixed ordinal percentage.
// A cancelled intervention reports 0 regardless of how far it got;
// an invoiced one reports 100 (see Intervention.Progress).
var progressWeights = map[Status]int{
	StatusReported:               0,
	StatusInPrediagnostic:        8,
	StatusPrediagnosticCompleted: 16,
	StatusInQuote:                25,
	StatusQuoteReceived:          33,
	StatusInApproval:             41,
	StatusApproved:               50,
	StatusInRepair:               60,
	StatusRepairCompleted:        70,
	StatusInReception:            80,
	StatusVehicleReceived:        90,
	StatusCancelled:              0,
}

var stages = map[Status]Stage{
	StatusReported:               StageIntake,
	StatusInPrediagnostic:        StageDiagnosis,
	StatusPrediagnosticCompleted: StageDiagnosis,
	StatusInQuote:                StageQuoting,
	StatusQuoteReceived:          StageQuoting,
	StatusInApproval:             StageApproval,
	StatusApproved:               StageApproval,
	StatusInRepair:               StageRepair,
	StatusRepairCompleted:        StageRepair,
	StatusInReception:            StageHandover,
	StatusVehicleReceived:        StageTerminal,
	StatusCancelled:              StageTerminal,
}

// ParseStatus validates a status string against the closed enumeration.
func ParseStatus(s string) (Status, error) {
	for _, known := range statusOrder {
		if Status(s) == known {
			return known, nil
		}
	}
	return "", &UnknownStatusError{Value: s}
}

// AllStatuses returns every status in forward workflow order.
func AllStatuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// IsTransitionAllowed reports whether target is a legal next status.
func IsTransitionAllowed(current, target Status) bool {
	for _, t := range Transitions {
		if t.Src == current && t.Dst == target {
			return true
		}
	}
	return false
}

// NextActions returns the legal target statuses from current, in table
// order. Terminal statuses return an empty set.
func NextActions(current Status) []Status {
	var out []Status
	for _, t := range Transitions {
		if t.Src == current {
			out = append(out, t.Dst)
		}
	}
	return out
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(NextActions(s)) == 0
}

// ProgressPercent derives the completion percentage for a status from
// the fixed weight table. Unknown statuses report 0.
func ProgressPercent(s Status) int {
	return progressWeights[s]
}

// Progress is ProgressPercent plus the invoiced end-state: an invoiced
// intervention reports 100, a cancelled one 0.
func (i *Intervention) Progress() int {
	if i.Status == StatusCancelled {
		return 0
	}
	if i.InvoicedAt != nil {
		return 100
	}
	return ProgressPercent(i.Status)
}

// StageOf maps a status to its reporting stage.
func StageOf(s Status) Stage {
	return stages[s]
}

// DaysInStatus returns the whole number of days elapsed since the last
// status change, floor-rounded and never negative.
func DaysInStatus(lastChange, now time.Time) int {
	d := now.Sub(lastChange)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// WorkflowDescription is a read-only snapshot of the transition table,
// used by the CLI and the introspection endpoint.
type WorkflowDescription struct {
	Statuses    []Status
	Transitions map[Status][]Status
	Terminal    []Status
}

// DescribeWorkflow exposes the full transition table for display.
func DescribeWorkflow() WorkflowDescription {
	desc := WorkflowDescription{
		Statuses:    AllStatuses(),
		Transitions: make(map[Status][]Status, len(statusOrder)),
	}
	for _, s := range statusOrder {
		next := NextActions(s)
		desc.Transitions[s] = next
		if len(next) == 0 {
			desc.Terminal = append(desc.Terminal, s)
		}
	}
	return desc
}
