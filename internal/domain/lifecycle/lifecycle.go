// Package lifecycle owns the status machines of payroll cycles and exit
// settlements. The transition table below is the only place allowed moves
// are declared.
package lifecycle

import (
	"slices"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusProcessing      Status = "processing"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusPaid            Status = "paid"
	StatusLocked          Status = "locked"

	StatusPending    Status = "pending"
	StatusCalculated Status = "calculated"
	StatusCompleted  Status = "completed"
)

type Flow string

const (
	FlowPayrollCycle Flow = "payroll_cycle"
	FlowSettlement   Flow = "settlement"
)

type flowDef struct {
	order       []Status
	transitions map[Status][]Status
}

var flows = map[Flow]flowDef{
	FlowPayrollCycle: {
		order: []Status{StatusDraft, StatusProcessing, StatusPendingApproval, StatusApproved, StatusPaid, StatusLocked},
		transitions: map[Status][]Status{
			StatusDraft: {StatusProcessing},
			// processing falls back to draft when a run fails or is found stale
			StatusProcessing:      {StatusPendingApproval, StatusDraft},
			StatusPendingApproval: {StatusApproved},
			StatusApproved:        {StatusPaid},
			StatusPaid:            {StatusLocked},
		},
	},
	FlowSettlement: {
		order: []Status{StatusPending, StatusCalculated, StatusApproved, StatusPaid, StatusCompleted},
		transitions: map[Status][]Status{
			StatusPending:    {StatusCalculated},
			StatusCalculated: {StatusApproved},
			StatusApproved:   {StatusPaid},
			StatusPaid:       {StatusCompleted},
		},
	},
}

// Valid reports whether s belongs to the flow.
func Valid(flow Flow, s Status) bool {
	return slices.Contains(flows[flow].order, s)
}

// CanTransition reports whether from -> to is declared for the flow.
func CanTransition(flow Flow, from, to Status) bool {
	return slices.Contains(flows[flow].transitions[from], to)
}

// Transition checks a requested move. A request for the current status is an
// idempotent no-op: it returns changed=false and no error.
func Transition(flow Flow, id string, from, to Status) (changed bool, err error) {
	if from == to && Valid(flow, from) {
		return false, nil
	}
	if !CanTransition(flow, from, to) {
		return false, &apperror.StateTransitionError{
			Entity: string(flow),
			ID:     id,
			From:   string(from),
			To:     string(to),
		}
	}
	return true, nil
}

// AtLeast reports whether s is at or past ref in the flow's ordering.
func AtLeast(flow Flow, s, ref Status) bool {
	order := flows[flow].order
	i := slices.Index(order, s)
	j := slices.Index(order, ref)
	if i < 0 || j < 0 {
		return false
	}
	return i >= j
}

// Terminal reports whether no transition leaves s.
func Terminal(flow Flow, s Status) bool {
	return Valid(flow, s) && len(flows[flow].transitions[s]) == 0
}
