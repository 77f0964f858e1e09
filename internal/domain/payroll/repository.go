package payroll

import (
	"context"
	"time"
)

// CycleRepository defines data access for payroll cycles.
// All methods include companyID to prevent cross-company data access.
type CycleRepository interface {
	Create(ctx context.Context, cycle Cycle) (Cycle, error)
	GetByID(ctx context.Context, companyID, id string) (Cycle, error)
	// GetByIDForUpdate locks the cycle row for the current transaction.
	GetByIDForUpdate(ctx context.Context, companyID, id string) (Cycle, error)
	List(ctx context.Context, companyID string, filter CycleFilter) ([]Cycle, int64, error)
	Update(ctx context.Context, cycle Cycle) error
}

type EntryRepository interface {
	// ReplaceForCycle drops any previous entries of the cycle and inserts entries.
	ReplaceForCycle(ctx context.Context, companyID, cycleID string, entries []Entry) error
	ListByCycle(ctx context.Context, companyID, cycleID string) ([]Entry, error)
	MarkSettled(ctx context.Context, companyID, cycleID string, entryIDs []string, reference string, at time.Time) (int64, error)
	// GetLatestForStaff returns the staff member's newest entry in a cycle
	// that reached pending_approval, limited to periods before (year, month).
	GetLatestForStaff(ctx context.Context, companyID, staffID string, beforeYear, beforeMonth int) (Entry, error)
	// ListClaimedCommissionIDs returns commission ids held by entries of
	// cycles not yet paid.
	ListClaimedCommissionIDs(ctx context.Context, companyID, staffID string) ([]string, error)
	// SumPendingAdvanceRecovery totals the advance installments of entries
	// in cycles not yet paid.
	SumPendingAdvanceRecovery(ctx context.Context, companyID, staffID string) (int64, error)
}

type AttendanceRepository interface {
	// GetSummary returns ErrAttendanceNotFound when the period has no data.
	GetSummary(ctx context.Context, companyID, staffID string, from, to time.Time) (AttendanceSummary, error)
	GetLeaveBalance(ctx context.Context, companyID, staffID string, asOf time.Time) (LeaveBalance, error)
}

type CommissionRepository interface {
	// ListEarned returns earned entries completed in [from, to).
	ListEarned(ctx context.Context, companyID, staffID string, from, to time.Time) ([]CommissionEntry, error)
	MarkPaid(ctx context.Context, companyID string, ids []string, at time.Time) (int64, error)
}

type TipRepository interface {
	// ListReceived returns tips received in [from, to).
	ListReceived(ctx context.Context, companyID, staffID string, from, to time.Time) ([]Tip, error)
}

type AdvanceRepository interface {
	// GetOutstanding returns a zero balance when the staff has no advance.
	GetOutstanding(ctx context.Context, companyID, staffID string) (AdvanceBalance, error)
	RecordRecovery(ctx context.Context, companyID, staffID string, amount int64, reference string) error
}
