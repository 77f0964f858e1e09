package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/report"
)

// CycleService runs the payroll cycle lifecycle. Every mutating call returns
// the updated cycle or a typed error from the apperror package.
type CycleService interface {
	CreateCycle(ctx context.Context, req CreateCycleRequest) (CycleResponse, error)
	ProcessCycle(ctx context.Context, companyID, cycleID string) (CycleResponse, error)
	ApproveCycle(ctx context.Context, req ApproveCycleRequest) (CycleResponse, error)
	SettleEntries(ctx context.Context, req SettleEntriesRequest) (CycleResponse, error)
	MarkPaid(ctx context.Context, companyID, cycleID, actorID string) (CycleResponse, error)
	LockCycle(ctx context.Context, companyID, cycleID string) (CycleResponse, error)

	GetCycle(ctx context.Context, companyID, cycleID string) (CycleResponse, error)
	ListEntries(ctx context.Context, companyID, cycleID string) ([]EntryResponse, error)
	ListCycles(ctx context.Context, companyID string, filter CycleFilter) (ListCycleResponse, error)
	Snapshot(ctx context.Context, companyID, cycleID string) (report.CycleSnapshot, error)

	// OpenCycles creates the draft cycle of the given period for every
	// company that has none yet.
	OpenCycles(ctx context.Context, year, month int) (int, error)
}
