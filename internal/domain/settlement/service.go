package settlement

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/report"
)

// Service computes and advances exit settlements independently of payroll
// cycle state.
type Service interface {
	InitiateExit(ctx context.Context, req InitiateExitRequest) (ExitResponse, error)
	CalculateSettlement(ctx context.Context, companyID, exitID string) (ExitResponse, error)
	ApproveSettlement(ctx context.Context, req ApproveSettlementRequest) (ExitResponse, error)
	MarkSettlementPaid(ctx context.Context, companyID, exitID, reference string) (ExitResponse, error)
	CompleteSettlement(ctx context.Context, companyID, exitID string) (ExitResponse, error)

	GetExit(ctx context.Context, companyID, exitID string) (ExitResponse, error)
	ListExits(ctx context.Context, companyID string, status *string) ([]ExitResponse, error)
	Snapshot(ctx context.Context, companyID, exitID string) (report.ExitSnapshot, error)
}
