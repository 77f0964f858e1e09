package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/lifecycle"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/report"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/settlement"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/money"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

const flow = lifecycle.FlowSettlement

type Options struct {
	StandardDaysPerMonth int64
	GratuityMinYears     int
	GratuityDaysPerYear  int
	GratuityDivisor      int
	LockTTL              time.Duration
	Currency             string
}

type Dependencies struct {
	TxManager      database.TxManager
	ExitRepo       settlement.ExitRepository
	StaffRepo      staff.StaffRepository
	EntryRepo      payroll.EntryRepository
	AttendanceRepo payroll.AttendanceRepository
	CommissionRepo payroll.CommissionRepository
	TipRepo        payroll.TipRepository
	AdvanceRepo    payroll.AdvanceRepository
	Locker         lock.Locker
	Exporter       report.Exporter
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

type SettlementServiceImpl struct {
	Dependencies
	opts Options
	now  func() time.Time
}

func NewSettlementService(deps Dependencies, opts Options) *SettlementServiceImpl {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &SettlementServiceImpl{
		Dependencies: deps,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

var _ settlement.Service = (*SettlementServiceImpl)(nil)

func (s *SettlementServiceImpl) InitiateExit(ctx context.Context, req settlement.InitiateExitRequest) (settlement.ExitResponse, error) {
	if err := req.Validate(); err != nil {
		return settlement.ExitResponse{}, err
	}

	if _, err := s.StaffRepo.GetByID(ctx, req.CompanyID, req.StaffID); err != nil {
		return settlement.ExitResponse{}, err
	}

	resignation, _ := time.Parse("2006-01-02", req.ResignationDate)
	lastDay, _ := time.Parse("2006-01-02", req.LastWorkingDate)
	rec := settlement.ExitRecord{
		CompanyID:       req.CompanyID,
		StaffID:         req.StaffID,
		ExitType:        settlement.ExitType(req.ExitType),
		ResignationDate: resignation,
		LastWorkingDate: lastDay,
		NoticeWaived:    req.NoticeWaived,
		OtherRecoveries: req.OtherRecoveries,
		Notes:           req.Notes,
		Status:          lifecycle.StatusPending,
	}
	if req.ActorID != "" {
		rec.CreatedBy = &req.ActorID
	}

	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.ExitRepo.GetOpenByStaff(ctx, req.CompanyID, req.StaffID)
		switch {
		case err == nil:
			return settlement.ErrExitAlreadyExists
		case !errors.Is(err, settlement.ErrExitNotFound):
			return err
		}

		rec, err = s.ExitRepo.Create(ctx, rec)
		if err != nil {
			return err
		}
		return s.StaffRepo.UpdateEmploymentStatus(ctx, req.CompanyID, req.StaffID, staff.EmploymentStatusExiting)
	})
	if err != nil {
		return settlement.ExitResponse{}, err
	}

	return settlement.NewExitResponse(rec), nil
}

// CalculateSettlement computes the breakdown of a pending exit. Exits already
// calculated or later are returned unchanged.
func (s *SettlementServiceImpl) CalculateSettlement(ctx context.Context, companyID, exitID string) (settlement.ExitResponse, error) {
	tracker := s.Metrics.Track("calculate_settlement")
	resp, err := s.calculate(ctx, companyID, exitID)
	return resp, tracker.End(err)
}

func (s *SettlementServiceImpl) calculate(ctx context.Context, companyID, exitID string) (settlement.ExitResponse, error) {
	rec, err := s.ExitRepo.GetByID(ctx, companyID, exitID)
	if err != nil {
		return settlement.ExitResponse{}, err
	}
	if lifecycle.AtLeast(flow, rec.Status, lifecycle.StatusCalculated) {
		return settlement.NewExitResponse(rec), nil
	}

	unlock, err := s.acquire(ctx, exitID)
	if err != nil {
		return settlement.ExitResponse{}, err
	}
	defer unlock()

	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		rec, err = s.ExitRepo.GetByIDForUpdate(ctx, companyID, exitID)
		if err != nil {
			return err
		}
		changed, err := lifecycle.Transition(flow, rec.ID, rec.Status, lifecycle.StatusCalculated)
		if err != nil || !changed {
			return err
		}

		profile, err := s.StaffRepo.GetByID(ctx, companyID, rec.StaffID)
		if err != nil {
			return err
		}
		if err := s.compute(ctx, &rec, profile); err != nil {
			return fmt.Errorf("exit %s: %w", exitID, err)
		}

		now := s.now()
		rec.Status = lifecycle.StatusCalculated
		rec.CalculatedAt = &now
		return s.ExitRepo.Update(ctx, rec)
	})
	if err != nil {
		return settlement.ExitResponse{}, err
	}

	s.Logger.Info("exit settlement calculated",
		"company_id", companyID,
		"exit_id", exitID,
		"staff_id", rec.StaffID,
		"net_settlement", rec.NetSettlement,
	)
	return settlement.NewExitResponse(rec), nil
}

// compute fills the notice figures and the breakdown of rec.
func (s *SettlementServiceImpl) compute(ctx context.Context, rec *settlement.ExitRecord, profile staff.Profile) error {
	monthly := profile.MonthlySalary
	days := s.opts.StandardDaysPerMonth

	served := daysBetween(rec.ResignationDate, rec.LastWorkingDate)
	shortfall := max(profile.RequiredNoticeDays-served, 0)
	rec.NoticeServedDays = served
	rec.NoticeShortfallDays = shortfall

	b := settlement.Breakdown{
		MonthlySalary:   monthly,
		OtherRecoveries: rec.OtherRecoveries,
	}
	if days > 0 {
		b.DailyRate = decimalRate(monthly, days)
	}

	if rec.ExitType == settlement.ExitTypeResignation && !rec.NoticeWaived {
		b.NoticeRecovery = money.Prorate(monthly, intDecimal(shortfall), days)
	}

	leave, err := s.AttendanceRepo.GetLeaveBalance(ctx, rec.CompanyID, rec.StaffID, rec.LastWorkingDate)
	if err != nil {
		if !errors.Is(err, payroll.ErrAttendanceNotFound) {
			return fmt.Errorf("failed to get leave balance: %w", err)
		}
		leave = payroll.LeaveBalance{StaffID: rec.StaffID}
	}
	b.UnusedLeaveDays = leave.Unused()
	b.LeaveEncashment = money.Prorate(monthly, b.UnusedLeaveDays, days)

	b.ServiceYears = serviceYears(profile.HireDate, rec.LastWorkingDate)
	b.GratuityEligible = b.ServiceYears >= s.opts.GratuityMinYears || rec.ExitType == settlement.ExitTypeDeath
	if b.GratuityEligible {
		b.Gratuity = money.Prorate(monthly, intDecimal(b.ServiceYears*s.opts.GratuityDaysPerYear), int64(s.opts.GratuityDivisor))
	}

	endOfLastDay := rec.LastWorkingDate.AddDate(0, 0, 1)

	claimed, err := s.EntryRepo.ListClaimedCommissionIDs(ctx, rec.CompanyID, rec.StaffID)
	if err != nil {
		return fmt.Errorf("failed to list claimed commissions: %w", err)
	}
	commissions, err := s.CommissionRepo.ListEarned(ctx, rec.CompanyID, rec.StaffID, time.Time{}, endOfLastDay)
	if err != nil {
		return fmt.Errorf("failed to list commissions: %w", err)
	}
	rec.CommissionEntryIDs = nil
	for _, c := range commissions {
		if c.Status != payroll.CommissionStatusEarned || slices.Contains(claimed, c.ID) {
			continue
		}
		b.PendingCommissions += c.Amount
		rec.CommissionEntryIDs = append(rec.CommissionEntryIDs, c.ID)
	}

	tipsFrom := profile.HireDate
	next := payroll.PeriodStart(rec.LastWorkingDate.Year(), int(rec.LastWorkingDate.Month())).AddDate(0, 1, 0)
	last, err := s.EntryRepo.GetLatestForStaff(ctx, rec.CompanyID, rec.StaffID, next.Year(), int(next.Month()))
	switch {
	case err == nil:
		tipsFrom = payroll.PeriodStart(last.PeriodYear, last.PeriodMonth).AddDate(0, 1, 0)
		b.DeferredDeductions = max(last.DeferredDeduction, 0)
	case !errors.Is(err, payroll.ErrEntryNotFound):
		return fmt.Errorf("failed to get last payroll entry: %w", err)
	}
	if tipsFrom.Before(endOfLastDay) {
		tips, err := s.TipRepo.ListReceived(ctx, rec.CompanyID, rec.StaffID, tipsFrom, endOfLastDay)
		if err != nil {
			return fmt.Errorf("failed to list tips: %w", err)
		}
		for _, tip := range tips {
			b.PendingTips += tip.Amount
		}
	}

	advance, err := s.AdvanceRepo.GetOutstanding(ctx, rec.CompanyID, rec.StaffID)
	if err != nil {
		return fmt.Errorf("failed to get advance balance: %w", err)
	}
	// installments held by processed but unpaid cycles are recovered when those cycles pay
	pending, err := s.EntryRepo.SumPendingAdvanceRecovery(ctx, rec.CompanyID, rec.StaffID)
	if err != nil {
		return fmt.Errorf("failed to sum pending advance recovery: %w", err)
	}
	b.AdvanceOutstanding = max(advance.Outstanding-pending, 0)

	rec.Breakdown = &b
	rec.NetSettlement = b.Net()
	rec.StaffOwesCompany = rec.NetSettlement < 0
	return nil
}

func (s *SettlementServiceImpl) ApproveSettlement(ctx context.Context, req settlement.ApproveSettlementRequest) (settlement.ExitResponse, error) {
	unlock, err := s.acquire(ctx, req.ExitID)
	if err != nil {
		return settlement.ExitResponse{}, err
	}
	defer unlock()

	var rec settlement.ExitRecord
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		rec, err = s.ExitRepo.GetByIDForUpdate(ctx, req.CompanyID, req.ExitID)
		if err != nil {
			return err
		}
		changed, err := lifecycle.Transition(flow, rec.ID, rec.Status, lifecycle.StatusApproved)
		if err != nil || !changed {
			return err
		}

		if rec.StaffOwesCompany {
			if !req.AcknowledgeNegativeBalance {
				return &apperror.NegativeBalanceWarning{Entity: string(flow), ID: rec.ID, StaffIDs: []string{rec.StaffID}}
			}
			rec.NegativeAcknowledged = true
		}

		now := s.now()
		rec.Status = lifecycle.StatusApproved
		rec.ApprovedAt = &now
		if req.ActorID != "" {
			rec.ApprovedBy = &req.ActorID
		}
		return s.ExitRepo.Update(ctx, rec)
	})
	if err != nil {
		return settlement.ExitResponse{}, err
	}

	return settlement.NewExitResponse(rec), nil
}

// MarkSettlementPaid flips the settled commissions to paid and records the
// advance recovery together with the status change.
func (s *SettlementServiceImpl) MarkSettlementPaid(ctx context.Context, companyID, exitID, reference string) (settlement.ExitResponse, error) {
	if validator.IsEmpty(reference) {
		return settlement.ExitResponse{}, validator.ValidationErrors{{Field: "payment_reference", Message: "is required"}}
	}

	unlock, err := s.acquire(ctx, exitID)
	if err != nil {
		return settlement.ExitResponse{}, err
	}
	defer unlock()

	var rec settlement.ExitRecord
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		rec, err = s.ExitRepo.GetByIDForUpdate(ctx, companyID, exitID)
		if err != nil {
			return err
		}
		changed, err := lifecycle.Transition(flow, rec.ID, rec.Status, lifecycle.StatusPaid)
		if err != nil || !changed {
			return err
		}

		now := s.now()
		if len(rec.CommissionEntryIDs) > 0 {
			if _, err := s.CommissionRepo.MarkPaid(ctx, companyID, rec.CommissionEntryIDs, now); err != nil {
				return fmt.Errorf("failed to mark commissions paid: %w", err)
			}
		}
		if rec.Breakdown != nil && rec.Breakdown.AdvanceOutstanding > 0 {
			if err := s.AdvanceRepo.RecordRecovery(ctx, companyID, rec.StaffID, rec.Breakdown.AdvanceOutstanding, "settlement:"+exitID); err != nil {
				return fmt.Errorf("failed to record advance recovery: %w", err)
			}
		}

		rec.Status = lifecycle.StatusPaid
		rec.PaidAt = &now
		rec.PaymentReference = &reference
		return s.ExitRepo.Update(ctx, rec)
	})
	if err != nil {
		return settlement.ExitResponse{}, err
	}

	return settlement.NewExitResponse(rec), nil
}

// CompleteSettlement closes the exit for good and deactivates the staff member.
func (s *SettlementServiceImpl) CompleteSettlement(ctx context.Context, companyID, exitID string) (settlement.ExitResponse, error) {
	unlock, err := s.acquire(ctx, exitID)
	if err != nil {
		return settlement.ExitResponse{}, err
	}
	defer unlock()

	var (
		rec     settlement.ExitRecord
		changed bool
	)
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		rec, err = s.ExitRepo.GetByIDForUpdate(ctx, companyID, exitID)
		if err != nil {
			return err
		}
		changed, err = lifecycle.Transition(flow, rec.ID, rec.Status, lifecycle.StatusCompleted)
		if err != nil || !changed {
			return err
		}

		now := s.now()
		rec.Status = lifecycle.StatusCompleted
		rec.CompletedAt = &now
		if err := s.ExitRepo.Update(ctx, rec); err != nil {
			return err
		}
		return s.StaffRepo.UpdateEmploymentStatus(ctx, companyID, rec.StaffID, staff.EmploymentStatusInactive)
	})
	if err != nil {
		return settlement.ExitResponse{}, err
	}

	if changed && s.Exporter != nil {
		if err := s.Exporter.ExportSettlement(ctx, s.snapshot(rec)); err != nil {
			s.Logger.Error("failed to export settlement", "exit_id", exitID, "error", err)
		}
	}
	return settlement.NewExitResponse(rec), nil
}

func (s *SettlementServiceImpl) GetExit(ctx context.Context, companyID, exitID string) (settlement.ExitResponse, error) {
	rec, err := s.ExitRepo.GetByID(ctx, companyID, exitID)
	if err != nil {
		return settlement.ExitResponse{}, err
	}
	return settlement.NewExitResponse(rec), nil
}

func (s *SettlementServiceImpl) ListExits(ctx context.Context, companyID string, status *string) ([]settlement.ExitResponse, error) {
	if status != nil && !lifecycle.Valid(flow, lifecycle.Status(*status)) {
		return nil, validator.ValidationErrors{{Field: "status", Message: "is invalid"}}
	}
	records, err := s.ExitRepo.ListByCompany(ctx, companyID, status)
	if err != nil {
		return nil, err
	}
	result := make([]settlement.ExitResponse, 0, len(records))
	for _, rec := range records {
		result = append(result, settlement.NewExitResponse(rec))
	}
	return result, nil
}

// Snapshot returns a read-only copy of an approved or later settlement.
func (s *SettlementServiceImpl) Snapshot(ctx context.Context, companyID, exitID string) (report.ExitSnapshot, error) {
	rec, err := s.ExitRepo.GetByID(ctx, companyID, exitID)
	if err != nil {
		return report.ExitSnapshot{}, err
	}
	if !lifecycle.AtLeast(flow, rec.Status, lifecycle.StatusApproved) {
		return report.ExitSnapshot{}, settlement.ErrExitNotFinalized
	}
	return s.snapshot(rec), nil
}

func (s *SettlementServiceImpl) snapshot(rec settlement.ExitRecord) report.ExitSnapshot {
	snap := report.ExitSnapshot{
		ExitID:           rec.ID,
		CompanyID:        rec.CompanyID,
		StaffID:          rec.StaffID,
		ExitType:         string(rec.ExitType),
		Status:           string(rec.Status),
		Currency:         s.opts.Currency,
		LastWorkingDate:  rec.LastWorkingDate.Format("2006-01-02"),
		NetSettlement:    rec.NetSettlement,
		NetFormatted:     money.Format(rec.NetSettlement, s.opts.Currency),
		StaffOwesCompany: rec.StaffOwesCompany,
		GeneratedAt:      s.now(),
	}
	if rec.Breakdown != nil {
		snap.Components = rec.Breakdown.Components()
	}
	return snap
}

func (s *SettlementServiceImpl) acquire(ctx context.Context, exitID string) (func(), error) {
	held, err := s.Locker.Acquire(ctx, lock.ExitKey(exitID), s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.Metrics.LockConflict(string(flow))
			return nil, &apperror.ConcurrencyConflictError{Resource: "exit settlement " + exitID, Err: err}
		}
		return nil, err
	}
	return func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Warn("failed to release exit lock", "exit_id", exitID, "error", err)
		}
	}, nil
}
