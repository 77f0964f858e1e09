package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/lifecycle"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/report"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxrule"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/money"
	"golang.org/x/sync/errgroup"
)

const flow = lifecycle.FlowPayrollCycle

type Options struct {
	Workers  int
	LockTTL  time.Duration
	Currency string
}

// Dependencies are the collaborators of the cycle manager. Exporter and
// Metrics are optional.
type Dependencies struct {
	TxManager      database.TxManager
	CycleRepo      payroll.CycleRepository
	EntryRepo      payroll.EntryRepository
	StaffRepo      staff.StaffRepository
	CommissionRepo payroll.CommissionRepository
	AdvanceRepo    payroll.AdvanceRepository
	TaxRules       taxrule.Service
	Aggregator     *EarningsAggregator
	Locker         lock.Locker
	Exporter       report.Exporter
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

type CycleServiceImpl struct {
	Dependencies
	opts Options
	now  func() time.Time
}

func NewCycleService(deps Dependencies, opts Options) *CycleServiceImpl {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &CycleServiceImpl{
		Dependencies: deps,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

var _ payroll.CycleService = (*CycleServiceImpl)(nil)

// ========== CYCLE LIFECYCLE ==========

func (s *CycleServiceImpl) CreateCycle(ctx context.Context, req payroll.CreateCycleRequest) (payroll.CycleResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.CycleResponse{}, err
	}

	created, err := s.createCycle(ctx, req)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	return payroll.NewCycleResponse(created, nil), nil
}

func (s *CycleServiceImpl) createCycle(ctx context.Context, req payroll.CreateCycleRequest) (payroll.Cycle, error) {
	periodStart := payroll.PeriodStart(req.PeriodYear, req.PeriodMonth)

	var (
		rules taxrule.RuleSet
		err   error
	)
	if req.TaxRuleSetID != nil {
		rules, err = s.TaxRules.Load(ctx, req.CompanyID, *req.TaxRuleSetID)
	} else {
		rules, err = s.TaxRules.LoadEffective(ctx, req.CompanyID, periodStart)
	}
	if err != nil {
		if errors.Is(err, taxrule.ErrRuleSetNotFound) {
			return payroll.Cycle{}, payroll.ErrNoTaxRuleConfigured
		}
		return payroll.Cycle{}, err
	}

	cycle := payroll.Cycle{
		CompanyID:    req.CompanyID,
		PeriodMonth:  req.PeriodMonth,
		PeriodYear:   req.PeriodYear,
		Status:       lifecycle.StatusDraft,
		TaxRuleSetID: rules.ID,
	}
	if req.ActorID != "" {
		cycle.CreatedBy = &req.ActorID
	}

	return s.CycleRepo.Create(ctx, cycle)
}

// ProcessCycle computes every staff entry and moves the cycle from draft to
// pending_approval in one commit. Cycles already past processing are returned
// as they are.
func (s *CycleServiceImpl) ProcessCycle(ctx context.Context, companyID, cycleID string) (payroll.CycleResponse, error) {
	tracker := s.Metrics.Track("process_cycle")
	resp, err := s.processCycle(ctx, companyID, cycleID)
	return resp, tracker.End(err)
}

func (s *CycleServiceImpl) processCycle(ctx context.Context, companyID, cycleID string) (payroll.CycleResponse, error) {
	cycle, err := s.CycleRepo.GetByID(ctx, companyID, cycleID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	if lifecycle.AtLeast(flow, cycle.Status, lifecycle.StatusPendingApproval) {
		return s.cycleResponse(ctx, cycle)
	}

	unlock, err := s.acquire(ctx, cycleID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	defer unlock()

	// re-read under the lock, a concurrent run may have finished first
	cycle, err = s.CycleRepo.GetByID(ctx, companyID, cycleID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	if lifecycle.AtLeast(flow, cycle.Status, lifecycle.StatusPendingApproval) {
		return s.cycleResponse(ctx, cycle)
	}
	if err := s.checkStartable(&cycle); err != nil {
		return payroll.CycleResponse{}, err
	}

	logger := s.Logger.With("company_id", companyID, "cycle_id", cycleID)

	rules, err := s.TaxRules.Load(ctx, companyID, cycle.TaxRuleSetID)
	if err != nil {
		return payroll.CycleResponse{}, fmt.Errorf("payroll cycle %s: load tax rules: %w", cycleID, err)
	}

	profiles, err := s.StaffRepo.ListPayable(ctx, companyID, cycle.PeriodEnd())
	if err != nil {
		return payroll.CycleResponse{}, fmt.Errorf("payroll cycle %s: list staff: %w", cycleID, err)
	}

	entries, failures, err := s.computeEntries(ctx, cycle, rules, profiles)
	if err != nil {
		return payroll.CycleResponse{}, fmt.Errorf("payroll cycle %s: %w", cycleID, err)
	}
	for _, f := range failures {
		logger.Warn("staff left out of payroll cycle", "staff_id", f.StaffID, "reason", f.Reason)
	}
	s.Metrics.AddStaffFailures(len(failures))
	if len(entries) == 0 && len(failures) > 0 {
		return payroll.CycleResponse{}, &payroll.CycleFailedError{CycleID: cycleID, Failures: failures}
	}

	now := s.now()
	var committedElsewhere bool
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.CycleRepo.GetByIDForUpdate(ctx, companyID, cycleID)
		if err != nil {
			return err
		}
		// a run that outlived its lock may have committed while we computed
		if lifecycle.AtLeast(flow, locked.Status, lifecycle.StatusPendingApproval) {
			cycle, committedElsewhere = locked, true
			return nil
		}
		if err := s.checkStartable(&locked); err != nil {
			return err
		}

		locked.Status = lifecycle.StatusProcessing
		if err := s.CycleRepo.Update(ctx, locked); err != nil {
			return err
		}

		if err := s.EntryRepo.ReplaceForCycle(ctx, companyID, cycleID, entries); err != nil {
			return fmt.Errorf("failed to store entries: %w", err)
		}

		if _, err := lifecycle.Transition(flow, cycleID, locked.Status, lifecycle.StatusPendingApproval); err != nil {
			return err
		}
		locked.ApplyTotals(entries)
		locked.Failures = failures
		locked.NegativeBalanceAcknowledged = false
		locked.Status = lifecycle.StatusPendingApproval
		locked.ProcessedAt = &now
		if err := s.CycleRepo.Update(ctx, locked); err != nil {
			return err
		}
		cycle = locked
		return nil
	})
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	if committedElsewhere {
		logger.Warn("payroll cycle already processed by a concurrent run", "status", cycle.Status)
		return s.cycleResponse(ctx, cycle)
	}

	logger.Info("payroll cycle processed",
		"staff_count", cycle.StaffCount,
		"failed_staff", len(failures),
		"total_net_payable", cycle.TotalNetPayable,
	)

	return s.cycleResponse(ctx, cycle)
}

// checkStartable accepts draft cycles and resets a stale processing status
// left behind by a crashed run.
func (s *CycleServiceImpl) checkStartable(cycle *payroll.Cycle) error {
	if cycle.Status == lifecycle.StatusProcessing {
		s.Logger.Warn("resetting stale processing cycle", "cycle_id", cycle.ID)
		if _, err := lifecycle.Transition(flow, cycle.ID, cycle.Status, lifecycle.StatusDraft); err != nil {
			return err
		}
		cycle.Status = lifecycle.StatusDraft
	}
	_, err := lifecycle.Transition(flow, cycle.ID, cycle.Status, lifecycle.StatusProcessing)
	return err
}

// computeEntries fans out over staff. Staff with incomplete data become
// failures; any other error aborts the whole run.
func (s *CycleServiceImpl) computeEntries(ctx context.Context, cycle payroll.Cycle, rules taxrule.RuleSet, profiles []staff.Profile) ([]payroll.Entry, []payroll.StaffFailure, error) {
	results := make([]*payroll.Entry, len(profiles))
	staffErrs := make([]error, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, profile := range profiles {
		g.Go(func() error {
			entry, err := s.buildEntry(gctx, cycle, rules, profile)
			if err != nil {
				if errors.Is(err, apperror.ErrDataIncomplete) {
					staffErrs[i] = err
					return nil
				}
				return fmt.Errorf("staff %s: %w", profile.ID, err)
			}
			results[i] = &entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	entries := make([]payroll.Entry, 0, len(profiles))
	var failures []payroll.StaffFailure
	for i := range profiles {
		if staffErrs[i] != nil {
			failures = append(failures, payroll.StaffFailure{StaffID: profiles[i].ID, Reason: staffErrs[i].Error()})
			continue
		}
		entries = append(entries, *results[i])
	}
	return entries, failures, nil
}

func (s *CycleServiceImpl) buildEntry(ctx context.Context, cycle payroll.Cycle, rules taxrule.RuleSet, profile staff.Profile) (payroll.Entry, error) {
	earnings, err := s.Aggregator.Aggregate(ctx, profile, cycle.PeriodStart(), cycle.PeriodEnd())
	if err != nil {
		return payroll.Entry{}, err
	}

	advance, err := s.AdvanceRepo.GetOutstanding(ctx, cycle.CompanyID, profile.ID)
	if err != nil {
		return payroll.Entry{}, fmt.Errorf("failed to get advance balance: %w", err)
	}

	var carried int64
	prev, err := s.EntryRepo.GetLatestForStaff(ctx, cycle.CompanyID, profile.ID, cycle.PeriodYear, cycle.PeriodMonth)
	switch {
	case err == nil:
		carried = prev.DeferredDeduction
	case !errors.Is(err, payroll.ErrEntryNotFound):
		return payroll.Entry{}, fmt.Errorf("failed to get previous entry: %w", err)
	}

	entry := payroll.Entry{
		CycleID:      cycle.ID,
		CompanyID:    cycle.CompanyID,
		StaffID:      profile.ID,
		PeriodMonth:  cycle.PeriodMonth,
		PeriodYear:   cycle.PeriodYear,
		Earnings:     earnings,
		StaffName:    &profile.FullName,
		EmployeeCode: &profile.EmployeeCode,
		Deductions: ComputeDeductions(rules, TaxProfile{
			Gross:          earnings.Gross(),
			LWP:            earnings.LWP(),
			Advance:        advance,
			CarriedForward: carried,
		}),
	}
	entry.Settle()
	return entry, nil
}

func (s *CycleServiceImpl) ApproveCycle(ctx context.Context, req payroll.ApproveCycleRequest) (payroll.CycleResponse, error) {
	unlock, err := s.acquire(ctx, req.CycleID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	defer unlock()

	var cycle payroll.Cycle
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		cycle, err = s.CycleRepo.GetByIDForUpdate(ctx, req.CompanyID, req.CycleID)
		if err != nil {
			return err
		}
		changed, err := lifecycle.Transition(flow, cycle.ID, cycle.Status, lifecycle.StatusApproved)
		if err != nil || !changed {
			return err
		}

		entries, err := s.EntryRepo.ListByCycle(ctx, req.CompanyID, req.CycleID)
		if err != nil {
			return err
		}
		if negative := negativeStaff(entries); len(negative) > 0 {
			if !req.AcknowledgeNegativeBalance {
				return &apperror.NegativeBalanceWarning{Entity: string(flow), ID: cycle.ID, StaffIDs: negative}
			}
			cycle.NegativeBalanceAcknowledged = true
		}

		now := s.now()
		cycle.Status = lifecycle.StatusApproved
		cycle.ApprovedAt = &now
		if req.ActorID != "" {
			cycle.ApprovedBy = &req.ActorID
		}
		return s.CycleRepo.Update(ctx, cycle)
	})
	if err != nil {
		return payroll.CycleResponse{}, err
	}

	return s.cycleResponse(ctx, cycle)
}

// SettleEntries records the payout of individual entries of an approved cycle.
func (s *CycleServiceImpl) SettleEntries(ctx context.Context, req payroll.SettleEntriesRequest) (payroll.CycleResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.CycleResponse{}, err
	}

	unlock, err := s.acquire(ctx, req.CycleID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	defer unlock()

	var cycle payroll.Cycle
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		cycle, err = s.CycleRepo.GetByIDForUpdate(ctx, req.CompanyID, req.CycleID)
		if err != nil {
			return err
		}
		if cycle.Status != lifecycle.StatusApproved {
			return &apperror.StateTransitionError{Entity: "payroll_entry", ID: cycle.ID, From: string(cycle.Status), To: "settled"}
		}

		entries, err := s.EntryRepo.ListByCycle(ctx, req.CompanyID, req.CycleID)
		if err != nil {
			return err
		}
		ids, err := selectEntries(entries, req)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		_, err = s.EntryRepo.MarkSettled(ctx, req.CompanyID, req.CycleID, ids, req.PaymentReference, s.now())
		return err
	})
	if err != nil {
		return payroll.CycleResponse{}, err
	}

	return s.cycleResponse(ctx, cycle)
}

// MarkPaid requires every entry settled. It flips the consumed commissions and
// records advance recoveries in the same commit as the status change.
func (s *CycleServiceImpl) MarkPaid(ctx context.Context, companyID, cycleID, actorID string) (payroll.CycleResponse, error) {
	tracker := s.Metrics.Track("mark_cycle_paid")

	unlock, err := s.acquire(ctx, cycleID)
	if err != nil {
		return payroll.CycleResponse{}, tracker.End(err)
	}
	defer unlock()

	var cycle payroll.Cycle
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		cycle, err = s.CycleRepo.GetByIDForUpdate(ctx, companyID, cycleID)
		if err != nil {
			return err
		}
		changed, err := lifecycle.Transition(flow, cycle.ID, cycle.Status, lifecycle.StatusPaid)
		if err != nil || !changed {
			return err
		}

		entries, err := s.EntryRepo.ListByCycle(ctx, companyID, cycleID)
		if err != nil {
			return err
		}
		var unsettled, commissionIDs []string
		for _, e := range entries {
			if !e.Settled {
				unsettled = append(unsettled, e.ID)
			}
			commissionIDs = append(commissionIDs, e.Earnings.CommissionEntryIDs...)
		}
		if len(unsettled) > 0 {
			return &payroll.UnsettledEntriesError{CycleID: cycleID, EntryIDs: unsettled}
		}

		now := s.now()
		if len(commissionIDs) > 0 {
			if _, err := s.CommissionRepo.MarkPaid(ctx, companyID, commissionIDs, now); err != nil {
				return fmt.Errorf("failed to mark commissions paid: %w", err)
			}
		}
		reference := "payroll_cycle:" + cycleID
		for _, e := range entries {
			if e.Deductions.AdvanceRecovery <= 0 {
				continue
			}
			if err := s.AdvanceRepo.RecordRecovery(ctx, companyID, e.StaffID, e.Deductions.AdvanceRecovery, reference); err != nil {
				return fmt.Errorf("staff %s: failed to record advance recovery: %w", e.StaffID, err)
			}
		}

		cycle.Status = lifecycle.StatusPaid
		cycle.PaidAt = &now
		if actorID != "" {
			cycle.PaidBy = &actorID
		}
		return s.CycleRepo.Update(ctx, cycle)
	})
	if err != nil {
		return payroll.CycleResponse{}, tracker.End(err)
	}

	tracker.End(nil)
	return s.cycleResponse(ctx, cycle)
}

// LockCycle archives a paid cycle and hands its snapshot to the exporter.
func (s *CycleServiceImpl) LockCycle(ctx context.Context, companyID, cycleID string) (payroll.CycleResponse, error) {
	unlock, err := s.acquire(ctx, cycleID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	defer unlock()

	var (
		cycle   payroll.Cycle
		changed bool
	)
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		cycle, err = s.CycleRepo.GetByIDForUpdate(ctx, companyID, cycleID)
		if err != nil {
			return err
		}
		changed, err = lifecycle.Transition(flow, cycle.ID, cycle.Status, lifecycle.StatusLocked)
		if err != nil || !changed {
			return err
		}
		now := s.now()
		cycle.Status = lifecycle.StatusLocked
		cycle.LockedAt = &now
		return s.CycleRepo.Update(ctx, cycle)
	})
	if err != nil {
		return payroll.CycleResponse{}, err
	}

	entries, err := s.EntryRepo.ListByCycle(ctx, companyID, cycleID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	if changed && s.Exporter != nil {
		if err := s.Exporter.ExportCycle(ctx, s.snapshot(cycle, entries)); err != nil {
			s.Logger.Error("failed to export payroll cycle", "cycle_id", cycleID, "error", err)
		}
	}
	return payroll.NewCycleResponse(cycle, entries), nil
}

// OpenCycles creates the draft cycle of a period for every company. Companies
// that already have one, or have no tax rule set yet, are skipped.
func (s *CycleServiceImpl) OpenCycles(ctx context.Context, year, month int) (int, error) {
	companyIDs, err := s.StaffRepo.ListCompanyIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list companies: %w", err)
	}

	opened := 0
	for _, companyID := range companyIDs {
		req := payroll.CreateCycleRequest{CompanyID: companyID, PeriodMonth: month, PeriodYear: year}
		if err := req.Validate(); err != nil {
			return opened, err
		}
		_, err := s.createCycle(ctx, req)
		switch {
		case err == nil:
			opened++
		case errors.Is(err, payroll.ErrCycleAlreadyExists):
		case errors.Is(err, payroll.ErrNoTaxRuleConfigured), errors.Is(err, apperror.ErrConfig):
			s.Logger.Warn("cannot open payroll cycle", "company_id", companyID, "year", year, "month", month, "error", err)
		default:
			return opened, fmt.Errorf("company %s: %w", companyID, err)
		}
	}
	return opened, nil
}

// ========== QUERIES ==========

func (s *CycleServiceImpl) GetCycle(ctx context.Context, companyID, cycleID string) (payroll.CycleResponse, error) {
	cycle, err := s.CycleRepo.GetByID(ctx, companyID, cycleID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	return s.cycleResponse(ctx, cycle)
}

func (s *CycleServiceImpl) ListEntries(ctx context.Context, companyID, cycleID string) ([]payroll.EntryResponse, error) {
	if _, err := s.CycleRepo.GetByID(ctx, companyID, cycleID); err != nil {
		return nil, err
	}
	entries, err := s.EntryRepo.ListByCycle(ctx, companyID, cycleID)
	if err != nil {
		return nil, err
	}
	result := make([]payroll.EntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, payroll.NewEntryResponse(e))
	}
	return result, nil
}

func (s *CycleServiceImpl) ListCycles(ctx context.Context, companyID string, filter payroll.CycleFilter) (payroll.ListCycleResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}

	cycles, total, err := s.CycleRepo.List(ctx, companyID, filter)
	if err != nil {
		return payroll.ListCycleResponse{}, err
	}

	data := make([]payroll.CycleResponse, 0, len(cycles))
	for _, c := range cycles {
		data = append(data, payroll.NewCycleResponse(c, nil))
	}
	return payroll.ListCycleResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// Snapshot returns a read-only copy of an approved or later cycle.
func (s *CycleServiceImpl) Snapshot(ctx context.Context, companyID, cycleID string) (report.CycleSnapshot, error) {
	cycle, err := s.CycleRepo.GetByID(ctx, companyID, cycleID)
	if err != nil {
		return report.CycleSnapshot{}, err
	}
	if !lifecycle.AtLeast(flow, cycle.Status, lifecycle.StatusApproved) {
		return report.CycleSnapshot{}, payroll.ErrCycleNotFinalized
	}
	entries, err := s.EntryRepo.ListByCycle(ctx, companyID, cycleID)
	if err != nil {
		return report.CycleSnapshot{}, err
	}
	return s.snapshot(cycle, entries), nil
}

// ========== HELPERS ==========

func (s *CycleServiceImpl) acquire(ctx context.Context, cycleID string) (func(), error) {
	held, err := s.Locker.Acquire(ctx, lock.CycleKey(cycleID), s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.Metrics.LockConflict(string(flow))
			return nil, &apperror.ConcurrencyConflictError{Resource: "payroll cycle " + cycleID, Err: err}
		}
		return nil, err
	}
	return func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Warn("failed to release cycle lock", "cycle_id", cycleID, "error", err)
		}
	}, nil
}

func (s *CycleServiceImpl) cycleResponse(ctx context.Context, cycle payroll.Cycle) (payroll.CycleResponse, error) {
	entries, err := s.EntryRepo.ListByCycle(ctx, cycle.CompanyID, cycle.ID)
	if err != nil {
		return payroll.CycleResponse{}, err
	}
	return payroll.NewCycleResponse(cycle, entries), nil
}

func (s *CycleServiceImpl) snapshot(cycle payroll.Cycle, entries []payroll.Entry) report.CycleSnapshot {
	snap := report.CycleSnapshot{
		CycleID:     cycle.ID,
		CompanyID:   cycle.CompanyID,
		PeriodMonth: cycle.PeriodMonth,
		PeriodYear:  cycle.PeriodYear,
		Status:      string(cycle.Status),
		Currency:    s.opts.Currency,
		Totals: report.CycleTotals{
			Gross:        cycle.TotalGross,
			Commissions:  cycle.TotalCommissions,
			Tips:         cycle.TotalTips,
			Deductions:   cycle.TotalDeductions,
			Deferred:     cycle.TotalDeferred,
			NetPayable:   cycle.TotalNetPayable,
			StaffCount:   cycle.StaffCount,
			NetFormatted: money.Format(cycle.TotalNetPayable, s.opts.Currency),
		},
		Entries:     make([]report.EntrySnapshot, 0, len(entries)),
		GeneratedAt: s.now(),
	}
	for _, e := range entries {
		snap.Entries = append(snap.Entries, report.EntrySnapshot{
			StaffID:        e.StaffID,
			StaffName:      deref(e.StaffName),
			EmployeeCode:   deref(e.EmployeeCode),
			Gross:          e.GrossEarnings,
			Commissions:    e.Earnings.CommissionTotal,
			Tips:           e.Earnings.TipsTotal,
			DeductionLines: deductionLines(e.Deductions),
			Deductions:     e.TotalDeductions,
			Deferred:       e.DeferredDeduction,
			Net:            e.NetPay,
			NetFormatted:   money.Format(e.NetPay, s.opts.Currency),
			Settled:        e.Settled,
		})
	}
	return snap
}

func deductionLines(d payroll.DeductionBreakdown) map[string]int64 {
	return map[string]int64{
		"income_tax":       d.IncomeTax,
		"provident_fund":   d.ProvidentFund,
		"insurance":        d.Insurance,
		"professional_tax": d.ProfessionalTax,
		"advance_recovery": d.AdvanceRecovery,
		"lwp_deduction":    d.LWPDeduction,
		"carried_forward":  d.CarriedForward,
	}
}

func negativeStaff(entries []payroll.Entry) []string {
	var ids []string
	for _, e := range entries {
		if e.NegativeBalance {
			ids = append(ids, e.StaffID)
		}
	}
	return ids
}

// selectEntries resolves the request to unsettled entry ids of the cycle.
func selectEntries(entries []payroll.Entry, req payroll.SettleEntriesRequest) ([]string, error) {
	byID := make(map[string]payroll.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	var ids []string
	if req.AllEntries {
		for _, e := range entries {
			if !e.Settled {
				ids = append(ids, e.ID)
			}
		}
		return ids, nil
	}

	for _, id := range req.EntryIDs {
		e, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("entry %s: %w", id, payroll.ErrEntryNotFound)
		}
		if !e.Settled {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
