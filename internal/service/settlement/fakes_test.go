package settlement

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/lifecycle"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/report"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/settlement"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
)

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memExitRepo struct {
	records map[string]settlement.ExitRecord
	seq     int
	updates int
}

func newExitRepo() *memExitRepo {
	return &memExitRepo{records: make(map[string]settlement.ExitRecord)}
}

func (r *memExitRepo) Create(_ context.Context, rec settlement.ExitRecord) (settlement.ExitRecord, error) {
	r.seq++
	rec.ID = fmt.Sprintf("exit-%d", r.seq)
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *memExitRepo) GetByID(_ context.Context, companyID, id string) (settlement.ExitRecord, error) {
	rec, ok := r.records[id]
	if !ok || rec.CompanyID != companyID {
		return settlement.ExitRecord{}, settlement.ErrExitNotFound
	}
	return rec, nil
}

func (r *memExitRepo) GetByIDForUpdate(ctx context.Context, companyID, id string) (settlement.ExitRecord, error) {
	return r.GetByID(ctx, companyID, id)
}

func (r *memExitRepo) GetOpenByStaff(_ context.Context, companyID, staffID string) (settlement.ExitRecord, error) {
	for _, rec := range r.records {
		if rec.CompanyID == companyID && rec.StaffID == staffID && rec.Status != lifecycle.StatusCompleted {
			return rec, nil
		}
	}
	return settlement.ExitRecord{}, settlement.ErrExitNotFound
}

func (r *memExitRepo) ListByCompany(_ context.Context, companyID string, status *string) ([]settlement.ExitRecord, error) {
	var out []settlement.ExitRecord
	for _, rec := range r.records {
		if rec.CompanyID == companyID && (status == nil || string(rec.Status) == *status) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memExitRepo) Update(_ context.Context, rec settlement.ExitRecord) error {
	r.updates++
	r.records[rec.ID] = rec
	return nil
}

type memStaffRepo struct {
	profiles map[string]staff.Profile
}

func (r *memStaffRepo) GetByID(_ context.Context, companyID, id string) (staff.Profile, error) {
	p, ok := r.profiles[id]
	if !ok || p.CompanyID != companyID {
		return staff.Profile{}, staff.ErrStaffNotFound
	}
	return p, nil
}

func (r *memStaffRepo) ListPayable(context.Context, string, time.Time) ([]staff.Profile, error) {
	return nil, nil
}

func (r *memStaffRepo) UpdateEmploymentStatus(_ context.Context, _, id string, status staff.EmploymentStatus) error {
	p, ok := r.profiles[id]
	if !ok {
		return staff.ErrStaffNotFound
	}
	p.EmploymentStatus = status
	r.profiles[id] = p
	return nil
}

func (r *memStaffRepo) ListCompanyIDs(context.Context) ([]string, error) { return nil, nil }

// memLedger backs every payroll-side collaborator a settlement reads.
type memLedger struct {
	claimed     []string
	lastEntry   *payroll.Entry
	leave       map[string]payroll.LeaveBalance
	commissions []payroll.CommissionEntry
	tips        []payroll.Tip
	advances    map[string]payroll.AdvanceBalance
	recoveries  map[string]int64
	// advance installments held by unpaid cycles, per staff
	pendingRecovery map[string]int64
}

func newLedger() *memLedger {
	return &memLedger{
		leave:      make(map[string]payroll.LeaveBalance),
		advances:   make(map[string]payroll.AdvanceBalance),
		recoveries: make(map[string]int64),
	}
}

type memEntryRepo struct{ l *memLedger }

func (r memEntryRepo) ReplaceForCycle(context.Context, string, string, []payroll.Entry) error {
	return nil
}

func (r memEntryRepo) ListByCycle(context.Context, string, string) ([]payroll.Entry, error) {
	return nil, nil
}

func (r memEntryRepo) MarkSettled(context.Context, string, string, []string, string, time.Time) (int64, error) {
	return 0, nil
}

func (r memEntryRepo) GetLatestForStaff(_ context.Context, _, staffID string, beforeYear, beforeMonth int) (payroll.Entry, error) {
	e := r.l.lastEntry
	if e == nil || e.StaffID != staffID || e.PeriodYear*12+e.PeriodMonth >= beforeYear*12+beforeMonth {
		return payroll.Entry{}, payroll.ErrEntryNotFound
	}
	return *e, nil
}

func (r memEntryRepo) ListClaimedCommissionIDs(context.Context, string, string) ([]string, error) {
	return slices.Clone(r.l.claimed), nil
}

func (r memEntryRepo) SumPendingAdvanceRecovery(_ context.Context, _, staffID string) (int64, error) {
	return r.l.pendingRecovery[staffID], nil
}

type memAttendanceRepo struct{ l *memLedger }

func (r memAttendanceRepo) GetSummary(context.Context, string, string, time.Time, time.Time) (payroll.AttendanceSummary, error) {
	return payroll.AttendanceSummary{}, payroll.ErrAttendanceNotFound
}

func (r memAttendanceRepo) GetLeaveBalance(_ context.Context, _, staffID string, _ time.Time) (payroll.LeaveBalance, error) {
	b, ok := r.l.leave[staffID]
	if !ok {
		return payroll.LeaveBalance{}, payroll.ErrAttendanceNotFound
	}
	return b, nil
}

type memCommissionRepo struct{ l *memLedger }

func (r memCommissionRepo) ListEarned(_ context.Context, _, staffID string, from, to time.Time) ([]payroll.CommissionEntry, error) {
	var out []payroll.CommissionEntry
	for _, c := range r.l.commissions {
		if c.StaffID == staffID && c.Status == payroll.CommissionStatusEarned && !c.CompletedAt.Before(from) && c.CompletedAt.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memCommissionRepo) MarkPaid(_ context.Context, _ string, ids []string, at time.Time) (int64, error) {
	var n int64
	for i, c := range r.l.commissions {
		if slices.Contains(ids, c.ID) && c.Status == payroll.CommissionStatusEarned {
			r.l.commissions[i].Status = payroll.CommissionStatusPaid
			r.l.commissions[i].PaidAt = &at
			n++
		}
	}
	return n, nil
}

type memTipRepo struct{ l *memLedger }

func (r memTipRepo) ListReceived(_ context.Context, _, staffID string, from, to time.Time) ([]payroll.Tip, error) {
	var out []payroll.Tip
	for _, tip := range r.l.tips {
		if tip.StaffID == staffID && !tip.ReceivedAt.Before(from) && tip.ReceivedAt.Before(to) {
			out = append(out, tip)
		}
	}
	return out, nil
}

type memAdvanceRepo struct{ l *memLedger }

func (r memAdvanceRepo) GetOutstanding(_ context.Context, _, staffID string) (payroll.AdvanceBalance, error) {
	return r.l.advances[staffID], nil
}

func (r memAdvanceRepo) RecordRecovery(_ context.Context, _, staffID string, amount int64, _ string) error {
	r.l.recoveries[staffID] += amount
	b := r.l.advances[staffID]
	b.Outstanding -= amount
	r.l.advances[staffID] = b
	return nil
}

type memExporter struct {
	exits []report.ExitSnapshot
}

func (e *memExporter) ExportCycle(context.Context, report.CycleSnapshot) error { return nil }

func (e *memExporter) ExportSettlement(_ context.Context, snap report.ExitSnapshot) error {
	e.exits = append(e.exits, snap)
	return nil
}
