package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/lifecycle"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/settlement"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCompany = "company-1"

type fixture struct {
	exits    *memExitRepo
	staff    *memStaffRepo
	ledger   *memLedger
	locker   *lock.LocalLocker
	exporter *memExporter
	svc      *SettlementServiceImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		exits:    newExitRepo(),
		staff:    &memStaffRepo{profiles: make(map[string]staff.Profile)},
		ledger:   newLedger(),
		locker:   lock.NewLocalLocker(),
		exporter: &memExporter{},
	}
	f.svc = NewSettlementService(Dependencies{
		TxManager:      passTx{},
		ExitRepo:       f.exits,
		StaffRepo:      f.staff,
		EntryRepo:      memEntryRepo{f.ledger},
		AttendanceRepo: memAttendanceRepo{f.ledger},
		CommissionRepo: memCommissionRepo{f.ledger},
		TipRepo:        memTipRepo{f.ledger},
		AdvanceRepo:    memAdvanceRepo{f.ledger},
		Locker:         f.locker,
		Exporter:       f.exporter,
	}, Options{
		StandardDaysPerMonth: 30,
		GratuityMinYears:     5,
		GratuityDaysPerYear:  15,
		GratuityDivisor:      26,
		LockTTL:              time.Minute,
		Currency:             "INR",
	})
	f.svc.now = func() time.Time { return date(2025, time.April, 5) }
	return f
}

// addStaff registers a salaried staff member earning 30,000 a month, so one
// day is worth 1,000.
func (f *fixture) addStaff(id string, hire time.Time, noticeDays int) {
	f.staff.profiles[id] = staff.Profile{
		ID:                 id,
		CompanyID:          testCompany,
		PayType:            staff.PayTypeSalaried,
		MonthlySalary:      3_000_000,
		HireDate:           hire,
		RequiredNoticeDays: noticeDays,
		EmploymentStatus:   staff.EmploymentStatusActive,
	}
}

func (f *fixture) initiate(t *testing.T, req settlement.InitiateExitRequest) string {
	t.Helper()
	req.CompanyID = testCompany
	resp, err := f.svc.InitiateExit(context.Background(), req)
	require.NoError(t, err)
	return resp.ID
}

func TestSettlementService_InitiateExit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff("s1", date(2020, time.January, 1), 30)

	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "resignation", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
	})
	assert.Equal(t, lifecycle.StatusPending, f.exits.records[id].Status)
	assert.Equal(t, staff.EmploymentStatusExiting, f.staff.profiles["s1"].EmploymentStatus)

	_, err := f.svc.InitiateExit(ctx, settlement.InitiateExitRequest{
		CompanyID: testCompany, StaffID: "s1", ExitType: "resignation", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
	})
	assert.ErrorIs(t, err, settlement.ErrExitAlreadyExists)

	_, err = f.svc.InitiateExit(ctx, settlement.InitiateExitRequest{
		CompanyID: testCompany, StaffID: "ghost", ExitType: "resignation", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
	})
	assert.ErrorIs(t, err, staff.ErrStaffNotFound)

	_, err = f.svc.InitiateExit(ctx, settlement.InitiateExitRequest{
		CompanyID: testCompany, StaffID: "s1", ExitType: "sabbatical", ResignationDate: "2025-03-31", LastWorkingDate: "2025-03-01",
	})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.ToMap(), "exit_type")
}

func TestSettlementService_CalculateSettlement_NoticeShortfall(t *testing.T) {
	f := newFixture(t)
	f.addStaff("s1", date(2024, time.June, 1), 30)
	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "resignation", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-11",
	})

	resp, err := f.svc.CalculateSettlement(context.Background(), testCompany, id)
	require.NoError(t, err)

	assert.Equal(t, string(lifecycle.StatusCalculated), resp.Status)
	assert.Equal(t, 10, resp.NoticeServedDays)
	assert.Equal(t, 20, resp.NoticeShortfallDays)
	require.NotNil(t, resp.Breakdown)
	assert.Equal(t, int64(2_000_000), resp.Breakdown.NoticeRecovery, "20 days at 1,000")
	assert.True(t, decimal.NewFromInt(100_000).Equal(resp.Breakdown.DailyRate))
	assert.False(t, resp.Breakdown.GratuityEligible)
}

func TestSettlementService_CalculateSettlement_FullBreakdown(t *testing.T) {
	f := newFixture(t)
	f.addStaff("s1", date(2018, time.January, 1), 30)
	l := f.ledger
	l.leave["s1"] = payroll.LeaveBalance{AccruedDays: decimal.NewFromInt(12), UsedDays: decimal.NewFromInt(7)}
	l.commissions = []payroll.CommissionEntry{
		{ID: "pending", StaffID: "s1", Amount: 80_000, CompletedAt: date(2025, time.March, 10), Status: payroll.CommissionStatusEarned},
		{ID: "claimed", StaffID: "s1", Amount: 40_000, CompletedAt: date(2025, time.February, 10), Status: payroll.CommissionStatusEarned},
		{ID: "after-exit", StaffID: "s1", Amount: 90_000, CompletedAt: date(2025, time.April, 1), Status: payroll.CommissionStatusEarned},
	}
	l.claimed = []string{"claimed"}
	l.lastEntry = &payroll.Entry{StaffID: "s1", PeriodYear: 2025, PeriodMonth: 2}
	l.tips = []payroll.Tip{
		{ID: "feb", StaffID: "s1", Amount: 5_000, ReceivedAt: date(2025, time.February, 10)},
		{ID: "mar", StaffID: "s1", Amount: 15_000, ReceivedAt: date(2025, time.March, 31).Add(20 * time.Hour)},
	}
	l.advances["s1"] = payroll.AdvanceBalance{Outstanding: 200_000, Installment: 50_000}

	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "resignation", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
		NoticeWaived: true, OtherRecoveries: 50_000,
	})

	resp, err := f.svc.CalculateSettlement(context.Background(), testCompany, id)
	require.NoError(t, err)

	b := resp.Breakdown
	require.NotNil(t, b)
	assert.Equal(t, int64(0), b.NoticeRecovery, "waived")
	assert.Equal(t, int64(500_000), b.LeaveEncashment, "5 unused days")
	assert.Equal(t, 7, b.ServiceYears)
	assert.True(t, b.GratuityEligible)
	assert.Equal(t, int64(12_115_385), b.Gratuity, "30,000 x 7 x 15 / 26")
	assert.Equal(t, int64(80_000), b.PendingCommissions)
	assert.Equal(t, int64(15_000), b.PendingTips)
	assert.Equal(t, int64(200_000), b.AdvanceOutstanding)
	assert.Equal(t, int64(50_000), b.OtherRecoveries)
	assert.Equal(t, int64(80_000+15_000+500_000+12_115_385-200_000-50_000), resp.NetSettlement)
	assert.False(t, resp.StaffOwesCompany)
	assert.Equal(t, []string{"pending"}, f.exits.records[id].CommissionEntryIDs)
}

func TestSettlementService_CalculateSettlement_RecoversDeferredDeduction(t *testing.T) {
	f := newFixture(t)
	f.addStaff("s1", date(2024, time.June, 1), 30)
	f.ledger.lastEntry = &payroll.Entry{
		StaffID: "s1", PeriodYear: 2025, PeriodMonth: 3,
		DeferredDeduction: 500_000, NegativeBalance: true,
	}
	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "resignation", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
	})

	resp, err := f.svc.CalculateSettlement(context.Background(), testCompany, id)
	require.NoError(t, err)

	b := resp.Breakdown
	require.NotNil(t, b)
	assert.Equal(t, int64(0), b.NoticeRecovery)
	assert.Equal(t, int64(500_000), b.DeferredDeductions)
	assert.Equal(t, int64(-500_000), b.Components()["deferred_deductions"])
	assert.Equal(t, int64(-500_000), resp.NetSettlement)
	assert.True(t, resp.StaffOwesCompany)
}

func TestSettlementService_AdvanceExcludesInstallmentsOfUnpaidCycles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff("s1", date(2024, time.June, 1), 30)
	f.ledger.advances["s1"] = payroll.AdvanceBalance{Outstanding: 20_000, Installment: 5_000}
	f.ledger.pendingRecovery = map[string]int64{"s1": 5_000}
	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "resignation", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
	})

	resp, err := f.svc.CalculateSettlement(ctx, testCompany, id)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), resp.Breakdown.AdvanceOutstanding, "5,000 is recovered by the approved cycle")
	assert.Equal(t, int64(-15_000), resp.NetSettlement)

	_, err = f.svc.ApproveSettlement(ctx, settlement.ApproveSettlementRequest{
		CompanyID: testCompany, ExitID: id, AcknowledgeNegativeBalance: true,
	})
	require.NoError(t, err)
	_, err = f.svc.MarkSettlementPaid(ctx, testCompany, id, "NEFT-12")
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), f.ledger.recoveries["s1"])

	// the whole balance is pending in payroll
	f.ledger.pendingRecovery["s2"] = 50_000
	f.ledger.advances["s2"] = payroll.AdvanceBalance{Outstanding: 20_000}
	f.addStaff("s2", date(2024, time.June, 1), 30)
	id = f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s2", ExitType: "resignation", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
	})
	resp, err = f.svc.CalculateSettlement(ctx, testCompany, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Breakdown.AdvanceOutstanding)
}

func TestSettlementService_NegativeSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff("s1", date(2024, time.January, 1), 30)
	f.ledger.advances["s1"] = payroll.AdvanceBalance{Outstanding: 500_000}
	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "resignation", ResignationDate: "2025-03-31", LastWorkingDate: "2025-03-31",
	})

	resp, err := f.svc.CalculateSettlement(ctx, testCompany, id)
	require.NoError(t, err)
	assert.Equal(t, int64(-3_500_000), resp.NetSettlement, "never clamped")
	assert.True(t, resp.StaffOwesCompany)

	_, err = f.svc.ApproveSettlement(ctx, settlement.ApproveSettlementRequest{CompanyID: testCompany, ExitID: id})
	var warning *apperror.NegativeBalanceWarning
	require.ErrorAs(t, err, &warning)
	assert.Equal(t, []string{"s1"}, warning.StaffIDs)
	assert.Equal(t, lifecycle.StatusCalculated, f.exits.records[id].Status)

	approved, err := f.svc.ApproveSettlement(ctx, settlement.ApproveSettlementRequest{
		CompanyID: testCompany, ExitID: id, ActorID: "manager-1", AcknowledgeNegativeBalance: true,
	})
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.StatusApproved), approved.Status)
}

func TestSettlementService_DeathExitIsGratuityEligible(t *testing.T) {
	f := newFixture(t)
	f.addStaff("s1", date(2023, time.January, 1), 30)
	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "death", ResignationDate: "2025-03-10", LastWorkingDate: "2025-03-10",
	})

	resp, err := f.svc.CalculateSettlement(context.Background(), testCompany, id)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Breakdown.ServiceYears)
	assert.True(t, resp.Breakdown.GratuityEligible)
	assert.Equal(t, int64(3_461_538), resp.Breakdown.Gratuity)
	assert.Equal(t, int64(0), resp.Breakdown.NoticeRecovery, "only resignations recover notice")
}

func TestSettlementService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff("s1", date(2018, time.January, 1), 0)
	f.ledger.commissions = []payroll.CommissionEntry{
		{ID: "c1", StaffID: "s1", Amount: 10_000, CompletedAt: date(2025, time.March, 2), Status: payroll.CommissionStatusEarned},
	}
	f.ledger.advances["s1"] = payroll.AdvanceBalance{Outstanding: 100_000}
	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "retirement", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
	})

	_, err := f.svc.Snapshot(ctx, testCompany, id)
	assert.ErrorIs(t, err, settlement.ErrExitNotFinalized)

	_, err = f.svc.ApproveSettlement(ctx, settlement.ApproveSettlementRequest{CompanyID: testCompany, ExitID: id})
	assert.ErrorIs(t, err, apperror.ErrStateTransition, "pending cannot skip calculation")

	_, err = f.svc.CalculateSettlement(ctx, testCompany, id)
	require.NoError(t, err)
	_, err = f.svc.ApproveSettlement(ctx, settlement.ApproveSettlementRequest{CompanyID: testCompany, ExitID: id})
	require.NoError(t, err)

	_, err = f.svc.MarkSettlementPaid(ctx, testCompany, id, " ")
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	paid, err := f.svc.MarkSettlementPaid(ctx, testCompany, id, "NEFT-991")
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.StatusPaid), paid.Status)
	require.NotNil(t, paid.PaymentReference)
	assert.Equal(t, "NEFT-991", *paid.PaymentReference)
	assert.Equal(t, payroll.CommissionStatusPaid, f.ledger.commissions[0].Status)
	assert.Equal(t, int64(100_000), f.ledger.recoveries["s1"])

	_, err = f.svc.MarkSettlementPaid(ctx, testCompany, id, "NEFT-991")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), f.ledger.recoveries["s1"], "recovery recorded once")

	completed, err := f.svc.CompleteSettlement(ctx, testCompany, id)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.StatusCompleted), completed.Status)
	assert.Equal(t, staff.EmploymentStatusInactive, f.staff.profiles["s1"].EmploymentStatus)
	require.Len(t, f.exporter.exits, 1)
	assert.Equal(t, int64(10_000), f.exporter.exits[0].Components["pending_commissions"])
	assert.Equal(t, int64(-100_000), f.exporter.exits[0].Components["advance_outstanding"])

	// recalculating a completed settlement returns the stored result untouched
	updates := f.exits.updates
	again, err := f.svc.CalculateSettlement(ctx, testCompany, id)
	require.NoError(t, err)
	assert.Equal(t, completed, again)
	assert.Equal(t, updates, f.exits.updates)

	_, err = f.svc.ApproveSettlement(ctx, settlement.ApproveSettlementRequest{CompanyID: testCompany, ExitID: id})
	assert.ErrorIs(t, err, apperror.ErrStateTransition, "completed is immutable")
}

func TestSettlementService_CalculateSettlement_LockConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff("s1", date(2024, time.January, 1), 30)
	id := f.initiate(t, settlement.InitiateExitRequest{
		StaffID: "s1", ExitType: "termination", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31",
	})

	held, err := f.locker.Acquire(ctx, lock.ExitKey(id), time.Minute)
	require.NoError(t, err)
	defer held.Release(ctx)

	_, err = f.svc.CalculateSettlement(ctx, testCompany, id)
	assert.ErrorIs(t, err, apperror.ErrConcurrencyConflict)
	assert.Equal(t, lifecycle.StatusPending, f.exits.records[id].Status)
}

func TestSettlementService_ListExits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff("s1", date(2024, time.January, 1), 0)
	f.addStaff("s2", date(2024, time.January, 1), 0)
	id := f.initiate(t, settlement.InitiateExitRequest{StaffID: "s1", ExitType: "termination", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31"})
	f.initiate(t, settlement.InitiateExitRequest{StaffID: "s2", ExitType: "termination", ResignationDate: "2025-03-01", LastWorkingDate: "2025-03-31"})
	_, err := f.svc.CalculateSettlement(ctx, testCompany, id)
	require.NoError(t, err)

	all, err := f.svc.ListExits(ctx, testCompany, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := "calculated"
	calculated, err := f.svc.ListExits(ctx, testCompany, &status)
	require.NoError(t, err)
	require.Len(t, calculated, 1)
	assert.Equal(t, id, calculated[0].ID)

	bogus := "archived"
	_, err = f.svc.ListExits(ctx, testCompany, &bogus)
	assert.Error(t, err)
}
