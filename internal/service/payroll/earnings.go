package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/money"
	"github.com/shopspring/decimal"
)

const minutesPerHour = 60

// EarningsAggregator collects base pay, commissions and tips for one staff
// member over a half-open period.
type EarningsAggregator struct {
	attendanceRepo     payroll.AttendanceRepository
	commissionRepo     payroll.CommissionRepository
	tipRepo            payroll.TipRepository
	standardDays       int64
	overtimeMultiplier decimal.Decimal
}

func NewEarningsAggregator(
	attendanceRepo payroll.AttendanceRepository,
	commissionRepo payroll.CommissionRepository,
	tipRepo payroll.TipRepository,
	standardDays int64,
	overtimeMultiplier decimal.Decimal,
) *EarningsAggregator {
	return &EarningsAggregator{
		attendanceRepo:     attendanceRepo,
		commissionRepo:     commissionRepo,
		tipRepo:            tipRepo,
		standardDays:       standardDays,
		overtimeMultiplier: overtimeMultiplier,
	}
}

// Aggregate returns a DataIncompleteError when the staff member cannot be paid
// from the data on file. Any other error is a ledger failure.
func (a *EarningsAggregator) Aggregate(ctx context.Context, profile staff.Profile, from, to time.Time) (payroll.EarningsSnapshot, error) {
	summary, err := a.attendanceRepo.GetSummary(ctx, profile.CompanyID, profile.ID, from, to)
	if err != nil {
		if errors.Is(err, payroll.ErrAttendanceNotFound) {
			return payroll.EarningsSnapshot{}, apperror.NewDataIncompleteError(profile.ID, "attendance", err)
		}
		return payroll.EarningsSnapshot{}, fmt.Errorf("failed to get attendance summary: %w", err)
	}

	snap := payroll.EarningsSnapshot{
		PayType:         profile.PayType,
		DaysPresent:     summary.DaysPresent,
		UnpaidLeaveDays: summary.UnpaidLeaveDays,
		MinutesWorked:   summary.MinutesWorked,
		OvertimeMinutes: summary.OvertimeMinutes,
	}

	switch profile.PayType {
	case staff.PayTypeSalaried:
		if profile.MonthlySalary <= 0 {
			return payroll.EarningsSnapshot{}, apperror.NewDataIncompleteError(profile.ID, "compensation", staff.ErrMissingCompensation)
		}
		lwp := min(a.LWP(profile.MonthlySalary, summary.UnpaidLeaveDays), profile.MonthlySalary)
		snap.ContractualBase = profile.MonthlySalary
		snap.OvertimeOrShortfall = -lwp
		snap.BaseSalaryOrWages = profile.MonthlySalary - lwp

	case staff.PayTypeHourly:
		if profile.HourlyRate <= 0 {
			return payroll.EarningsSnapshot{}, apperror.NewDataIncompleteError(profile.ID, "compensation", staff.ErrMissingCompensation)
		}
		wages := money.Prorate(profile.HourlyRate, decimal.NewFromInt(summary.MinutesWorked), minutesPerHour)
		overtimeMinutes := decimal.NewFromInt(summary.OvertimeMinutes).Mul(a.overtimeMultiplier)
		snap.ContractualBase = wages
		snap.BaseSalaryOrWages = wages
		snap.OvertimeOrShortfall = money.Prorate(profile.HourlyRate, overtimeMinutes, minutesPerHour)

	default:
		return payroll.EarningsSnapshot{}, apperror.NewDataIncompleteError(profile.ID, "compensation", staff.ErrInvalidPayType)
	}

	commissions, err := a.commissionRepo.ListEarned(ctx, profile.CompanyID, profile.ID, from, to)
	if err != nil {
		return payroll.EarningsSnapshot{}, fmt.Errorf("failed to list commissions: %w", err)
	}
	for _, c := range commissions {
		if c.Status != payroll.CommissionStatusEarned {
			continue
		}
		snap.CommissionTotal += c.Amount
		snap.CommissionEntryIDs = append(snap.CommissionEntryIDs, c.ID)
	}

	tips, err := a.tipRepo.ListReceived(ctx, profile.CompanyID, profile.ID, from, to)
	if err != nil {
		return payroll.EarningsSnapshot{}, fmt.Errorf("failed to list tips: %w", err)
	}
	for _, tip := range tips {
		snap.TipsTotal += tip.Amount
	}

	return snap, nil
}

// LWP is the salary lost to unpaid leave over the standard month.
func (a *EarningsAggregator) LWP(monthlySalary int64, unpaidDays decimal.Decimal) int64 {
	if !unpaidDays.IsPositive() {
		return 0
	}
	return money.Prorate(monthlySalary, unpaidDays, a.standardDays)
}
