package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/lifecycle"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
	"github.com/shopspring/decimal"
)

// Cycle - one company's monthly payroll run
type Cycle struct {
	ID           string
	CompanyID    string
	PeriodMonth  int
	PeriodYear   int
	Status       lifecycle.Status
	TaxRuleSetID string

	// Totals are always the sum of the cycle's entries.
	TotalGross       int64
	TotalCommissions int64
	TotalTips        int64
	TotalDeductions  int64
	TotalDeferred    int64
	TotalNetPayable  int64
	StaffCount       int

	Failures                    []StaffFailure
	NegativeBalanceAcknowledged bool

	CreatedBy   *string
	ApprovedBy  *string
	PaidBy      *string
	ProcessedAt *time.Time
	ApprovedAt  *time.Time
	PaidAt      *time.Time
	LockedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StaffFailure - a staff member left out of a processing run
type StaffFailure struct {
	StaffID string `json:"staff_id"`
	Reason  string `json:"reason"`
}

// PeriodStart is the first instant of the cycle month in UTC.
func (c Cycle) PeriodStart() time.Time {
	return PeriodStart(c.PeriodYear, c.PeriodMonth)
}

// PeriodEnd is the first instant after the cycle month; periods are half-open.
func (c Cycle) PeriodEnd() time.Time {
	return c.PeriodStart().AddDate(0, 1, 0)
}

func PeriodStart(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// ApplyTotals recomputes the cycle totals from its entries.
func (c *Cycle) ApplyTotals(entries []Entry) {
	c.TotalGross, c.TotalCommissions, c.TotalTips = 0, 0, 0
	c.TotalDeductions, c.TotalDeferred, c.TotalNetPayable = 0, 0, 0
	for _, e := range entries {
		c.TotalGross += e.GrossEarnings
		c.TotalCommissions += e.Earnings.CommissionTotal
		c.TotalTips += e.Earnings.TipsTotal
		c.TotalDeductions += e.TotalDeductions
		c.TotalDeferred += e.DeferredDeduction
		c.TotalNetPayable += e.NetPay
	}
	c.StaffCount = len(entries)
}

// EarningsSnapshot - what one staff member earned in a period.
//
// For salaried staff ContractualBase is the monthly salary and
// OvertimeOrShortfall is the negative unpaid-leave shortfall, so
// BaseSalaryOrWages is the prorated salary. For hourly staff ContractualBase
// and BaseSalaryOrWages are the wages and OvertimeOrShortfall is overtime pay.
type EarningsSnapshot struct {
	PayType             staff.PayType
	ContractualBase     int64
	BaseSalaryOrWages   int64
	CommissionTotal     int64
	TipsTotal           int64
	OvertimeOrShortfall int64
	DaysPresent         decimal.Decimal
	UnpaidLeaveDays     decimal.Decimal
	MinutesWorked       int64
	OvertimeMinutes     int64
	CommissionEntryIDs  []string
}

// Gross is contractual earnings before unpaid leave is taken off. Unpaid leave
// is charged once, as the LWP deduction line.
func (e EarningsSnapshot) Gross() int64 {
	gross := e.ContractualBase + e.CommissionTotal + e.TipsTotal
	if e.OvertimeOrShortfall > 0 {
		gross += e.OvertimeOrShortfall
	}
	return gross
}

// LWP is the unpaid-leave shortfall as a positive amount.
func (e EarningsSnapshot) LWP() int64 {
	if e.OvertimeOrShortfall < 0 {
		return -e.OvertimeOrShortfall
	}
	return 0
}

// DeductionBreakdown - all deduction lines of one entry
type DeductionBreakdown struct {
	IncomeTax       int64 `json:"income_tax"`
	ProvidentFund   int64 `json:"provident_fund"`
	Insurance       int64 `json:"insurance"`
	ProfessionalTax int64 `json:"professional_tax"`
	AdvanceRecovery int64 `json:"advance_recovery"`
	LWPDeduction    int64 `json:"lwp_deduction"`
	CarriedForward  int64 `json:"carried_forward"`
}

func (d DeductionBreakdown) Total() int64 {
	return d.IncomeTax + d.ProvidentFund + d.Insurance + d.ProfessionalTax +
		d.AdvanceRecovery + d.LWPDeduction + d.CarriedForward
}

// Entry - one staff member's result inside a cycle
type Entry struct {
	ID                string
	CycleID           string
	CompanyID         string
	StaffID           string
	PeriodMonth       int
	PeriodYear        int
	Earnings          EarningsSnapshot
	GrossEarnings     int64
	Deductions        DeductionBreakdown
	TotalDeductions   int64
	NetPay            int64
	DeferredDeduction int64
	NegativeBalance   bool
	Settled           bool
	SettledAt         *time.Time
	PaymentReference  *string
	CreatedAt         time.Time

	// Joined fields
	StaffName    *string
	EmployeeCode *string
}

// Settle fills the net pay fields from gross and deductions. Net pay never
// goes below zero; the excess is deferred to the next cycle.
func (e *Entry) Settle() {
	e.GrossEarnings = e.Earnings.Gross()
	e.TotalDeductions = e.Deductions.Total()
	net := e.GrossEarnings - e.TotalDeductions
	if net < 0 {
		e.NetPay = 0
		e.DeferredDeduction = -net
		e.NegativeBalance = true
		return
	}
	e.NetPay = net
	e.DeferredDeduction = 0
	e.NegativeBalance = false
}

type CommissionStatus string

const (
	CommissionStatusEarned CommissionStatus = "earned"
	CommissionStatusPaid   CommissionStatus = "paid"
)

// CommissionEntry - commission earned on a completed service
type CommissionEntry struct {
	ID            string
	CompanyID     string
	StaffID       string
	ServiceAmount int64
	Rate          decimal.Decimal
	Amount        int64
	CompletedAt   time.Time
	Status        CommissionStatus
	PaidAt        *time.Time
}

// Tip - gratuity received by a staff member
type Tip struct {
	ID         string
	CompanyID  string
	StaffID    string
	Amount     int64
	ReceivedAt time.Time
}

// AttendanceSummary - aggregate from the attendance ledger for one period
type AttendanceSummary struct {
	StaffID         string
	DaysPresent     decimal.Decimal
	UnpaidLeaveDays decimal.Decimal
	MinutesWorked   int64
	OvertimeMinutes int64
}

// LeaveBalance - accrued and used paid leave
type LeaveBalance struct {
	StaffID     string
	AccruedDays decimal.Decimal
	UsedDays    decimal.Decimal
}

func (b LeaveBalance) Unused() decimal.Decimal {
	unused := b.AccruedDays.Sub(b.UsedDays)
	if unused.IsNegative() {
		return decimal.Zero
	}
	return unused
}

// AdvanceBalance - salary advance still owed by a staff member
type AdvanceBalance struct {
	StaffID     string
	Outstanding int64
	Installment int64
}

// NextRecovery is the installment, never more than what is still owed.
func (a AdvanceBalance) NextRecovery() int64 {
	if a.Outstanding <= 0 || a.Installment <= 0 {
		return 0
	}
	return min(a.Installment, a.Outstanding)
}
