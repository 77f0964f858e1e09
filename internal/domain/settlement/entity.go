package settlement

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/lifecycle"
	"github.com/shopspring/decimal"
)

type ExitType string

const (
	ExitTypeResignation ExitType = "resignation"
	ExitTypeTermination ExitType = "termination"
	ExitTypeRetirement  ExitType = "retirement"
	ExitTypeDeath       ExitType = "death"
	ExitTypeContractEnd ExitType = "contract_end"
)

// ExitRecord - a staff exit and its one-off settlement
type ExitRecord struct {
	ID                   string
	CompanyID            string
	StaffID              string
	ExitType             ExitType
	ResignationDate      time.Time
	LastWorkingDate      time.Time
	NoticeWaived         bool
	OtherRecoveries      int64
	Notes                *string
	Status               lifecycle.Status
	NoticeServedDays     int
	NoticeShortfallDays  int
	Breakdown            *Breakdown
	NetSettlement        int64
	StaffOwesCompany     bool
	CommissionEntryIDs   []string
	NegativeAcknowledged bool
	PaymentReference     *string

	CreatedBy    *string
	ApprovedBy   *string
	CalculatedAt *time.Time
	ApprovedAt   *time.Time
	PaidAt       *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Breakdown - settlement components, all in minor units
type Breakdown struct {
	MonthlySalary      int64           `json:"monthly_salary"`
	DailyRate          decimal.Decimal `json:"daily_rate"`
	PendingCommissions int64           `json:"pending_commissions"`
	PendingTips        int64           `json:"pending_tips"`
	UnusedLeaveDays    decimal.Decimal `json:"unused_leave_days"`
	LeaveEncashment    int64           `json:"leave_encashment"`
	ServiceYears       int             `json:"service_years"`
	GratuityEligible   bool            `json:"gratuity_eligible"`
	Gratuity           int64           `json:"gratuity"`
	NoticeRecovery     int64           `json:"notice_recovery"`
	AdvanceOutstanding int64           `json:"advance_outstanding"`
	DeferredDeductions int64           `json:"deferred_deductions"`
	OtherRecoveries    int64           `json:"other_recoveries"`
}

// Net may be negative, meaning the staff member owes the company.
func (b Breakdown) Net() int64 {
	credits := b.PendingCommissions + b.PendingTips + b.LeaveEncashment + b.Gratuity
	debits := b.NoticeRecovery + b.AdvanceOutstanding + b.DeferredDeductions + b.OtherRecoveries
	return credits - debits
}

// Components lists the breakdown lines by name.
func (b Breakdown) Components() map[string]int64 {
	return map[string]int64{
		"pending_commissions": b.PendingCommissions,
		"pending_tips":        b.PendingTips,
		"leave_encashment":    b.LeaveEncashment,
		"gratuity":            b.Gratuity,
		"notice_recovery":     -b.NoticeRecovery,
		"advance_outstanding": -b.AdvanceOutstanding,
		"deferred_deductions": -b.DeferredDeductions,
		"other_recoveries":    -b.OtherRecoveries,
	}
}
