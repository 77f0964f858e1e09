package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// ========== CYCLE DTOs ==========

type CreateCycleRequest struct {
	CompanyID    string  `json:"-" validate:"required"`
	ActorID      string  `json:"-"`
	PeriodMonth  int     `json:"period_month" validate:"min=1,max=12"`
	PeriodYear   int     `json:"period_year" validate:"min=2020,max=2100"`
	TaxRuleSetID *string `json:"tax_rule_set_id,omitempty" validate:"omitempty,uuid7"`
}

func (r *CreateCycleRequest) Validate() error {
	return validator.ValidateStruct(r)
}

type ApproveCycleRequest struct {
	CompanyID                  string `json:"-"`
	CycleID                    string `json:"-"`
	ActorID                    string `json:"-"`
	AcknowledgeNegativeBalance bool   `json:"acknowledge_negative_balance"`
}

type SettleEntriesRequest struct {
	CompanyID        string   `json:"-"`
	CycleID          string   `json:"-"`
	EntryIDs         []string `json:"entry_ids"`
	AllEntries       bool     `json:"all_entries"`
	PaymentReference string   `json:"payment_reference"`
}

func (r *SettleEntriesRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.EntryIDs) == 0 && !r.AllEntries {
		errs = append(errs, validator.ValidationError{Field: "entry_ids", Message: "at least one entry is required"})
	}
	if validator.IsEmpty(r.PaymentReference) {
		errs = append(errs, validator.ValidationError{Field: "payment_reference", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type CycleFilter struct {
	PeriodYear *int    `json:"period_year,omitempty"`
	Status     *string `json:"status,omitempty"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

type CycleResponse struct {
	ID                          string          `json:"id"`
	CompanyID                   string          `json:"company_id"`
	PeriodMonth                 int             `json:"period_month"`
	PeriodYear                  int             `json:"period_year"`
	Status                      string          `json:"status"`
	TaxRuleSetID                string          `json:"tax_rule_set_id"`
	TotalGross                  int64           `json:"total_gross"`
	TotalCommissions            int64           `json:"total_commissions"`
	TotalTips                   int64           `json:"total_tips"`
	TotalDeductions             int64           `json:"total_deductions"`
	TotalDeferred               int64           `json:"total_deferred"`
	TotalNetPayable             int64           `json:"total_net_payable"`
	StaffCount                  int             `json:"staff_count"`
	Failures                    []StaffFailure  `json:"failures,omitempty"`
	NegativeBalanceAcknowledged bool            `json:"negative_balance_acknowledged"`
	ProcessedAt                 *string         `json:"processed_at,omitempty"`
	ApprovedAt                  *string         `json:"approved_at,omitempty"`
	PaidAt                      *string         `json:"paid_at,omitempty"`
	LockedAt                    *string         `json:"locked_at,omitempty"`
	Entries                     []EntryResponse `json:"entries,omitempty"`
}

type EntryResponse struct {
	ID                  string             `json:"id"`
	StaffID             string             `json:"staff_id"`
	StaffName           *string            `json:"staff_name,omitempty"`
	EmployeeCode        *string            `json:"employee_code,omitempty"`
	PayType             string             `json:"pay_type"`
	BaseSalaryOrWages   int64              `json:"base_salary_or_wages"`
	OvertimeOrShortfall int64              `json:"overtime_or_shortfall"`
	CommissionTotal     int64              `json:"commission_total"`
	TipsTotal           int64              `json:"tips_total"`
	GrossEarnings       int64              `json:"gross_earnings"`
	Deductions          DeductionBreakdown `json:"deductions"`
	TotalDeductions     int64              `json:"total_deductions"`
	NetPay              int64              `json:"net_pay"`
	DeferredDeduction   int64              `json:"deferred_deduction"`
	NegativeBalance     bool               `json:"negative_balance"`
	Settled             bool               `json:"settled"`
	PaymentReference    *string            `json:"payment_reference,omitempty"`
}

type ListCycleResponse struct {
	Data       []CycleResponse `json:"data"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}

func NewCycleResponse(c Cycle, entries []Entry) CycleResponse {
	resp := CycleResponse{
		ID:                          c.ID,
		CompanyID:                   c.CompanyID,
		PeriodMonth:                 c.PeriodMonth,
		PeriodYear:                  c.PeriodYear,
		Status:                      string(c.Status),
		TaxRuleSetID:                c.TaxRuleSetID,
		TotalGross:                  c.TotalGross,
		TotalCommissions:            c.TotalCommissions,
		TotalTips:                   c.TotalTips,
		TotalDeductions:             c.TotalDeductions,
		TotalDeferred:               c.TotalDeferred,
		TotalNetPayable:             c.TotalNetPayable,
		StaffCount:                  c.StaffCount,
		Failures:                    c.Failures,
		NegativeBalanceAcknowledged: c.NegativeBalanceAcknowledged,
		ProcessedAt:                 formatTime(c.ProcessedAt),
		ApprovedAt:                  formatTime(c.ApprovedAt),
		PaidAt:                      formatTime(c.PaidAt),
		LockedAt:                    formatTime(c.LockedAt),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, NewEntryResponse(e))
	}
	return resp
}

func NewEntryResponse(e Entry) EntryResponse {
	return EntryResponse{
		ID:                  e.ID,
		StaffID:             e.StaffID,
		StaffName:           e.StaffName,
		EmployeeCode:        e.EmployeeCode,
		PayType:             string(e.Earnings.PayType),
		BaseSalaryOrWages:   e.Earnings.BaseSalaryOrWages,
		OvertimeOrShortfall: e.Earnings.OvertimeOrShortfall,
		CommissionTotal:     e.Earnings.CommissionTotal,
		TipsTotal:           e.Earnings.TipsTotal,
		GrossEarnings:       e.GrossEarnings,
		Deductions:          e.Deductions,
		TotalDeductions:     e.TotalDeductions,
		NetPay:              e.NetPay,
		DeferredDeduction:   e.DeferredDeduction,
		NegativeBalance:     e.NegativeBalance,
		Settled:             e.Settled,
		PaymentReference:    e.PaymentReference,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
