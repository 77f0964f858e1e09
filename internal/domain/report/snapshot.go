// Package report defines the read-only views handed to report exporters.
// Snapshots are plain values built from committed results; mutating one never
// reaches the engine.
package report

import (
	"context"
	"time"
)

type CycleSnapshot struct {
	CycleID     string          `json:"cycle_id"`
	CompanyID   string          `json:"company_id"`
	PeriodMonth int             `json:"period_month"`
	PeriodYear  int             `json:"period_year"`
	Status      string          `json:"status"`
	Currency    string          `json:"currency"`
	Totals      CycleTotals     `json:"totals"`
	Entries     []EntrySnapshot `json:"entries"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type CycleTotals struct {
	Gross        int64  `json:"gross"`
	Commissions  int64  `json:"commissions"`
	Tips         int64  `json:"tips"`
	Deductions   int64  `json:"deductions"`
	Deferred     int64  `json:"deferred"`
	NetPayable   int64  `json:"net_payable"`
	StaffCount   int    `json:"staff_count"`
	NetFormatted string `json:"net_formatted"`
}

type EntrySnapshot struct {
	StaffID        string           `json:"staff_id"`
	StaffName      string           `json:"staff_name"`
	EmployeeCode   string           `json:"employee_code"`
	Gross          int64            `json:"gross"`
	Commissions    int64            `json:"commissions"`
	Tips           int64            `json:"tips"`
	DeductionLines map[string]int64 `json:"deduction_lines"`
	Deductions     int64            `json:"deductions"`
	Deferred       int64            `json:"deferred"`
	Net            int64            `json:"net"`
	NetFormatted   string           `json:"net_formatted"`
	Settled        bool             `json:"settled"`
}

type ExitSnapshot struct {
	ExitID           string           `json:"exit_id"`
	CompanyID        string           `json:"company_id"`
	StaffID          string           `json:"staff_id"`
	ExitType         string           `json:"exit_type"`
	Status           string           `json:"status"`
	Currency         string           `json:"currency"`
	LastWorkingDate  string           `json:"last_working_date"`
	Components       map[string]int64 `json:"components"`
	NetSettlement    int64            `json:"net_settlement"`
	NetFormatted     string           `json:"net_formatted"`
	StaffOwesCompany bool             `json:"staff_owes_company"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// Exporter consumes finalized snapshots.
type Exporter interface {
	ExportCycle(ctx context.Context, snap CycleSnapshot) error
	ExportSettlement(ctx context.Context, snap ExitSnapshot) error
}
