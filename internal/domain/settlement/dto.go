package settlement

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

type InitiateExitRequest struct {
	CompanyID       string  `json:"-" validate:"required"`
	ActorID         string  `json:"-"`
	StaffID         string  `json:"staff_id" validate:"required"`
	ExitType        string  `json:"exit_type" validate:"required,oneof=resignation termination retirement death contract_end"`
	ResignationDate string  `json:"resignation_date" validate:"required,date"`
	LastWorkingDate string  `json:"last_working_date" validate:"required,date"`
	NoticeWaived    bool    `json:"notice_waived"`
	OtherRecoveries int64   `json:"other_recoveries" validate:"gte=0"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

func (r *InitiateExitRequest) Validate() error {
	if err := validator.ValidateStruct(r); err != nil {
		return err
	}
	resignation, _ := time.Parse("2006-01-02", r.ResignationDate)
	lastDay, _ := time.Parse("2006-01-02", r.LastWorkingDate)
	if lastDay.Before(resignation) {
		return validator.ValidationErrors{
			{Field: "last_working_date", Message: "must not be before resignation_date"},
		}
	}
	return nil
}

type ApproveSettlementRequest struct {
	CompanyID                  string `json:"-"`
	ExitID                     string `json:"-"`
	ActorID                    string `json:"-"`
	AcknowledgeNegativeBalance bool   `json:"acknowledge_negative_balance"`
}

type MarkSettlementPaidRequest struct {
	PaymentReference string `json:"payment_reference" validate:"required,max=100"`
}

func (r *MarkSettlementPaidRequest) Validate() error {
	return validator.ValidateStruct(r)
}

type ExitResponse struct {
	ID                  string     `json:"id"`
	CompanyID           string     `json:"company_id"`
	StaffID             string     `json:"staff_id"`
	ExitType            string     `json:"exit_type"`
	ResignationDate     string     `json:"resignation_date"`
	LastWorkingDate     string     `json:"last_working_date"`
	NoticeWaived        bool       `json:"notice_waived"`
	Status              string     `json:"status"`
	NoticeServedDays    int        `json:"notice_served_days"`
	NoticeShortfallDays int        `json:"notice_shortfall_days"`
	Breakdown           *Breakdown `json:"breakdown,omitempty"`
	NetSettlement       int64      `json:"net_settlement"`
	StaffOwesCompany    bool       `json:"staff_owes_company"`
	Notes               *string    `json:"notes,omitempty"`
	PaymentReference    *string    `json:"payment_reference,omitempty"`
	CalculatedAt        *string    `json:"calculated_at,omitempty"`
	ApprovedAt          *string    `json:"approved_at,omitempty"`
	PaidAt              *string    `json:"paid_at,omitempty"`
	CompletedAt         *string    `json:"completed_at,omitempty"`
}

func NewExitResponse(rec ExitRecord) ExitResponse {
	return ExitResponse{
		ID:                  rec.ID,
		CompanyID:           rec.CompanyID,
		StaffID:             rec.StaffID,
		ExitType:            string(rec.ExitType),
		ResignationDate:     rec.ResignationDate.Format("2006-01-02"),
		LastWorkingDate:     rec.LastWorkingDate.Format("2006-01-02"),
		NoticeWaived:        rec.NoticeWaived,
		Status:              string(rec.Status),
		NoticeServedDays:    rec.NoticeServedDays,
		NoticeShortfallDays: rec.NoticeShortfallDays,
		Breakdown:           rec.Breakdown,
		NetSettlement:       rec.NetSettlement,
		StaffOwesCompany:    rec.StaffOwesCompany,
		Notes:               rec.Notes,
		PaymentReference:    rec.PaymentReference,
		CalculatedAt:        formatTime(rec.CalculatedAt),
		ApprovedAt:          formatTime(rec.ApprovedAt),
		PaidAt:              formatTime(rec.PaidAt),
		CompletedAt:         formatTime(rec.CompletedAt),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
