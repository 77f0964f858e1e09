package taxrule

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type SlabRequest struct {
	Min  int64           `json:"min" validate:"gte=0"`
	Max  *int64          `json:"max,omitempty"`
	Rate decimal.Decimal `json:"rate"`
}

type CreateRuleSetRequest struct {
	CompanyID            string          `json:"-" validate:"required"`
	Name                 string          `json:"name" validate:"required,max=100"`
	EffectiveFrom        string          `json:"effective_from" validate:"required,date"`
	Slabs                []SlabRequest   `json:"slabs" validate:"required,min=1,dive"`
	PFRate               decimal.Decimal `json:"pf_rate"`
	PFWageCeiling        int64           `json:"pf_wage_ceiling" validate:"gte=0"`
	InsuranceRate        decimal.Decimal `json:"insurance_rate"`
	InsuranceThreshold   int64           `json:"insurance_threshold" validate:"gte=0"`
	InsuranceWageCeiling int64           `json:"insurance_wage_ceiling" validate:"gte=0"`
	ProfessionalTax      int64           `json:"professional_tax" validate:"gte=0"`
}

func (r *CreateRuleSetRequest) Validate() error {
	return validator.ValidateStruct(r)
}

// ToRuleSet converts the request; call Validate first.
func (r *CreateRuleSetRequest) ToRuleSet() RuleSet {
	effective, _ := time.Parse("2006-01-02", r.EffectiveFrom)
	slabs := make([]TaxSlab, 0, len(r.Slabs))
	for _, s := range r.Slabs {
		slabs = append(slabs, TaxSlab{Min: s.Min, Max: s.Max, Rate: s.Rate})
	}
	return RuleSet{
		CompanyID:            r.CompanyID,
		Name:                 r.Name,
		EffectiveFrom:        effective,
		Slabs:                slabs,
		PFRate:               r.PFRate,
		PFWageCeiling:        r.PFWageCeiling,
		InsuranceRate:        r.InsuranceRate,
		InsuranceThreshold:   r.InsuranceThreshold,
		InsuranceWageCeiling: r.InsuranceWageCeiling,
		ProfessionalTax:      r.ProfessionalTax,
	}
}

type SlabResponse struct {
	Min  int64           `json:"min"`
	Max  *int64          `json:"max,omitempty"`
	Rate decimal.Decimal `json:"rate"`
}

type RuleSetResponse struct {
	ID                   string          `json:"id"`
	CompanyID            string          `json:"company_id"`
	Name                 string          `json:"name"`
	EffectiveFrom        string          `json:"effective_from"`
	Slabs                []SlabResponse  `json:"slabs"`
	PFRate               decimal.Decimal `json:"pf_rate"`
	PFWageCeiling        int64           `json:"pf_wage_ceiling"`
	InsuranceRate        decimal.Decimal `json:"insurance_rate"`
	InsuranceThreshold   int64           `json:"insurance_threshold"`
	InsuranceWageCeiling int64           `json:"insurance_wage_ceiling"`
	ProfessionalTax      int64           `json:"professional_tax"`
}

func NewRuleSetResponse(rs RuleSet) RuleSetResponse {
	slabs := make([]SlabResponse, 0, len(rs.Slabs))
	for _, s := range rs.Slabs {
		slabs = append(slabs, SlabResponse{Min: s.Min, Max: s.Max, Rate: s.Rate})
	}
	return RuleSetResponse{
		ID:                   rs.ID,
		CompanyID:            rs.CompanyID,
		Name:                 rs.Name,
		EffectiveFrom:        rs.EffectiveFrom.Format("2006-01-02"),
		Slabs:                slabs,
		PFRate:               rs.PFRate,
		PFWageCeiling:        rs.PFWageCeiling,
		InsuranceRate:        rs.InsuranceRate,
		InsuranceThreshold:   rs.InsuranceThreshold,
		InsuranceWageCeiling: rs.InsuranceWageCeiling,
		ProfessionalTax:      rs.ProfessionalTax,
	}
}
