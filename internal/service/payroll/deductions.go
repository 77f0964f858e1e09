package payroll

import (
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxrule"
)

// TaxProfile carries the per-staff inputs of ComputeDeductions.
type TaxProfile struct {
	Gross          int64 // before unpaid leave
	LWP            int64
	Advance        payroll.AdvanceBalance
	CarriedForward int64
}

// ComputeDeductions applies the rule set to gross after unpaid leave. The LWP
// line itself is charged once here and nowhere else.
func ComputeDeductions(rules taxrule.RuleSet, p TaxProfile) payroll.DeductionBreakdown {
	taxable := max(p.Gross-p.LWP, 0)

	d := payroll.DeductionBreakdown{
		IncomeTax:       rules.MonthlyIncomeTax(taxable),
		ProvidentFund:   rules.ProvidentFund(taxable),
		Insurance:       rules.Insurance(taxable),
		AdvanceRecovery: p.Advance.NextRecovery(),
		LWPDeduction:    p.LWP,
		CarriedForward:  max(p.CarriedForward, 0),
	}
	if taxable > 0 {
		d.ProfessionalTax = rules.ProfessionalTax
	}
	return d
}
