package taxrule

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// TaxSlab covers annual income in [Min, Max). A nil Max marks the open-ended
// top slab.
type TaxSlab struct {
	Min  int64
	Max  *int64
	Rate decimal.Decimal
}

// RuleSet - statutory deduction configuration for one company
type RuleSet struct {
	ID                   string
	CompanyID            string
	Name                 string
	EffectiveFrom        time.Time
	Slabs                []TaxSlab
	PFRate               decimal.Decimal
	PFWageCeiling        int64 // 0 = uncapped
	InsuranceRate        decimal.Decimal
	InsuranceThreshold   int64 // gross above this is exempt
	InsuranceWageCeiling int64 // 0 = uncapped
	ProfessionalTax      int64 // fixed monthly amount
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

var one = decimal.NewFromInt(1)

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(one)
}

// Validate checks that the slabs partition [0, inf) and every rate and amount
// is in range.
func (rs RuleSet) Validate() error {
	cfgErr := func(field, reason string) error {
		return apperror.NewConfigError("tax_rule_set "+rs.ID, field, reason)
	}

	if len(rs.Slabs) == 0 {
		return cfgErr("slabs", "at least one slab is required")
	}
	if rs.Slabs[0].Min != 0 {
		return cfgErr("slabs[0].min", "first slab must start at 0")
	}

	for i, slab := range rs.Slabs {
		field := fmt.Sprintf("slabs[%d]", i)
		if !validRate(slab.Rate) {
			return cfgErr(field+".rate", "must be between 0 and 1")
		}
		if i > 0 {
			prev := rs.Slabs[i-1]
			switch {
			case slab.Min > *prev.Max:
				return cfgErr(field+".min", fmt.Sprintf("gap after %d", *prev.Max))
			case slab.Min < *prev.Max:
				return cfgErr(field+".min", fmt.Sprintf("overlaps previous slab ending at %d", *prev.Max))
			}
		}
		last := i == len(rs.Slabs)-1
		if slab.Max == nil {
			if !last {
				return cfgErr(field+".max", "only the last slab may be open-ended")
			}
			continue
		}
		if last {
			return cfgErr(field+".max", "last slab must be open-ended")
		}
		if *slab.Max <= slab.Min {
			return cfgErr(field+".max", "must be greater than min")
		}
	}

	if !validRate(rs.PFRate) {
		return cfgErr("pf_rate", "must be between 0 and 1")
	}
	if !validRate(rs.InsuranceRate) {
		return cfgErr("insurance_rate", "must be between 0 and 1")
	}
	if rs.PFWageCeiling < 0 || rs.InsuranceWageCeiling < 0 || rs.InsuranceThreshold < 0 {
		return cfgErr("ceilings", "must not be negative")
	}
	if rs.ProfessionalTax < 0 {
		return cfgErr("professional_tax", "must not be negative")
	}
	return nil
}

// MarginalTax returns the exact progressive tax on an annual income.
func (rs RuleSet) MarginalTax(annualIncome int64) decimal.Decimal {
	tax := decimal.Zero
	for _, slab := range rs.Slabs {
		if annualIncome <= slab.Min {
			break
		}
		upper := annualIncome
		if slab.Max != nil && *slab.Max < upper {
			upper = *slab.Max
		}
		tax = tax.Add(decimal.NewFromInt(upper - slab.Min).Mul(slab.Rate))
	}
	return tax
}

// MonthlyIncomeTax annualizes a monthly gross, applies the slabs and brings
// the result back to one month, rounded half-up.
func (rs RuleSet) MonthlyIncomeTax(monthlyGross int64) int64 {
	if monthlyGross <= 0 {
		return 0
	}
	return money.Round(rs.MarginalTax(monthlyGross * 12).Div(decimal.NewFromInt(12)))
}

// ProvidentFund applies the PF rate to gross capped at the wage ceiling.
func (rs RuleSet) ProvidentFund(gross int64) int64 {
	if gross <= 0 {
		return 0
	}
	return money.ApplyRate(capAt(gross, rs.PFWageCeiling), rs.PFRate)
}

// Insurance applies only when gross is at or below the threshold.
func (rs RuleSet) Insurance(gross int64) int64 {
	if gross <= 0 || gross > rs.InsuranceThreshold {
		return 0
	}
	return money.ApplyRate(capAt(gross, rs.InsuranceWageCeiling), rs.InsuranceRate)
}

func capAt(amount, ceiling int64) int64 {
	if ceiling > 0 && amount > ceiling {
		return ceiling
	}
	return amount
}
