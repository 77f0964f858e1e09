package taxrule

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxrule"
)

type TaxRuleServiceImpl struct {
	ruleSetRepo taxrule.RuleSetRepository
}

func NewTaxRuleService(ruleSetRepo taxrule.RuleSetRepository) taxrule.Service {
	return &TaxRuleServiceImpl{ruleSetRepo: ruleSetRepo}
}

func (s *TaxRuleServiceImpl) Create(ctx context.Context, req taxrule.CreateRuleSetRequest) (taxrule.RuleSetResponse, error) {
	if err := req.Validate(); err != nil {
		return taxrule.RuleSetResponse{}, err
	}

	rs := req.ToRuleSet()
	if err := rs.Validate(); err != nil {
		return taxrule.RuleSetResponse{}, err
	}

	created, err := s.ruleSetRepo.Create(ctx, rs)
	if err != nil {
		return taxrule.RuleSetResponse{}, err
	}
	return taxrule.NewRuleSetResponse(created), nil
}

func (s *TaxRuleServiceImpl) Get(ctx context.Context, companyID, id string) (taxrule.RuleSetResponse, error) {
	rs, err := s.ruleSetRepo.GetByID(ctx, companyID, id)
	if err != nil {
		return taxrule.RuleSetResponse{}, err
	}
	return taxrule.NewRuleSetResponse(rs), nil
}

func (s *TaxRuleServiceImpl) List(ctx context.Context, companyID string) ([]taxrule.RuleSetResponse, error) {
	sets, err := s.ruleSetRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	result := make([]taxrule.RuleSetResponse, 0, len(sets))
	for _, rs := range sets {
		result = append(result, taxrule.NewRuleSetResponse(rs))
	}
	return result, nil
}

func (s *TaxRuleServiceImpl) Load(ctx context.Context, companyID, id string) (taxrule.RuleSet, error) {
	rs, err := s.ruleSetRepo.GetByID(ctx, companyID, id)
	if err != nil {
		return taxrule.RuleSet{}, err
	}
	// validated on every load
	if err := rs.Validate(); err != nil {
		return taxrule.RuleSet{}, err
	}
	return rs, nil
}

func (s *TaxRuleServiceImpl) LoadEffective(ctx context.Context, companyID string, asOf time.Time) (taxrule.RuleSet, error) {
	rs, err := s.ruleSetRepo.GetEffective(ctx, companyID, asOf)
	if err != nil {
		return taxrule.RuleSet{}, fmt.Errorf("effective rule set on %s: %w", asOf.Format("2006-01-02"), err)
	}
	if err := rs.Validate(); err != nil {
		return taxrule.RuleSet{}, err
	}
	return rs, nil
}
