package taxrule

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxrule"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRuleSetRepo struct {
	sets []taxrule.RuleSet
}

func (r *memRuleSetRepo) Create(_ context.Context, rs taxrule.RuleSet) (taxrule.RuleSet, error) {
	for _, existing := range r.sets {
		if existing.CompanyID == rs.CompanyID && existing.Name == rs.Name {
			return taxrule.RuleSet{}, taxrule.ErrRuleSetNameExists
		}
	}
	rs.ID = "rs-" + rs.Name
	r.sets = append(r.sets, rs)
	return rs, nil
}

func (r *memRuleSetRepo) GetByID(_ context.Context, companyID, id string) (taxrule.RuleSet, error) {
	for _, rs := range r.sets {
		if rs.CompanyID == companyID && rs.ID == id {
			return rs, nil
		}
	}
	return taxrule.RuleSet{}, taxrule.ErrRuleSetNotFound
}

func (r *memRuleSetRepo) GetEffective(_ context.Context, companyID string, asOf time.Time) (taxrule.RuleSet, error) {
	var candidates []taxrule.RuleSet
	for _, rs := range r.sets {
		if rs.CompanyID == companyID && !rs.EffectiveFrom.After(asOf) {
			candidates = append(candidates, rs)
		}
	}
	if len(candidates) == 0 {
		return taxrule.RuleSet{}, taxrule.ErrRuleSetNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].EffectiveFrom.After(candidates[j].EffectiveFrom) })
	return candidates[0], nil
}

func (r *memRuleSetRepo) ListByCompany(_ context.Context, companyID string) ([]taxrule.RuleSet, error) {
	var out []taxrule.RuleSet
	for _, rs := range r.sets {
		if rs.CompanyID == companyID {
			out = append(out, rs)
		}
	}
	return out, nil
}

func ptr(v int64) *int64 { return &v }

func validRequest(name, effective string) taxrule.CreateRuleSetRequest {
	return taxrule.CreateRuleSetRequest{
		CompanyID:     "company-1",
		Name:          name,
		EffectiveFrom: effective,
		Slabs: []taxrule.SlabRequest{
			{Min: 0, Max: ptr(25_000_000), Rate: decimal.Zero},
			{Min: 25_000_000, Rate: decimal.RequireFromString("0.1")},
		},
		PFRate:        decimal.RequireFromString("0.12"),
		InsuranceRate: decimal.RequireFromString("0.0075"),
	}
}

func TestTaxRuleService_Create_Success(t *testing.T) {
	ctx := context.Background()
	svc := NewTaxRuleService(&memRuleSetRepo{})

	resp, err := svc.Create(ctx, validRequest("fy2025", "2025-04-01"))
	require.NoError(t, err)
	assert.Equal(t, "rs-fy2025", resp.ID)
	assert.Equal(t, "2025-04-01", resp.EffectiveFrom)
	assert.Len(t, resp.Slabs, 2)
}

func TestTaxRuleService_Create_RequestValidation(t *testing.T) {
	req := validRequest("", "01/04/2025")

	_, err := NewTaxRuleService(&memRuleSetRepo{}).Create(context.Background(), req)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := verrs.ToMap()
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "effective_from")
}

func TestTaxRuleService_Create_SlabGapIsConfigError(t *testing.T) {
	repo := &memRuleSetRepo{}
	req := validRequest("gappy", "2025-04-01")
	req.Slabs[1].Min = 30_000_000

	_, err := NewTaxRuleService(repo).Create(context.Background(), req)

	assert.ErrorIs(t, err, apperror.ErrConfig)
	assert.Empty(t, repo.sets, "invalid rule sets are never stored")
}

func TestTaxRuleService_LoadEffective(t *testing.T) {
	ctx := context.Background()
	svc := NewTaxRuleService(&memRuleSetRepo{})
	_, err := svc.Create(ctx, validRequest("fy2024", "2024-04-01"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, validRequest("fy2025", "2025-04-01"))
	require.NoError(t, err)

	rs, err := svc.LoadEffective(ctx, "company-1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "rs-fy2024", rs.ID)

	rs, err = svc.LoadEffective(ctx, "company-1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "rs-fy2025", rs.ID)

	_, err = svc.LoadEffective(ctx, "company-1", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, taxrule.ErrRuleSetNotFound)
}

func TestTaxRuleService_Load_RevalidatesStoredRows(t *testing.T) {
	repo := &memRuleSetRepo{sets: []taxrule.RuleSet{{
		ID:        "broken",
		CompanyID: "company-1",
		Slabs:     []taxrule.TaxSlab{{Min: 100, Rate: decimal.Zero}},
	}}}

	_, err := NewTaxRuleService(repo).Load(context.Background(), "company-1", "broken")
	assert.ErrorIs(t, err, apperror.ErrConfig)
}
