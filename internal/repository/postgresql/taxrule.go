package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxrule"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ruleSetRepository struct {
	db *database.DB
}

func NewRuleSetRepository(db *database.DB) taxrule.RuleSetRepository {
	return &ruleSetRepository{db: db}
}

const ruleSetColumns = `
	id, company_id, name, effective_from, pf_rate, pf_wage_ceiling,
	insurance_rate, insurance_threshold, insurance_wage_ceiling, professional_tax,
	created_at, updated_at`

func scanRuleSet(row pgx.Row) (taxrule.RuleSet, error) {
	var rs taxrule.RuleSet
	err := row.Scan(
		&rs.ID, &rs.CompanyID, &rs.Name, &rs.EffectiveFrom, &rs.PFRate, &rs.PFWageCeiling,
		&rs.InsuranceRate, &rs.InsuranceThreshold, &rs.InsuranceWageCeiling, &rs.ProfessionalTax,
		&rs.CreatedAt, &rs.UpdatedAt,
	)
	return rs, err
}

// Create stores the rule set and its slabs in one transaction.
func (r *ruleSetRepository) Create(ctx context.Context, rs taxrule.RuleSet) (taxrule.RuleSet, error) {
	var created taxrule.RuleSet
	err := NewTxManager(r.db).WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = r.create(ctx, rs)
		return err
	})
	return created, err
}

func (r *ruleSetRepository) create(ctx context.Context, rs taxrule.RuleSet) (taxrule.RuleSet, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO tax_rule_sets (
			id, company_id, name, effective_from, pf_rate, pf_wage_ceiling,
			insurance_rate, insurance_threshold, insurance_wage_ceiling, professional_tax
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + ruleSetColumns

	created, err := scanRuleSet(q.QueryRow(ctx, query,
		uuid.Must(uuid.NewV7()).String(), rs.CompanyID, rs.Name, rs.EffectiveFrom, rs.PFRate, rs.PFWageCeiling,
		rs.InsuranceRate, rs.InsuranceThreshold, rs.InsuranceWageCeiling, rs.ProfessionalTax,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return taxrule.RuleSet{}, taxrule.ErrRuleSetNameExists
		}
		return taxrule.RuleSet{}, fmt.Errorf("failed to create tax rule set: %w", err)
	}

	for i, slab := range rs.Slabs {
		_, err := q.Exec(ctx,
			`INSERT INTO tax_slabs (rule_set_id, position, min_income, max_income, rate) VALUES ($1, $2, $3, $4, $5)`,
			created.ID, i, slab.Min, slab.Max, slab.Rate,
		)
		if err != nil {
			return taxrule.RuleSet{}, fmt.Errorf("failed to create tax slab %d: %w", i, err)
		}
	}
	created.Slabs = rs.Slabs

	return created, nil
}

func (r *ruleSetRepository) GetByID(ctx context.Context, companyID, id string) (taxrule.RuleSet, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + ruleSetColumns + ` FROM tax_rule_sets WHERE id = $1 AND company_id = $2`

	return r.getWithSlabs(ctx, q.QueryRow(ctx, query, id, companyID))
}

func (r *ruleSetRepository) GetEffective(ctx context.Context, companyID string, asOf time.Time) (taxrule.RuleSet, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + ruleSetColumns + `
		FROM tax_rule_sets
		WHERE company_id = $1 AND effective_from <= $2
		ORDER BY effective_from DESC, created_at DESC
		LIMIT 1
	`

	return r.getWithSlabs(ctx, q.QueryRow(ctx, query, companyID, asOf))
}

func (r *ruleSetRepository) getWithSlabs(ctx context.Context, row pgx.Row) (taxrule.RuleSet, error) {
	rs, err := scanRuleSet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return taxrule.RuleSet{}, taxrule.ErrRuleSetNotFound
		}
		return taxrule.RuleSet{}, fmt.Errorf("failed to get tax rule set: %w", err)
	}

	rs.Slabs, err = r.listSlabs(ctx, rs.ID)
	if err != nil {
		return taxrule.RuleSet{}, err
	}

	return rs, nil
}

func (r *ruleSetRepository) listSlabs(ctx context.Context, ruleSetID string) ([]taxrule.TaxSlab, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx,
		`SELECT min_income, max_income, rate FROM tax_slabs WHERE rule_set_id = $1 ORDER BY position`,
		ruleSetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax slabs: %w", err)
	}
	defer rows.Close()

	var slabs []taxrule.TaxSlab
	for rows.Next() {
		var s taxrule.TaxSlab
		if err := rows.Scan(&s.Min, &s.Max, &s.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan tax slab: %w", err)
		}
		slabs = append(slabs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tax slabs: %w", err)
	}

	return slabs, nil
}

func (r *ruleSetRepository) ListByCompany(ctx context.Context, companyID string) ([]taxrule.RuleSet, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx,
		`SELECT `+ruleSetColumns+` FROM tax_rule_sets WHERE company_id = $1 ORDER BY effective_from DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax rule sets: %w", err)
	}

	sets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (taxrule.RuleSet, error) {
		return scanRuleSet(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tax rule sets: %w", err)
	}

	for i := range sets {
		if sets[i].Slabs, err = r.listSlabs(ctx, sets[i].ID); err != nil {
			return nil, err
		}
	}

	return sets, nil
}
