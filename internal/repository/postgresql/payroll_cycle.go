package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type cycleRepository struct {
	db *database.DB
}

func NewCycleRepository(db *database.DB) payroll.CycleRepository {
	return &cycleRepository{db: db}
}

const cycleColumns = `
	id, company_id, period_month, period_year, status, tax_rule_set_id,
	total_gross, total_commissions, total_tips, total_deductions, total_deferred,
	total_net_payable, staff_count, failures, negative_balance_acknowledged,
	created_by, approved_by, paid_by, processed_at, approved_at, paid_at, locked_at,
	created_at, updated_at`

func scanCycle(row pgx.Row) (payroll.Cycle, error) {
	var c payroll.Cycle
	var failures []byte
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.PeriodMonth, &c.PeriodYear, &c.Status, &c.TaxRuleSetID,
		&c.TotalGross, &c.TotalCommissions, &c.TotalTips, &c.TotalDeductions, &c.TotalDeferred,
		&c.TotalNetPayable, &c.StaffCount, &failures, &c.NegativeBalanceAcknowledged,
		&c.CreatedBy, &c.ApprovedBy, &c.PaidBy, &c.ProcessedAt, &c.ApprovedAt, &c.PaidAt, &c.LockedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return payroll.Cycle{}, err
	}
	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &c.Failures); err != nil {
			return payroll.Cycle{}, fmt.Errorf("decode cycle failures: %w", err)
		}
	}
	return c, nil
}

func failuresJSON(failures []payroll.StaffFailure) ([]byte, error) {
	if failures == nil {
		failures = []payroll.StaffFailure{}
	}
	return json.Marshal(failures)
}

func (r *cycleRepository) Create(ctx context.Context, cycle payroll.Cycle) (payroll.Cycle, error) {
	q := GetQuerier(ctx, r.db)

	failures, err := failuresJSON(cycle.Failures)
	if err != nil {
		return payroll.Cycle{}, fmt.Errorf("encode cycle failures: %w", err)
	}

	query := `
		INSERT INTO payroll_cycles (id, company_id, period_month, period_year, status, tax_rule_set_id, failures, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + cycleColumns

	created, err := scanCycle(q.QueryRow(ctx, query,
		uuid.Must(uuid.NewV7()).String(), cycle.CompanyID, cycle.PeriodMonth, cycle.PeriodYear,
		cycle.Status, cycle.TaxRuleSetID, failures, cycle.CreatedBy,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return payroll.Cycle{}, payroll.ErrCycleAlreadyExists
		}
		return payroll.Cycle{}, fmt.Errorf("failed to create payroll cycle: %w", err)
	}

	return created, nil
}

func (r *cycleRepository) GetByID(ctx context.Context, companyID, id string) (payroll.Cycle, error) {
	return r.get(ctx, companyID, id, "")
}

func (r *cycleRepository) GetByIDForUpdate(ctx context.Context, companyID, id string) (payroll.Cycle, error) {
	return r.get(ctx, companyID, id, "FOR UPDATE")
}

func (r *cycleRepository) get(ctx context.Context, companyID, id, lockClause string) (payroll.Cycle, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + cycleColumns + ` FROM payroll_cycles WHERE id = $1 AND company_id = $2 ` + lockClause

	cycle, err := scanCycle(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Cycle{}, payroll.ErrCycleNotFound
		}
		return payroll.Cycle{}, fmt.Errorf("failed to get payroll cycle: %w", err)
	}

	return cycle, nil
}

func (r *cycleRepository) List(ctx context.Context, companyID string, filter payroll.CycleFilter) ([]payroll.Cycle, int64, error) {
	q := GetQuerier(ctx, r.db)

	conditions := []string{"company_id = $1"}
	args := []interface{}{companyID}
	argIdx := 2

	if filter.PeriodYear != nil {
		conditions = append(conditions, fmt.Sprintf("period_year = $%d", argIdx))
		args = append(args, *filter.PeriodYear)
		argIdx++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM payroll_cycles WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll cycles: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM payroll_cycles WHERE %s
		ORDER BY period_year DESC, period_month DESC
		LIMIT $%d OFFSET $%d`, cycleColumns, where, argIdx, argIdx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll cycles: %w", err)
	}
	defer rows.Close()

	var cycles []payroll.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payroll cycles: %w", err)
	}

	return cycles, total, nil
}

func (r *cycleRepository) Update(ctx context.Context, cycle payroll.Cycle) error {
	q := GetQuerier(ctx, r.db)

	failures, err := failuresJSON(cycle.Failures)
	if err != nil {
		return fmt.Errorf("encode cycle failures: %w", err)
	}

	query := `
		UPDATE payroll_cycles SET
			status = $3, tax_rule_set_id = $4,
			total_gross = $5, total_commissions = $6, total_tips = $7,
			total_deductions = $8, total_deferred = $9, total_net_payable = $10,
			staff_count = $11, failures = $12, negative_balance_acknowledged = $13,
			approved_by = $14, paid_by = $15,
			processed_at = $16, approved_at = $17, paid_at = $18, locked_at = $19,
			updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`

	tag, err := q.Exec(ctx, query,
		cycle.ID, cycle.CompanyID, cycle.Status, cycle.TaxRuleSetID,
		cycle.TotalGross, cycle.TotalCommissions, cycle.TotalTips,
		cycle.TotalDeductions, cycle.TotalDeferred, cycle.TotalNetPayable,
		cycle.StaffCount, failures, cycle.NegativeBalanceAcknowledged,
		cycle.ApprovedBy, cycle.PaidBy,
		cycle.ProcessedAt, cycle.ApprovedAt, cycle.PaidAt, cycle.LockedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll cycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrCycleNotFound
	}

	return nil
}
