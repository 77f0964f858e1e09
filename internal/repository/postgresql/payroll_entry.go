package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/lifecycle"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type entryRepository struct {
	db *database.DB
}

func NewEntryRepository(db *database.DB) payroll.EntryRepository {
	return &entryRepository{db: db}
}

const entryColumns = `
	pe.id, pe.cycle_id, pe.company_id, pe.staff_id, pe.period_month, pe.period_year,
	pe.earnings, pe.gross_earnings, pe.deductions, pe.total_deductions, pe.net_pay,
	pe.deferred_deduction, pe.negative_balance, pe.settled, pe.settled_at,
	pe.payment_reference, pe.created_at, s.full_name, s.employee_code`

// statuses whose entries are final enough to carry deferred deductions forward
var processedCycleStatuses = []string{
	string(lifecycle.StatusPendingApproval),
	string(lifecycle.StatusApproved),
	string(lifecycle.StatusPaid),
	string(lifecycle.StatusLocked),
}

func scanEntry(row pgx.Row) (payroll.Entry, error) {
	var e payroll.Entry
	var earnings, deductions []byte
	err := row.Scan(
		&e.ID, &e.CycleID, &e.CompanyID, &e.StaffID, &e.PeriodMonth, &e.PeriodYear,
		&earnings, &e.GrossEarnings, &deductions, &e.TotalDeductions, &e.NetPay,
		&e.DeferredDeduction, &e.NegativeBalance, &e.Settled, &e.SettledAt,
		&e.PaymentReference, &e.CreatedAt, &e.StaffName, &e.EmployeeCode,
	)
	if err != nil {
		return payroll.Entry{}, err
	}
	if err := json.Unmarshal(earnings, &e.Earnings); err != nil {
		return payroll.Entry{}, fmt.Errorf("decode entry earnings: %w", err)
	}
	if err := json.Unmarshal(deductions, &e.Deductions); err != nil {
		return payroll.Entry{}, fmt.Errorf("decode entry deductions: %w", err)
	}
	return e, nil
}

func (r *entryRepository) ReplaceForCycle(ctx context.Context, companyID, cycleID string, entries []payroll.Entry) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM payroll_entries WHERE cycle_id = $1 AND company_id = $2`, cycleID, companyID); err != nil {
		return fmt.Errorf("failed to clear payroll entries: %w", err)
	}

	query := `
		INSERT INTO payroll_entries (
			id, cycle_id, company_id, staff_id, period_month, period_year,
			earnings, gross_earnings, deductions, total_deductions, net_pay,
			deferred_deduction, negative_balance, commission_entry_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for _, e := range entries {
		earnings, err := json.Marshal(e.Earnings)
		if err != nil {
			return fmt.Errorf("encode earnings for staff %s: %w", e.StaffID, err)
		}
		deductions, err := json.Marshal(e.Deductions)
		if err != nil {
			return fmt.Errorf("encode deductions for staff %s: %w", e.StaffID, err)
		}
		commissionIDs := e.Earnings.CommissionEntryIDs
		if commissionIDs == nil {
			commissionIDs = []string{}
		}

		_, err = q.Exec(ctx, query,
			uuid.Must(uuid.NewV7()).String(), cycleID, companyID, e.StaffID, e.PeriodMonth, e.PeriodYear,
			earnings, e.GrossEarnings, deductions, e.TotalDeductions, e.NetPay,
			e.DeferredDeduction, e.NegativeBalance, commissionIDs,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payroll entry for staff %s: %w", e.StaffID, err)
		}
	}

	return nil
}

func (r *entryRepository) ListByCycle(ctx context.Context, companyID, cycleID string) ([]payroll.Entry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + entryColumns + `
		FROM payroll_entries pe
		JOIN staff s ON pe.staff_id = s.id
		WHERE pe.cycle_id = $1 AND pe.company_id = $2
		ORDER BY s.employee_code
	`

	rows, err := q.Query(ctx, query, cycleID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll entries: %w", err)
	}
	defer rows.Close()

	var entries []payroll.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll entries: %w", err)
	}

	return entries, nil
}

func (r *entryRepository) MarkSettled(ctx context.Context, companyID, cycleID string, entryIDs []string, reference string, at time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_entries
		SET settled = TRUE, settled_at = $4, payment_reference = $5
		WHERE cycle_id = $1 AND company_id = $2 AND id = ANY($3) AND settled = FALSE
	`

	tag, err := q.Exec(ctx, query, cycleID, companyID, entryIDs, at, reference)
	if err != nil {
		return 0, fmt.Errorf("failed to settle payroll entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *entryRepository) GetLatestForStaff(ctx context.Context, companyID, staffID string, beforeYear, beforeMonth int) (payroll.Entry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + entryColumns + `
		FROM payroll_entries pe
		JOIN payroll_cycles pc ON pe.cycle_id = pc.id
		JOIN staff s ON pe.staff_id = s.id
		WHERE pe.company_id = $1 AND pe.staff_id = $2
			AND pc.status = ANY($3)
			AND pe.period_year * 12 + pe.period_month < $4
		ORDER BY pe.period_year DESC, pe.period_month DESC
		LIMIT 1
	`

	e, err := scanEntry(q.QueryRow(ctx, query, companyID, staffID, processedCycleStatuses, beforeYear*12+beforeMonth))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Entry{}, payroll.ErrEntryNotFound
		}
		return payroll.Entry{}, fmt.Errorf("failed to get latest payroll entry: %w", err)
	}

	return e, nil
}

func (r *entryRepository) ListClaimedCommissionIDs(ctx context.Context, companyID, staffID string) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT DISTINCT unnest(pe.commission_entry_ids)
		FROM payroll_entries pe
		JOIN payroll_cycles pc ON pe.cycle_id = pc.id
		WHERE pe.company_id = $1 AND pe.staff_id = $2
			AND pc.status IN ('pending_approval', 'approved')
	`

	rows, err := q.Query(ctx, query, companyID, staffID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claimed commissions: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan claimed commissions: %w", err)
	}

	return ids, nil
}

func (r *entryRepository) SumPendingAdvanceRecovery(ctx context.Context, companyID, staffID string) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COALESCE(SUM((pe.deductions->>'advance_recovery')::bigint), 0)
		FROM payroll_entries pe
		JOIN payroll_cycles pc ON pe.cycle_id = pc.id
		WHERE pe.company_id = $1 AND pe.staff_id = $2
			AND pc.status IN ('pending_approval', 'approved')
	`

	var total int64
	if err := q.QueryRow(ctx, query, companyID, staffID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum pending advance recovery: %w", err)
	}
	return total, nil
}
