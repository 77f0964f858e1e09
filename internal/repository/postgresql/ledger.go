package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ========== ATTENDANCE ==========

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) payroll.AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) GetSummary(ctx context.Context, companyID, staffID string, from, to time.Time) (payroll.AttendanceSummary, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(days_present), 0), COALESCE(SUM(unpaid_leave_days), 0),
			COALESCE(SUM(minutes_worked), 0), COALESCE(SUM(overtime_minutes), 0)
		FROM attendance_summaries
		WHERE company_id = $1 AND staff_id = $2 AND period_start >= $3 AND period_start < $4
	`

	var rows int64
	sum := payroll.AttendanceSummary{StaffID: staffID}
	err := q.QueryRow(ctx, query, companyID, staffID, from, to).Scan(
		&rows, &sum.DaysPresent, &sum.UnpaidLeaveDays, &sum.MinutesWorked, &sum.OvertimeMinutes,
	)
	if err != nil {
		return payroll.AttendanceSummary{}, fmt.Errorf("failed to get attendance summary: %w", err)
	}
	if rows == 0 {
		return payroll.AttendanceSummary{}, payroll.ErrAttendanceNotFound
	}

	return sum, nil
}

func (r *attendanceRepository) GetLeaveBalance(ctx context.Context, companyID, staffID string, asOf time.Time) (payroll.LeaveBalance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT accrued_days, used_days
		FROM leave_balances
		WHERE company_id = $1 AND staff_id = $2 AND as_of <= $3
		ORDER BY as_of DESC
		LIMIT 1
	`

	b := payroll.LeaveBalance{StaffID: staffID}
	err := q.QueryRow(ctx, query, companyID, staffID, asOf).Scan(&b.AccruedDays, &b.UsedDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.LeaveBalance{}, payroll.ErrAttendanceNotFound
		}
		return payroll.LeaveBalance{}, fmt.Errorf("failed to get leave balance: %w", err)
	}

	return b, nil
}

// ========== COMMISSIONS ==========

type commissionRepository struct {
	db *database.DB
}

func NewCommissionRepository(db *database.DB) payroll.CommissionRepository {
	return &commissionRepository{db: db}
}

func (r *commissionRepository) ListEarned(ctx context.Context, companyID, staffID string, from, to time.Time) ([]payroll.CommissionEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, staff_id, service_amount, rate, amount, completed_at, status, paid_at
		FROM commission_entries
		WHERE company_id = $1 AND staff_id = $2 AND status = 'earned'
			AND completed_at >= $3 AND completed_at < $4
		ORDER BY completed_at
	`

	rows, err := q.Query(ctx, query, companyID, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	defer rows.Close()

	var entries []payroll.CommissionEntry
	for rows.Next() {
		var c payroll.CommissionEntry
		if err := rows.Scan(
			&c.ID, &c.CompanyID, &c.StaffID, &c.ServiceAmount, &c.Rate, &c.Amount, &c.CompletedAt, &c.Status, &c.PaidAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan commission: %w", err)
		}
		entries = append(entries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commissions: %w", err)
	}

	return entries, nil
}

// MarkPaid only touches earned rows, so repeating it is harmless.
func (r *commissionRepository) MarkPaid(ctx context.Context, companyID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE commission_entries SET status = 'paid', paid_at = $3
		WHERE company_id = $1 AND id = ANY($2) AND status = 'earned'
	`, companyID, ids, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark commissions paid: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ========== TIPS ==========

type tipRepository struct {
	db *database.DB
}

func NewTipRepository(db *database.DB) payroll.TipRepository {
	return &tipRepository{db: db}
}

func (r *tipRepository) ListReceived(ctx context.Context, companyID, staffID string, from, to time.Time) ([]payroll.Tip, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, staff_id, amount, received_at
		FROM tips
		WHERE company_id = $1 AND staff_id = $2 AND received_at >= $3 AND received_at < $4
		ORDER BY received_at
	`

	rows, err := q.Query(ctx, query, companyID, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list tips: %w", err)
	}
	defer rows.Close()

	var tips []payroll.Tip
	for rows.Next() {
		var t payroll.Tip
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.StaffID, &t.Amount, &t.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tip: %w", err)
		}
		tips = append(tips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tips: %w", err)
	}

	return tips, nil
}

// ========== ADVANCES ==========

type advanceRepository struct {
	db *database.DB
}

func NewAdvanceRepository(db *database.DB) payroll.AdvanceRepository {
	return &advanceRepository{db: db}
}

func (r *advanceRepository) GetOutstanding(ctx context.Context, companyID, staffID string) (payroll.AdvanceBalance, error) {
	q := GetQuerier(ctx, r.db)

	b := payroll.AdvanceBalance{StaffID: staffID}
	err := q.QueryRow(ctx,
		`SELECT outstanding, installment FROM staff_advances WHERE company_id = $1 AND staff_id = $2`,
		companyID, staffID,
	).Scan(&b.Outstanding, &b.Installment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return b, nil
		}
		return payroll.AdvanceBalance{}, fmt.Errorf("failed to get advance balance: %w", err)
	}

	return b, nil
}

// RecordRecovery is keyed by reference; a second call with the same reference
// leaves the balance untouched.
func (r *advanceRepository) RecordRecovery(ctx context.Context, companyID, staffID string, amount int64, reference string) error {
	if amount <= 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		WITH recovery AS (
			INSERT INTO advance_recoveries (id, company_id, staff_id, amount, reference)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT ON CONSTRAINT uk_advance_recovery_reference DO NOTHING
			RETURNING amount
		)
		UPDATE staff_advances
		SET outstanding = GREATEST(outstanding - (SELECT amount FROM recovery), 0), updated_at = NOW()
		WHERE company_id = $2 AND staff_id = $3 AND EXISTS (SELECT 1 FROM recovery)
	`

	if _, err := q.Exec(ctx, query, uuid.Must(uuid.NewV7()).String(), companyID, staffID, amount, reference); err != nil {
		return fmt.Errorf("failed to record advance recovery: %w", err)
	}

	return nil
}
