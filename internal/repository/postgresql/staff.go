package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type staffRepository struct {
	db *database.DB
}

func NewStaffRepository(db *database.DB) staff.StaffRepository {
	return &staffRepository{db: db}
}

const staffColumns = `
	s.id, s.company_id, s.employee_code, s.full_name, s.pay_type, s.monthly_salary,
	s.hourly_rate, s.hire_date, s.required_notice_days, s.employment_status,
	s.created_at, s.updated_at`

func scanProfile(row pgx.Row) (staff.Profile, error) {
	var p staff.Profile
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.EmployeeCode, &p.FullName, &p.PayType, &p.MonthlySalary,
		&p.HourlyRate, &p.HireDate, &p.RequiredNoticeDays, &p.EmploymentStatus,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *staffRepository) GetByID(ctx context.Context, companyID, id string) (staff.Profile, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + staffColumns + ` FROM staff s WHERE s.id = $1 AND s.company_id = $2`

	p, err := scanProfile(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return staff.Profile{}, staff.ErrStaffNotFound
		}
		return staff.Profile{}, fmt.Errorf("failed to get staff: %w", err)
	}

	return p, nil
}

func (r *staffRepository) ListPayable(ctx context.Context, companyID string, periodEnd time.Time) ([]staff.Profile, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + staffColumns + `
		FROM staff s
		WHERE s.company_id = $1
			AND s.hire_date < $2
			AND s.employment_status <> 'inactive'
			AND NOT EXISTS (
				SELECT 1 FROM exit_records x
				WHERE x.staff_id = s.id
					AND x.status IN ('calculated', 'approved', 'paid', 'completed')
			)
		ORDER BY s.employee_code
	`

	rows, err := q.Query(ctx, query, companyID, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list payable staff: %w", err)
	}
	defer rows.Close()

	var profiles []staff.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate staff: %w", err)
	}

	return profiles, nil
}

func (r *staffRepository) UpdateEmploymentStatus(ctx context.Context, companyID, id string, status staff.EmploymentStatus) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx,
		`UPDATE staff SET employment_status = $3, updated_at = NOW() WHERE id = $1 AND company_id = $2`,
		id, companyID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update employment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return staff.ErrStaffNotFound
	}

	return nil
}

func (r *staffRepository) ListCompanyIDs(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT DISTINCT company_id::text FROM staff WHERE employment_status <> 'inactive' ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan companies: %w", err)
	}

	return ids, nil
}
