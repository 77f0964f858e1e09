package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/settlement"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type exitRepository struct {
	db *database.DB
}

func NewExitRepository(db *database.DB) settlement.ExitRepository {
	return &exitRepository{db: db}
}

const exitColumns = `
	id, company_id, staff_id, exit_type, resignation_date, last_working_date,
	notice_waived, other_recoveries, notes, status, notice_served_days,
	notice_shortfall_days, breakdown, net_settlement, staff_owes_company,
	commission_entry_ids, negative_acknowledged, payment_reference,
	created_by, approved_by, calculated_at, approved_at, paid_at, completed_at,
	created_at, updated_at`

func scanExit(row pgx.Row) (settlement.ExitRecord, error) {
	var rec settlement.ExitRecord
	var breakdown []byte
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.StaffID, &rec.ExitType, &rec.ResignationDate, &rec.LastWorkingDate,
		&rec.NoticeWaived, &rec.OtherRecoveries, &rec.Notes, &rec.Status, &rec.NoticeServedDays,
		&rec.NoticeShortfallDays, &breakdown, &rec.NetSettlement, &rec.StaffOwesCompany,
		&rec.CommissionEntryIDs, &rec.NegativeAcknowledged, &rec.PaymentReference,
		&rec.CreatedBy, &rec.ApprovedBy, &rec.CalculatedAt, &rec.ApprovedAt, &rec.PaidAt, &rec.CompletedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return settlement.ExitRecord{}, err
	}
	if len(breakdown) > 0 {
		rec.Breakdown = &settlement.Breakdown{}
		if err := json.Unmarshal(breakdown, rec.Breakdown); err != nil {
			return settlement.ExitRecord{}, fmt.Errorf("decode settlement breakdown: %w", err)
		}
	}
	return rec, nil
}

func breakdownJSON(b *settlement.Breakdown) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

func (r *exitRepository) Create(ctx context.Context, rec settlement.ExitRecord) (settlement.ExitRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO exit_records (
			id, company_id, staff_id, exit_type, resignation_date, last_working_date,
			notice_waived, other_recoveries, notes, status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + exitColumns

	created, err := scanExit(q.QueryRow(ctx, query,
		uuid.Must(uuid.NewV7()).String(), rec.CompanyID, rec.StaffID, rec.ExitType, rec.ResignationDate, rec.LastWorkingDate,
		rec.NoticeWaived, rec.OtherRecoveries, rec.Notes, rec.Status, rec.CreatedBy,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return settlement.ExitRecord{}, settlement.ErrExitAlreadyExists
		}
		return settlement.ExitRecord{}, fmt.Errorf("failed to create exit record: %w", err)
	}

	return created, nil
}

func (r *exitRepository) GetByID(ctx context.Context, companyID, id string) (settlement.ExitRecord, error) {
	return r.get(ctx, `WHERE id = $1 AND company_id = $2`, id, companyID)
}

func (r *exitRepository) GetByIDForUpdate(ctx context.Context, companyID, id string) (settlement.ExitRecord, error) {
	return r.get(ctx, `WHERE id = $1 AND company_id = $2 FOR UPDATE`, id, companyID)
}

func (r *exitRepository) GetOpenByStaff(ctx context.Context, companyID, staffID string) (settlement.ExitRecord, error) {
	return r.get(ctx, `WHERE staff_id = $1 AND company_id = $2 AND status <> 'completed'`, staffID, companyID)
}

func (r *exitRepository) get(ctx context.Context, where string, args ...interface{}) (settlement.ExitRecord, error) {
	q := GetQuerier(ctx, r.db)

	rec, err := scanExit(q.QueryRow(ctx, `SELECT `+exitColumns+` FROM exit_records `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settlement.ExitRecord{}, settlement.ErrExitNotFound
		}
		return settlement.ExitRecord{}, fmt.Errorf("failed to get exit record: %w", err)
	}

	return rec, nil
}

func (r *exitRepository) ListByCompany(ctx context.Context, companyID string, status *string) ([]settlement.ExitRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + exitColumns + ` FROM exit_records WHERE company_id = $1`
	args := []interface{}{companyID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY last_working_date DESC, created_at DESC`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exit records: %w", err)
	}
	defer rows.Close()

	var records []settlement.ExitRecord
	for rows.Next() {
		rec, err := scanExit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exit records: %w", err)
	}

	return records, nil
}

func (r *exitRepository) Update(ctx context.Context, rec settlement.ExitRecord) error {
	q := GetQuerier(ctx, r.db)

	breakdown, err := breakdownJSON(rec.Breakdown)
	if err != nil {
		return fmt.Errorf("encode settlement breakdown: %w", err)
	}
	commissionIDs := rec.CommissionEntryIDs
	if commissionIDs == nil {
		commissionIDs = []string{}
	}

	query := `
		UPDATE exit_records SET
			status = $3, notice_served_days = $4, notice_shortfall_days = $5,
			breakdown = $6, net_settlement = $7, staff_owes_company = $8,
			commission_entry_ids = $9, negative_acknowledged = $10, payment_reference = $11,
			approved_by = $12, calculated_at = $13, approved_at = $14, paid_at = $15, completed_at = $16,
			updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`

	tag, err := q.Exec(ctx, query,
		rec.ID, rec.CompanyID, rec.Status, rec.NoticeServedDays, rec.NoticeShortfallDays,
		breakdown, rec.NetSettlement, rec.StaffOwesCompany,
		commissionIDs, rec.NegativeAcknowledged, rec.PaymentReference,
		rec.ApprovedBy, rec.CalculatedAt, rec.ApprovedAt, rec.PaidAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update exit record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return settlement.ErrExitNotFound
	}

	return nil
}
