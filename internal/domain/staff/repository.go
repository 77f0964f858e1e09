package staff

import (
	"context"
	"time"
)

// StaffRepository reads compensation profiles. All methods are scoped by
// companyID.
type StaffRepository interface {
	GetByID(ctx context.Context, companyID, id string) (Profile, error)
	// ListPayable returns staff hired before periodEnd who are not already
	// covered by a calculated exit settlement.
	ListPayable(ctx context.Context, companyID string, periodEnd time.Time) ([]Profile, error)
	UpdateEmploymentStatus(ctx context.Context, companyID, id string, status EmploymentStatus) error
	ListCompanyIDs(ctx context.Context) ([]string, error)
}
