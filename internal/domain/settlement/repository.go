package settlement

import "context"

type ExitRepository interface {
	Create(ctx context.Context, rec ExitRecord) (ExitRecord, error)
	GetByID(ctx context.Context, companyID, id string) (ExitRecord, error)
	GetByIDForUpdate(ctx context.Context, companyID, id string) (ExitRecord, error)
	// GetOpenByStaff returns the staff member's exit not yet completed.
	GetOpenByStaff(ctx context.Context, companyID, staffID string) (ExitRecord, error)
	ListByCompany(ctx context.Context, companyID string, status *string) ([]ExitRecord, error)
	Update(ctx context.Context, rec ExitRecord) error
}
