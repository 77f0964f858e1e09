package taxrule

import (
	"context"
	"time"
)

type RuleSetRepository interface {
	Create(ctx context.Context, rs RuleSet) (RuleSet, error)
	GetByID(ctx context.Context, companyID, id string) (RuleSet, error)
	// GetEffective returns the newest rule set effective on or before asOf.
	GetEffective(ctx context.Context, companyID string, asOf time.Time) (RuleSet, error)
	ListByCompany(ctx context.Context, companyID string) ([]RuleSet, error)
}
