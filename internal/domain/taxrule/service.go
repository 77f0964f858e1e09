package taxrule

import (
	"context"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRuleSetRequest) (RuleSetResponse, error)
	Get(ctx context.Context, companyID, id string) (RuleSetResponse, error)
	List(ctx context.Context, companyID string) ([]RuleSetResponse, error)
	// Load fetches a rule set and validates it before use.
	Load(ctx context.Context, companyID, id string) (RuleSet, error)
	// LoadEffective is Load for the newest rule set effective on asOf.
	LoadEffective(ctx context.Context, companyID string, asOf time.Time) (RuleSet, error)
}
