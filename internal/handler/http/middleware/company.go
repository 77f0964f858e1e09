package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

var ErrCompanyIDRequired = jwt.ErrCompanyRequired

// Actor is the authenticated caller, read from the access token claims.
type Actor struct {
	UserID    string
	CompanyID string
	Role      jwt.Role
}

type actorKey struct{}

// ActorFromContext returns the caller stored by RequireCompany.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequireCompany rejects tokens without a company and stores the Actor.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.HandleError(w, fmt.Errorf("%w: %w", jwt.ErrInvalidToken, err))
			return
		}

		companyID, ok := claims["company_id"].(string)
		if !ok || companyID == "" {
			response.HandleError(w, ErrCompanyIDRequired)
			return
		}

		userID, _ := claims["user_id"].(string)
		role, _ := claims["role"].(string)

		ctx := WithActor(r.Context(), Actor{UserID: userID, CompanyID: companyID, Role: jwt.Role(role)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
