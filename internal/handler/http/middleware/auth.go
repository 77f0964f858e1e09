package middleware

import (
	"fmt"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

// AuthRequired lets through requests carrying a verified access token. Mount
// it after jwtauth.Verifier.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := verifiedAccess(r); err != nil {
			response.HandleError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func verifiedAccess(r *http.Request) error {
	token, claims, err := jwtauth.FromContext(r.Context())
	switch {
	case err != nil:
		return fmt.Errorf("%w: %w", jwt.ErrInvalidToken, err)
	case token == nil:
		return jwt.ErrInvalidToken
	}
	return jwt.CheckAccessClaims(claims)
}
