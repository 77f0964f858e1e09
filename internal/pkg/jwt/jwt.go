package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenTypeAccess is the "type" claim the API accepts.
const TokenTypeAccess = "access"

var (
	ErrInvalidToken    = errors.New("invalid or missing access token")
	ErrCompanyRequired = errors.New("company_id claim is missing or invalid")
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// CanManagePayroll reports whether the role may run payroll and settlements.
func (r Role) CanManagePayroll() bool {
	return r == RoleOwner || r == RoleManager
}

type Service interface {
	GenerateAccessToken(userID, companyID string, role Role) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenTTL time.Duration
	tokenAuth      *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenTTL time.Duration) Service {
	return &JWTService{
		accessTokenTTL: accessTokenTTL,
		tokenAuth:      jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

// GenerateAccessToken issues a token with the claims the payroll API reads.
// Tokens are normally minted by the HRIS auth service sharing the secret.
func (j *JWTService) GenerateAccessToken(userID, companyID string, role Role) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(j.accessTokenTTL).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    userID,
		"company_id": companyID,
		"role":       string(role),
		"type":       TokenTypeAccess,
		"exp":        expiresAt,
	})
	return tokenString, expiresAt, err
}

// CheckAccessClaims rejects claims of refresh or other non-access tokens.
func CheckAccessClaims(claims map[string]interface{}) error {
	tokenType, _ := claims["type"].(string)
	if tokenType != TokenTypeAccess {
		return fmt.Errorf("%w: token type %q", ErrInvalidToken, tokenType)
	}
	return nil
}
