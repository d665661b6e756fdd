package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// ScopeAdmin is the only scope this service issues. Admin tokens guard the
// operator endpoints (refresh, repair, store inspection); the read-only
// metrics surface is unauthenticated.
const ScopeAdmin = "admin"

// Claims are the only supported JWT claims shape for this service.
type Claims struct {
	jwt.RegisteredClaims

	Operator  string    `json:"operator"`
	Scope     string    `json:"scope"`
	TokenType TokenType `json:"token_type"`
}
