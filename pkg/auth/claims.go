package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/billforge/billforge-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	AdminID  uuid.UUID
	TenantID uuid.UUID
	Role     enums.AdminRole
}

// AccessTokenClaims represents the typed JWT issued to dashboard clients.
type AccessTokenClaims struct {
	AdminID  uuid.UUID       `json:"admin_id"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Role     enums.AdminRole `json:"role"`
	jwt.RegisteredClaims
}
