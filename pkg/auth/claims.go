package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

// AccessTokenClaims is the identity issued by the upstream auth service.
type AccessTokenClaims struct {
	UserID       uuid.UUID       `json:"user_id"`
	Role         enums.UserRole  `json:"role"`
	CustomerType enums.PriceType `json:"customer_type,omitempty"`
	jwt.RegisteredClaims
}
