// Package token issues signed JWT access tokens.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const accessTokenType = "access"

// SignAccessToken builds an HS256 access token carrying the user's role and,
// for agents, their commune. The middleware validates the claim shape.
func SignAccessToken(userID uuid.UUID, role string, communeID uuid.UUID, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"type": accessTokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if communeID != uuid.Nil {
		claims["commune_id"] = communeID.String()
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(secret))
}
