// Package tokentest signs access tokens the way the identity provider does, for tests.
package tokentest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SscSPs/takas_swap_engine/internal/utils"
)

// Sign issues an HS256 access token for userID. An empty role issues a regular user token.
func Sign(userID, role, secret, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := utils.AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
