package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSubject is returned for a well-signed token that names no user.
var ErrMissingSubject = errors.New("token has no subject")

// AccessClaims are the claims of an access token issued by the identity provider.
type AccessClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParseAccessToken parses a token string and validates its signature and standard claims.
// When issuer is not empty the iss claim must match it.
func ParseAccessToken(tokenString, secret, issuer string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err // expired, bad signature, wrong issuer...
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
