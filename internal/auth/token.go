package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/pizza-service/internal/model"
)

// Claims is the payload of a session token.  It carries enough of the
// user to rebuild an Identity without a database lookup.  The embedded
// registered claims supply iat, exp and jti.
type Claims struct {
	UserID uint64      `json:"id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Roles  model.Roles `json:"roles"`
	jwt.RegisteredClaims
}

// Identity returns the per-request view of the claims.
func (c *Claims) Identity(raw string) *Identity {
	return &Identity{
		ID:    c.UserID,
		Name:  c.Name,
		Email: c.Email,
		Roles: c.Roles,
		Token: raw,
	}
}

// signToken serializes claims as an HS256 JWT: three dot-separated
// base64url segments.
func signToken(secret []byte, claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseToken checks the signature, algorithm and expiry of raw and
// returns its claims.  It says nothing about liveness.
func parseToken(secret []byte, raw string, now func() time.Time) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, err
	}
	if !tok.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("token carries no user")
	}
	return claims, nil
}
