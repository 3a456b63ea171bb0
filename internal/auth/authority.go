// Package auth issues, verifies and revokes session tokens.  The
// Authority signs tokens and owns their liveness records; the Guard turns
// an Authorization header into an Identity for the request.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/pizza-service/internal/config"
	"github.com/iliyamo/pizza-service/internal/model"
)

// Authority issues session tokens and tracks which of them are live.
type Authority struct {
	secret []byte
	ttl    time.Duration
	store  LivenessStore
	now    func() time.Time
}

// NewAuthority builds an Authority signing with cfg.JWTSecret and
// recording sessions in store.
func NewAuthority(cfg config.Config, store LivenessStore) *Authority {
	return &Authority{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		store:  store,
		now:    time.Now,
	}
}

// Issue signs a token for a user whose credentials were already
// verified and marks it live.  Every call yields a distinct token, so a
// user may hold several independently revocable sessions.
func (a *Authority) Issue(ctx context.Context, u model.User) (string, error) {
	now := a.now().UTC()
	exp := now.Add(a.ttl)
	roles := u.Roles
	if roles == nil {
		roles = model.Roles{}
	}
	token, err := signToken(a.secret, Claims{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	if err != nil {
		return "", err
	}
	if err := a.store.Put(ctx, token, u.ID, exp); err != nil {
		return "", fmt.Errorf("record session: %w", err)
	}
	return token, nil
}

// Revoke drops the liveness record of token.  Revoking an unknown or
// already revoked token succeeds.
func (a *Authority) Revoke(ctx context.Context, token string) error {
	if err := a.store.Remove(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeUser drops every live session of userID.
func (a *Authority) RevokeUser(ctx context.Context, userID uint64) error {
	if err := a.store.RemoveUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

// Verify reports whether token is live.  It does not check the
// signature; the Guard does that first.
func (a *Authority) Verify(ctx context.Context, token string) (bool, error) {
	return a.store.Exists(ctx, token)
}
