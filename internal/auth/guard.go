package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/pizza-service/internal/config"
	"github.com/iliyamo/pizza-service/internal/model"
)

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token is not live")
)

// Identity is the authenticated caller of one request.  Token is the raw
// bearer token it was derived from, kept for logout.
type Identity struct {
	ID    uint64      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Roles model.Roles `json:"roles"`
	Token string      `json:"-"`
}

// HasRole reports whether id holds role.  A nil identity holds no roles.
func HasRole(id *Identity, role model.Role) bool {
	return id != nil && id.Roles.Has(role)
}

// User returns the identity as a user record for responses.
func (id *Identity) User() model.User {
	roles := id.Roles
	if roles == nil {
		roles = model.Roles{}
	}
	return model.User{ID: id.ID, Name: id.Name, Email: id.Email, Roles: roles}
}

// Guard authenticates requests from their Authorization header.
type Guard struct {
	secret    []byte
	authority *Authority
	now       func() time.Time
}

// NewGuard builds a Guard verifying signatures with cfg.JWTSecret and
// liveness through authority.
func NewGuard(cfg config.Config, authority *Authority) *Guard {
	return &Guard{secret: []byte(cfg.JWTSecret), authority: authority, now: time.Now}
}

// BearerToken extracts the token from a "Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// Authenticate resolves header to an Identity.  Any error means the
// request is anonymous; callers decide whether that is acceptable.
// ErrNoToken, ErrInvalidToken and ErrTokenRevoked are the expected
// rejections, anything else is a liveness store failure.
func (g *Guard) Authenticate(ctx context.Context, header string) (*Identity, error) {
	raw, ok := BearerToken(header)
	if !ok {
		return nil, ErrNoToken
	}
	claims, err := parseToken(g.secret, raw, g.now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	live, err := g.authority.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !live {
		return nil, ErrTokenRevoked
	}
	return claims.Identity(raw), nil
}
