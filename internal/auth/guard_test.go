package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pizza-service/internal/model"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc.def.ghi", "", false},
		{"Bearer a b", "", false},
	}
	for _, tc := range cases {
		got, ok := BearerToken(tc.header)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.want, got, tc.header)
	}
}

func TestHasRole(t *testing.T) {
	id := &Identity{Roles: model.Roles{{Role: model.RoleDiner}, {Role: model.RoleFranchisee, ObjectID: 2}}}
	assert.True(t, HasRole(id, model.RoleDiner))
	assert.True(t, HasRole(id, model.RoleFranchisee))
	assert.False(t, HasRole(id, model.RoleAdmin))
	assert.False(t, HasRole(nil, model.RoleDiner))
}

func TestGuard_Authenticate(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	a := NewAuthority(cfg, NewMemoryStore())
	g := NewGuard(cfg, a)

	tok, err := a.Issue(ctx, testUser())
	require.NoError(t, err)

	id, err := g.Authenticate(ctx, "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id.ID)
	assert.Equal(t, "pizza diner", id.Name)
	assert.Equal(t, tok, id.Token)
	assert.True(t, HasRole(id, model.RoleDiner))

	_, err = g.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = g.Authenticate(ctx, "Bearer garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, a.Revoke(ctx, tok))
	_, err = g.Authenticate(ctx, "Bearer "+tok)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestGuard_RejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cfg := testConfig()
	g := NewGuard(cfg, NewAuthority(cfg, store))

	other := testConfig()
	other.JWTSecret = "someone-else"
	forged, err := NewAuthority(other, store).Issue(ctx, testUser())
	require.NoError(t, err)

	// live in the store, but not signed by us
	_, err = g.Authenticate(ctx, "Bearer "+forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGuard_RejectsExpiredAndUnsignedTokens(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store := NewMemoryStore()
	a := NewAuthority(cfg, store)
	g := NewGuard(cfg, a)

	tok, err := a.Issue(ctx, testUser())
	require.NoError(t, err)
	g.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = g.Authenticate(ctx, "Bearer "+tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	g.now = time.Now
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: 3,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, raw, 3, time.Now().Add(time.Hour)))
	_, err = g.Authenticate(ctx, "Bearer "+raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
