package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/pizza-service/internal/apperr"
	"github.com/iliyamo/pizza-service/internal/auth"
	"github.com/iliyamo/pizza-service/internal/config"
	"github.com/iliyamo/pizza-service/internal/model"
)

func newGuard(t *testing.T) (*auth.Authority, *auth.Guard) {
	t.Helper()
	cfg := config.Config{JWTSecret: "mw-secret", TokenTTL: time.Hour}
	a := auth.NewAuthority(cfg, auth.NewMemoryStore())
	return a, auth.NewGuard(cfg, a)
}

func newEcho(t *testing.T) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zaptest.NewLogger(t))
	return e
}

func do(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	id := IdentityFrom(c)
	if id == nil {
		return c.String(http.StatusOK, "anon")
	}
	return c.String(http.StatusOK, id.Email)
}

func TestAuthenticate_AttachesIdentityOrStaysAnonymous(t *testing.T) {
	a, g := newGuard(t)
	e := newEcho(t)
	e.Use(Authenticate(g, zaptest.NewLogger(t)))
	e.GET("/who", whoami)

	tok, err := a.Issue(context.Background(), model.User{ID: 1, Email: "a@jwt.com"})
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/who", tok)
	assert.Equal(t, "a@jwt.com", rec.Body.String())

	rec = do(e, http.MethodGet, "/who", "")
	assert.Equal(t, "anon", rec.Body.String())

	rec = do(e, http.MethodGet, "/who", "not-a-jwt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anon", rec.Body.String())

	require.NoError(t, a.Revoke(context.Background(), tok))
	rec = do(e, http.MethodGet, "/who", tok)
	assert.Equal(t, "anon", rec.Body.String())
}

func TestRequireAuthAndRole(t *testing.T) {
	a, g := newGuard(t)
	e := newEcho(t)
	e.Use(Authenticate(g, zaptest.NewLogger(t)))
	e.GET("/me", whoami, RequireAuth())
	e.GET("/admin", whoami, RequireRole(model.RoleAdmin, "admins only"))

	ctx := context.Background()
	diner, _ := a.Issue(ctx, model.User{ID: 1, Email: "d@jwt.com", Roles: model.Roles{{Role: model.RoleDiner}}})
	admin, _ := a.Issue(ctx, model.User{ID: 2, Email: "a@jwt.com", Roles: model.Roles{{Role: model.RoleAdmin}}})

	rec := do(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"unauthorized"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/me", diner)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodGet, "/admin", diner)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"admins only"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/admin", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@jwt.com", rec.Body.String())
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestResponseCache_HitMissAndInvalidate(t *testing.T) {
	rdb, _ := newRedis(t)
	log := zaptest.NewLogger(t)
	cfg := config.CacheConfig{
		Enabled: true,
		Methods: map[string]bool{http.MethodGet: true},
		TTL:     time.Minute,
		Prefix:  "cache",
	}
	calls := 0
	menu := "v1"
	e := newEcho(t)
	e.GET("/menu", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, menu)
	}, NewResponseCache(cfg, rdb, log))
	e.PUT("/menu", func(c echo.Context) error {
		menu = "v2"
		return c.NoContent(http.StatusOK)
	}, InvalidateCache(cfg, rdb, log))

	rec := do(e, http.MethodGet, "/menu", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = do(e, http.MethodGet, "/menu", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "v1", rec.Body.String())
	assert.Equal(t, 1, calls)

	do(e, http.MethodPut, "/menu", "")
	rec = do(e, http.MethodGet, "/menu", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "v2", rec.Body.String())
	assert.Equal(t, 2, calls)
}

func TestResponseCache_DisabledPassesThrough(t *testing.T) {
	e := newEcho(t)
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "x") },
		NewResponseCache(config.CacheConfig{}, nil, zaptest.NewLogger(t)))
	rec := do(e, http.MethodGet, "/x", "")
	assert.Equal(t, "x", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestTokenBucket_Blocks(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := newEcho(t)
	e.Use(NewTokenBucket(cfg, rdb, zaptest.NewLogger(t)))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", "").Code)
	rec := do(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/auth", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/auth")

	cases := map[string]string{
		"ip":       "rl:ip:10.0.0.7",
		"ip_route": "rl:ip:10.0.0.7:route:PUT /api/auth",
		"user":     "rl:user:anon",
		"bogus":    "rl:ip:10.0.0.7:user:anon:route:PUT /api/auth",
	}
	for strategy, want := range cases {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		assert.Equal(t, want, got, strategy)
	}

	SetIdentity(c, &auth.Identity{ID: 42})
	assert.Equal(t, "rl:user:42", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}
