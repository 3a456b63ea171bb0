package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pizza-service/internal/apperr"
	"github.com/iliyamo/pizza-service/internal/metrics"
	"github.com/iliyamo/pizza-service/internal/middleware"
	"github.com/iliyamo/pizza-service/internal/model"
	"github.com/iliyamo/pizza-service/internal/repository"
	"github.com/iliyamo/pizza-service/internal/utils"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	Users    UserStore
	Sessions Sessions
}

func NewAuthHandler(users UserStore, sessions Sessions) *AuthHandler {
	return &AuthHandler{Users: users, Sessions: sessions}
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a diner account and returns it with a fresh session.
func (h *AuthHandler) Register(c echo.Context) error {
	const required = "name, email, and password are required"
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(required)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		metrics.LoginsTotal.WithLabelValues("register", "invalid").Inc()
		return apperr.Validation(required)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, model.Roles{{Role: model.RoleDiner}})
	if errors.Is(err, repository.ErrEmailExists) {
		metrics.LoginsTotal.WithLabelValues("register", "conflict").Inc()
		return apperr.Conflict("email already exists")
	}
	if err != nil {
		return apperr.Internal("create user failed", err)
	}
	return h.respondWithSession(ctx, c, "register", u)
}

// Login verifies credentials and returns the user with a new session.
// Earlier sessions of the same user stay valid.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("email and password are required")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperr.Validation("email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperr.Internal("query user failed", err)
	}
	if err != nil || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		metrics.LoginsTotal.WithLabelValues("login", "failure").Inc()
		return apperr.NotFound("unknown user")
	}
	return h.respondWithSession(ctx, c, "login", u)
}

// Logout revokes the token that authenticated this request.  Other
// sessions of the user are untouched.
func (h *AuthHandler) Logout(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return apperr.Unauthorized()
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, id.Token); err != nil {
		return apperr.Internal("logout failed", err)
	}
	metrics.LogoutsTotal.Inc()
	return c.JSON(http.StatusOK, messageResp{Message: "logout successful"})
}

func (h *AuthHandler) respondWithSession(ctx context.Context, c echo.Context, kind string, u model.User) error {
	token, err := h.Sessions.Issue(ctx, u)
	if err != nil {
		return apperr.Internal("issue session failed", err)
	}
	metrics.LoginsTotal.WithLabelValues(kind, "success").Inc()
	return c.JSON(http.StatusOK, authResp{User: u, Token: token})
}
