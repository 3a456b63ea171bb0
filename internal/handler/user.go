package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pizza-service/internal/apperr"
	"github.com/iliyamo/pizza-service/internal/auth"
	"github.com/iliyamo/pizza-service/internal/middleware"
	"github.com/iliyamo/pizza-service/internal/model"
	"github.com/iliyamo/pizza-service/internal/repository"
)

// UserHandler serves the /api/user endpoints.
type UserHandler struct {
	Users    UserStore
	Sessions Sessions
}

func NewUserHandler(users UserStore, sessions Sessions) *UserHandler {
	return &UserHandler{Users: users, Sessions: sessions}
}

type updateUserReq struct {
	Name     *string      `json:"name"`
	Email    *string      `json:"email"`
	Password *string      `json:"password"`
	Roles    *model.Roles `json:"roles"`
}

type listUsersResp struct {
	Users []model.User `json:"users"`
	More  bool         `json:"more"`
}

// Me returns the authenticated caller.
func (h *UserHandler) Me(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return apperr.Unauthorized()
	}
	return c.JSON(http.StatusOK, id.User())
}

// Update changes a user's profile.  Callers may update themselves;
// admins may update anyone and are the only ones whose roles field is
// honoured.  The response carries a fresh token for the updated user.
func (h *UserHandler) Update(c echo.Context) error {
	caller := middleware.IdentityFrom(c)
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	admin := auth.HasRole(caller, model.RoleAdmin)
	if caller == nil || (caller.ID != userID && !admin) {
		return apperr.Forbidden("unauthorized")
	}

	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	for _, f := range []*string{req.Name, req.Email} {
		if f == nil {
			continue
		}
		if *f = strings.TrimSpace(*f); *f == "" {
			return apperr.Validation("name and email cannot be empty")
		}
	}
	if req.Password != nil && *req.Password == "" {
		req.Password = nil
	}
	upd := repository.UserUpdate{Name: req.Name, Email: req.Email, Password: req.Password}
	if admin && req.Roles != nil {
		for _, m := range *req.Roles {
			if !m.Role.Valid() {
				return apperr.Validation("unknown role " + string(m.Role))
			}
		}
		upd.Roles = req.Roles
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	var before model.User
	if upd.Roles != nil {
		if before, err = h.Users.GetByID(ctx, userID); errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("user not found")
		} else if err != nil {
			return apperr.Internal("load user failed", err)
		}
	}

	u, err := h.Users.Update(ctx, userID, upd)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, repository.ErrEmailExists):
		return apperr.Conflict("email already exists")
	case err != nil:
		return apperr.Internal("update user failed", err)
	}
	// Existing tokens carry the old roles in their claims.
	if upd.Roles != nil && !sameRoles(before.Roles, u.Roles) {
		if err := h.Sessions.RevokeUser(ctx, userID); err != nil {
			return apperr.Internal("revoke user sessions failed", err)
		}
	}
	token, err := h.Sessions.Issue(ctx, u)
	if err != nil {
		return apperr.Internal("issue session failed", err)
	}
	return c.JSON(http.StatusOK, authResp{User: u, Token: token})
}

// List returns one page of users.  Admin only; the router enforces it.
func (h *UserHandler) List(c echo.Context) error {
	page, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, more, err := h.Users.List(ctx, page, limit, c.QueryParam("name"))
	if err != nil {
		return apperr.Internal("list users failed", err)
	}
	return c.JSON(http.StatusOK, listUsersResp{Users: users, More: more})
}

// Delete removes a user and revokes every session it holds.  Admin only.
func (h *UserHandler) Delete(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("delete user failed", err)
	}
	if err := h.Sessions.RevokeUser(ctx, userID); err != nil {
		return apperr.Internal("revoke user sessions failed", err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: "user deleted"})
}

// sameRoles reports whether a and b hold the same memberships, ignoring
// order.
func sameRoles(a, b model.Roles) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[model.RoleMembership]int, len(a))
	for _, m := range a {
		seen[m]++
	}
	for _, m := range b {
		if seen[m] == 0 {
			return false
		}
		seen[m]--
	}
	return true
}
