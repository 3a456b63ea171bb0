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

// FranchiseHandler serves franchises and their stores.
type FranchiseHandler struct {
	Franchises FranchiseStore
}

func NewFranchiseHandler(franchises FranchiseStore) *FranchiseHandler {
	return &FranchiseHandler{Franchises: franchises}
}

type createFranchiseReq struct {
	Name   string `json:"name"`
	Admins []struct {
		Email string `json:"email"`
	} `json:"admins"`
}

type createStoreReq struct {
	Name string `json:"name"`
}

type listFranchisesResp struct {
	Franchises []model.Franchise `json:"franchises"`
	More       bool              `json:"more"`
}

// List returns one page of franchises.  Admin lists are included only
// for admin callers.
func (h *FranchiseHandler) List(c echo.Context) error {
	page, limit := pageParams(c)
	withAdmins := auth.HasRole(middleware.IdentityFrom(c), model.RoleAdmin)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	out, more, err := h.Franchises.List(ctx, page, limit, c.QueryParam("name"), withAdmins)
	if err != nil {
		return apperr.Internal("list franchises failed", err)
	}
	return c.JSON(http.StatusOK, listFranchisesResp{Franchises: out, More: more})
}

// ListForUser returns the franchises a user administers.  Callers other
// than the user or an admin receive an empty list.
func (h *FranchiseHandler) ListForUser(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	caller := middleware.IdentityFrom(c)
	if caller == nil || (caller.ID != userID && !auth.HasRole(caller, model.RoleAdmin)) {
		return c.JSON(http.StatusOK, []model.Franchise{})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	out, err := h.Franchises.ListForUser(ctx, userID)
	if err != nil {
		return apperr.Internal("list user franchises failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

// Create adds a franchise whose admins are existing users named by
// email.  Admin only.
func (h *FranchiseHandler) Create(c echo.Context) error {
	var req createFranchiseReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apperr.Validation("franchise name is required")
	}
	emails := make([]string, 0, len(req.Admins))
	for _, a := range req.Admins {
		emails = append(emails, a.Email)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	f, err := h.Franchises.Create(ctx, req.Name, emails)
	var unknown *repository.UnknownAdminError
	switch {
	case errors.As(err, &unknown):
		return apperr.NotFound("unknown user for franchise admin " + unknown.Email + " provided")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("franchise already exists")
	case err != nil:
		return apperr.Internal("create franchise failed", err)
	}
	return c.JSON(http.StatusOK, f)
}

// Delete removes a franchise and its stores.  Admin only.
func (h *FranchiseHandler) Delete(c echo.Context) error {
	franchiseID, err := pathID(c, "franchiseId")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Franchises.Delete(ctx, franchiseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("franchise not found")
		}
		return apperr.Internal("delete franchise failed", err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: "franchise deleted"})
}

// CreateStore adds a store.  Allowed for admins and the franchise's own
// admins.
func (h *FranchiseHandler) CreateStore(c echo.Context) error {
	franchiseID, err := pathID(c, "franchiseId")
	if err != nil {
		return err
	}
	var req createStoreReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.authorizeManage(ctx, c, franchiseID, "unable to create a store"); err != nil {
		return err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apperr.Validation("store name is required")
	}
	s, err := h.Franchises.CreateStore(ctx, franchiseID, req.Name)
	if err != nil {
		return apperr.Internal("create store failed", err)
	}
	return c.JSON(http.StatusOK, s)
}

// DeleteStore removes a store.  Same permissions as CreateStore.
func (h *FranchiseHandler) DeleteStore(c echo.Context) error {
	franchiseID, err := pathID(c, "franchiseId")
	if err != nil {
		return err
	}
	storeID, err := pathID(c, "storeId")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.authorizeManage(ctx, c, franchiseID, "unable to delete a store"); err != nil {
		return err
	}
	if err := h.Franchises.DeleteStore(ctx, franchiseID, storeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("store not found")
		}
		return apperr.Internal("delete store failed", err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: "store deleted"})
}

// authorizeManage allows admins and admins of franchiseID.  Non-admins
// learn nothing about whether the franchise exists.
func (h *FranchiseHandler) authorizeManage(ctx context.Context, c echo.Context, franchiseID uint64, msg string) error {
	caller := middleware.IdentityFrom(c)
	if caller == nil {
		return apperr.Unauthorized()
	}
	admin := auth.HasRole(caller, model.RoleAdmin)
	f, err := h.Franchises.Get(ctx, franchiseID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if admin {
			return apperr.NotFound("franchise not found")
		}
		return apperr.Forbidden(msg)
	case err != nil:
		return apperr.Internal("load franchise failed", err)
	}
	if !admin && !f.HasAdmin(caller.ID, caller.Email) {
		return apperr.Forbidden(msg)
	}
	return nil
}
