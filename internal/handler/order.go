package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/pizza-service/internal/apperr"
	"github.com/iliyamo/pizza-service/internal/metrics"
	"github.com/iliyamo/pizza-service/internal/middleware"
	"github.com/iliyamo/pizza-service/internal/model"
	"github.com/iliyamo/pizza-service/internal/queue"
	"github.com/iliyamo/pizza-service/internal/repository"
)

// OrderHandler serves the menu and diner orders.
type OrderHandler struct {
	Menu      MenuStore
	Orders    OrderStore
	Publisher OrderPublisher
	Log       *zap.Logger
}

func NewOrderHandler(menu MenuStore, orders OrderStore, pub OrderPublisher, log *zap.Logger) *OrderHandler {
	return &OrderHandler{Menu: menu, Orders: orders, Publisher: pub, Log: log}
}

type addMenuItemReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
}

type createOrderReq struct {
	FranchiseID uint64            `json:"franchiseId"`
	StoreID     uint64            `json:"storeId"`
	Items       []model.OrderItem `json:"items"`
}

type listOrdersResp struct {
	DinerID uint64        `json:"dinerId"`
	Orders  []model.Order `json:"orders"`
	Page    int           `json:"page"`
}

type createOrderResp struct {
	Order model.Order `json:"order"`
}

// GetMenu returns the full menu.
func (h *OrderHandler) GetMenu(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	menu, err := h.Menu.List(ctx)
	if err != nil {
		return apperr.Internal("list menu failed", err)
	}
	return c.JSON(http.StatusOK, menu)
}

// AddMenuItem appends an item and returns the updated menu.  Admin only.
func (h *OrderHandler) AddMenuItem(c echo.Context) error {
	var req addMenuItemReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Price < 0 {
		return apperr.Validation("title and a non-negative price are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Menu.Add(ctx, model.MenuItem{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
	}); err != nil {
		return apperr.Internal("add menu item failed", err)
	}
	menu, err := h.Menu.List(ctx)
	if err != nil {
		return apperr.Internal("list menu failed", err)
	}
	return c.JSON(http.StatusOK, menu)
}

// ListOrders returns a page of the caller's orders.  page is one-based.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	caller := middleware.IdentityFrom(c)
	if caller == nil {
		return apperr.Unauthorized()
	}
	page := min(max(queryInt(c, "page", 1), 1), maxPage)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	orders, err := h.Orders.List(ctx, caller.ID, page)
	if err != nil {
		return apperr.Internal("list orders failed", err)
	}
	return c.JSON(http.StatusOK, listOrdersResp{DinerID: caller.ID, Orders: orders, Page: page})
}

// CreateOrder stores an order for the caller and announces it on the
// order.placed queue.  Publishing failures are logged, never surfaced.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	caller := middleware.IdentityFrom(c)
	if caller == nil {
		return apperr.Unauthorized()
	}
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	if req.FranchiseID == 0 || req.StoreID == 0 || len(req.Items) == 0 {
		return apperr.Validation("franchiseId, storeId, and items are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	o, err := h.Orders.Create(ctx, caller.ID, model.Order{
		FranchiseID: req.FranchiseID,
		StoreID:     req.StoreID,
		Items:       req.Items,
	})
	switch {
	case errors.Is(err, repository.ErrUnknownStore):
		return apperr.NotFound("unknown store")
	case errors.Is(err, repository.ErrUnknownMenuItem):
		return apperr.NotFound("unknown menu item")
	case err != nil:
		return apperr.Internal("create order failed", err)
	}
	metrics.OrdersCreatedTotal.Inc()

	if h.Publisher == nil {
		return c.JSON(http.StatusOK, createOrderResp{Order: o})
	}
	if err := h.Publisher.PublishOrderPlaced(ctx, queue.OrderPlacedEvent{
		OrderID:     o.ID,
		DinerID:     caller.ID,
		DinerEmail:  caller.Email,
		FranchiseID: o.FranchiseID,
		StoreID:     o.StoreID,
		Items:       len(o.Items),
		Total:       o.Total(),
		PlacedAt:    o.Date.Format(time.RFC3339),
	}); err != nil {
		h.Log.Warn("order event not published", zap.Uint64("order_id", o.ID), zap.Error(err))
	}
	return c.JSON(http.StatusOK, createOrderResp{Order: o})
}
