package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pizza-service/internal/handler"
	"github.com/iliyamo/pizza-service/internal/middleware"
	"github.com/iliyamo/pizza-service/internal/model"
)

// RegisterAuth mounts /api/auth.  Register and login are public and rate
// limited; logout needs the session it ends.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := api.Group("/auth", limiter)
	g.POST("", a.Register)
	g.PUT("", a.Login)
	g.DELETE("", a.Logout, middleware.RequireAuth())
}

// RegisterUser mounts /api/user.  Every route needs an authenticated
// caller; listing and deletion are admin only.
func RegisterUser(api *echo.Group, u *handler.UserHandler) {
	g := api.Group("/user", middleware.RequireAuth())
	g.GET("/me", u.Me)
	g.PUT("/:userId", u.Update)
	g.GET("", u.List, middleware.RequireRole(model.RoleAdmin, "unable to list users"))
	g.DELETE("/:userId", u.Delete, middleware.RequireRole(model.RoleAdmin, "unable to delete user"))
}

// RegisterFranchise mounts /api/franchise.  Listing is public; the rest
// needs a caller.  Store management is checked against franchise
// ownership in the handler.
func RegisterFranchise(api *echo.Group, f *handler.FranchiseHandler) {
	g := api.Group("/franchise")
	g.GET("", f.List)

	p := g.Group("", middleware.RequireAuth())
	p.GET("/:userId", f.ListForUser)
	p.POST("", f.Create, middleware.RequireRole(model.RoleAdmin, "unable to create a franchise"))
	p.DELETE("/:franchiseId", f.Delete, middleware.RequireRole(model.RoleAdmin, "unable to delete a franchise"))
	p.POST("/:franchiseId/store", f.CreateStore)
	p.DELETE("/:franchiseId/store/:storeId", f.DeleteStore)
}

// RegisterOrder mounts /api/order.  The menu is public and served
// through cache; menu changes flush it.
func RegisterOrder(api *echo.Group, o *handler.OrderHandler, cache, invalidate echo.MiddlewareFunc) {
	g := api.Group("/order")
	g.GET("/menu", o.GetMenu, cache)

	p := g.Group("", middleware.RequireAuth())
	p.PUT("/menu", o.AddMenuItem, middleware.RequireRole(model.RoleAdmin, "unable to add menu item"), invalidate)
	p.GET("", o.ListOrders)
	p.POST("", o.CreateOrder)
}
