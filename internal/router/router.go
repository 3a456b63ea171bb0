// Package router wires handlers and middleware into an echo instance.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/pizza-service/internal/apperr"
	"github.com/iliyamo/pizza-service/internal/auth"
	"github.com/iliyamo/pizza-service/internal/config"
	"github.com/iliyamo/pizza-service/internal/handler"
	"github.com/iliyamo/pizza-service/internal/middleware"
)

// Deps collects everything the routes need.  DB and Redis may be nil:
// health checks then skip the ping and the cache and rate limiter pass
// requests straight through.
type Deps struct {
	Config     config.Config
	Log        *zap.Logger
	DB         *sql.DB
	Redis      *redis.Client
	Guard      *auth.Guard
	Auth       *handler.AuthHandler
	Users      *handler.UserHandler
	Franchises *handler.FranchiseHandler
	Orders     *handler.OrderHandler
}

// New builds the echo instance with global middleware and every route.
// Authentication runs for every request; it only attaches an identity.
// Access control is applied per route group.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(d.Log)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.Authenticate(d.Guard, d.Log))

	RegisterRoutes(e, d.DB)
	api := e.Group("/api")
	RegisterAuth(api, d.Auth, middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Log))
	RegisterUser(api, d.Users)
	RegisterFranchise(api, d.Franchises)
	RegisterOrder(api, d.Orders,
		middleware.NewResponseCache(d.Config.Cache, d.Redis, d.Log),
		middleware.InvalidateCache(d.Config.Cache, d.Redis, d.Log))
	return e
}

// RegisterRoutes registers the operational endpoints: health check and
// Prometheus metrics.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
