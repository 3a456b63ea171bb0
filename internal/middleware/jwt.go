package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/pizza-service/internal/auth"
	"github.com/iliyamo/pizza-service/internal/logger"
	"github.com/iliyamo/pizza-service/internal/metrics"
)

// Authenticate resolves the Authorization header of every request into an
// identity and stores it in the context.  It never rejects a request:
// an absent, malformed, expired or revoked token simply leaves the
// request anonymous.  Routes that need a caller add RequireAuth.
func Authenticate(g *auth.Guard, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			id, err := g.Authenticate(c.Request().Context(), header)
			switch {
			case err == nil:
				SetIdentity(c, id)
			case errors.Is(err, auth.ErrNoToken):
				// anonymous
			case errors.Is(err, auth.ErrInvalidToken):
				metrics.TokensRejectedTotal.WithLabelValues("invalid").Inc()
			case errors.Is(err, auth.ErrTokenRevoked):
				metrics.TokensRejectedTotal.WithLabelValues("revoked").Inc()
			default:
				// A store outage must not authenticate anyone.
				metrics.TokensRejectedTotal.WithLabelValues("error").Inc()
				raw, _ := auth.BearerToken(header)
				log.Warn("session lookup failed",
					zap.String("token", logger.TokenPrefix(raw)),
					zap.Error(err))
			}
			return next(c)
		}
	}
}
