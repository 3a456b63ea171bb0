package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pizza-service/internal/apperr"
	"github.com/iliyamo/pizza-service/internal/auth"
	"github.com/iliyamo/pizza-service/internal/model"
)

// RequireAuth aborts anonymous requests with 401 "unauthorized".  It
// relies on Authenticate having run earlier in the chain.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IdentityFrom(c) == nil {
				return apperr.Unauthorized()
			}
			return next(c)
		}
	}
}

// RequireRole lets through callers holding role.  Anonymous callers get
// 401; authenticated callers without the role get 403 with msg.
func RequireRole(role model.Role, msg string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if id == nil {
				return apperr.Unauthorized()
			}
			if !auth.HasRole(id, role) {
				return apperr.Forbidden(msg)
			}
			return next(c)
		}
	}
}
