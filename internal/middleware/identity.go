package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pizza-service/internal/auth"
)

const identityKey = "identity"

// SetIdentity attaches the authenticated caller to the request context.
func SetIdentity(c echo.Context, id *auth.Identity) { c.Set(identityKey, id) }

// IdentityFrom returns the authenticated caller, or nil for anonymous
// requests.
func IdentityFrom(c echo.Context) *auth.Identity {
	id, _ := c.Get(identityKey).(*auth.Identity)
	return id
}

// userID returns the caller's id as a string, or "anon" for anonymous
// requests.  Used to key rate limiting buckets.
func userID(c echo.Context) string {
	if id := IdentityFrom(c); id != nil {
		return strconv.FormatUint(id.ID, 10)
	}
	return "anon"
}
