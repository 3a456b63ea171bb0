package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pizza-service/internal/apperr"
	"github.com/iliyamo/pizza-service/internal/model"
	"github.com/iliyamo/pizza-service/internal/queue"
	"github.com/iliyamo/pizza-service/internal/repository"
)

// dbTimeout bounds every repository call made from a handler.
const dbTimeout = 5 * time.Second

// maxPage caps page query parameters so offsets stay far from overflow.
const maxPage = 100000

// Sessions issues and revokes session tokens.  *auth.Authority satisfies it.
type Sessions interface {
	Issue(ctx context.Context, u model.User) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeUser(ctx context.Context, userID uint64) error
}

// UserStore is the user persistence the handlers depend on.
type UserStore interface {
	Create(ctx context.Context, name, email, password string, roles model.Roles) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Update(ctx context.Context, id uint64, upd repository.UserUpdate) (model.User, error)
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, page, limit int, name string) ([]model.User, bool, error)
}

// FranchiseStore is the franchise and store persistence.
type FranchiseStore interface {
	List(ctx context.Context, page, limit int, name string, withAdmins bool) ([]model.Franchise, bool, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Franchise, error)
	Get(ctx context.Context, id uint64) (model.Franchise, error)
	Create(ctx context.Context, name string, adminEmails []string) (model.Franchise, error)
	Delete(ctx context.Context, id uint64) error
	CreateStore(ctx context.Context, franchiseID uint64, name string) (model.Store, error)
	DeleteStore(ctx context.Context, franchiseID, storeID uint64) error
}

// MenuStore is the menu persistence.
type MenuStore interface {
	List(ctx context.Context) ([]model.MenuItem, error)
	Add(ctx context.Context, item model.MenuItem) (model.MenuItem, error)
}

// OrderStore is the order persistence.
type OrderStore interface {
	List(ctx context.Context, dinerID uint64, page int) ([]model.Order, error)
	Create(ctx context.Context, dinerID uint64, o model.Order) (model.Order, error)
}

// OrderPublisher announces placed orders.
type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error
}

// authResp is the body of every endpoint that hands out a session.
type authResp struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

type messageResp struct {
	Message string `json:"message"`
}

// pathID parses the named path parameter as a positive id.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return id, nil
}

// queryInt reads an integer query parameter, returning def when it is
// absent or not a number.
func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return v
}

// pageParams reads the zero-based page and limit used by list endpoints.
func pageParams(c echo.Context) (page, limit int) {
	page = min(max(queryInt(c, "page", 0), 0), maxPage)
	limit = queryInt(c, "limit", 10)
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
