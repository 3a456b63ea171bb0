// Package testutil provides in-memory stand-ins for the MySQL
// repositories so handler and router tests run without a database.
package testutil

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/pizza-service/internal/model"
	"github.com/iliyamo/pizza-service/internal/queue"
	"github.com/iliyamo/pizza-service/internal/repository"
	"github.com/iliyamo/pizza-service/internal/utils"
)

// DB is one in-memory data set shared by the fake repositories, so a
// franchisee role created by Franchises is visible through Users.
type DB struct {
	mu         sync.Mutex
	users      map[uint64]*model.User
	franchises map[uint64]*model.Franchise
	menu       []model.MenuItem
	orders     []model.Order
	seq        map[string]uint64
}

func NewDB() *DB {
	return &DB{
		users:      map[uint64]*model.User{},
		franchises: map[uint64]*model.Franchise{},
		seq:        map[string]uint64{},
	}
}

// id returns the next auto-increment value of table.
func (db *DB) id(table string) uint64 {
	db.seq[table]++
	return db.seq[table]
}

// Users returns a repository-shaped view over db's users.
func (db *DB) Users() *Users { return &Users{db: db} }

// Franchises returns a repository-shaped view over db's franchises.
func (db *DB) Franchises() *Franchises { return &Franchises{db: db} }

// Menu returns a repository-shaped view over db's menu.
func (db *DB) Menu() *Menu { return &Menu{db: db} }

// Orders returns a repository-shaped view over db's orders.
func (db *DB) Orders() *Orders { return &Orders{db: db} }

// matchName reports whether name matches a '*' wildcard filter.
func matchName(filter, name string) bool {
	if filter == "" {
		return true
	}
	ok, err := path.Match(strings.NewReplacer("?", `\?`, "[", `\[`, `\`, `\\`).Replace(filter), name)
	return err == nil && ok
}

type Users struct{ db *DB }

func (u *Users) Create(_ context.Context, name, email, password string, roles model.Roles) (model.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, x := range u.db.users {
		if x.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		return model.User{}, err
	}
	if roles == nil {
		roles = model.Roles{}
	}
	user := &model.User{ID: u.db.id("users"), Name: name, Email: email, PasswordHash: hash, Roles: append(model.Roles{}, roles...)}
	u.db.users[user.ID] = user
	return *user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, x := range u.db.users {
		if x.Email == email {
			return *x, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (u *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	if x, ok := u.db.users[id]; ok {
		return *x, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (u *Users) Update(_ context.Context, id uint64, upd repository.UserUpdate) (model.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	x, ok := u.db.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		for _, other := range u.db.users {
			if other.ID != id && other.Email == email {
				return model.User{}, repository.ErrEmailExists
			}
		}
		x.Email = email
	}
	if upd.Name != nil {
		x.Name = *upd.Name
	}
	if upd.Password != nil {
		hash, err := utils.HashPassword(*upd.Password, bcrypt.MinCost)
		if err != nil {
			return model.User{}, err
		}
		x.PasswordHash = hash
	}
	if upd.Roles != nil {
		roles := model.Roles{}
		for _, m := range *upd.Roles {
			if m.Role != model.RoleFranchisee {
				roles = append(roles, model.RoleMembership{Role: m.Role})
			}
		}
		for _, m := range x.Roles {
			if m.Role == model.RoleFranchisee {
				roles = append(roles, m)
			}
		}
		x.Roles = roles
	}
	return *x, nil
}

func (u *Users) Delete(_ context.Context, id uint64) error {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	if _, ok := u.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(u.db.users, id)
	return nil
}

func (u *Users) List(_ context.Context, page, limit int, name string) ([]model.User, bool, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	var all []model.User
	for _, x := range u.db.users {
		if matchName(name, x.Name) {
			all = append(all, *x)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageOf(all, page, limit)
}

func pageOf[T any](all []T, page, limit int) ([]T, bool, error) {
	start := page * limit
	if start >= len(all) {
		return []T{}, false, nil
	}
	end := start + limit
	if end >= len(all) {
		return all[start:], false, nil
	}
	return all[start:end], true, nil
}

type Franchises struct{ db *DB }

func (f *Franchises) List(_ context.Context, page, limit int, name string, withAdmins bool) ([]model.Franchise, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var all []model.Franchise
	for _, x := range f.db.franchises {
		if matchName(name, x.Name) {
			all = append(all, f.view(x, withAdmins))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageOf(all, page, limit)
}

func (f *Franchises) ListForUser(_ context.Context, userID uint64) ([]model.Franchise, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []model.Franchise{}
	u, ok := f.db.users[userID]
	if !ok {
		return out, nil
	}
	for _, id := range u.Roles.Franchises() {
		if x, ok := f.db.franchises[id]; ok {
			out = append(out, f.view(x, true))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Franchises) Get(_ context.Context, id uint64) (model.Franchise, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	x, ok := f.db.franchises[id]
	if !ok {
		return model.Franchise{}, repository.ErrNotFound
	}
	return f.view(x, true), nil
}

// view copies x, deriving admins from franchisee memberships.
func (f *Franchises) view(x *model.Franchise, withAdmins bool) model.Franchise {
	out := model.Franchise{ID: x.ID, Name: x.Name, Stores: append([]model.Store{}, x.Stores...)}
	if !withAdmins {
		return out
	}
	out.Admins = []model.FranchiseAdmin{}
	for _, u := range f.db.users {
		for _, fid := range u.Roles.Franchises() {
			if fid == x.ID {
				out.Admins = append(out.Admins, model.FranchiseAdmin{ID: u.ID, Name: u.Name, Email: u.Email})
			}
		}
	}
	sort.Slice(out.Admins, func(i, j int) bool { return out.Admins[i].ID < out.Admins[j].ID })
	return out
}

func (f *Franchises) Create(_ context.Context, name string, adminEmails []string) (model.Franchise, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var admins []*model.User
	for _, email := range adminEmails {
		var found *model.User
		for _, u := range f.db.users {
			if u.Email == strings.ToLower(strings.TrimSpace(email)) {
				found = u
			}
		}
		if found == nil {
			return model.Franchise{}, &repository.UnknownAdminError{Email: email}
		}
		admins = append(admins, found)
	}
	for _, x := range f.db.franchises {
		if x.Name == name {
			return model.Franchise{}, repository.ErrConflict
		}
	}
	x := &model.Franchise{ID: f.db.id("franchises"), Name: name, Stores: []model.Store{}}
	f.db.franchises[x.ID] = x
	for _, u := range admins {
		u.Roles = append(u.Roles, model.RoleMembership{Role: model.RoleFranchisee, ObjectID: x.ID})
	}
	return f.view(x, true), nil
}

func (f *Franchises) Delete(_ context.Context, id uint64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.franchises[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.db.franchises, id)
	for _, u := range f.db.users {
		kept := model.Roles{}
		for _, m := range u.Roles {
			if !(m.Role == model.RoleFranchisee && m.ObjectID == id) {
				kept = append(kept, m)
			}
		}
		u.Roles = kept
	}
	return nil
}

func (f *Franchises) CreateStore(_ context.Context, franchiseID uint64, name string) (model.Store, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	x, ok := f.db.franchises[franchiseID]
	if !ok {
		return model.Store{}, repository.ErrNotFound
	}
	s := model.Store{ID: f.db.id("stores"), FranchiseID: franchiseID, Name: name}
	x.Stores = append(x.Stores, s)
	return s, nil
}

func (f *Franchises) DeleteStore(_ context.Context, franchiseID, storeID uint64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	x, ok := f.db.franchises[franchiseID]
	if !ok {
		return repository.ErrNotFound
	}
	for i, s := range x.Stores {
		if s.ID == storeID {
			x.Stores = append(x.Stores[:i], x.Stores[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type Menu struct{ db *DB }

func (m *Menu) List(context.Context) ([]model.MenuItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return append([]model.MenuItem{}, m.db.menu...), nil
}

func (m *Menu) Add(_ context.Context, item model.MenuItem) (model.MenuItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	item.ID = m.db.id("menu")
	m.db.menu = append(m.db.menu, item)
	return item, nil
}

type Orders struct{ db *DB }

func (o *Orders) List(_ context.Context, dinerID uint64, page int) ([]model.Order, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	var mine []model.Order
	for i := len(o.db.orders) - 1; i >= 0; i-- {
		if o.db.orders[i].DinerID == dinerID {
			mine = append(mine, o.db.orders[i])
		}
	}
	if page < 1 {
		page = 1
	}
	out, _, err := pageOf(mine, page-1, repository.OrderPageSize)
	return out, err
}

func (o *Orders) Create(_ context.Context, dinerID uint64, order model.Order) (model.Order, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	f, ok := o.db.franchises[order.FranchiseID]
	if !ok {
		return model.Order{}, repository.ErrUnknownStore
	}
	found := false
	for _, s := range f.Stores {
		found = found || s.ID == order.StoreID
	}
	if !found {
		return model.Order{}, repository.ErrUnknownStore
	}
	items := make([]model.OrderItem, len(order.Items))
	for i, it := range order.Items {
		known := false
		for _, m := range o.db.menu {
			known = known || m.ID == it.MenuID
		}
		if !known {
			return model.Order{}, repository.ErrUnknownMenuItem
		}
		it.ID = o.db.id("order_items")
		items[i] = it
	}
	order.ID = o.db.id("orders")
	order.DinerID = dinerID
	order.Date = time.Now().UTC().Truncate(time.Second)
	order.Items = items
	o.db.orders = append(o.db.orders, order)
	return order, nil
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []queue.OrderPlacedEvent
	Err    error
}

func (p *Publisher) PublishOrderPlaced(_ context.Context, ev queue.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
	return p.Err
}

// Published returns a copy of the recorded events.
func (p *Publisher) Published() []queue.OrderPlacedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.OrderPlacedEvent(nil), p.Events...)
}
