package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/pizza-service/internal/model"
	"github.com/iliyamo/pizza-service/internal/utils"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestUserRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO users (name, email, password_hash)")).
		WithArgs("pizza diner", "d@jwt.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(q("INSERT INTO user_roles")).
		WithArgs(5, "diner", 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	u, err := repo.Create(context.Background(), "pizza diner", " D@jwt.com ", "diner", model.Roles{{Role: model.RoleDiner}})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), u.ID)
	assert.Equal(t, "d@jwt.com", u.Email)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "diner"))
	assert.True(t, u.Roles.Has(model.RoleDiner))
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "a", "a@jwt.com", "pw", nil)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)

	mock.ExpectQuery(q("SELECT id, name, email, password_hash FROM users WHERE email=?")).
		WithArgs("a@jwt.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash"}).
			AddRow(1, "admin", "a@jwt.com", "hash"))
	mock.ExpectQuery(q("SELECT user_id, role, object_id FROM user_roles WHERE user_id IN (?)")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role", "object_id"}).
			AddRow(1, "admin", 0).
			AddRow(1, "franchisee", 3))

	u, err := repo.GetByEmail(context.Background(), "A@jwt.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Name)
	assert.Equal(t, model.Roles{{Role: model.RoleAdmin}, {Role: model.RoleFranchisee, ObjectID: 3}}, u.Roles)
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)

	mock.ExpectQuery(q("FROM users WHERE id=?")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash"}))

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_Update_KeepsFranchiseeRoles(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)
	name := "renamed"
	roles := model.Roles{{Role: model.RoleAdmin}, {Role: model.RoleFranchisee, ObjectID: 9}}

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM users WHERE id=? FOR UPDATE")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(q("UPDATE users SET name=?, updated_at=CURRENT_TIMESTAMP WHERE id=?")).
		WithArgs("renamed", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM user_roles WHERE user_id=? AND role<>?")).
		WithArgs(7, "franchisee").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO user_roles")).
		WithArgs(7, "admin", 0).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(q("FROM users WHERE id=?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash"}).
			AddRow(7, "renamed", "x@jwt.com", "hash"))
	mock.ExpectQuery(q("FROM user_roles")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role", "object_id"}).
			AddRow(7, "admin", 0).
			AddRow(7, "franchisee", 9))

	u, err := repo.Update(context.Background(), 7, UserUpdate{Name: &name, Roles: &roles})
	require.NoError(t, err)
	assert.Equal(t, "renamed", u.Name)
	assert.Equal(t, roles, u.Roles)
}

func TestUserRepo_Update_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)
	email := "taken@jwt.com"

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(q("UPDATE users SET email=?")).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), 7, UserUpdate{Email: &email})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM users WHERE id=?")).WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM user_roles WHERE user_id=?")).WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM auth_tokens WHERE user_id=?")).WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 3))
}

func TestUserRepo_Delete_Unknown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM users WHERE id=?")).WithArgs(999).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete(context.Background(), 999), ErrNotFound)
}

func TestUserRepo_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)

	// page 1 with limit 2 asks for 3 rows starting at offset 2
	mock.ExpectQuery(q("SELECT id, name, email FROM users WHERE name LIKE ? ORDER BY id LIMIT ? OFFSET ?")).
		WithArgs("%", 3, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow(3, "c", "c@jwt.com").
			AddRow(4, "d", "d@jwt.com").
			AddRow(5, "e", "e@jwt.com"))
	mock.ExpectQuery(q("WHERE user_id IN (?,?)")).
		WithArgs(3, 4).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role", "object_id"}).
			AddRow(3, "diner", 0))

	users, more, err := repo.List(context.Background(), 1, 2, "")
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, users, 2)
	assert.Equal(t, uint64(3), users[0].ID)
	assert.Equal(t, uint64(4), users[1].ID)
	assert.True(t, users[0].Roles.Has(model.RoleDiner))
	assert.NotNil(t, users[1].Roles)
}

func TestUserRepo_List_Empty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, bcrypt.MinCost)

	mock.ExpectQuery(q("FROM users WHERE name LIKE ?")).
		WithArgs("pizza%", 11, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))

	users, more, err := repo.List(context.Background(), 0, 10, "pizza*")
	require.NoError(t, err)
	assert.False(t, more)
	assert.Empty(t, users)
	assert.NotNil(t, users)
}

func TestNamePattern(t *testing.T) {
	cases := map[string]string{
		"":        "%",
		"*":       "%",
		"pizza*":  "pizza%",
		"a_b":     `a\_b`,
		"100%":    `100\%`,
		"*diner*": "%diner%",
		"exact":   "exact",
	}
	for in, want := range cases {
		assert.Equal(t, want, namePattern(in), in)
	}
}

func TestTokenRepo(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	hash := utils.HashToken("a.b.c")
	ctx := context.Background()

	mock.ExpectExec(q("INSERT INTO auth_tokens (token_hash, user_id, expires_at)")).
		WithArgs(hash, 1, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Put(ctx, "a.b.c", 1, now.Add(time.Hour)))

	mock.ExpectQuery(q("SELECT expires_at FROM auth_tokens WHERE token_hash=?")).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(now.Add(time.Hour)))
	ok, err := repo.Exists(ctx, "a.b.c")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(q("SELECT expires_at FROM auth_tokens")).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(now.Add(-time.Second)))
	ok, err = repo.Exists(ctx, "a.b.c")
	require.NoError(t, err)
	assert.False(t, ok, "expired rows are not live")

	mock.ExpectExec(q("DELETE FROM auth_tokens WHERE token_hash=?")).
		WithArgs(hash).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Remove(ctx, "a.b.c"))

	mock.ExpectQuery(q("SELECT expires_at FROM auth_tokens")).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}))
	ok, err = repo.Exists(ctx, "a.b.c")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(q("DELETE FROM auth_tokens WHERE expires_at <= ?")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))
	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestTokenRepo_ExistsError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectQuery(q("SELECT expires_at FROM auth_tokens")).
		WillReturnError(errors.New("connection refused"))
	_, err := repo.Exists(context.Background(), "x")
	assert.Error(t, err)
}

func TestFranchiseRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFranchiseRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, name, email FROM users WHERE email=?")).
		WithArgs("f@jwt.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(2, "pizza franchisee", "f@jwt.com"))
	mock.ExpectExec(q("INSERT INTO franchises (name)")).
		WithArgs("pizzaPocket").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(q("INSERT INTO user_roles")).
		WithArgs(2, "franchisee", 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	f, err := repo.Create(context.Background(), "pizzaPocket", []string{"f@jwt.com"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.ID)
	assert.Equal(t, []model.FranchiseAdmin{{ID: 2, Name: "pizza franchisee", Email: "f@jwt.com"}}, f.Admins)
	assert.Empty(t, f.Stores)
}

func TestFranchiseRepo_Create_UnknownAdmin(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFranchiseRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM users WHERE email=?")).
		WithArgs("nobody@jwt.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "x", []string{"nobody@jwt.com"})
	var unknown *UnknownAdminError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nobody@jwt.com", unknown.Email)
}

func TestFranchiseRepo_Get(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFranchiseRepo(db)

	mock.ExpectQuery(q("SELECT id, name FROM franchises WHERE id=?")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(4, "pizzaPocket"))
	mock.ExpectQuery(q("FROM stores WHERE franchise_id=?")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "franchise_id", "name"}).AddRow(1, 4, "SLC"))
	mock.ExpectQuery(q("JOIN user_roles ur ON ur.user_id = u.id")).
		WithArgs("franchisee", 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(2, "f", "f@jwt.com"))

	f, err := repo.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []model.Store{{ID: 1, FranchiseID: 4, Name: "SLC"}}, f.Stores)
	assert.True(t, f.HasAdmin(2, ""))
}

func TestFranchiseRepo_DeleteStore_Unknown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFranchiseRepo(db)

	mock.ExpectExec(q("DELETE FROM stores WHERE franchise_id=? AND id=?")).
		WithArgs(1, 9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteStore(context.Background(), 1, 9), ErrNotFound)
}

func TestMenuRepo(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMenuRepo(db)
	ctx := context.Background()

	mock.ExpectExec(q("INSERT INTO menu (title, description, image, price)")).
		WithArgs("Veggie", "A garden of delight", "pizza1.png", 0.0038).
		WillReturnResult(sqlmock.NewResult(1, 1))
	item, err := repo.Add(ctx, model.MenuItem{Title: "Veggie", Description: "A garden of delight", Image: "pizza1.png", Price: 0.0038})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), item.ID)

	mock.ExpectQuery(q("SELECT id, title, description, image, price FROM menu")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "image", "price"}).
			AddRow(1, "Veggie", "A garden of delight", "pizza1.png", 0.0038))
	menu, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.MenuItem{item}, menu)
}

func TestOrderRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepo(db)
	now := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM stores WHERE id=? AND franchise_id=?")).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(q("INSERT INTO orders (diner_id, franchise_id, store_id, date)")).
		WithArgs(3, 1, 1, now).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectQuery(q("SELECT id FROM menu WHERE id=?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(q("INSERT INTO order_items")).
		WithArgs(10, 1, "Veggie", 0.05).
		WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectCommit()

	o, err := repo.Create(context.Background(), 3, model.Order{
		FranchiseID: 1,
		StoreID:     1,
		Items:       []model.OrderItem{{MenuID: 1, Description: "Veggie", Price: 0.05}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), o.ID)
	assert.Equal(t, now, o.Date)
	assert.Equal(t, uint64(20), o.Items[0].ID)
}

func TestOrderRepo_Create_UnknownStoreAndItem(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepo(db)
	ctx := context.Background()
	order := model.Order{FranchiseID: 1, StoreID: 2, Items: []model.OrderItem{{MenuID: 77}}}

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM stores WHERE id=? AND franchise_id=?")).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()
	_, err := repo.Create(ctx, 3, order)
	assert.ErrorIs(t, err, ErrUnknownStore)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM stores")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(q("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery(q("SELECT id FROM menu WHERE id=?")).
		WithArgs(77).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()
	_, err = repo.Create(ctx, 3, order)
	assert.ErrorIs(t, err, ErrUnknownMenuItem)
}

func TestOrderRepo_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepo(db)
	date := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)

	mock.ExpectQuery(q("FROM orders")).
		WithArgs(3, OrderPageSize, OrderPageSize).
		WillReturnRows(sqlmock.NewRows([]string{"id", "franchise_id", "store_id", "date"}).
			AddRow(12, 1, 1, date))
	mock.ExpectQuery(q("FROM order_items WHERE order_id=?")).
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"id", "menu_id", "description", "price"}).
			AddRow(30, 1, "Veggie", 0.05))

	orders, err := repo.List(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 0.05, orders[0].Total())
	assert.Equal(t, date, orders[0].Date)
}
