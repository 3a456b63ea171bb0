package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/pizza-service/internal/model"
	"github.com/iliyamo/pizza-service/internal/utils"
)

// UserRepo persists users in the users table and their role memberships
// in user_roles.  Passwords are hashed here so plaintext never leaves
// the handler layer by any other path.
type UserRepo struct {
	db   *sql.DB
	cost int
}

// NewUserRepo returns a UserRepo hashing passwords with bcrypt at cost.
func NewUserRepo(db *sql.DB, cost int) *UserRepo { return &UserRepo{db: db, cost: cost} }

// UserUpdate lists the fields to change.  Nil fields are left alone.
// Roles replaces the global (diner, admin) memberships; franchisee
// memberships are owned by franchises and survive.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Roles    *model.Roles
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts the user and its roles in one transaction.  A duplicate
// email yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, name, email, password string, roles model.Roles) (model.User, error) {
	hash, err := utils.HashPassword(password, r.cost)
	if err != nil {
		return model.User{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	email = normalizeEmail(email)
	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash) VALUES (?,?,?)",
		name, email, hash)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	if err := insertRoles(ctx, tx, uint64(id), roles); err != nil {
		return model.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.User{}, err
	}
	if roles == nil {
		roles = model.Roles{}
	}
	return model.User{ID: uint64(id), Name: name, Email: email, PasswordHash: hash, Roles: roles}, nil
}

// GetByEmail fetches a user and its roles by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, "email=?", normalizeEmail(email))
}

// GetByID fetches a user and its roles by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "id=?", id)
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash FROM users WHERE "+where+" LIMIT 1",
		arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	roles, err := loadRoles(ctx, r.db, u.ID)
	if err != nil {
		return model.User{}, err
	}
	u.Roles = roles[u.ID]
	if u.Roles == nil {
		u.Roles = model.Roles{}
	}
	return u, nil
}

// Update applies upd to user id and returns the stored result.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd UserUpdate) (model.User, error) {
	var (
		sets []string
		args []any
	)
	if upd.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, normalizeEmail(*upd.Email))
	}
	if upd.Password != nil {
		hash, err := utils.HashPassword(*upd.Password, r.cost)
		if err != nil {
			return model.User{}, err
		}
		sets = append(sets, "password_hash=?")
		args = append(args, hash)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists uint64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if len(sets) > 0 {
		q := "UPDATE users SET " + strings.Join(sets, ", ") + ", updated_at=CURRENT_TIMESTAMP WHERE id=?"
		if _, err := tx.ExecContext(ctx, q, append(args, id)...); err != nil {
			if isDuplicate(err) {
				return model.User{}, ErrEmailExists
			}
			return model.User{}, err
		}
	}
	if upd.Roles != nil {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM user_roles WHERE user_id=? AND role<>?", id, model.RoleFranchisee); err != nil {
			return model.User{}, err
		}
		var global model.Roles
		for _, m := range *upd.Roles {
			if m.Role != model.RoleFranchisee {
				global = append(global, model.RoleMembership{Role: m.Role})
			}
		}
		if err := insertRoles(ctx, tx, id, global); err != nil {
			return model.User{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes the user, its roles and its persisted sessions.  An
// unknown id yields ErrNotFound and changes nothing.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id=?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id=?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns one page of users ordered by id.  page is zero-based.
// name filters by exact name where '*' matches any run of characters;
// an empty name matches everyone.  more reports whether another page
// exists.
func (r *UserRepo) List(ctx context.Context, page, limit int, name string) ([]model.User, bool, error) {
	pattern := namePattern(name)
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, email FROM users WHERE name LIKE ? ORDER BY id LIMIT ? OFFSET ?",
		pattern, limit+1, page*limit)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, false, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	more := len(users) > limit
	if more {
		users = users[:limit]
	}
	if len(users) == 0 {
		return users, false, nil
	}

	ids := make([]uint64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	roles, err := loadRoles(ctx, r.db, ids...)
	if err != nil {
		return nil, false, err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
		if users[i].Roles == nil {
			users[i].Roles = model.Roles{}
		}
	}
	return users, more, nil
}

// namePattern turns a '*' wildcard filter into a LIKE pattern.  LIKE
// metacharacters in the input are escaped.
func namePattern(name string) string {
	if name == "" {
		return "%"
	}
	esc := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(name)
	return strings.ReplaceAll(esc, "*", "%")
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// loadRoles fetches the memberships of the given users keyed by user id,
// each in insertion order.
func loadRoles(ctx context.Context, q queryer, ids ...uint64) (map[uint64]model.Roles, error) {
	out := make(map[uint64]model.Roles, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		"SELECT user_id, role, object_id FROM user_roles WHERE user_id IN ("+ph+") ORDER BY id",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			uid uint64
			m   model.RoleMembership
		)
		if err := rows.Scan(&uid, &m.Role, &m.ObjectID); err != nil {
			return nil, err
		}
		out[uid] = append(out[uid], m)
	}
	return out, rows.Err()
}

func insertRoles(ctx context.Context, e execer, userID uint64, roles model.Roles) error {
	for _, m := range roles {
		if !m.Role.Valid() {
			return fmt.Errorf("invalid role %q", m.Role)
		}
		if _, err := e.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role, object_id) VALUES (?,?,?)",
			userID, m.Role, m.ObjectID); err != nil {
			return err
		}
	}
	return nil
}
