package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/pizza-service/internal/model"
)

// FranchiseRepo stores franchises and their stores.  A franchise's
// admins are the users holding a franchisee row in user_roles whose
// object_id is the franchise id.
type FranchiseRepo struct {
	db *sql.DB
}

func NewFranchiseRepo(db *sql.DB) *FranchiseRepo { return &FranchiseRepo{db: db} }

// List returns one zero-based page of franchises ordered by id, each with
// its stores.  Admins are loaded only when withAdmins is set.
func (r *FranchiseRepo) List(ctx context.Context, page, limit int, name string, withAdmins bool) ([]model.Franchise, bool, error) {
	out, err := r.query(ctx,
		"SELECT id, name FROM franchises WHERE name LIKE ? ORDER BY id LIMIT ? OFFSET ?",
		namePattern(name), limit+1, page*limit)
	if err != nil {
		return nil, false, err
	}
	more := len(out) > limit
	if more {
		out = out[:limit]
	}
	for i := range out {
		if err := r.fill(ctx, &out[i], withAdmins); err != nil {
			return nil, false, err
		}
	}
	return out, more, nil
}

// ListForUser returns the franchises userID administers, with admins and
// stores.
func (r *FranchiseRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Franchise, error) {
	out, err := r.query(ctx,
		`SELECT f.id, f.name FROM franchises f
		 JOIN user_roles ur ON ur.object_id = f.id AND ur.role = ?
		 WHERE ur.user_id = ? ORDER BY f.id`,
		model.RoleFranchisee, userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.fill(ctx, &out[i], true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Get fetches a franchise with admins and stores.
func (r *FranchiseRepo) Get(ctx context.Context, id uint64) (model.Franchise, error) {
	var f model.Franchise
	err := r.db.QueryRowContext(ctx, "SELECT id, name FROM franchises WHERE id=?", id).Scan(&f.ID, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Franchise{}, ErrNotFound
	}
	if err != nil {
		return model.Franchise{}, err
	}
	if err := r.fill(ctx, &f, true); err != nil {
		return model.Franchise{}, err
	}
	return f, nil
}

// Create inserts a franchise and grants the franchisee role to every
// admin email.  An email with no user yields *UnknownAdminError and a
// duplicate name ErrConflict; either way nothing is written.
func (r *FranchiseRepo) Create(ctx context.Context, name string, adminEmails []string) (model.Franchise, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Franchise{}, err
	}
	defer func() { _ = tx.Rollback() }()

	admins := make([]model.FranchiseAdmin, 0, len(adminEmails))
	for _, email := range adminEmails {
		var a model.FranchiseAdmin
		err := tx.QueryRowContext(ctx,
			"SELECT id, name, email FROM users WHERE email=? LIMIT 1",
			normalizeEmail(email)).Scan(&a.ID, &a.Name, &a.Email)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Franchise{}, &UnknownAdminError{Email: email}
		}
		if err != nil {
			return model.Franchise{}, err
		}
		admins = append(admins, a)
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO franchises (name) VALUES (?)", name)
	if err != nil {
		if isDuplicate(err) {
			return model.Franchise{}, ErrConflict
		}
		return model.Franchise{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Franchise{}, err
	}
	for _, a := range admins {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role, object_id) VALUES (?,?,?)",
			a.ID, model.RoleFranchisee, id); err != nil {
			return model.Franchise{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Franchise{}, err
	}
	return model.Franchise{ID: uint64(id), Name: name, Admins: admins, Stores: []model.Store{}}, nil
}

// Delete removes a franchise, its stores and the franchisee memberships
// pointing at it.
func (r *FranchiseRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM franchises WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM stores WHERE franchise_id=?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM user_roles WHERE role=? AND object_id=?", model.RoleFranchisee, id); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateStore adds a store to franchiseID.
func (r *FranchiseRepo) CreateStore(ctx context.Context, franchiseID uint64, name string) (model.Store, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO stores (franchise_id, name) VALUES (?,?)", franchiseID, name)
	if err != nil {
		return model.Store{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Store{}, err
	}
	return model.Store{ID: uint64(id), FranchiseID: franchiseID, Name: name}, nil
}

// DeleteStore removes storeID if it belongs to franchiseID.
func (r *FranchiseRepo) DeleteStore(ctx context.Context, franchiseID, storeID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM stores WHERE franchise_id=? AND id=?", franchiseID, storeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FranchiseRepo) query(ctx context.Context, q string, args ...any) ([]model.Franchise, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Franchise{}
	for rows.Next() {
		var f model.Franchise
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// fill loads the stores and optionally the admins of f.
func (r *FranchiseRepo) fill(ctx context.Context, f *model.Franchise, withAdmins bool) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, franchise_id, name FROM stores WHERE franchise_id=? ORDER BY id", f.ID)
	if err != nil {
		return err
	}
	f.Stores = []model.Store{}
	for rows.Next() {
		var s model.Store
		if err := rows.Scan(&s.ID, &s.FranchiseID, &s.Name); err != nil {
			rows.Close()
			return err
		}
		f.Stores = append(f.Stores, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if !withAdmins {
		return nil
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email FROM users u
		 JOIN user_roles ur ON ur.user_id = u.id
		 WHERE ur.role = ? AND ur.object_id = ? ORDER BY u.id`,
		model.RoleFranchisee, f.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	f.Admins = []model.FranchiseAdmin{}
	for rows.Next() {
		var a model.FranchiseAdmin
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return err
		}
		f.Admins = append(f.Admins, a)
	}
	return rows.Err()
}
