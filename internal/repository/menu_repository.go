package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/pizza-service/internal/model"
)

// MenuRepo reads and extends the menu table.
type MenuRepo struct {
	db *sql.DB
}

func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// List returns every menu item ordered by id.
func (r *MenuRepo) List(ctx context.Context) ([]model.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, description, image, price FROM menu ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.MenuItem{}
	for rows.Next() {
		var m model.MenuItem
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Image, &m.Price); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Add inserts item and returns it with its id.
func (r *MenuRepo) Add(ctx context.Context, item model.MenuItem) (model.MenuItem, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO menu (title, description, image, price) VALUES (?,?,?,?)",
		item.Title, item.Description, item.Image, item.Price)
	if err != nil {
		return model.MenuItem{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.MenuItem{}, err
	}
	item.ID = uint64(id)
	return item, nil
}
