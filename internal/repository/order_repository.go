package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/pizza-service/internal/model"
)

// OrderPageSize is the number of orders per page of a diner's history.
const OrderPageSize = 10

// OrderRepo stores diner orders in orders and order_items.
type OrderRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db, now: time.Now} }

// List returns one page of dinerID's orders, newest first.  page is
// one-based; values below 1 are treated as 1.
func (r *OrderRepo) List(ctx context.Context, dinerID uint64, page int) ([]model.Order, error) {
	if page < 1 {
		page = 1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, franchise_id, store_id, date FROM orders
		 WHERE diner_id=? ORDER BY id DESC LIMIT ? OFFSET ?`,
		dinerID, OrderPageSize, (page-1)*OrderPageSize)
	if err != nil {
		return nil, err
	}
	orders := []model.Order{}
	for rows.Next() {
		o := model.Order{DinerID: dinerID}
		if err := rows.Scan(&o.ID, &o.FranchiseID, &o.StoreID, &o.Date); err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := r.items(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *OrderRepo) items(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, menu_id, description, price FROM order_items WHERE order_id=? ORDER BY id", orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OrderItem{}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.MenuID, &it.Description, &it.Price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Create persists o for dinerID in one transaction.  The store must
// belong to the franchise (ErrUnknownStore) and every item must name an
// existing menu id (ErrUnknownMenuItem).
func (r *OrderRepo) Create(ctx context.Context, dinerID uint64, o model.Order) (model.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var storeID uint64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM stores WHERE id=? AND franchise_id=?", o.StoreID, o.FranchiseID).Scan(&storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrUnknownStore
	}
	if err != nil {
		return model.Order{}, err
	}

	o.DinerID = dinerID
	o.Date = r.now().UTC().Truncate(time.Second)
	res, err := tx.ExecContext(ctx,
		"INSERT INTO orders (diner_id, franchise_id, store_id, date) VALUES (?,?,?,?)",
		dinerID, o.FranchiseID, o.StoreID, o.Date)
	if err != nil {
		return model.Order{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Order{}, err
	}
	o.ID = uint64(id)

	for i, it := range o.Items {
		var menuID uint64
		err := tx.QueryRowContext(ctx, "SELECT id FROM menu WHERE id=?", it.MenuID).Scan(&menuID)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, fmt.Errorf("%w: %d", ErrUnknownMenuItem, it.MenuID)
		}
		if err != nil {
			return model.Order{}, err
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, menu_id, description, price) VALUES (?,?,?,?)",
			o.ID, it.MenuID, it.Description, it.Price)
		if err != nil {
			return model.Order{}, err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return model.Order{}, err
		}
		o.Items[i].ID = uint64(itemID)
	}
	if err := tx.Commit(); err != nil {
		return model.Order{}, err
	}
	return o, nil
}
