package model

import "time"

// MenuItem is a pizza offered on the menu (`menu` table).
type MenuItem struct {
	ID          uint64  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
}

// Order groups the items a diner bought at one store.  Rows live in the
// `orders` table, items in `order_items`.
type Order struct {
	ID          uint64      `json:"id"`
	DinerID     uint64      `json:"-"`
	FranchiseID uint64      `json:"franchiseId"`
	StoreID     uint64      `json:"storeId"`
	Date        time.Time   `json:"date"`
	Items       []OrderItem `json:"items"`
}

// OrderItem is one line of an order.  Price is copied at order time.
type OrderItem struct {
	ID          uint64  `json:"id,omitempty"`
	MenuID      uint64  `json:"menuId"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Total sums the item prices.
func (o Order) Total() float64 {
	var t float64
	for _, it := range o.Items {
		t += it.Price
	}
	return t
}
