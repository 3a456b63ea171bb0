// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderPlacedQueue is the durable queue carrying OrderPlacedEvent.
const OrderPlacedQueue = "order.placed"

// OrderPlacedEvent is published after an order is persisted.  It carries
// enough for downstream consumers to log, notify or fulfil the order
// without querying the primary database.
type OrderPlacedEvent struct {
	OrderID     uint64  `json:"order_id"`
	DinerID     uint64  `json:"diner_id"`
	DinerEmail  string  `json:"diner_email"`
	FranchiseID uint64  `json:"franchise_id"`
	StoreID     uint64  `json:"store_id"`
	Items       int     `json:"items"`
	Total       float64 `json:"total"`
	PlacedAt    string  `json:"placed_at"`
}
