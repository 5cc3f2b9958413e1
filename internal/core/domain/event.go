package domain

import "time"

// StockEvent is published after an accepted quantity mutation so
// downstream consumers (reporting, replication) can follow along.
// Publishing is best effort and never blocks the mutation itself.
type StockEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ItemID    string    `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Category  Category  `json:"category"`
	Location  string    `json:"location"`
	Delta     int       `json:"delta"`
	Remaining int       `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventStockDecremented = "stock.decremented"
	EventStockIncremented = "stock.incremented"
)
