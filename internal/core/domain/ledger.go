package domain

import "time"

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func ValidDirection(d Direction) bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// LedgerEntry is one immutable audit record. Entries are only ever
// appended; corrections happen through compensating entries.
type LedgerEntry struct {
	ID        string    `json:"id"`
	ItemName  string    `json:"item_name"`
	Quantity  int       `json:"quantity"`
	Direction Direction `json:"direction"`
	Note      string    `json:"note"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// SameMovement reports whether two entries describe the same logical
// stock movement, ignoring id, note and timestamp. Used by the
// duplicate suppressor.
func (e LedgerEntry) SameMovement(other LedgerEntry) bool {
	return e.ItemName == other.ItemName &&
		e.Quantity == other.Quantity &&
		e.Direction == other.Direction
}
