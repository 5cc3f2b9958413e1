package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryColdStorage Category = "camara_fria"
	CategoryDryStock    Category = "estoque_seco"
	CategoryBeverages   Category = "bebidas"
	CategoryDisposables Category = "descartaveis"
)

// prefixes printed on physical labels, one per category
var categoryByPrefix = map[string]Category{
	"CF": CategoryColdStorage,
	"ES": CategoryDryStock,
	"BB": CategoryBeverages,
	"DS": CategoryDisposables,
}

// CategoryForPrefix maps a scan-token prefix to its inventory category.
func CategoryForPrefix(prefix string) (Category, bool) {
	c, ok := categoryByPrefix[prefix]
	return c, ok
}

func ValidCategory(c Category) bool {
	switch c {
	case CategoryColdStorage, CategoryDryStock, CategoryBeverages, CategoryDisposables:
		return true
	}
	return false
}

type InventoryItem struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Quantity    int                 `json:"quantity"`
	Unit        string              `json:"unit"`
	Category    Category            `json:"category"`
	MinQuantity int                 `json:"min_quantity"`
	Location    string              `json:"location"`
	Perishable  bool                `json:"perishable"`
	UnitPrice   decimal.NullDecimal `json:"unit_price,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// LowStock reports whether the item is at or below its reorder threshold.
func (i InventoryItem) LowStock() bool {
	return i.Quantity <= i.MinQuantity
}
