package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one lot: a price point of stock for a barcode. Several lots may
// share a barcode. Stock is derived from active transactions and may be
// negative.
type Item struct {
	ID        int64           `json:"id"`
	Barcode   string          `json:"barcode"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StockLevel summarizes all lots of one barcode.
type StockLevel struct {
	Barcode string `json:"barcode"`
	Lots    int    `json:"lots"`
	Stock   int    `json:"stock"`
}

// Available returns the stock a take can draw from: the sum of positive lot
// stock. Lots that went negative do not offset the others.
func Available(lots []Item) int {
	total := 0
	for _, lot := range lots {
		if lot.Stock > 0 {
			total += lot.Stock
		}
	}
	return total
}
