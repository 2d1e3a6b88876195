package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member is a bar participant identified by a scanned barcode.
// Balance is derived from the member's active transactions; credit is positive.
type Member struct {
	ID        int64           `json:"id"`
	Barcode   string          `json:"barcode"`
	Nick      string          `json:"nick"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
