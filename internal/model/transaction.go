package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one committed economic event between a member and a lot.
// A positive Count means the member gave items to the bar (stock and balance
// go up); a negative Count means the member took items.
type Transaction struct {
	ID        int64           `json:"id"`
	ItemID    int64           `json:"item_id"`
	MemberID  int64           `json:"member_id"`
	Count     int             `json:"count"`
	Price     decimal.Decimal `json:"transaction_price"`
	Archived  bool            `json:"archived"`
	CreatedAt time.Time       `json:"created_at"`

	// Joined fields (not always populated).
	ItemBarcode string `json:"item_barcode,omitempty"`
	MemberNick  string `json:"member_nick,omitempty"`
}

// NewTransaction builds a transaction for count units of item. The price is
// fixed at the lot's price at the time of recording.
func NewTransaction(item *Item, member *Member, count int, at time.Time) Transaction {
	return Transaction{
		ItemID:      item.ID,
		MemberID:    member.ID,
		Count:       count,
		Price:       item.Price.Mul(decimal.NewFromInt(int64(count))),
		CreatedAt:   at,
		ItemBarcode: item.Barcode,
		MemberNick:  member.Nick,
	}
}

// TransactionLog is an ordered list of transactions, oldest first.
type TransactionLog []Transaction

// Active returns the non-archived transactions.
func (l TransactionLog) Active() TransactionLog {
	return l.filter(func(t Transaction) bool { return !t.Archived })
}

// Negative returns the active transactions that debit the member.
func (l TransactionLog) Negative() TransactionLog {
	return l.filter(func(t Transaction) bool { return !t.Archived && t.Price.IsNegative() })
}

// Positive returns the active transactions that credit the member.
func (l TransactionLog) Positive() TransactionLog {
	return l.filter(func(t Transaction) bool { return !t.Archived && t.Price.IsPositive() })
}

// Balance sums the price of the active transactions.
func (l TransactionLog) Balance() decimal.Decimal {
	total := decimal.Zero
	for _, t := range l {
		if !t.Archived {
			total = total.Add(t.Price)
		}
	}
	return total
}

// Stock sums the count of the active transactions for one lot.
func (l TransactionLog) Stock(itemID int64) int {
	total := 0
	for _, t := range l {
		if !t.Archived && t.ItemID == itemID {
			total += t.Count
		}
	}
	return total
}

func (l TransactionLog) filter(keep func(Transaction) bool) TransactionLog {
	out := TransactionLog{}
	for _, t := range l {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
