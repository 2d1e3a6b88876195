package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewTransactionPrice(t *testing.T) {
	item := &Item{ID: 7, Barcode: "12312893712938", Price: decimal.RequireFromString("0.50")}
	member := &Member{ID: 3, Nick: "SmokeyD"}

	tx := NewTransaction(item, member, -3, time.Now())
	if !tx.Price.Equal(decimal.RequireFromString("-1.50")) {
		t.Errorf("expected price -1.50, got %s", tx.Price)
	}
	if tx.ItemID != 7 || tx.MemberID != 3 {
		t.Errorf("unexpected references: item %d member %d", tx.ItemID, tx.MemberID)
	}
}

func TestTransactionLogAggregates(t *testing.T) {
	log := TransactionLog{
		{ID: 1, ItemID: 1, Count: 10, Price: decimal.RequireFromString("5")},
		{ID: 2, ItemID: 1, Count: -1, Price: decimal.RequireFromString("-0.5")},
		{ID: 3, ItemID: 2, Count: -2, Price: decimal.RequireFromString("-0.5"), Archived: true},
	}

	if got := log.Balance(); !got.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("expected balance 4.5, got %s", got)
	}
	if got := log.Stock(1); got != 9 {
		t.Errorf("expected stock 9 for item 1, got %d", got)
	}
	if got := log.Stock(2); got != 0 {
		t.Errorf("archived transaction should not count, got %d", got)
	}
	if got := len(log.Active()); got != 2 {
		t.Errorf("expected 2 active, got %d", got)
	}
	if got := len(log.Negative()); got != 1 {
		t.Errorf("expected 1 negative, got %d", got)
	}
	if got := len(log.Positive()); got != 1 {
		t.Errorf("expected 1 positive, got %d", got)
	}
}

func TestAvailableIgnoresNegativeLots(t *testing.T) {
	lots := []Item{{Stock: 4}, {Stock: -2}, {Stock: 3}}
	if got := Available(lots); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	if !errors.Is(ErrUnknownMember, ErrNotFound) || !errors.Is(ErrUnknownItem, ErrNotFound) {
		t.Error("unknown member/item must be not-found errors")
	}

	var err error = &InsufficientStockError{Barcode: "42", Available: 1, Requested: 2}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("InsufficientStockError must match ErrInsufficientStock")
	}

	err = &DuplicateKeyError{Field: "nick", Value: "SmokeyD"}
	if !errors.Is(err, ErrDuplicateKey) {
		t.Error("DuplicateKeyError must match ErrDuplicateKey")
	}
	if IsNotFound(err) {
		t.Error("duplicate key is not a not-found error")
	}
}
