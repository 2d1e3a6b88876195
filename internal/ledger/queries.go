package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/store"
)

// Member returns the member with barcode.
func (l *Ledger) Member(ctx context.Context, barcode string) (*model.Member, error) {
	return l.memberByBarcode(ctx, l.db, barcode)
}

// MemberByID returns the member with id.
func (l *Ledger) MemberByID(ctx context.Context, id int64) (*model.Member, error) {
	member, err := store.GetMember(ctx, l.db, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w %d", model.ErrUnknownMember, id)
	}
	return member, nil
}

// MemberByNick returns the member called nick.
func (l *Ledger) MemberByNick(ctx context.Context, nick string) (*model.Member, error) {
	member, err := store.GetMemberByNick(ctx, l.db, nick)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w %q", model.ErrUnknownMember, nick)
	}
	return member, nil
}

// Members lists all members with their balances.
func (l *Ledger) Members(ctx context.Context) ([]model.Member, error) {
	return store.ListMembers(ctx, l.db)
}

// Balance returns the sum of the member's active transactions.
func (l *Ledger) Balance(ctx context.Context, memberBarcode string) (decimal.Decimal, error) {
	member, err := l.Member(ctx, memberBarcode)
	if err != nil {
		return decimal.Zero, err
	}
	return member.Balance, nil
}

// Transactions returns the member's active transactions, oldest first.
func (l *Ledger) Transactions(ctx context.Context, memberID int64) (model.TransactionLog, error) {
	return l.memberTransactions(ctx, memberID, false)
}

// AllTransactions returns the member's transactions including archived ones.
func (l *Ledger) AllTransactions(ctx context.Context, memberID int64) (model.TransactionLog, error) {
	return l.memberTransactions(ctx, memberID, true)
}

func (l *Ledger) memberTransactions(ctx context.Context, memberID int64, includeArchived bool) (model.TransactionLog, error) {
	if _, err := l.MemberByID(ctx, memberID); err != nil {
		return nil, err
	}
	return store.ListMemberTransactions(ctx, l.db, memberID, includeArchived)
}

// Transaction returns one transaction by id.
func (l *Ledger) Transaction(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := store.GetTransaction(ctx, l.db, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("transaction %d: %w", id, model.ErrNotFound)
	}
	return t, nil
}

// Item returns one lot by id.
func (l *Ledger) Item(ctx context.Context, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, l.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w %d", model.ErrUnknownItem, id)
	}
	return item, nil
}

// Lots returns every lot of barcode, oldest first. The payment sentinel has
// no lots as far as callers are concerned.
func (l *Ledger) Lots(ctx context.Context, barcode string) ([]model.Item, error) {
	if l.IsPaymentBarcode(barcode) {
		return nil, nil
	}
	return store.ListItemsByBarcode(ctx, l.db, barcode)
}

// Stock returns the stock per item barcode, leaving out the payment lot.
func (l *Ledger) Stock(ctx context.Context) ([]model.StockLevel, error) {
	return store.ListStockLevels(ctx, l.db, l.cfg.PaymentBarcode)
}

// ItemHistory returns the active transactions on barcode, newest first.
func (l *Ledger) ItemHistory(ctx context.Context, barcode string) (model.TransactionLog, error) {
	return store.ListBarcodeTransactions(ctx, l.db, barcode)
}
