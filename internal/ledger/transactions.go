package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/store"
)

// RecordTransaction books count units of a lot against a member. Unlike
// TakeItem it does not check stock; a lot may go negative.
func (l *Ledger) RecordTransaction(ctx context.Context, itemID, memberID int64, count int) (*model.Transaction, error) {
	if count == 0 {
		return nil, fmt.Errorf("recording transaction: %w: zero count", model.ErrInvalidAmount)
	}

	var t model.Transaction
	err := l.apply(ctx, KindManual, func(tx *sql.Tx) error {
		item, err := store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w %d", model.ErrUnknownItem, itemID)
		}
		member, err := store.GetMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("%w %d", model.ErrUnknownMember, memberID)
		}
		t = model.NewTransaction(item, member, count, store.Now())
		return store.InsertTransaction(ctx, tx, &t)
	})
	if err != nil {
		return nil, fmt.Errorf("recording transaction: %w", err)
	}

	l.metrics.AddTransactions(KindManual, 1)
	l.logTransactions(ctx, KindManual, t)
	return &t, nil
}

// GiveItem books amount units the member hands to the bar at price. The
// units go on the oldest lot whose price is within the tolerance, or on a
// new lot at price when none matches.
func (l *Ledger) GiveItem(ctx context.Context, memberBarcode, itemBarcode string, price decimal.Decimal, amount int) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("giving item: %w: amount %d", model.ErrInvalidAmount, amount)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("giving item: %w: negative price %s", model.ErrInvalidAmount, price)
	}
	if l.IsPaymentBarcode(itemBarcode) {
		return nil, fmt.Errorf("giving item: %w", model.ErrReservedBarcode)
	}

	var t model.Transaction
	err := l.apply(ctx, KindGive, func(tx *sql.Tx) error {
		member, err := l.memberByBarcode(ctx, tx, memberBarcode)
		if err != nil {
			return err
		}
		if err := l.checkNotMember(ctx, tx, itemBarcode); err != nil {
			return err
		}

		lots, err := store.ListItemsByBarcode(ctx, tx, itemBarcode)
		if err != nil {
			return err
		}
		lot := l.matchLot(lots, price)
		if lot == nil {
			if lot, err = store.CreateItem(ctx, tx, itemBarcode, price); err != nil {
				return err
			}
		}

		t = model.NewTransaction(lot, member, amount, store.Now())
		return store.InsertTransaction(ctx, tx, &t)
	})
	if err != nil {
		return nil, fmt.Errorf("giving item: %w", err)
	}

	l.metrics.AddTransactions(KindGive, 1)
	l.logTransactions(ctx, KindGive, t)
	return &t, nil
}

// matchLot returns the oldest lot priced within the tolerance of price.
func (l *Ledger) matchLot(lots []model.Item, price decimal.Decimal) *model.Item {
	for i := range lots {
		if lots[i].Price.Sub(price).Abs().LessThanOrEqual(l.cfg.PriceTolerance) {
			return &lots[i]
		}
	}
	return nil
}

// TakeItem books amount units of itemBarcode taken by the member. Units are
// drawn from the oldest lots first, producing one transaction per lot. If
// the lots together hold fewer than amount units nothing is booked and an
// *model.InsufficientStockError is returned.
func (l *Ledger) TakeItem(ctx context.Context, memberBarcode, itemBarcode string, amount int) ([]model.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("taking item: %w: amount %d", model.ErrInvalidAmount, amount)
	}
	if l.IsPaymentBarcode(itemBarcode) {
		return nil, fmt.Errorf("taking item: %w", model.ErrReservedBarcode)
	}

	var taken []model.Transaction
	err := l.apply(ctx, KindTake, func(tx *sql.Tx) error {
		member, err := l.memberByBarcode(ctx, tx, memberBarcode)
		if err != nil {
			return err
		}

		lots, err := store.ListItemsByBarcode(ctx, tx, itemBarcode)
		if err != nil {
			return err
		}
		if len(lots) == 0 {
			return fmt.Errorf("%w %s", model.ErrUnknownItem, itemBarcode)
		}
		if available := model.Available(lots); available < amount {
			return &model.InsufficientStockError{
				Barcode:   itemBarcode,
				Available: available,
				Requested: amount,
			}
		}

		now := store.Now()
		remaining := amount
		for i := range lots {
			if remaining == 0 {
				break
			}
			if lots[i].Stock <= 0 {
				continue
			}
			n := min(lots[i].Stock, remaining)
			t := model.NewTransaction(&lots[i], member, -n, now)
			if err := store.InsertTransaction(ctx, tx, &t); err != nil {
				return err
			}
			taken = append(taken, t)
			remaining -= n
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrInsufficientStock) {
			l.metrics.IncOutOfStock()
		}
		return nil, fmt.Errorf("taking item: %w", err)
	}

	l.metrics.AddTransactions(KindTake, len(taken))
	l.logTransactions(ctx, KindTake, taken...)
	return taken, nil
}

// PayAmount credits the member with amount, booked as units of the payment
// lot. amount must be a positive multiple of the payment unit price.
func (l *Ledger) PayAmount(ctx context.Context, memberBarcode string, amount decimal.Decimal) (*model.Transaction, error) {
	unit := l.cfg.PaymentUnitPrice
	if !amount.IsPositive() || !amount.Mod(unit).IsZero() {
		return nil, fmt.Errorf("paying: %w: %s is not a positive multiple of %s", model.ErrInvalidAmount, amount, unit)
	}
	count := amount.Div(unit).IntPart()

	var t model.Transaction
	err := l.apply(ctx, KindPay, func(tx *sql.Tx) error {
		member, err := l.memberByBarcode(ctx, tx, memberBarcode)
		if err != nil {
			return err
		}
		item, err := l.paymentItem(ctx, tx)
		if err != nil {
			return err
		}
		t = model.NewTransaction(item, member, int(count), store.Now())
		return store.InsertTransaction(ctx, tx, &t)
	})
	if err != nil {
		return nil, fmt.Errorf("paying: %w", err)
	}

	l.metrics.AddTransactions(KindPay, 1)
	l.logTransactions(ctx, KindPay, t)
	return &t, nil
}

// ArchiveTransaction removes a transaction from balances and stock while
// keeping it in the member's history.
func (l *Ledger) ArchiveTransaction(ctx context.Context, id int64) error {
	err := l.apply(ctx, "archive", func(tx *sql.Tx) error {
		return store.SetTransactionArchived(ctx, tx, id, true)
	})
	if err != nil {
		return fmt.Errorf("archiving transaction: %w", err)
	}
	l.log.Info(l.log.WithField(ctx, "transaction_id", id), "archived transaction")
	return nil
}

func (l *Ledger) logTransactions(ctx context.Context, kind string, ts ...model.Transaction) {
	for _, t := range ts {
		l.log.Info(l.log.WithFields(ctx, map[string]any{
			"kind":           kind,
			"transaction_id": t.ID,
			"member":         t.MemberNick,
			"barcode":        t.ItemBarcode,
			"count":          t.Count,
			"price":          t.Price.String(),
		}), "booked transaction")
	}
}
