// Package ledger applies gives, takes, and payments to the bar's books.
// Every mutation runs under one lock and inside one SQL transaction, so a
// multi-lot take either lands completely or not at all.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/metrics"
	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/store"
)

// Transaction kinds, used as metric labels.
const (
	KindGive   = "give"
	KindTake   = "take"
	KindPay    = "pay"
	KindManual = "manual"
)

// Config holds the bar-wide ledger settings.
type Config struct {
	// PaymentBarcode is the sentinel lot payments are booked against.
	PaymentBarcode string
	// PaymentUnitPrice is the value of one unit of the payment lot.
	PaymentUnitPrice decimal.Decimal
	// PriceTolerance is how far a given price may be from an existing lot's
	// price and still be booked on that lot.
	PriceTolerance decimal.Decimal
}

// DefaultConfig returns the settings the bar has always used.
func DefaultConfig() Config {
	return Config{
		PaymentBarcode:   "1010101010",
		PaymentUnitPrice: decimal.New(1, -2),
		PriceTolerance:   decimal.Zero,
	}
}

func (c Config) validate() error {
	if c.PaymentBarcode == "" {
		return errors.New("payment barcode required")
	}
	if !c.PaymentUnitPrice.IsPositive() {
		return fmt.Errorf("payment unit price %s must be positive", c.PaymentUnitPrice)
	}
	if c.PriceTolerance.IsNegative() {
		return fmt.Errorf("price tolerance %s must not be negative", c.PriceTolerance)
	}
	return nil
}

// Ledger is the single writer of members, lots, and transactions.
type Ledger struct {
	db      *sql.DB
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Bar

	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. The default discards.
func WithLogger(l *logger.Logger) Option {
	return func(lg *Ledger) { lg.log = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Bar) Option {
	return func(lg *Ledger) { lg.metrics = m }
}

// New returns a Ledger over database.
func New(database *sql.DB, cfg Config, opts ...Option) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("ledger config: %w", err)
	}
	l := &Ledger{db: database, cfg: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the ledger's settings.
func (l *Ledger) Config() Config {
	return l.cfg
}

// IsPaymentBarcode reports whether code is the payment sentinel.
func (l *Ledger) IsPaymentBarcode(code string) bool {
	return code == l.cfg.PaymentBarcode
}

// apply runs fn in one SQL transaction while holding the write lock. fn must
// only use tx: the pool has a single connection.
func (l *Ledger) apply(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	err := store.WithTx(ctx, l.db, fn)
	l.metrics.ObserveOperation(op, time.Since(start), err)
	return err
}

// EnsurePaymentItem creates the payment sentinel lot if it does not exist.
func (l *Ledger) EnsurePaymentItem(ctx context.Context) (*model.Item, error) {
	var item *model.Item
	err := l.apply(ctx, "ensure_payment_item", func(tx *sql.Tx) error {
		var err error
		item, err = l.paymentItem(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring payment item: %w", err)
	}
	return item, nil
}

func (l *Ledger) paymentItem(ctx context.Context, q store.Querier) (*model.Item, error) {
	item, err := store.GetItemByPrice(ctx, q, l.cfg.PaymentBarcode, l.cfg.PaymentUnitPrice)
	if err != nil || item != nil {
		return item, err
	}
	item, err = store.CreateItem(ctx, q, l.cfg.PaymentBarcode, l.cfg.PaymentUnitPrice)
	if err != nil {
		return nil, err
	}
	l.log.Info(ctx, "created payment item")
	return item, nil
}

// RegisterMember adds a member. The barcode may not belong to an item.
func (l *Ledger) RegisterMember(ctx context.Context, barcode, nick string) (*model.Member, error) {
	if l.IsPaymentBarcode(barcode) {
		return nil, fmt.Errorf("registering member: %w", model.ErrReservedBarcode)
	}

	var member *model.Member
	err := l.apply(ctx, "register_member", func(tx *sql.Tx) error {
		isItem, err := store.ItemBarcodeExists(ctx, tx, barcode)
		if err != nil {
			return err
		}
		if isItem {
			return model.ErrAmbiguousBarcode
		}
		member, err = store.CreateMember(ctx, tx, barcode, nick)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("registering member: %w", err)
	}

	l.log.Info(l.log.WithFields(ctx, map[string]any{"member": member.Nick, "member_id": member.ID}), "registered member")
	return member, nil
}

// RenameMember changes a member's nick.
func (l *Ledger) RenameMember(ctx context.Context, id int64, nick string) (*model.Member, error) {
	var member *model.Member
	err := l.apply(ctx, "rename_member", func(tx *sql.Tx) error {
		var err error
		member, err = store.UpdateMemberNick(ctx, tx, id, nick)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("renaming member: %w", err)
	}
	return member, nil
}

// RegisterItem adds a new lot of barcode at price. The barcode may not
// belong to a member.
func (l *Ledger) RegisterItem(ctx context.Context, barcode string, price decimal.Decimal) (*model.Item, error) {
	if l.IsPaymentBarcode(barcode) {
		return nil, fmt.Errorf("registering item: %w", model.ErrReservedBarcode)
	}

	var item *model.Item
	err := l.apply(ctx, "register_item", func(tx *sql.Tx) error {
		if err := l.checkNotMember(ctx, tx, barcode); err != nil {
			return err
		}
		var err error
		item, err = store.CreateItem(ctx, tx, barcode, price)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("registering item: %w", err)
	}

	l.log.Info(l.log.WithFields(ctx, map[string]any{"barcode": item.Barcode, "price": item.Price.String()}), "registered item lot")
	return item, nil
}

// RepriceItem changes the price of a lot. Past transactions keep the
// price they were booked at.
func (l *Ledger) RepriceItem(ctx context.Context, id int64, price decimal.Decimal) (*model.Item, error) {
	var item *model.Item
	err := l.apply(ctx, "reprice_item", func(tx *sql.Tx) error {
		current, err := store.GetItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return model.ErrUnknownItem
		}
		if l.IsPaymentBarcode(current.Barcode) {
			return model.ErrReservedBarcode
		}
		item, err = store.UpdateItemPrice(ctx, tx, id, price)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("repricing item: %w", err)
	}
	return item, nil
}

func (l *Ledger) checkNotMember(ctx context.Context, q store.Querier, barcode string) error {
	member, err := store.GetMemberByBarcode(ctx, q, barcode)
	if err != nil {
		return err
	}
	if member != nil {
		return model.ErrAmbiguousBarcode
	}
	return nil
}

func (l *Ledger) memberByBarcode(ctx context.Context, q store.Querier, barcode string) (*model.Member, error) {
	member, err := store.GetMemberByBarcode(ctx, q, barcode)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w %s", model.ErrUnknownMember, barcode)
	}
	return member, nil
}
