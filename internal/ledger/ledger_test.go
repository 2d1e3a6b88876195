package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurdspace/nurdbar/internal/db"
	"github.com/nurdspace/nurdbar/internal/metrics"
	"github.com/nurdspace/nurdbar/internal/model"
)

const (
	memberCode = "133713371337"
	beerCode   = "12312893712938"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	ledger *Ledger
	member *model.Member
	beer   *model.Item
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	l, err := New(db.NewTestDB(t), DefaultConfig(), opts...)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = l.EnsurePaymentItem(ctx)
	require.NoError(t, err)
	member, err := l.RegisterMember(ctx, memberCode, "SmokeyD")
	require.NoError(t, err)
	beer, err := l.RegisterItem(ctx, beerCode, dec("0.50"))
	require.NoError(t, err)

	return fixture{ledger: l, member: member, beer: beer}
}

func (f fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), memberCode)
	require.NoError(t, err)
	return b
}

func (f fixture) stock(t *testing.T, itemID int64) int {
	t.Helper()
	item, err := f.ledger.Item(context.Background(), itemID)
	require.NoError(t, err)
	return item.Stock
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "expected %s, got %s", want, got)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PaymentUnitPrice = decimal.Zero
	_, err := New(db.NewTestDB(t), cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.PaymentBarcode = ""
	_, err = New(db.NewTestDB(t), cfg)
	assert.Error(t, err)
}

func TestEnsurePaymentItemIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.EnsurePaymentItem(ctx)
	require.NoError(t, err)
	second, err := f.ledger.EnsurePaymentItem(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assertDecimal(t, "0.01", first.Price)
}

func TestRecordTransactionBalanceAndStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	steps := []struct {
		count   int
		stock   int
		balance string
	}{
		{10, 10, "5"},
		{-1, 9, "4.50"},
		{-1, 8, "4"},
		{-1, 7, "3.50"},
		{-8, -1, "-0.50"},
	}
	for _, s := range steps {
		_, err := f.ledger.RecordTransaction(ctx, f.beer.ID, f.member.ID, s.count)
		require.NoError(t, err)
		assert.Equal(t, s.stock, f.stock(t, f.beer.ID))
		assertDecimal(t, s.balance, f.balance(t))
	}

	_, err := f.ledger.RecordTransaction(ctx, f.beer.ID, f.member.ID, 0)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
	_, err = f.ledger.RecordTransaction(ctx, 999, f.member.ID, 1)
	assert.ErrorIs(t, err, model.ErrUnknownItem)
	_, err = f.ledger.RecordTransaction(ctx, f.beer.ID, 999, 1)
	assert.ErrorIs(t, err, model.ErrUnknownMember)
}

func TestGiveItemReusesOrCreatesLots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GiveItem(ctx, "133713371338", beerCode, dec("0.10"), 1)
	require.ErrorIs(t, err, model.ErrUnknownMember)
	assert.True(t, model.IsNotFound(err))

	same, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.50"), 10)
	require.NoError(t, err)
	assert.Equal(t, f.beer.ID, same.ItemID)

	cheaper, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.25"), 10)
	require.NoError(t, err)
	assert.NotEqual(t, f.beer.ID, cheaper.ItemID)

	lots, err := f.ledger.Lots(ctx, beerCode)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, 10, lots[0].Stock)
	assert.Equal(t, 10, lots[1].Stock)
	assertDecimal(t, "7.50", f.balance(t))
}

func TestGiveItemRegistersNewBarcode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.ledger.GiveItem(ctx, memberCode, "8710000", dec("1.20"), 6)
	require.NoError(t, err)
	assert.Equal(t, 6, tr.Count)
	assertDecimal(t, "7.2", tr.Price)

	lots, err := f.ledger.Lots(ctx, "8710000")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, 6, lots[0].Stock)
}

func TestGiveItemWithinTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PriceTolerance = dec("0.05")
	l, err := New(db.NewTestDB(t), cfg)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.RegisterMember(ctx, memberCode, "SmokeyD")
	require.NoError(t, err)
	first, err := l.RegisterItem(ctx, beerCode, dec("0.50"))
	require.NoError(t, err)

	tr, err := l.GiveItem(ctx, memberCode, beerCode, dec("0.53"), 2)
	require.NoError(t, err)
	assert.Equal(t, first.ID, tr.ItemID)
	// Booked at the lot's price, not the given one.
	assertDecimal(t, "1", tr.Price)

	tr, err = l.GiveItem(ctx, memberCode, beerCode, dec("0.60"), 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, tr.ItemID)
}

func TestGiveItemRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.50"), 0)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
	_, err = f.ledger.GiveItem(ctx, memberCode, beerCode, dec("-0.50"), 1)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
	_, err = f.ledger.GiveItem(ctx, memberCode, "1010101010", dec("0.01"), 1)
	assert.ErrorIs(t, err, model.ErrReservedBarcode)
	_, err = f.ledger.GiveItem(ctx, memberCode, memberCode, dec("1"), 1)
	assert.ErrorIs(t, err, model.ErrAmbiguousBarcode)
}

func TestTakeItemFIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.TakeItem(ctx, memberCode, beerCode, 1)
	var short *model.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 0, short.Available)
	assert.Equal(t, 1, short.Requested)

	_, err = f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.50"), 10)
	require.NoError(t, err)

	_, err = f.ledger.TakeItem(ctx, "133713371338", beerCode, 1)
	require.ErrorIs(t, err, model.ErrUnknownMember)

	_, err = f.ledger.TakeItem(ctx, memberCode, beerCode, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, f.stock(t, f.beer.ID))
	assertDecimal(t, "4.50", f.balance(t))

	_, err = f.ledger.TakeItem(ctx, memberCode, beerCode, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, f.beer.ID))
	assertDecimal(t, "3.00", f.balance(t))

	cheap, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.25"), 10)
	require.NoError(t, err)

	taken, err := f.ledger.TakeItem(ctx, memberCode, beerCode, 8)
	require.NoError(t, err)
	require.Len(t, taken, 2)
	assert.Equal(t, f.beer.ID, taken[0].ItemID)
	assert.Equal(t, -6, taken[0].Count)
	assert.Equal(t, cheap.ItemID, taken[1].ItemID)
	assert.Equal(t, -2, taken[1].Count)

	assert.Equal(t, 0, f.stock(t, f.beer.ID))
	assert.Equal(t, 8, f.stock(t, cheap.ItemID))
	assertDecimal(t, "2.00", f.balance(t))
}

func TestTakeItemSingleLotPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.RecordTransaction(ctx, f.beer.ID, f.member.ID, 10)
	require.NoError(t, err)
	cheap, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.25"), 10)
	require.NoError(t, err)

	before := f.balance(t)
	taken, err := f.ledger.TakeItem(ctx, memberCode, beerCode, 3)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assertDecimal(t, "-1.50", taken[0].Price)
	assertDecimal(t, before.Sub(dec("1.50")).String(), f.balance(t))
	assert.Equal(t, 7, f.stock(t, f.beer.ID))
	assert.Equal(t, 10, f.stock(t, cheap.ItemID))
}

func TestTakeItemInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.50"), 2)
	require.NoError(t, err)
	_, err = f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.25"), 1)
	require.NoError(t, err)

	before := f.balance(t)
	_, err = f.ledger.TakeItem(ctx, memberCode, beerCode, 4)
	var short *model.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 3, short.Available)
	assert.Equal(t, beerCode, short.Barcode)

	assertDecimal(t, before.String(), f.balance(t))
	log, err := f.ledger.AllTransactions(ctx, f.member.ID)
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

func TestTakeItemSkipsNegativeLots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.RecordTransaction(ctx, f.beer.ID, f.member.ID, -2)
	require.NoError(t, err)
	cheap, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.25"), 3)
	require.NoError(t, err)

	taken, err := f.ledger.TakeItem(ctx, memberCode, beerCode, 3)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, cheap.ItemID, taken[0].ItemID)
	assert.Equal(t, -2, f.stock(t, f.beer.ID))
}

func TestTakeItemUnknownBarcode(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.TakeItem(context.Background(), memberCode, "000", 1)
	assert.ErrorIs(t, err, model.ErrUnknownItem)

	_, err = f.ledger.TakeItem(context.Background(), memberCode, "1010101010", 1)
	assert.ErrorIs(t, err, model.ErrReservedBarcode)
}

func TestPayAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.RecordTransaction(ctx, f.beer.ID, f.member.ID, -10)
	require.NoError(t, err)
	assertDecimal(t, "-5", f.balance(t))

	payment, err := f.ledger.PayAmount(ctx, memberCode, dec("6.50"))
	require.NoError(t, err)
	assert.Equal(t, 650, payment.Count)
	assertDecimal(t, "6.50", payment.Price)
	assertDecimal(t, "1.5", f.balance(t))

	for _, bad := range []string{"0", "-1", "0.005"} {
		_, err := f.ledger.PayAmount(ctx, memberCode, dec(bad))
		assert.ErrorIs(t, err, model.ErrInvalidAmount, bad)
	}

	// Payments do not show up as stock.
	levels, err := f.ledger.Stock(ctx)
	require.NoError(t, err)
	for _, level := range levels {
		assert.NotEqual(t, "1010101010", level.Barcode)
	}
	lots, err := f.ledger.Lots(ctx, "1010101010")
	require.NoError(t, err)
	assert.Empty(t, lots)
}

func TestPayAmountCreatesMissingPaymentItem(t *testing.T) {
	l, err := New(db.NewTestDB(t), DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.RegisterMember(ctx, memberCode, "SmokeyD")
	require.NoError(t, err)
	_, err = l.PayAmount(ctx, memberCode, dec("1"))
	require.NoError(t, err)

	b, err := l.Balance(ctx, memberCode)
	require.NoError(t, err)
	assertDecimal(t, "1", b)
}

func TestArchiveTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.50"), 4)
	require.NoError(t, err)
	taken, err := f.ledger.TakeItem(ctx, memberCode, beerCode, 1)
	require.NoError(t, err)

	require.NoError(t, f.ledger.ArchiveTransaction(ctx, taken[0].ID))

	assertDecimal(t, "2", f.balance(t))
	assert.Equal(t, 4, f.stock(t, f.beer.ID))

	active, err := f.ledger.Transactions(ctx, f.member.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := f.ledger.AllTransactions(ctx, f.member.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[1].Archived)

	assert.ErrorIs(t, f.ledger.ArchiveTransaction(ctx, 999), model.ErrNotFound)
}

func TestRegisterRejectsCollidingBarcodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.RegisterMember(ctx, beerCode, "beer-person")
	assert.ErrorIs(t, err, model.ErrAmbiguousBarcode)
	_, err = f.ledger.RegisterItem(ctx, memberCode, dec("1"))
	assert.ErrorIs(t, err, model.ErrAmbiguousBarcode)
	_, err = f.ledger.RegisterMember(ctx, "1010101010", "cash")
	assert.ErrorIs(t, err, model.ErrReservedBarcode)
	_, err = f.ledger.RegisterMember(ctx, memberCode, "other")
	assert.ErrorIs(t, err, model.ErrDuplicateKey)
	_, err = f.ledger.RegisterItem(ctx, beerCode, dec("0.5"))
	assert.ErrorIs(t, err, model.ErrDuplicateKey)
}

func TestRenameAndReprice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	renamed, err := f.ledger.RenameMember(ctx, f.member.ID, "Smokey")
	require.NoError(t, err)
	assert.Equal(t, "Smokey", renamed.Nick)
	assert.True(t, renamed.UpdatedAt.After(f.member.UpdatedAt))

	byNick, err := f.ledger.MemberByNick(ctx, "Smokey")
	require.NoError(t, err)
	assert.Equal(t, f.member.ID, byNick.ID)

	_, err = f.ledger.RecordTransaction(ctx, f.beer.ID, f.member.ID, -1)
	require.NoError(t, err)
	repriced, err := f.ledger.RepriceItem(ctx, f.beer.ID, dec("0.60"))
	require.NoError(t, err)
	assertDecimal(t, "0.6", repriced.Price)
	// The earlier take keeps its price.
	assertDecimal(t, "-0.50", f.balance(t))

	payment, err := f.ledger.EnsurePaymentItem(ctx)
	require.NoError(t, err)
	_, err = f.ledger.RepriceItem(ctx, payment.ID, dec("1"))
	assert.ErrorIs(t, err, model.ErrReservedBarcode)
}

func TestConcurrentTakesNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.50"), 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, short int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.TakeItem(ctx, memberCode, beerCode, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, model.ErrInsufficientStock):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, short)
	assert.Equal(t, 0, f.stock(t, f.beer.ID))
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, WithMetrics(metrics.New(reg)))
	ctx := context.Background()

	_, err := f.ledger.GiveItem(ctx, memberCode, beerCode, dec("0.50"), 1)
	require.NoError(t, err)
	_, err = f.ledger.TakeItem(ctx, memberCode, beerCode, 2)
	require.Error(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["nurdbar_transactions_total"])
	assert.True(t, names["nurdbar_out_of_stock_total"])
	assert.True(t, names["nurdbar_ledger_operation_duration_seconds"])
}
