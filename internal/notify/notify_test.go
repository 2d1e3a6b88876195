package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurdspace/nurdbar/internal/model"
)

func recorder(name string, got *[]string) Listener {
	return Func(name, func(_ context.Context, ev Event) error {
		*got = append(*got, name+":"+ev.Kind.String())
		return nil
	})
}

func TestFireDeliversInOrder(t *testing.T) {
	s := NewSink(nil)
	var got []string
	require.NoError(t, s.Register(recorder("a", &got)))
	require.NoError(t, s.Register(recorder("b", &got)))

	s.Fire(context.Background(), Event{Kind: BarcodeScanned, Barcode: "123"})

	assert.Equal(t, []string{"a:barcode_scanned", "b:barcode_scanned"}, got)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := NewSink(nil)
	var got []string
	require.NoError(t, s.Register(recorder("a", &got)))
	err := s.Register(recorder("a", &got))
	assert.ErrorIs(t, err, ErrDuplicateListener)
	assert.Equal(t, 1, s.Len())
}

func TestUnregister(t *testing.T) {
	s := NewSink(nil)
	var got []string
	s.Register(recorder("a", &got))
	s.Register(recorder("b", &got))

	assert.True(t, s.Unregister("a"))
	assert.False(t, s.Unregister("a"))

	s.Fire(context.Background(), Event{Kind: OutOfStock})
	assert.Equal(t, []string{"b:out_of_stock"}, got)
}

func TestFailingListenersDoNotStopOthers(t *testing.T) {
	s := NewSink(nil)
	var got []string
	s.Register(Func("errors", func(context.Context, Event) error { return errors.New("nope") }))
	s.Register(Func("panics", func(context.Context, Event) error { panic("boom") }))
	s.Register(recorder("ok", &got))

	assert.NotPanics(t, func() {
		s.Fire(context.Background(), Event{Kind: MemberIdentified})
	})
	assert.Equal(t, []string{"ok:member_identified"}, got)
}

func TestListenerMayUnregisterItselfDuringFire(t *testing.T) {
	s := NewSink(nil)
	var calls int
	s.Register(Func("once", func(context.Context, Event) error {
		calls++
		s.Unregister("once")
		return nil
	}))

	s.Fire(context.Background(), Event{Kind: BarcodeScanned})
	s.Fire(context.Background(), Event{Kind: BarcodeScanned})
	assert.Equal(t, 1, calls)
}

func TestClose(t *testing.T) {
	s := NewSink(nil)
	var got []string
	s.Register(recorder("a", &got))
	s.Close()

	s.Fire(context.Background(), Event{Kind: BarcodeScanned})
	assert.Empty(t, got)
	assert.ErrorIs(t, s.Register(recorder("b", &got)), ErrClosed)
	assert.Equal(t, 0, s.Len())
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	ctx := context.Background()

	require.NoError(t, c.Notify(ctx, Event{Kind: BarcodeScanned, Barcode: "4000"}))
	require.NoError(t, c.Notify(ctx, Event{Kind: MemberIdentified, Member: &model.Member{
		Nick:    "SmokeyD",
		Balance: decimal.RequireFromString("-1.5"),
	}}))
	require.NoError(t, c.Notify(ctx, Event{Kind: OutOfStock, Barcode: "4000",
		Shortage: &model.InsufficientStockError{Barcode: "4000", Available: 0, Requested: 1}}))

	assert.Equal(t,
		"Scanned barcode 4000\n"+
			"Hello SmokeyD, balance -1.50\n"+
			"Item 4000 is out of stock (available 0, requested 1)\n",
		buf.String())
}
