// Package notify delivers scan session events to registered listeners.
// Delivery is synchronous and in registration order. A listener that fails
// or panics is logged and skipped; the others still run.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/model"
)

// Kind identifies an event.
type Kind int

const (
	BarcodeScanned Kind = iota + 1
	MemberIdentified
	OutOfStock
)

func (k Kind) String() string {
	switch k {
	case BarcodeScanned:
		return "barcode_scanned"
	case MemberIdentified:
		return "member_identified"
	case OutOfStock:
		return "out_of_stock"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one notification. Which fields are set depends on Kind:
// BarcodeScanned sets Barcode, MemberIdentified sets Member, OutOfStock
// sets Barcode, Member, Lots, and Shortage.
type Event struct {
	Kind      Kind
	SessionID string
	At        time.Time
	Barcode   string
	Member    *model.Member
	Lots      []model.Item
	Shortage  *model.InsufficientStockError
}

// Listener receives events.
type Listener interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

type funcListener struct {
	name string
	fn   func(context.Context, Event) error
}

func (f funcListener) Name() string { return f.name }

func (f funcListener) Notify(ctx context.Context, ev Event) error { return f.fn(ctx, ev) }

// Func adapts fn into a Listener called name.
func Func(name string, fn func(context.Context, Event) error) Listener {
	return funcListener{name: name, fn: fn}
}

var (
	ErrDuplicateListener = errors.New("notify: duplicate listener")
	ErrClosed            = errors.New("notify: sink closed")
)

// Sink fans events out to listeners.
type Sink struct {
	mu        sync.RWMutex
	listeners []Listener
	closed    bool
	log       *logger.Logger
}

// NewSink returns an open sink. A nil logger discards.
func NewSink(log *logger.Logger) *Sink {
	if log == nil {
		log = logger.Nop()
	}
	return &Sink{log: log}
}

// Register adds a listener. Names must be unique within the sink.
func (s *Sink) Register(l Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for _, existing := range s.listeners {
		if existing.Name() == l.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateListener, l.Name())
		}
	}
	s.listeners = append(s.listeners, l)
	return nil
}

// Unregister removes the listener called name and reports whether it was
// registered.
func (s *Sink) Unregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.listeners {
		if l.Name() == name {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// Fire delivers ev to every listener registered when Fire is called.
// Listeners may register or unregister from inside Notify.
func (s *Sink) Fire(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	snapshot := make([]Listener, len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.RUnlock()

	for _, l := range snapshot {
		if err := s.deliver(ctx, l, ev); err != nil {
			s.log.Error(s.log.WithFields(ctx, map[string]any{
				"listener": l.Name(),
				"event":    ev.Kind.String(),
			}), "listener failed", err)
		}
	}
}

func (s *Sink) deliver(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.Notify(ctx, ev)
}

// Close drops all listeners. Later Fire calls do nothing and Register
// fails with ErrClosed.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = nil
}
