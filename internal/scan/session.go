// Package scan turns a stream of scanned barcodes into ledger operations.
// A member scan opens a session; the next item scan books a take (or a
// give) for that member and closes it again.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nurdspace/nurdbar/internal/barcode"
	"github.com/nurdspace/nurdbar/internal/ledger"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/metrics"
	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/notify"
)

// State of a session.
type State int

const (
	Idle State = iota
	MemberIdentified
)

func (s State) String() string {
	if s == MemberIdentified {
		return "member_identified"
	}
	return "idle"
}

// Modes decide what an item scan books.
const (
	ModeTake = "take"
	ModeGive = "give"
)

// Options configures a Session.
type Options struct {
	// Mode is ModeTake (default) or ModeGive.
	Mode string
	// Amount is the number of units booked per item scan. Default 1.
	Amount int
	// Timeout drops an identified member who has not scanned an item for
	// this long. Zero disables it.
	Timeout time.Duration
	Logger  *logger.Logger
	Metrics *metrics.Bar
}

// Session is the scanner state machine. Its sink is created with the
// session and closed by Close. Listeners run while the session is locked
// and must not call back into it.
type Session struct {
	ledger     *ledger.Ledger
	classifier *barcode.Classifier
	sink       *notify.Sink
	log        *logger.Logger
	metrics    *metrics.Bar
	id         string
	amount     int
	timeout    time.Duration
	now        func() time.Time

	mu       sync.Mutex
	mode     string
	state    State
	member   *model.Member
	memberAt time.Time
}

// NewSession starts a session booking through l.
func NewSession(l *ledger.Ledger, c *barcode.Classifier, opts Options) (*Session, error) {
	if opts.Mode == "" {
		opts.Mode = ModeTake
	}
	if opts.Mode != ModeTake && opts.Mode != ModeGive {
		return nil, fmt.Errorf("unknown scan mode %q", opts.Mode)
	}
	if opts.Amount == 0 {
		opts.Amount = 1
	}
	if opts.Amount < 0 {
		return nil, fmt.Errorf("%w: scan amount %d", model.ErrInvalidAmount, opts.Amount)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Session{
		ledger:     l,
		classifier: c,
		sink:       notify.NewSink(opts.Logger),
		log:        opts.Logger,
		metrics:    opts.Metrics,
		id:         uuid.NewString(),
		amount:     opts.Amount,
		timeout:    opts.Timeout,
		now:        time.Now,
		mode:       opts.Mode,
	}, nil
}

// ID returns the session id that tags its log lines.
func (s *Session) ID() string {
	return s.id
}

// Sink returns the session's notification sink.
func (s *Session) Sink() *notify.Sink {
	return s.sink
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Member returns the identified member, or nil when idle.
func (s *Session) Member() *model.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.member == nil {
		return nil
	}
	m := *s.member
	return &m
}

// Mode returns the current mode.
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between taking and giving.
func (s *Session) SetMode(mode string) error {
	if mode != ModeTake && mode != ModeGive {
		return fmt.Errorf("unknown scan mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// Reset drops any identified member.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	s.state = Idle
	s.member = nil
	s.memberAt = time.Time{}
}

// Close resets the session and closes its sink.
func (s *Session) Close() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
	s.sink.Close()
}

// Handle processes one scanned code. Whatever the outcome, a failed scan
// leaves the session idle.
func (s *Session) Handle(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = s.log.WithSessionID(ctx, s.id)
	code = strings.TrimSpace(code)
	s.sink.Fire(ctx, notify.Event{Kind: notify.BarcodeScanned, SessionID: s.id, Barcode: code})

	if s.state == MemberIdentified && s.timeout > 0 && s.now().Sub(s.memberAt) > s.timeout {
		s.log.Info(s.log.WithField(ctx, "member", s.member.Nick), "member session timed out")
		s.reset()
	}

	res, err := s.classifier.Resolve(ctx, code)
	if err != nil {
		s.reset()
		return err
	}
	s.metrics.IncScan(res.Type.String())

	if res.Type == barcode.Member {
		s.identify(ctx, res.Member)
		return nil
	}

	if s.state == Idle {
		return fmt.Errorf("%w: %s barcode %s with no member", model.ErrOutOfSequenceScan, res.Type, code)
	}

	member := s.member
	s.reset()
	if res.Type == barcode.Unknown {
		if s.mode == ModeTake {
			s.sink.Fire(ctx, notify.Event{
				Kind:      notify.OutOfStock,
				SessionID: s.id,
				Barcode:   code,
				Member:    member,
				Shortage:  &model.InsufficientStockError{Barcode: code, Requested: s.amount},
			})
		}
		return fmt.Errorf("%w %s", model.ErrUnknownItem, code)
	}
	return s.book(ctx, member, res)
}

func (s *Session) identify(ctx context.Context, member *model.Member) {
	s.state = MemberIdentified
	s.member = member
	s.memberAt = s.now()
	s.sink.Fire(ctx, notify.Event{Kind: notify.MemberIdentified, SessionID: s.id, Member: member})
}

func (s *Session) book(ctx context.Context, member *model.Member, res barcode.Resolution) error {
	if s.mode == ModeGive {
		_, err := s.ledger.GiveItem(ctx, member.Barcode, res.Code, res.Lots[0].Price, s.amount)
		return err
	}

	_, err := s.ledger.TakeItem(ctx, member.Barcode, res.Code, s.amount)
	var short *model.InsufficientStockError
	if errors.As(err, &short) {
		s.sink.Fire(ctx, notify.Event{
			Kind:      notify.OutOfStock,
			SessionID: s.id,
			Barcode:   res.Code,
			Member:    member,
			Lots:      res.Lots,
			Shortage:  short,
		})
	}
	return err
}

// HandleBarcode processes one scanned code and logs any failure instead of
// returning it.
func (s *Session) HandleBarcode(ctx context.Context, code string) {
	err := s.Handle(ctx, code)
	if err == nil {
		return
	}
	ctx = s.log.WithFields(ctx, map[string]any{"session_id": s.id, "barcode": strings.TrimSpace(code)})
	switch {
	case errors.Is(err, model.ErrInsufficientStock):
		s.log.Warn(ctx, "item out of stock")
	case errors.Is(err, model.ErrOutOfSequenceScan), model.IsNotFound(err):
		s.log.Warn(ctx, err.Error())
	default:
		s.log.Error(ctx, "handling barcode", err)
	}
}
