package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Console prints events as human readable lines, for a terminal next to
// the scanner.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(_ context.Context, ev Event) error {
	var line string
	switch ev.Kind {
	case BarcodeScanned:
		line = fmt.Sprintf("Scanned barcode %s", ev.Barcode)
	case MemberIdentified:
		if ev.Member == nil {
			return nil
		}
		line = fmt.Sprintf("Hello %s, balance %s", ev.Member.Nick, ev.Member.Balance.StringFixed(2))
	case OutOfStock:
		line = fmt.Sprintf("Item %s is out of stock", ev.Barcode)
		if ev.Shortage != nil {
			line += fmt.Sprintf(" (available %d, requested %d)", ev.Shortage.Available, ev.Shortage.Requested)
		}
	default:
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, line)
	return err
}
