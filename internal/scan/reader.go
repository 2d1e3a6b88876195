package scan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Handler receives scanned codes. *Session implements it.
type Handler interface {
	HandleBarcode(ctx context.Context, code string)
}

// ReadLines feeds every non-blank line of r to h until r is exhausted or
// ctx is done. Scanners send one code per line, terminated by CR, LF, or
// CRLF. A blocked read is only interrupted by closing r.
func ReadLines(ctx context.Context, r io.Reader, h Handler) error {
	sc := bufio.NewScanner(r)
	sc.Split(scanLines)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := strings.TrimSpace(sc.Text())
		if code == "" {
			continue
		}
		h.HandleBarcode(ctx, code)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading scanner: %w", err)
	}
	return ctx.Err()
}

// scanLines splits on CR or LF.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
