package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store, the ledger, and the scan session.
var (
	ErrDuplicateKey      = errors.New("nurdbar: duplicate key")
	ErrNotFound          = errors.New("nurdbar: not found")
	ErrUnknownMember     = fmt.Errorf("%w: unknown member", ErrNotFound)
	ErrUnknownItem       = fmt.Errorf("%w: unknown item", ErrNotFound)
	ErrInsufficientStock = errors.New("nurdbar: insufficient stock")
	ErrAmbiguousBarcode  = errors.New("nurdbar: barcode is both a member and an item")
	ErrOutOfSequenceScan = errors.New("nurdbar: scan out of sequence")
	ErrStoreUnavailable  = errors.New("nurdbar: store unavailable")
	ErrInvalidAmount     = errors.New("nurdbar: invalid amount")
	ErrReservedBarcode   = errors.New("nurdbar: barcode is reserved for payments")
)

// DuplicateKeyError reports which unique field was violated.
type DuplicateKeyError struct {
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("nurdbar: duplicate %s %q", e.Field, e.Value)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// InsufficientStockError is returned when a take asks for more than the lots
// of a barcode hold.
type InsufficientStockError struct {
	Barcode   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("nurdbar: insufficient stock for %s: available %d, requested %d",
		e.Barcode, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsNotFound returns true for any reference resolution failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
