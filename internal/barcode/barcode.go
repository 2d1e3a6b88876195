// Package barcode decides what a scanned code refers to.
package barcode

import (
	"context"
	"fmt"
	"strings"

	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/store"
)

// Type is the classification of a scanned code.
type Type int

const (
	Unknown Type = iota
	Member
	Item
)

func (t Type) String() string {
	switch t {
	case Member:
		return "member"
	case Item:
		return "item"
	}
	return "unknown"
}

// Resolution is a classified code with the entities it refers to.
type Resolution struct {
	Code   string
	Type   Type
	Member *model.Member
	Lots   []model.Item
}

// Classifier looks codes up in the member table, then the item table.
type Classifier struct {
	q              store.Querier
	paymentBarcode string
}

// NewClassifier returns a Classifier. Codes equal to paymentBarcode are
// never classified as items.
func NewClassifier(q store.Querier, paymentBarcode string) *Classifier {
	return &Classifier{q: q, paymentBarcode: paymentBarcode}
}

// Classify returns the type of code. A code that is both a member and an
// item barcode returns model.ErrAmbiguousBarcode.
func (c *Classifier) Classify(ctx context.Context, code string) (Type, error) {
	r, err := c.Resolve(ctx, code)
	return r.Type, err
}

// Resolve classifies code and loads the member or the item lots.
func (c *Classifier) Resolve(ctx context.Context, code string) (Resolution, error) {
	code = strings.TrimSpace(code)
	r := Resolution{Code: code}
	if code == "" || code == c.paymentBarcode {
		return r, nil
	}

	member, err := store.GetMemberByBarcode(ctx, c.q, code)
	if err != nil {
		return r, fmt.Errorf("classifying %s: %w", code, err)
	}
	lots, err := store.ListItemsByBarcode(ctx, c.q, code)
	if err != nil {
		return r, fmt.Errorf("classifying %s: %w", code, err)
	}

	switch {
	case member != nil && len(lots) > 0:
		return r, fmt.Errorf("classifying %s: %w", code, model.ErrAmbiguousBarcode)
	case member != nil:
		r.Type = Member
		r.Member = member
	case len(lots) > 0:
		r.Type = Item
		r.Lots = lots
	}
	return r, nil
}
