package cartsync

import (
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/model"
)

// Snapshot is the engine's copy of the last cart the gateway confirmed.
// CartID is empty when no cart exists.
type Snapshot struct {
	CartID      string
	CheckoutURL string
	Items       []model.CartLine
	Cost        model.CartCost
}

// Empty reports whether there is no cart at all.
func (s Snapshot) Empty() bool { return s.CartID == "" && len(s.Items) == 0 }

// Line returns the line with lineID.
func (s Snapshot) Line(lineID string) (model.CartLine, bool) {
	for _, l := range s.Items {
		if l.ID == lineID {
			return l, true
		}
	}
	return model.CartLine{}, false
}

// LineByVariant returns the line holding variantID, if any.
func (s Snapshot) LineByVariant(variantID string) (model.CartLine, bool) {
	for _, l := range s.Items {
		if l.VariantID == variantID {
			return l, true
		}
	}
	return model.CartLine{}, false
}

// QuantityOf returns the quantity of variantID already in the cart.
func (s Snapshot) QuantityOf(variantID string) int {
	l, _ := s.LineByVariant(variantID)
	return l.Quantity
}

// TotalQuantity sums quantities across lines.
func (s Snapshot) TotalQuantity() int {
	n := 0
	for _, l := range s.Items {
		n += l.Quantity
	}
	return n
}

func (s Snapshot) clone() Snapshot {
	s.Items = append([]model.CartLine(nil), s.Items...)
	return s
}

func fromCart(c *model.Cart) Snapshot {
	return Snapshot{
		CartID:      c.ID,
		CheckoutURL: c.CheckoutURL,
		Items:       append([]model.CartLine(nil), c.Lines...),
		Cost:        c.Cost,
	}
}

// record is the persisted layout: {cartId, checkoutUrl, items}.
type record struct {
	CartID      *string          `json:"cartId"`
	CheckoutURL *string          `json:"checkoutUrl"`
	Items       []model.CartLine `json:"items"`
}

var errCorrupt = errors.New("corrupt cart record")

func encodeRecord(s Snapshot) ([]byte, error) {
	rec := record{Items: s.Items}
	if s.CartID != "" {
		rec.CartID = &s.CartID
	}
	if s.CheckoutURL != "" {
		rec.CheckoutURL = &s.CheckoutURL
	}
	if rec.Items == nil {
		rec.Items = []model.CartLine{}
	}
	return json.Marshal(rec)
}

// decodeRecord parses and checks a stored record. Any error means the
// record should be discarded.
func decodeRecord(data []byte) (Snapshot, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if rec.CartID == nil && len(rec.Items) > 0 {
		return Snapshot{}, fmt.Errorf("%w: items without cart id", errCorrupt)
	}
	for i, l := range rec.Items {
		if l.ID == "" || l.VariantID == "" || l.Quantity < 0 {
			return Snapshot{}, fmt.Errorf("%w: item %d incomplete", errCorrupt, i)
		}
	}

	var s Snapshot
	if rec.CartID != nil {
		s.CartID = *rec.CartID
	}
	if rec.CheckoutURL != nil {
		s.CheckoutURL = *rec.CheckoutURL
	}
	s.Items = rec.Items
	return s, nil
}
