// Package inventory computes how many units of a variant a shopper may
// still add, given what the cart already holds.
package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// LowStockThreshold is the remaining count at or below which stock is flagged low.
const LowStockThreshold = 5

// MaxSelectedLimit is the largest ceiling for which reaching it is flagged.
// Larger ceilings are not worth a notice.
const MaxSelectedLimit = 10

// Variant is the catalog view the controller needs.
type Variant struct {
	ID               string
	AvailableForSale bool

	// TotalStock is nil when the catalog does not report stock. Such a
	// variant has no ceiling.
	TotalStock *int
}

// CartView reports what the cart already holds. *cartsync.Engine
// satisfies it.
type CartView interface {
	QuantityInCart(variantID string) int
}

// AvailableToAdd returns max(0, totalStock - inCart). unlimited is true
// when stock is not reported.
func AvailableToAdd(v Variant, inCart int) (n int, unlimited bool) {
	if v.TotalStock == nil {
		return 0, true
	}
	return max(0, *v.TotalStock-inCart), false
}

// Controller holds the proposed quantity for one product view.
type Controller struct {
	cart CartView

	mu       sync.Mutex
	variant  Variant
	quantity int
}

// NewController starts with quantity 1 for v.
func NewController(cart CartView, v Variant) *Controller {
	return &Controller{cart: cart, variant: v, quantity: 1}
}

// State is everything a view needs to render the quantity selector.
type State struct {
	VariantID      string
	Quantity       int
	AvailableToAdd int
	Unlimited      bool
	InCart         int
	CanIncrement   bool
	CanDecrement   bool
	CanAdd         bool
	LowStock       bool
	MaxSelected    bool
	Label          string
}

// State returns the current state, clamping the proposed quantity first
// if the cart changed underneath it.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clampLocked()

	inCart := c.inCart()
	avail, unlimited := AvailableToAdd(c.variant, inCart)
	sellable := c.variant.AvailableForSale && (unlimited || avail > 0)

	st := State{
		VariantID:      c.variant.ID,
		Quantity:       c.quantity,
		AvailableToAdd: avail,
		Unlimited:      unlimited,
		InCart:         inCart,
		CanDecrement:   c.variant.AvailableForSale && c.quantity > 1,
		CanIncrement:   sellable && (unlimited || c.quantity < avail),
		CanAdd:         sellable && (unlimited || c.quantity <= avail),
		LowStock:       !unlimited && avail > 0 && avail <= LowStockThreshold,
		MaxSelected:    !unlimited && avail > 0 && avail <= MaxSelectedLimit && c.quantity == avail,
	}

	switch {
	case !c.variant.AvailableForSale, !unlimited && *c.variant.TotalStock <= 0:
		st.Label = "Out of Stock"
	case !unlimited && avail == 0:
		st.Label = "All Available in Cart"
	default:
		st.Label = fmt.Sprintf("Add %d to Cart", c.quantity)
	}
	return st
}

// Quantity returns the proposed quantity after clamping.
func (c *Controller) Quantity() int {
	return c.State().Quantity
}

// Increment raises the proposed quantity by one when allowed.
func (c *Controller) Increment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clampLocked()
	avail, unlimited := AvailableToAdd(c.variant, c.inCart())
	if !c.variant.AvailableForSale || (!unlimited && c.quantity >= avail) {
		return false
	}
	c.quantity++
	return true
}

// Decrement lowers the proposed quantity by one, never below 1.
func (c *Controller) Decrement() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clampLocked()
	if !c.variant.AvailableForSale || c.quantity <= 1 {
		return false
	}
	c.quantity--
	return true
}

// SelectVariant switches variants and resets the proposed quantity to 1.
func (c *Controller) SelectVariant(v Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variant = v
	c.quantity = 1
}

// Commit applies manually typed input on loss of focus. Non-numeric or
// sub-1 input becomes 1; input above the ceiling becomes the ceiling.
func (c *Controller) Commit(raw string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		n = 1
	}
	avail, unlimited := AvailableToAdd(c.variant, c.inCart())
	if !unlimited && avail > 0 && n > avail {
		n = avail
	}
	c.quantity = n
	return n
}

// Added resets the proposed quantity to 1 after a successful add.
func (c *Controller) Added() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quantity = 1
}

// clampLocked pulls the proposed quantity down when availability shrank.
func (c *Controller) clampLocked() {
	avail, unlimited := AvailableToAdd(c.variant, c.inCart())
	if !unlimited && avail > 0 && c.quantity > avail {
		c.quantity = avail
	}
	if c.quantity < 1 {
		c.quantity = 1
	}
}

func (c *Controller) inCart() int {
	if c.cart == nil {
		return 0
	}
	return c.cart.QuantityInCart(c.variant.ID)
}
