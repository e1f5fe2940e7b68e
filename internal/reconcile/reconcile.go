// Package reconcile computes the gateway mutations that apply a cart request
// to the cart the gateway currently holds. Functions here are pure; callers
// fetch current state, plan, and execute the plan in order.
package reconcile

import "storefront/internal/model"

// CurrentLine is a line of the remote cart as last read from the gateway.
type CurrentLine struct {
	LineID    string // Gateway line id, needed for update calls
	VariantID string // Variant the line holds; unique within a cart
	Quantity  int
}

// Plan describes the mutations for one add request.
// Updates must be sent before Adds, and Adds target the cart returned by
// the update call. The cart returned by the last executed call is the result.
type Plan struct {
	Updates []model.LineUpdate // Existing lines, absolute quantities
	Adds    []model.LineInput  // Variants not yet in the cart
}

// Options tunes how a plan is built.
type Options struct {
	// PreserveUntouched restates every line the request does not touch at
	// its current quantity in the update batch. Needed when the gateway
	// treats the update line list as a replacement of the cart.
	PreserveUntouched bool
}

// FromCart converts a gateway cart into reconciliation input.
func FromCart(c *model.Cart) []CurrentLine {
	if c == nil {
		return nil
	}
	lines := make([]CurrentLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, CurrentLine{
			LineID:    l.ID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
		})
	}
	return lines
}

// Coalesce merges repeated variants in a request by summing quantities.
// First-seen order is kept.
func Coalesce(requested []model.LineInput) []model.LineInput {
	out := make([]model.LineInput, 0, len(requested))
	index := make(map[string]int, len(requested))
	for _, item := range requested {
		if i, ok := index[item.VariantID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.VariantID] = len(out)
		out = append(out, item)
	}
	return out
}

// PlanAdd partitions requested into variants already in the cart and new
// ones, and builds the update and add batches.
//
// Existing variants get an update to current + requested. New variants go
// to the add batch in request order. With PreserveUntouched, lines not
// named by the request lead the update batch at their current quantity,
// in cart order.
func PlanAdd(current []CurrentLine, requested []model.LineInput, opts Options) *Plan {
	requested = Coalesce(requested)
	plan := &Plan{}

	byVariant := make(map[string]CurrentLine, len(current))
	for _, line := range current {
		byVariant[line.VariantID] = line
	}

	touched := make(map[string]bool, len(requested))
	for _, item := range requested {
		if _, ok := byVariant[item.VariantID]; ok {
			touched[item.VariantID] = true
		}
	}

	if opts.PreserveUntouched {
		for _, line := range current {
			if !touched[line.VariantID] {
				plan.Updates = append(plan.Updates, model.LineUpdate{
					LineID:   line.LineID,
					Quantity: line.Quantity,
				})
			}
		}
	}

	for _, item := range requested {
		if line, ok := byVariant[item.VariantID]; ok {
			plan.Updates = append(plan.Updates, model.LineUpdate{
				LineID:   line.LineID,
				Quantity: line.Quantity + item.Quantity,
			})
			continue
		}
		plan.Adds = append(plan.Adds, item)
	}

	return plan
}

// PlanClear sets every current line to zero in a single update batch.
func PlanClear(current []CurrentLine) []model.LineUpdate {
	updates := make([]model.LineUpdate, 0, len(current))
	for _, line := range current {
		updates = append(updates, model.LineUpdate{LineID: line.LineID, Quantity: 0})
	}
	return updates
}
