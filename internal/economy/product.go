// Package economy provides the product and order models shared by all agents.
package economy

import "fmt"

// Product describes a tradeable product. Immutable; referenced by id.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	UnitPrice   float64 `json:"unit_price"`
	StorageCost float64 `json:"storage_cost"` // Per unit per tick
}

// Validate checks that the product is well formed.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty product id", ErrInvalidOrder)
	}
	if p.UnitPrice < 0 {
		return fmt.Errorf("%w: product %q has negative unit price", ErrInvalidOrder, p.ID)
	}
	if p.StorageCost < 0 {
		return fmt.Errorf("%w: product %q has negative storage cost", ErrInvalidOrder, p.ID)
	}
	return nil
}

// Inventory maps product id to on-hand quantity. Quantities never go
// negative; Remove clamps and reports the shortfall.
type Inventory map[string]int

// Add increases the quantity of a product.
func (inv Inventory) Add(productID string, qty int) {
	if qty <= 0 {
		return
	}
	inv[productID] += qty
}

// Remove takes up to qty units of a product and returns how many were
// actually removed and the unmet shortfall. The stored quantity is clamped
// at zero.
func (inv Inventory) Remove(productID string, qty int) (removed, short int) {
	if qty <= 0 {
		return 0, 0
	}
	have := inv[productID]
	if have >= qty {
		inv[productID] = have - qty
		return qty, 0
	}
	inv[productID] = 0
	return have, qty - have
}

// Get returns the on-hand quantity of a product.
func (inv Inventory) Get(productID string) int {
	return inv[productID]
}

// Total returns the sum of all quantities.
func (inv Inventory) Total() int {
	total := 0
	for _, qty := range inv {
		total += qty
	}
	return total
}

// Clone returns a copy of the inventory.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for id, qty := range inv {
		out[id] = qty
	}
	return out
}
