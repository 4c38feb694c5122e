package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Size is a product size choice. SizeNone means the product has no sizes.
type Size string

const (
	SizeNone   Size = ""
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeXLarge Size = "xlarge"
)

// DefaultSizeMultipliers is applied to the catalog price before per-unit
// add-ons. Tenants may override the table via configuration.
func DefaultSizeMultipliers() map[Size]decimal.Decimal {
	return map[Size]decimal.Decimal{
		SizeSmall:  decimal.RequireFromString("0.8"),
		SizeMedium: decimal.RequireFromString("1.0"),
		SizeLarge:  decimal.RequireFromString("1.3"),
		SizeXLarge: decimal.RequireFromString("1.5"),
	}
}

// Customization carries the per-line options chosen by the customer.
// PriceAdjustment is always the sum of the selected extras' prices.
type Customization struct {
	Size                Size      `json:"size,omitempty"`
	Extras              []ExtraID `json:"extras,omitempty"`
	SpecialInstructions string    `json:"specialInstructions,omitempty"`
	PriceAdjustment     Money     `json:"priceAdjustment"`
}

// HasExtra reports set membership.
func (c Customization) HasExtra(id ExtraID) bool {
	for _, e := range c.Extras {
		if e == id {
			return true
		}
	}
	return false
}

// CartItem is one cart line. BasePrice is the catalog price with the size
// multiplier already applied; identical picks stay separate lines so the
// customer can track repeats independently.
type CartItem struct {
	ID            CartItemID    `json:"id"`
	MenuItemID    string        `json:"menuItemId"`
	Name          string        `json:"name"`
	BasePrice     Money         `json:"basePrice"`
	Quantity      int           `json:"quantity"`
	Customization Customization `json:"customization"`
}

// Total is (basePrice + priceAdjustment) × quantity.
func (i CartItem) Total() Money {
	return i.BasePrice.Add(i.Customization.PriceAdjustment).MulInt(i.Quantity)
}

// Cart is the per-session shopping cart. Items keep insertion order.
type Cart struct {
	ID        string     `json:"id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func NewCart(now time.Time) *Cart {
	return &Cart{ID: string(NewCartItemID()), Items: nil, CreatedAt: now, UpdatedAt: now}
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c *Cart) Subtotal() Money {
	sum := ZeroMoney
	for _, it := range c.Items {
		sum = sum.Add(it.Total())
	}
	return sum
}

// Find returns the item with the given id, or nil.
func (c *Cart) Find(id CartItemID) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].ID == id {
			return &c.Items[idx]
		}
	}
	return nil
}

// Snapshot deep-copies the cart so a confirmed order is immune to later edits.
func (c *Cart) Snapshot() Cart {
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	for i := range out.Items {
		extras := make([]ExtraID, len(c.Items[i].Customization.Extras))
		copy(extras, c.Items[i].Customization.Extras)
		out.Items[i].Customization.Extras = extras
	}
	return out
}

// SortExtras keeps the extras set in a deterministic order for comparisons.
func (c *Customization) SortExtras() {
	sort.Slice(c.Extras, func(i, j int) bool { return c.Extras[i] < c.Extras[j] })
}
