// Package cart implements the cart and pricing engine: item resolution,
// customization pricing, and deterministic totals.
package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

// Engine resolves menu items and mutates carts. Price tables come from the
// injected tenant configuration and are never mutated here.
type Engine struct {
	catalog core.MenuCatalog
	log     *zap.Logger
}

func NewEngine(catalog core.MenuCatalog, log *zap.Logger) *Engine {
	return &Engine{catalog: catalog, log: log}
}

// AddOptions carries the customization chosen for a new cart line.
type AddOptions struct {
	Quantity int
	Size     core.Size
	// Presentation overrides the size-multiplier pricing when the product
	// carries backend-defined presentations.
	Presentation *core.Presentation
	Extras       []core.ExtraID
	Instructions string
}

// AddItem resolves the menu item and appends a new line. Identical picks are
// never merged: each add keeps its own identity so repeats stay trackable.
func (e *Engine) AddItem(ctx context.Context, tenant *core.TenantConfig, c *core.Cart, menuItemID string, opts AddOptions, now time.Time) (*core.CartItem, error) {
	if opts.Quantity < 1 {
		return nil, core.ErrInvalidQuantity
	}

	product, err := e.catalog.ProductByID(ctx, tenant, menuItemID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, core.ErrItemNotFound
	}
	if !product.Available {
		return nil, fmt.Errorf("%q: %w", product.Name, core.ErrItemUnavailable)
	}

	base := product.Price.Mul(tenant.SizeMultiplier(opts.Size))
	name := product.Name
	if opts.Presentation != nil {
		base = opts.Presentation.Price
		name = fmt.Sprintf("%s (%s)", product.Name, opts.Presentation.Name)
	}

	adjustment := core.ZeroMoney
	extras := make([]core.ExtraID, 0, len(opts.Extras))
	for _, ex := range opts.Extras {
		price, ok := tenant.ExtrasPrices[ex]
		if !ok {
			e.log.Debug("unknown extra skipped",
				zap.String("tenant", string(tenant.ID)),
				zap.String("extra", string(ex)))
			continue
		}
		adjustment = adjustment.Add(price)
		extras = append(extras, ex)
	}

	item := core.CartItem{
		ID:         core.NewCartItemID(),
		MenuItemID: product.ID,
		Name:       name,
		BasePrice:  base,
		Quantity:   opts.Quantity,
		Customization: core.Customization{
			Size:                opts.Size,
			Extras:              extras,
			SpecialInstructions: opts.Instructions,
			PriceAdjustment:     adjustment,
		},
	}
	item.Customization.SortExtras()

	c.Items = append(c.Items, item)
	c.UpdatedAt = now
	return &c.Items[len(c.Items)-1], nil
}

// UpdateQuantity sets the quantity of a line; zero removes it.
func (e *Engine) UpdateQuantity(c *core.Cart, id core.CartItemID, qty int, now time.Time) error {
	if qty < 0 {
		return core.ErrInvalidQuantity
	}
	if qty == 0 {
		return e.RemoveItem(c, id, now)
	}
	item := c.Find(id)
	if item == nil {
		return core.ErrItemNotFound
	}
	item.Quantity = qty
	c.UpdatedAt = now
	return nil
}

func (e *Engine) RemoveItem(c *core.Cart, id core.CartItemID, now time.Time) error {
	for idx := range c.Items {
		if c.Items[idx].ID == id {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			c.UpdatedAt = now
			return nil
		}
	}
	return core.ErrItemNotFound
}

func (e *Engine) Clear(c *core.Cart, now time.Time) {
	c.Items = nil
	c.UpdatedAt = now
}

// Totals computes the cart subtotal and the rounded tax amount.
func (e *Engine) Totals(c *core.Cart, taxRate decimal.Decimal) (subtotal, tax core.Money) {
	subtotal = c.Subtotal()
	tax = subtotal.Mul(taxRate).Rounded()
	return subtotal, tax
}

// Summary renders the cart for the customer, one line per item plus subtotal.
func (e *Engine) Summary(tenant *core.TenantConfig, c *core.Cart) string {
	if c.IsEmpty() {
		return "Your cart is empty."
	}
	var b strings.Builder
	for _, item := range c.Items {
		fmt.Fprintf(&b, "%s x%d = %s %s\n", item.Name, item.Quantity, item.Total(), tenant.Currency)
		if item.Customization.SpecialInstructions != "" {
			fmt.Fprintf(&b, "  · %s\n", item.Customization.SpecialInstructions)
		}
	}
	fmt.Fprintf(&b, "\nSubtotal: %s %s", c.Subtotal(), tenant.Currency)
	return b.String()
}
