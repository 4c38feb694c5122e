package fsm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/adapters/whatsapp"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/cart"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/intent"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/phrase"
)

// Row id prefixes understood by the browsing handlers.
const (
	categoryRowPrefix = "category:"
	productRowPrefix  = "add_product_"
	moreRowID         = "more_products"
	sizeButtonPrefix  = "size_"
)

// productPageSize rows fit one list payload; one row is reserved for the
// "More" pagination entry when the category overflows.
const productPageSize = 10

func (e *Engine) greetAndListCategories(ctx context.Context, tenant *core.TenantConfig, s *core.Session) core.OutboundPlan {
	greeting := e.phrases.Generate(ctx, phrase.KindGreeting, map[string]string{"restaurant": tenant.Name})
	plan := core.OutboundPlan{core.TextOut{Text: greeting}}
	return append(plan, e.categoryList(ctx, tenant, s)...)
}

// categoryList composes the category list and advances to selectingCategory.
func (e *Engine) categoryList(ctx context.Context, tenant *core.TenantConfig, s *core.Session) core.OutboundPlan {
	cats, err := e.catalog.Categories(ctx, tenant)
	if err != nil {
		return e.backendFailure(s, "fetch categories", err)
	}
	if len(cats) == 0 {
		return core.OutboundPlan{core.TextOut{Text: textEmptyMenu}}
	}

	rows := make([]core.ListRow, 0, len(cats))
	for _, cat := range cats {
		rows = append(rows, core.ListRow{
			ID:          categoryRowPrefix + cat.ID,
			Title:       cat.Name,
			Description: cat.Description,
		})
	}
	list := core.ListOut{
		Body:       textCategoryPrompt,
		ActionText: textCategoryAction,
		Sections:   []core.ListSection{{Rows: rows}},
	}
	s.Stage = core.StageSelectingCategory
	return core.OutboundPlan{list}
}

func (e *Engine) stepBrowsing(ctx context.Context, tenant *core.TenantConfig, s *core.Session, ev core.Event, in intent.Intent) core.OutboundPlan {
	if text, ok := ev.Body.(core.TextBody); ok && isHistoryQuery(text.Text) {
		return e.orderHistory(ctx, tenant, s)
	}
	switch in.Kind {
	case intent.KindList, intent.KindBinary, intent.KindConfirmation:
		return e.categoryList(ctx, tenant, s)
	case intent.KindLocation:
		return e.deliveryInfo(ctx, tenant, s)
	case intent.KindNone, intent.KindChoice:
		if text, ok := ev.Body.(core.TextBody); ok && strings.TrimSpace(text.Text) != "" {
			return e.searchProducts(ctx, tenant, s, text.Text)
		}
		return e.categoryList(ctx, tenant, s)
	default:
		return e.categoryList(ctx, tenant, s)
	}
}

// deliveryInfo answers "do you deliver" style questions with the zone
// catalog, then returns to the category list.
func (e *Engine) deliveryInfo(ctx context.Context, tenant *core.TenantConfig, s *core.Session) core.OutboundPlan {
	overview, err := e.pricer.ZoneOverview(ctx, tenant)
	if err != nil {
		return e.backendFailure(s, "fetch delivery zones", err)
	}
	if overview == "" {
		overview = textPickupOnly
	}
	plan := core.OutboundPlan{core.TextOut{Text: overview}}
	return append(plan, e.categoryList(ctx, tenant, s)...)
}

// searchProducts matches free text against product names; hits become a
// product list, misses fall back to the category list.
func (e *Engine) searchProducts(ctx context.Context, tenant *core.TenantConfig, s *core.Session, query string) core.OutboundPlan {
	products, err := e.catalog.Search(ctx, tenant, query)
	if err != nil {
		return e.backendFailure(s, "search products", err)
	}
	if len(products) == 0 {
		plan := core.OutboundPlan{core.TextOut{Text: textNoSearchResults}}
		return append(plan, e.categoryList(ctx, tenant, s)...)
	}
	s.CurrentCategoryID = ""
	s.ProductOffset = 0
	s.Stage = core.StageViewingProducts
	return e.productList(tenant, s, products)
}

func (e *Engine) stepSelectingCategory(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent) core.OutboundPlan {
	if in.Kind == intent.KindChoice {
		cats, err := e.catalog.Categories(ctx, tenant)
		if err != nil {
			return e.backendFailure(s, "fetch categories", err)
		}
		idx, ok := choiceIndex(in.ID, len(cats))
		if !ok {
			return e.reprompt(s)
		}
		return e.openCategory(ctx, tenant, s, cats[idx].ID)
	}
	if in.Kind != intent.KindListSel || !strings.HasPrefix(in.ID, categoryRowPrefix) {
		if in.Kind == intent.KindList {
			return e.categoryList(ctx, tenant, s)
		}
		return e.reprompt(s)
	}
	return e.openCategory(ctx, tenant, s, strings.TrimPrefix(in.ID, categoryRowPrefix))
}

// choiceIndex parses a typed option number into a zero-based position
// within n rows.
func choiceIndex(id string, n int) (int, bool) {
	v, err := strconv.Atoi(id)
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v - 1, true
}

// openCategory presents the first product page of a category.
func (e *Engine) openCategory(ctx context.Context, tenant *core.TenantConfig, s *core.Session, categoryID string) core.OutboundPlan {
	products, err := e.categoryProducts(ctx, tenant, categoryID)
	if err != nil {
		return e.backendFailure(s, "fetch category products", err)
	}
	if products == nil {
		return core.OutboundPlan{core.TextOut{Text: textPromptCategory}}
	}
	if len(products) == 0 {
		return core.OutboundPlan{core.TextOut{Text: textEmptyCategory}}
	}

	s.CurrentCategoryID = categoryID
	s.ProductOffset = 0
	s.Stage = core.StageViewingProducts
	return e.productList(tenant, s, products)
}

// categoryProducts returns nil (no error) when the category id is unknown.
func (e *Engine) categoryProducts(ctx context.Context, tenant *core.TenantConfig, categoryID string) ([]core.Product, error) {
	cats, err := e.catalog.Categories(ctx, tenant)
	if err != nil {
		return nil, err
	}
	for _, cat := range cats {
		if cat.ID == categoryID {
			return cat.Products, nil
		}
	}
	return nil, nil
}

// productPage slices the page at the session offset and reports whether a
// "More" row follows it. Both the renderer and numeric picks go through
// this so the positions agree.
func productPage(s *core.Session, products []core.Product) ([]core.Product, bool) {
	offset := s.ProductOffset
	if offset >= len(products) {
		offset = 0
		s.ProductOffset = 0
	}
	remaining := products[offset:]

	pageSize := productPageSize
	hasMore := len(remaining) > productPageSize
	if hasMore {
		pageSize = productPageSize - 1
	}
	if len(remaining) > pageSize {
		remaining = remaining[:pageSize]
	}
	return remaining, hasMore
}

// productList renders one page of products. Categories larger than one list
// payload reserve the last row for "More"; selecting it advances the offset.
func (e *Engine) productList(tenant *core.TenantConfig, s *core.Session, products []core.Product) core.OutboundPlan {
	page, hasMore := productPage(s, products)

	rows := make([]core.ListRow, 0, productPageSize)
	for _, p := range page {
		rows = append(rows, core.ListRow{
			ID:          productRowPrefix + p.ID,
			Title:       p.Name,
			Description: fmt.Sprintf("%s %s · %s", p.Price, tenant.Currency, p.Description),
		})
	}
	if hasMore {
		rows = append(rows, core.ListRow{ID: moreRowID, Title: textMoreTitle, Description: textMoreDescription})
	}

	list := core.ListOut{
		Body:       textProductsPrompt(tenant, s),
		ActionText: textProductsAction,
		Sections:   []core.ListSection{{Rows: rows}},
	}

	plan := core.OutboundPlan{}
	if tenant.CarouselEnabled {
		plan = append(plan, e.productShowcase(tenant, page)...)
	}
	return append(plan, list)
}

func textProductsPrompt(tenant *core.TenantConfig, s *core.Session) string {
	if s.ProductOffset > 0 {
		return "More products:"
	}
	return "Here's what we have. Pick a product:"
}

// productShowcase builds an optional image carousel for the current page.
// Compose failures downgrade: mixed headers are partitioned, and anything
// that still cannot form a carousel becomes a plain text listing.
func (e *Engine) productShowcase(tenant *core.TenantConfig, products []core.Product) core.OutboundPlan {
	var cards []core.CarouselCard
	for _, p := range products {
		if p.ImageURL == "" {
			continue
		}
		cards = append(cards, core.CarouselCard{
			HeaderType: core.CardHeaderImage,
			HeaderLink: p.ImageURL,
			Body:       fmt.Sprintf("%s - %s %s", p.Name, p.Price, tenant.Currency),
			ButtonText: "View",
			ButtonURL:  p.ImageURL,
		})
	}
	if len(cards) == 0 {
		return nil
	}

	raw := core.CarouselOut{Body: "A few highlights:", Cards: cards}
	if composed, err := whatsapp.ComposeCarousel(raw); err == nil {
		return core.OutboundPlan{composed}
	}

	carousels, leftovers := whatsapp.SplitCarouselByHeader(raw)
	var plan core.OutboundPlan
	for _, c := range carousels {
		composed, err := whatsapp.ComposeCarousel(c)
		if err != nil {
			e.log.Warn("carousel downgraded to text", zap.Error(err))
			continue
		}
		plan = append(plan, composed)
	}
	for _, card := range leftovers {
		plan = append(plan, core.TextOut{Text: card.Body})
	}
	return plan
}

func (e *Engine) stepViewingProducts(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent, now time.Time) core.OutboundPlan {
	if in.Kind == intent.KindChoice {
		return e.pickByNumber(ctx, tenant, s, in.ID, now)
	}
	if in.Kind != intent.KindListSel && in.Kind != intent.KindButton {
		if in.Kind == intent.KindList {
			return e.categoryList(ctx, tenant, s)
		}
		return e.reprompt(s)
	}

	switch {
	case in.ID == moreRowID:
		products, err := e.categoryProducts(ctx, tenant, s.CurrentCategoryID)
		if err != nil {
			return e.backendFailure(s, "fetch category products", err)
		}
		if products == nil {
			return e.categoryList(ctx, tenant, s)
		}
		s.ProductOffset += productPageSize - 1
		return e.productList(tenant, s, products)

	case strings.HasPrefix(in.ID, productRowPrefix):
		return e.pickProduct(ctx, tenant, s, strings.TrimPrefix(in.ID, productRowPrefix), now)

	default:
		return e.reprompt(s)
	}
}

// pickByNumber resolves a typed option number against the product page the
// customer is looking at; the last position maps to "More" when the page
// overflows. Search results carry no category to replay, so numbers only
// work on category pages.
func (e *Engine) pickByNumber(ctx context.Context, tenant *core.TenantConfig, s *core.Session, id string, now time.Time) core.OutboundPlan {
	if s.CurrentCategoryID == "" {
		return e.reprompt(s)
	}
	products, err := e.categoryProducts(ctx, tenant, s.CurrentCategoryID)
	if err != nil {
		return e.backendFailure(s, "fetch category products", err)
	}
	if products == nil {
		return e.categoryList(ctx, tenant, s)
	}

	page, hasMore := productPage(s, products)
	rows := len(page)
	if hasMore {
		rows++
	}
	idx, ok := choiceIndex(id, rows)
	if !ok {
		return e.reprompt(s)
	}
	if hasMore && idx == len(page) {
		s.ProductOffset += productPageSize - 1
		return e.productList(tenant, s, products)
	}
	return e.pickProduct(ctx, tenant, s, page[idx].ID, now)
}

// pickProduct either opens customization (products with presentations) or
// adds the product to the cart directly.
func (e *Engine) pickProduct(ctx context.Context, tenant *core.TenantConfig, s *core.Session, productID string, now time.Time) core.OutboundPlan {
	product, err := e.catalog.ProductDetails(ctx, tenant, productID)
	if err != nil {
		if errors.Is(err, core.ErrItemNotFound) {
			return core.OutboundPlan{core.TextOut{Text: textPromptProducts}}
		}
		return e.backendFailure(s, "fetch product details", err)
	}

	if product.HasPresentations() {
		s.PendingProductID = product.ID
		s.Stage = core.StageCustomizing
		return e.presentationChoices(product)
	}
	return e.addAndReview(ctx, tenant, s, product.ID, cart.AddOptions{Quantity: 1}, now)
}

// presentationChoices renders size/presentation options: buttons when they
// fit the button limit, a list otherwise.
func (e *Engine) presentationChoices(product *core.Product) core.OutboundPlan {
	body := fmt.Sprintf(textSizePrompt, product.Name)
	if len(product.Presentations) <= 3 {
		buttons := make([]core.Button, 0, len(product.Presentations))
		for _, pres := range product.Presentations {
			buttons = append(buttons, core.Button{ID: sizeButtonPrefix + pres.ID, Title: pres.Name})
		}
		return core.OutboundPlan{core.ButtonsOut{Body: body, Buttons: buttons}}
	}
	rows := make([]core.ListRow, 0, len(product.Presentations))
	for _, pres := range product.Presentations {
		rows = append(rows, core.ListRow{
			ID:          sizeButtonPrefix + pres.ID,
			Title:       pres.Name,
			Description: pres.Price.String(),
		})
	}
	return core.OutboundPlan{core.ListOut{
		Body:       body,
		ActionText: "Options",
		Sections:   []core.ListSection{{Rows: rows}},
	}}
}

func (e *Engine) stepCustomizing(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent, now time.Time) core.OutboundPlan {
	if (in.Kind != intent.KindButton && in.Kind != intent.KindListSel) || !strings.HasPrefix(in.ID, sizeButtonPrefix) {
		return e.reprompt(s)
	}
	if s.PendingProductID == "" {
		s.Stage = core.StageReviewingCart
		return e.cartActions(tenant, s)
	}

	product, err := e.catalog.ProductDetails(ctx, tenant, s.PendingProductID)
	if err != nil {
		return e.backendFailure(s, "fetch product details", err)
	}
	presID := strings.TrimPrefix(in.ID, sizeButtonPrefix)
	var chosen *core.Presentation
	for i := range product.Presentations {
		if product.Presentations[i].ID == presID {
			chosen = &product.Presentations[i]
			break
		}
	}
	if chosen == nil {
		return e.reprompt(s)
	}
	return e.addAndReview(ctx, tenant, s, product.ID, cart.AddOptions{Quantity: 1, Presentation: chosen}, now)
}

// addAndReview adds a line and moves to cart review.
func (e *Engine) addAndReview(ctx context.Context, tenant *core.TenantConfig, s *core.Session, productID string, opts cart.AddOptions, now time.Time) core.OutboundPlan {
	item, err := e.cart.AddItem(ctx, tenant, s.Cart, productID, opts, now)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrItemNotFound) || errors.Is(err, core.ErrInvalidQuantity):
			return core.OutboundPlan{core.TextOut{Text: textPromptProducts}}
		case errors.Is(err, core.ErrItemUnavailable):
			return core.OutboundPlan{core.TextOut{Text: "That item just went unavailable. Pick another:"}}
		default:
			return e.backendFailure(s, "add cart item", err)
		}
	}

	s.PendingProductID = ""
	s.Stage = core.StageReviewingCart
	added := e.phrases.Generate(ctx, phrase.KindItemAdded, map[string]string{"item": item.Name})
	plan := core.OutboundPlan{core.TextOut{Text: added}}
	return append(plan, e.cartActions(tenant, s)...)
}

// cartActions renders the cart summary with the continue/checkout buttons.
func (e *Engine) cartActions(tenant *core.TenantConfig, s *core.Session) core.OutboundPlan {
	summary := e.cart.Summary(tenant, s.Cart)
	return core.OutboundPlan{core.ButtonsOut{
		Body: fmt.Sprintf(textCartActionsBody, summary),
		Buttons: []core.Button{
			{ID: "continue", Title: "Keep shopping"},
			{ID: "checkout", Title: "Checkout"},
			{ID: "clear_cart", Title: "Empty cart"},
		},
	}}
}

func (e *Engine) stepReviewingCart(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent) core.OutboundPlan {
	if in.Kind != intent.KindButton && in.Kind != intent.KindListSel {
		if in.Kind == intent.KindList {
			return e.categoryList(ctx, tenant, s)
		}
		return e.reprompt(s)
	}
	switch in.ID {
	case "checkout":
		if s.Cart.IsEmpty() {
			return core.OutboundPlan{core.TextOut{Text: textEmptyCartCheckout}}
		}
		s.Stage = core.StageCheckoutStart
		return e.deliveryMethodButtons()
	case "continue":
		return e.categoryList(ctx, tenant, s)
	case "clear_cart":
		e.cart.Clear(s.Cart, e.now())
		return e.categoryList(ctx, tenant, s)
	default:
		return e.reprompt(s)
	}
}
