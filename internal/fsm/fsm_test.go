package fsm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/cart"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/delivery"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/phrase"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/remote"
)

// fakeCatalog serves a fixed category tree.
type fakeCatalog struct {
	cats []core.MenuCategory
}

func (f *fakeCatalog) Categories(context.Context, *core.TenantConfig) ([]core.MenuCategory, error) {
	return f.cats, nil
}

func (f *fakeCatalog) ProductByID(_ context.Context, _ *core.TenantConfig, id string) (*core.Product, error) {
	for _, cat := range f.cats {
		for i := range cat.Products {
			if cat.Products[i].ID == id {
				p := cat.Products[i]
				return &p, nil
			}
		}
	}
	return nil, core.ErrItemNotFound
}

func (f *fakeCatalog) ProductDetails(ctx context.Context, t *core.TenantConfig, id string) (*core.Product, error) {
	return f.ProductByID(ctx, t, id)
}

func (f *fakeCatalog) Search(_ context.Context, _ *core.TenantConfig, q string) ([]core.Product, error) {
	var out []core.Product
	for _, cat := range f.cats {
		for _, p := range cat.Products {
			if p.Name == q {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// fakeOrders records create calls and replays scripted failures.
type fakeOrders struct {
	keys     []core.IdempotencyKey
	payloads []remote.OrderPayload
	errs     []error
	nextID   int
	info     *remote.OrderInfo
	infoErr  error
	history  []remote.OrderInfo
}

func (f *fakeOrders) CreateOrder(_ context.Context, _ *core.TenantConfig, key core.IdempotencyKey, payload remote.OrderPayload) (core.OrderID, error) {
	f.keys = append(f.keys, key)
	f.payloads = append(f.payloads, payload)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	f.nextID++
	return core.OrderID(fmt.Sprintf("ord-%d", f.nextID)), nil
}

func (f *fakeOrders) GetOrder(context.Context, *core.TenantConfig, core.OrderID) (*remote.OrderInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeOrders) OrdersByPhone(context.Context, *core.TenantConfig, core.UserRef) ([]remote.OrderInfo, error) {
	return f.history, nil
}

type stubCalc struct {
	zone     *core.Zone
	zones    []core.Zone
	distance core.Distance
	err      error
}

func (s *stubCalc) CalculateDeliveryCost(context.Context, *core.TenantConfig, core.LatLng, core.LatLng) (*core.Zone, core.Distance, error) {
	return s.zone, s.distance, s.err
}

func (s *stubCalc) DeliveryZones(context.Context, *core.TenantConfig) ([]core.Zone, error) {
	return s.zones, s.err
}

type world struct {
	engine  *Engine
	catalog *fakeCatalog
	orders  *fakeOrders
	calc    *stubCalc
	tenant  *core.TenantConfig
	session *core.Session
}

func price(f float64) core.Money { return core.MoneyFromFloat(f) }

func defaultMenu() []core.MenuCategory {
	return []core.MenuCategory{
		{ID: "c1", Name: "Burgers", Products: []core.Product{
			{ID: "p1", Name: "Classic Burger", Price: price(10.50), Available: true},
			{ID: "p2", Name: "Veggie Burger", Price: price(9), Available: true},
		}},
		{ID: "c2", Name: "Pizzas", Products: []core.Product{
			{ID: "p3", Name: "Margherita", Price: price(60), Available: true},
		}},
	}
}

func newWorld(t *testing.T) *world {
	t.Helper()
	log := zap.NewNop()
	w := &world{
		catalog: &fakeCatalog{cats: defaultMenu()},
		orders:  &fakeOrders{},
		calc:    &stubCalc{},
	}
	w.tenant = &core.TenantConfig{
		ID:              "t1",
		Subdomain:       "my-restaurant",
		Branch:          "LOC1",
		Name:            "La Pizzeria",
		Currency:        "USD",
		TaxRate:         decimal.RequireFromString("0.18"),
		SizeMultipliers: core.DefaultSizeMultipliers(),
		Keywords:        core.DefaultKeywordSets(),
	}
	cartEngine := cart.NewEngine(w.catalog, log)
	pricer := delivery.NewPricer(w.calc, log)
	phrases := phrase.NewGenerator(nil, 0, log)
	w.engine = NewEngine(w.catalog, cartEngine, pricer, w.orders, phrases, Config{}, log)
	w.session = core.NewSession("sid-1", "t1", "LOC1", "+15551234567", time.Now())
	return w
}

func (w *world) text(t *testing.T, msg string) core.OutboundPlan {
	t.Helper()
	return w.step(t, core.TextBody{Text: msg})
}

func (w *world) button(t *testing.T, id string) core.OutboundPlan {
	t.Helper()
	return w.step(t, core.ButtonBody{ID: id, Title: id})
}

func (w *world) pick(t *testing.T, id string) core.OutboundPlan {
	t.Helper()
	return w.step(t, core.ListSelBody{ID: id, Title: id})
}

func (w *world) location(t *testing.T, lat, lng float64, addr string) core.OutboundPlan {
	t.Helper()
	return w.step(t, core.LocationBody{Lat: lat, Lng: lng, Address: addr})
}

func (w *world) step(t *testing.T, body core.EventBody) core.OutboundPlan {
	t.Helper()
	return w.engine.Step(context.Background(), w.tenant, w.session,
		core.Event{Tenant: w.tenant.ID, User: w.session.User, Body: body})
}

func planText(t *testing.T, plan core.OutboundPlan, i int) string {
	t.Helper()
	require.Greater(t, len(plan), i)
	texts := core.PlanTexts(plan)
	return texts[i]
}

// Walks the cart to the confirming stage with one Classic Burger via pickup
// and cash. Shared by the submit tests.
func (w *world) walkToConfirm(t *testing.T) {
	t.Helper()
	w.text(t, "menu")
	require.Equal(t, core.StageSelectingCategory, w.session.Stage)
	w.pick(t, "category:c1")
	require.Equal(t, core.StageViewingProducts, w.session.Stage)
	w.pick(t, "add_product_p1")
	require.Equal(t, core.StageReviewingCart, w.session.Stage)
	w.button(t, "checkout")
	require.Equal(t, core.StageCheckoutStart, w.session.Stage)
	w.button(t, "pickup")
	require.Equal(t, core.StageAwaitingPayment, w.session.Stage)
	w.pick(t, "cash")
	require.Equal(t, core.StageConfirming, w.session.Stage)
}

func TestPickupHappyPath(t *testing.T) {
	w := newWorld(t)

	plan := w.text(t, "menu")
	// Greeting followed by the category list.
	assert.Contains(t, planText(t, plan, 0), "Welcome to La Pizzeria")
	list, ok := plan[1].(core.ListOut)
	require.True(t, ok)
	require.Len(t, list.Sections[0].Rows, 2)
	assert.Equal(t, "category:c1", list.Sections[0].Rows[0].ID)

	plan = w.pick(t, "category:c1")
	list = plan[0].(core.ListOut)
	assert.Equal(t, "add_product_p1", list.Sections[0].Rows[0].ID)

	plan = w.pick(t, "add_product_p1")
	assert.Contains(t, planText(t, plan, 0), "added to your cart")
	assert.Equal(t, "10.50", w.session.Cart.Subtotal().String())

	w.button(t, "checkout")
	w.button(t, "pickup")

	plan = w.pick(t, "cash")
	// Order summary with totals: 10.50 + 18% tax.
	body := planText(t, plan, 0)
	assert.Contains(t, body, "Subtotal: 10.50 USD")
	assert.Contains(t, body, "Tax: 1.89 USD")
	assert.Contains(t, body, "Total: 12.39 USD")
	assert.Contains(t, body, "Payment: cash")
	assert.NotContains(t, body, "Delivery:")

	plan = w.button(t, "confirm")
	require.Equal(t, core.StageConfirmed, w.session.Stage)
	assert.Contains(t, planText(t, plan, 1), "ord-1")

	require.Len(t, w.orders.payloads, 1)
	payload := w.orders.payloads[0]
	assert.Equal(t, "pickup", payload.Type)
	assert.Equal(t, "cash", payload.PaymentMethod)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "p1", payload.Items[0].ProductID)
	require.Len(t, w.orders.keys, 1)
	assert.NotEmpty(t, w.orders.keys[0])
	// The key is retired once the order exists.
	assert.Empty(t, w.session.IdemKey)
	assert.Equal(t, core.OrderID("ord-1"), w.session.LastOrderID)
}

func TestFreeDeliveryQuote(t *testing.T) {
	w := newWorld(t)
	w.calc.zone = &core.Zone{
		ID: "z1", Name: "Centro",
		BaseCost:               price(5),
		BaseDistanceKm:         2,
		IncrementalCost:        price(2),
		DistanceIncrementKm:    1,
		EstimatedTimeMin:       30,
		AllowsFreeDelivery:     true,
		MinimumForFreeDelivery: price(50),
	}
	w.calc.distance = 1.23

	w.text(t, "menu")
	w.pick(t, "category:c2")
	w.pick(t, "add_product_p3") // 60.00, above the free threshold
	w.button(t, "checkout")

	plan := w.button(t, "delivery")
	require.Equal(t, core.StageAwaitingLocation, w.session.Stage)
	assert.IsType(t, core.LocationRequestOut{}, plan[0])

	plan = w.location(t, -12.05, -77.04, "Av. Arequipa 123")
	require.Equal(t, core.StageAwaitingPayment, w.session.Stage)
	feeLine := planText(t, plan, 0)
	assert.Contains(t, feeLine, "GRATUIT")
	assert.Contains(t, feeLine, "1.23 km")

	o := w.session.PendingOrder
	require.NotNil(t, o)
	assert.True(t, o.FreeDelivery)
	assert.True(t, o.DeliveryFee.IsZero())
	assert.Equal(t, "Av. Arequipa 123", o.Customer.Address)
}

func TestSteppedDeliveryFee(t *testing.T) {
	w := newWorld(t)
	w.calc.zone = &core.Zone{
		ID: "z1", Name: "Centro",
		BaseCost:            price(5),
		BaseDistanceKm:      2,
		IncrementalCost:     price(2),
		DistanceIncrementKm: 1,
		EstimatedTimeMin:    30,
	}
	w.calc.distance = 3.5

	w.text(t, "menu")
	w.pick(t, "category:c1")
	w.pick(t, "add_product_p1")
	w.button(t, "checkout")
	w.button(t, "delivery")

	plan := w.location(t, -12.05, -77.04, "Calle 1")
	require.Equal(t, core.StageAwaitingPayment, w.session.Stage)
	feeLine := planText(t, plan, 0)
	// 5 base + ceil(1.5/1) × 2 = 9
	assert.Contains(t, feeLine, "Delivery fee: 9.00 USD")
	assert.Contains(t, feeLine, "3.50 km")
	assert.Equal(t, "9.00", w.session.PendingOrder.DeliveryFee.String())
}

func TestOutOfZoneOffersPickup(t *testing.T) {
	w := newWorld(t)
	w.calc.zone = nil
	w.calc.distance = 42

	w.text(t, "menu")
	w.pick(t, "category:c1")
	w.pick(t, "add_product_p1")
	w.button(t, "checkout")
	w.button(t, "delivery")

	plan := w.location(t, 0, 0, "")
	require.Equal(t, core.StageAwaitingDeliveryMethod, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "don't deliver to that location")

	buttons, ok := plan[1].(core.ButtonsOut)
	require.True(t, ok)
	ids := make([]string, len(buttons.Buttons))
	for i, b := range buttons.Buttons {
		ids[i] = b.ID
	}
	assert.ElementsMatch(t, []string{"pickup", "dinein"}, ids)

	// Switching to pickup continues the checkout.
	w.button(t, "pickup")
	assert.Equal(t, core.StageAwaitingPayment, w.session.Stage)
}

func TestMinimumNotMetKeepsStage(t *testing.T) {
	w := newWorld(t)
	w.calc.zone = &core.Zone{
		ID: "z1", Name: "Centro",
		BaseCost:       price(5),
		BaseDistanceKm: 2,
		MinimumOrder:   price(25),
	}
	w.calc.distance = 1

	w.text(t, "menu")
	w.pick(t, "category:c1")
	w.pick(t, "add_product_p1") // 10.50, below the 25 minimum
	w.button(t, "checkout")
	w.button(t, "delivery")

	plan := w.location(t, -12.05, -77.04, "Calle 1")
	// Stage unchanged: the user can send another location, grow the cart
	// or switch method.
	assert.Equal(t, core.StageAwaitingLocation, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "Add 14.50 USD more")
}

func TestMinimumNotMetSwitchToPickup(t *testing.T) {
	w := newWorld(t)
	w.calc.zone = &core.Zone{
		ID: "z1", Name: "Centro",
		BaseCost:       price(5),
		BaseDistanceKm: 2,
		MinimumOrder:   price(25),
	}
	w.calc.distance = 1

	w.text(t, "menu")
	w.pick(t, "category:c1")
	w.pick(t, "add_product_p1") // 10.50, below the 25 minimum
	w.button(t, "checkout")
	w.button(t, "delivery")
	w.location(t, -12.05, -77.04, "Calle 1")
	require.Equal(t, core.StageAwaitingLocation, w.session.Stage)

	// The pickup button offered with the shortfall message works right
	// here, without another location share.
	plan := w.button(t, "pickup")
	require.Equal(t, core.StageAwaitingPayment, w.session.Stage)
	assert.IsType(t, core.ListOut{}, plan[0])

	o := w.session.PendingOrder
	require.NotNil(t, o)
	assert.Equal(t, core.DeliveryMethodPickup, o.DeliveryMethod)
	assert.True(t, o.DeliveryFee.IsZero())
	assert.Nil(t, o.DeliveryZone)
}

func TestMinimumNotMetSwitchToDineIn(t *testing.T) {
	w := newWorld(t)
	w.calc.zone = &core.Zone{ID: "z1", Name: "Centro", BaseCost: price(5), MinimumOrder: price(25)}
	w.calc.distance = 1

	w.text(t, "menu")
	w.pick(t, "category:c1")
	w.pick(t, "add_product_p1")
	w.button(t, "checkout")
	w.button(t, "delivery")
	w.location(t, -12.05, -77.04, "Calle 1")
	require.Equal(t, core.StageAwaitingLocation, w.session.Stage)

	w.button(t, "dinein")
	require.Equal(t, core.StageAwaitingPayment, w.session.Stage)
	assert.Equal(t, core.DeliveryMethodDineIn, w.session.PendingOrder.DeliveryMethod)
}

func TestPhoneRejectionRecoversWithFreshKey(t *testing.T) {
	w := newWorld(t)
	w.orders.errs = []error{&core.APIError{Status: 400, Message: "missing customer phone"}}

	w.walkToConfirm(t)
	plan := w.button(t, "confirm")

	// The backend never persisted the order: collect a phone and retry.
	require.Equal(t, core.StageAwaitingPhone, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "phone number")
	assert.Empty(t, w.session.Customer.Phone)

	plan = w.text(t, "+15559876543")
	require.Equal(t, core.StageConfirmed, w.session.Stage)
	assert.Equal(t, core.UserRef("+15559876543"), w.session.Customer.Phone)

	require.Len(t, w.orders.keys, 2)
	assert.NotEqual(t, w.orders.keys[0], w.orders.keys[1], "retry must use a fresh idempotency key")
	assert.Equal(t, "+15559876543", w.orders.payloads[1].Customer.Phone)
	assert.Contains(t, planText(t, plan, 1), "ord-1")
}

func TestInvalidPhoneReprompts(t *testing.T) {
	w := newWorld(t)
	w.orders.errs = []error{&core.APIError{Status: 400, Message: "missing customer phone"}}
	w.walkToConfirm(t)
	w.button(t, "confirm")

	plan := w.text(t, "not a phone")
	assert.Equal(t, core.StageAwaitingPhone, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "doesn't look like a phone number")
	// No retry fired without a usable phone.
	assert.Len(t, w.orders.keys, 1)
}

func TestPermanentRejectionRollsBackToCart(t *testing.T) {
	w := newWorld(t)
	w.orders.errs = []error{&core.APIError{Status: 422, Message: "store closed"}}

	w.walkToConfirm(t)
	plan := w.button(t, "confirm")

	require.Equal(t, core.StageReviewingCart, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "store closed")
	// The cart is intact for review.
	assert.False(t, w.session.Cart.IsEmpty())
}

func TestTransientFailureKeepsKeyForRetry(t *testing.T) {
	w := newWorld(t)
	w.orders.errs = []error{&core.APIError{Status: 503, Message: "upstream timeout"}}

	w.walkToConfirm(t)
	plan := w.button(t, "confirm")

	// Stage and key survive so the same confirm can be replayed safely.
	require.Equal(t, core.StageConfirming, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "temporary issue")
	assert.NotEmpty(t, w.session.IdemKey)

	w.button(t, "confirm")
	require.Equal(t, core.StageConfirmed, w.session.Stage)
	require.Len(t, w.orders.keys, 2)
	assert.Equal(t, w.orders.keys[0], w.orders.keys[1], "replay must reuse the same idempotency key")
}

func TestCancelDuringConfirmKeepsCart(t *testing.T) {
	w := newWorld(t)
	w.walkToConfirm(t)

	plan := w.button(t, "cancel")
	require.Equal(t, core.StageReviewingCart, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "Order cancelled")
	assert.Nil(t, w.session.PendingOrder)
	assert.Empty(t, w.session.IdemKey)
	assert.False(t, w.session.Cart.IsEmpty())
	assert.Empty(t, w.orders.keys)
}

func TestIllegalEventsRepromptWithoutStageChange(t *testing.T) {
	w := newWorld(t)
	w.text(t, "menu")
	require.Equal(t, core.StageSelectingCategory, w.session.Stage)

	plan := w.text(t, "xyzzy")
	assert.Equal(t, core.StageSelectingCategory, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "pick a category")

	// A location share means nothing while picking a category.
	plan = w.location(t, 1, 2, "x")
	assert.Equal(t, core.StageSelectingCategory, w.session.Stage)

	w.pick(t, "category:c1")
	w.pick(t, "add_product_p1")
	w.button(t, "checkout")
	w.button(t, "delivery")
	require.Equal(t, core.StageAwaitingLocation, w.session.Stage)

	plan = w.text(t, "xyzzy")
	assert.Equal(t, core.StageAwaitingLocation, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "share your location")
}

func TestIdleTTLResetsStageButKeepsCart(t *testing.T) {
	w := newWorld(t)
	w.walkToConfirm(t)
	require.NotNil(t, w.session.PendingOrder)

	// Jump the clock past the idle TTL.
	future := time.Now().Add(2 * time.Hour)
	w.engine.now = func() time.Time { return future }

	w.text(t, "xyzzy")
	assert.Nil(t, w.session.PendingOrder)
	assert.False(t, w.session.Cart.IsEmpty(), "cart survives idle expiry")
	assert.NotEqual(t, core.StageConfirming, w.session.Stage)
}

func TestResetKeywordFromDeepStage(t *testing.T) {
	w := newWorld(t)
	w.walkToConfirm(t)

	plan := w.text(t, "restart")
	assert.Equal(t, core.StageSelectingCategory, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "Welcome to")
	assert.Nil(t, w.session.PendingOrder)
	assert.False(t, w.session.Cart.IsEmpty())
}

func TestProductPagination(t *testing.T) {
	w := newWorld(t)
	products := make([]core.Product, 11)
	for i := range products {
		products[i] = core.Product{
			ID:        fmt.Sprintf("p%02d", i),
			Name:      fmt.Sprintf("Product %02d", i),
			Price:     price(5),
			Available: true,
		}
	}
	w.catalog.cats = []core.MenuCategory{{ID: "big", Name: "Big", Products: products}}

	w.text(t, "menu")
	plan := w.pick(t, "category:big")
	list := plan[0].(core.ListOut)
	rows := list.Sections[0].Rows
	// Nine products plus the More row fill the payload.
	require.Len(t, rows, 10)
	assert.Equal(t, "more_products", rows[9].ID)
	assert.Equal(t, "add_product_p00", rows[0].ID)
	assert.Equal(t, "add_product_p08", rows[8].ID)

	plan = w.pick(t, "more_products")
	list = plan[0].(core.ListOut)
	rows = list.Sections[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "add_product_p09", rows[0].ID)
	assert.Equal(t, "add_product_p10", rows[1].ID)
}

func TestExactlyTenProductsNeedNoMoreRow(t *testing.T) {
	w := newWorld(t)
	products := make([]core.Product, 10)
	for i := range products {
		products[i] = core.Product{ID: fmt.Sprintf("p%02d", i), Name: "P", Price: price(5), Available: true}
	}
	w.catalog.cats = []core.MenuCategory{{ID: "big", Name: "Big", Products: products}}

	w.text(t, "menu")
	plan := w.pick(t, "category:big")
	rows := plan[0].(core.ListOut).Sections[0].Rows
	require.Len(t, rows, 10)
	for _, r := range rows {
		assert.NotEqual(t, "more_products", r.ID)
	}
}

func TestNumericCategoryChoice(t *testing.T) {
	w := newWorld(t)
	w.text(t, "menu")
	require.Equal(t, core.StageSelectingCategory, w.session.Stage)

	plan := w.text(t, "2")
	require.Equal(t, core.StageViewingProducts, w.session.Stage)
	assert.Equal(t, "c2", w.session.CurrentCategoryID)
	rows := plan[0].(core.ListOut).Sections[0].Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "add_product_p3", rows[0].ID)
}

func TestNumericProductChoice(t *testing.T) {
	w := newWorld(t)
	w.text(t, "menu")
	w.pick(t, "category:c1")
	require.Equal(t, core.StageViewingProducts, w.session.Stage)

	plan := w.text(t, "1")
	require.Equal(t, core.StageReviewingCart, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "added to your cart")
	assert.Equal(t, "10.50", w.session.Cart.Subtotal().String())
}

func TestNumericChoiceOutOfRangeReprompts(t *testing.T) {
	w := newWorld(t)
	w.text(t, "menu")

	plan := w.text(t, "9")
	assert.Equal(t, core.StageSelectingCategory, w.session.Stage)
	assert.Contains(t, planText(t, plan, 0), "pick a category")

	w.pick(t, "category:c1")
	w.text(t, "9")
	assert.Equal(t, core.StageViewingProducts, w.session.Stage)
	assert.True(t, w.session.Cart.IsEmpty())
}

func TestNumericChoiceOpensMoreRow(t *testing.T) {
	w := newWorld(t)
	products := make([]core.Product, 11)
	for i := range products {
		products[i] = core.Product{
			ID:        fmt.Sprintf("p%02d", i),
			Name:      fmt.Sprintf("Product %02d", i),
			Price:     price(5),
			Available: true,
		}
	}
	w.catalog.cats = []core.MenuCategory{{ID: "big", Name: "Big", Products: products}}

	w.text(t, "menu")
	w.pick(t, "category:big")

	// Position 10 is the More row on an overflowing page.
	plan := w.text(t, "10")
	rows := plan[0].(core.ListOut).Sections[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "add_product_p09", rows[0].ID)

	// Position 1 now picks the first product of the second page.
	w.text(t, "1")
	require.Equal(t, core.StageReviewingCart, w.session.Stage)
	require.Len(t, w.session.Cart.Items, 1)
	assert.Equal(t, "p09", w.session.Cart.Items[0].MenuItemID)
}

func TestPresentationCustomization(t *testing.T) {
	w := newWorld(t)
	w.catalog.cats = []core.MenuCategory{{ID: "c1", Name: "Pizzas", Products: []core.Product{{
		ID: "pz", Name: "Margherita", Price: price(20), Available: true,
		Presentations: []core.Presentation{
			{ID: "s", Name: "Personal", Price: price(15)},
			{ID: "l", Name: "Familiar", Price: price(30)},
		},
	}}}}

	w.text(t, "menu")
	w.pick(t, "category:c1")
	plan := w.pick(t, "add_product_pz")
	require.Equal(t, core.StageCustomizing, w.session.Stage)

	buttons, ok := plan[0].(core.ButtonsOut)
	require.True(t, ok)
	require.Len(t, buttons.Buttons, 2)
	assert.Equal(t, "size_s", buttons.Buttons[0].ID)

	w.button(t, "size_l")
	require.Equal(t, core.StageReviewingCart, w.session.Stage)
	require.Len(t, w.session.Cart.Items, 1)
	assert.Equal(t, "Margherita (Familiar)", w.session.Cart.Items[0].Name)
	assert.Equal(t, "30.00", w.session.Cart.Subtotal().String())
}

func TestFreeTextSearchFindsProducts(t *testing.T) {
	w := newWorld(t)
	plan := w.text(t, "Margherita")
	require.Equal(t, core.StageViewingProducts, w.session.Stage)
	rows := plan[0].(core.ListOut).Sections[0].Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "add_product_p3", rows[0].ID)
}

func TestCarouselShowcaseAndDowngrade(t *testing.T) {
	w := newWorld(t)
	w.tenant.CarouselEnabled = true
	w.catalog.cats = []core.MenuCategory{{ID: "c1", Name: "Burgers", Products: []core.Product{
		{ID: "p1", Name: "A", Price: price(5), Available: true, ImageURL: "https://cdn/a.jpg"},
		{ID: "p2", Name: "B", Price: price(6), Available: true, ImageURL: "https://cdn/b.jpg"},
	}}}

	w.text(t, "menu")
	plan := w.pick(t, "category:c1")
	require.GreaterOrEqual(t, len(plan), 2)
	assert.IsType(t, core.CarouselOut{}, plan[0])
	assert.IsType(t, core.ListOut{}, plan[1])

	// A single image card cannot form a carousel and downgrades to text.
	w.catalog.cats[0].Products = w.catalog.cats[0].Products[:1]
	w.text(t, "menu")
	plan = w.pick(t, "category:c1")
	assert.IsType(t, core.TextOut{}, plan[0])
	assert.IsType(t, core.ListOut{}, plan[1])
}

func TestTrackOrderAfterConfirm(t *testing.T) {
	w := newWorld(t)
	w.orders.info = &remote.OrderInfo{ID: "ord-1", Status: core.OrderStatusPreparing, EstimatedMinutes: 20}

	w.walkToConfirm(t)
	w.button(t, "confirm")
	require.Equal(t, core.StageConfirmed, w.session.Stage)

	plan := w.button(t, "track_order")
	require.Equal(t, core.StageTracking, w.session.Stage)
	status := planText(t, plan, 0)
	assert.Contains(t, status, "ord-1")
	assert.Contains(t, status, "preparing")
	assert.Contains(t, status, "20 min")

	// Terminal statuses drop the ETA.
	w.orders.info = &remote.OrderInfo{ID: "ord-1", Status: core.OrderStatusDelivered, EstimatedMinutes: 20}
	plan = w.button(t, "track_order")
	assert.NotContains(t, planText(t, plan, 0), "min")
}

func TestNewOrderAfterConfirmClearsCart(t *testing.T) {
	w := newWorld(t)
	w.walkToConfirm(t)
	w.button(t, "confirm")

	w.button(t, "new_order")
	assert.Equal(t, core.StageSelectingCategory, w.session.Stage)
	assert.True(t, w.session.Cart.IsEmpty())
	assert.Nil(t, w.session.PendingOrder)
}

func TestEmptyCartCheckoutRefused(t *testing.T) {
	w := newWorld(t)
	w.text(t, "menu")
	w.pick(t, "category:c1")
	w.pick(t, "add_product_p1")
	require.Equal(t, core.StageReviewingCart, w.session.Stage)

	w.button(t, "clear_cart")
	assert.True(t, w.session.Cart.IsEmpty())
	assert.Equal(t, core.StageSelectingCategory, w.session.Stage)
}

func TestOrderHistoryKeyword(t *testing.T) {
	w := newWorld(t)
	w.orders.history = []remote.OrderInfo{
		{ID: "ord-7", Status: core.OrderStatusDelivered},
		{ID: "ord-9", Status: core.OrderStatusPreparing},
	}

	plan := w.text(t, "order history")
	out := planText(t, plan, 0)
	assert.Contains(t, out, "Your recent orders:")
	assert.Contains(t, out, "ord-7: delivered")
	assert.Contains(t, out, "ord-9: preparing")
	// A history lookup is informational, the stage does not move.
	assert.Equal(t, core.StageBrowsing, w.session.Stage)
}

func TestOrderHistoryEmpty(t *testing.T) {
	w := newWorld(t)
	plan := w.text(t, "history")
	assert.Contains(t, planText(t, plan, 0), "no orders")
}

func TestDeliveryQuestionListsZones(t *testing.T) {
	w := newWorld(t)
	w.calc.zones = []core.Zone{{
		Name:         "Centro",
		BaseCost:     price(5),
		MinimumOrder: price(25),
	}}

	plan := w.text(t, "delivery")
	out := planText(t, plan, 0)
	assert.Contains(t, out, "We deliver to:")
	assert.Contains(t, out, "Centro: from 5.00 USD, minimum order 25.00 USD")
	// The category list follows so the conversation keeps moving.
	assert.Equal(t, core.StageSelectingCategory, w.session.Stage)
}

func TestDeliveryQuestionWithoutZones(t *testing.T) {
	w := newWorld(t)
	plan := w.text(t, "where are you located")
	assert.Contains(t, planText(t, plan, 0), "pickup and dine-in only")
}

func TestSnapshotReflectsSessionState(t *testing.T) {
	w := newWorld(t)
	w.walkToConfirm(t)

	snap := Snapshot(w.session)
	assert.Equal(t, core.SessionID("sid-1"), snap.SessionID)
	assert.Equal(t, core.StageConfirming, snap.CurrentStep)
	require.Len(t, snap.Context.SelectedItems, 1)
	assert.Equal(t, core.PaymentCash, snap.Context.PaymentMethod)
	assert.True(t, snap.Context.OrderTotal.Equal(w.session.PendingOrder.Total))
}
