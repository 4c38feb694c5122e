package fsm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/intent"
)

func (e *Engine) deliveryMethodButtons() core.OutboundPlan {
	return core.OutboundPlan{core.ButtonsOut{
		Body: textDeliveryMethod,
		Buttons: []core.Button{
			{ID: "delivery", Title: "Delivery"},
			{ID: "pickup", Title: "Pickup"},
			{ID: "dinein", Title: "Dine-in"},
		},
	}}
}

func (e *Engine) paymentChoices() core.OutboundPlan {
	rows := []core.ListRow{
		{ID: string(core.PaymentCash), Title: "Cash"},
		{ID: string(core.PaymentCard), Title: "Card"},
		{ID: string(core.PaymentYape), Title: "Yape"},
		{ID: string(core.PaymentPlin), Title: "Plin"},
		{ID: string(core.PaymentMercadoPago), Title: "Mercado Pago"},
		{ID: string(core.PaymentBankTransfer), Title: "Bank transfer"},
	}
	return core.OutboundPlan{core.ListOut{
		Body:       textPaymentPrompt,
		ActionText: textPaymentAction,
		Sections:   []core.ListSection{{Rows: rows}},
	}}
}

// ensureOrder lazily creates the pending order for the session.
func (e *Engine) ensureOrder(tenant *core.TenantConfig, s *core.Session, method core.DeliveryMethod, now time.Time) *core.Order {
	if s.PendingOrder == nil {
		s.PendingOrder = &core.Order{
			Status:    core.OrderStatusPending,
			Customer:  s.Customer,
			TaxRate:   tenant.TaxRate,
			CreatedAt: now,
		}
	}
	o := s.PendingOrder
	o.DeliveryMethod = method
	if method != core.DeliveryMethodDelivery {
		o.DeliveryZone = nil
		o.DeliveryDistance = 0
		o.DeliveryFee = core.ZeroMoney
		o.FreeDelivery = false
	}
	o.Cart = s.Cart.Snapshot()
	o.Recalculate()
	return o
}

func (e *Engine) stepDeliveryMethod(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent, now time.Time) core.OutboundPlan {
	if in.Kind != intent.KindButton && in.Kind != intent.KindListSel {
		return e.reprompt(s)
	}
	switch in.ID {
	case "delivery":
		e.ensureOrder(tenant, s, core.DeliveryMethodDelivery, now)
		s.Stage = core.StageAwaitingLocation
		return core.OutboundPlan{core.LocationRequestOut{Body: textLocationRequest}}
	case "pickup":
		e.ensureOrder(tenant, s, core.DeliveryMethodPickup, now)
		s.Stage = core.StageAwaitingPayment
		return e.paymentChoices()
	case "dinein":
		e.ensureOrder(tenant, s, core.DeliveryMethodDineIn, now)
		s.Stage = core.StageAwaitingPayment
		return e.paymentChoices()
	default:
		return e.reprompt(s)
	}
}

func (e *Engine) stepAwaitingLocation(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent) core.OutboundPlan {
	// The minimum-not-met and out-of-zone prompts offer a method switch; the
	// buttons must work here, not just after a stage change.
	if in.Kind == intent.KindButton || in.Kind == intent.KindListSel {
		switch in.ID {
		case "pickup":
			e.ensureOrder(tenant, s, core.DeliveryMethodPickup, e.now())
			s.Stage = core.StageAwaitingPayment
			return e.paymentChoices()
		case "dinein":
			e.ensureOrder(tenant, s, core.DeliveryMethodDineIn, e.now())
			s.Stage = core.StageAwaitingPayment
			return e.paymentChoices()
		}
	}
	if in.Kind != intent.KindLocationShared {
		return e.reprompt(s)
	}

	loc := core.LatLng{Lat: in.Lat, Lng: in.Lng}
	zone, distance, err := e.pricer.ValidateAddress(ctx, tenant, loc)
	if err != nil {
		if errors.Is(err, core.ErrOutOfZone) {
			s.Stage = core.StageAwaitingDeliveryMethod
			return core.OutboundPlan{
				core.TextOut{Text: textOutOfZone},
				core.ButtonsOut{
					Body: textDeliveryMethod,
					Buttons: []core.Button{
						{ID: "pickup", Title: "Pickup"},
						{ID: "dinein", Title: "Dine-in"},
					},
				},
			}
		}
		return e.backendFailure(s, "validate address", err)
	}

	quote, err := e.pricer.ComputeFee(zone, distance, s.Cart.Subtotal())
	if err != nil {
		var minErr *core.MinimumNotMetError
		if errors.As(err, &minErr) {
			// Stage unchanged: the user can grow the cart or switch method.
			return core.OutboundPlan{
				core.TextOut{Text: fmt.Sprintf(textMinimumNotMet, minErr.Remaining(), tenant.Currency, zone.Name)},
				core.ButtonsOut{
					Body:    textDeliveryMethod,
					Buttons: []core.Button{{ID: "pickup", Title: "Pickup"}},
				},
			}
		}
		return e.backendFailure(s, "compute delivery fee", err)
	}

	o := s.PendingOrder
	if o == nil {
		o = e.ensureOrder(tenant, s, core.DeliveryMethodDelivery, e.now())
	}
	o.DeliveryZone = zone
	o.DeliveryDistance = distance
	o.DeliveryFee = quote.Fee
	o.FreeDelivery = quote.FreeApplied
	s.Customer.Address = in.Address
	o.Customer.Address = in.Address
	o.Cart = s.Cart.Snapshot()
	o.Recalculate()

	var feeLine string
	if quote.FreeApplied {
		feeLine = fmt.Sprintf(textFreeDelivery, zone.MinimumForFreeDelivery, tenant.Currency, distance)
	} else {
		feeLine = fmt.Sprintf(textDeliveryFee, quote.Fee, tenant.Currency, distance, zone.EstimatedTimeMin)
	}

	s.Stage = core.StageAwaitingPayment
	plan := core.OutboundPlan{core.TextOut{Text: feeLine}}
	return append(plan, e.paymentChoices()...)
}

func (e *Engine) stepAwaitingPayment(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent) core.OutboundPlan {
	if in.Kind != intent.KindButton && in.Kind != intent.KindListSel {
		return e.reprompt(s)
	}
	method, ok := core.ParsePaymentMethod(in.ID)
	if !ok {
		return e.reprompt(s)
	}

	o := s.PendingOrder
	if o == nil {
		s.Stage = core.StageReviewingCart
		return e.cartActions(tenant, s)
	}
	o.PaymentMethod = method
	o.Cart = s.Cart.Snapshot()
	o.Recalculate()

	if s.Customer.Phone == "" {
		s.Stage = core.StageAwaitingPhone
		return core.OutboundPlan{core.TextOut{Text: textPhonePrompt}}
	}
	s.Stage = core.StageConfirming
	return e.confirmPrompt(tenant, o)
}

func (e *Engine) stepAwaitingPhone(ctx context.Context, tenant *core.TenantConfig, s *core.Session, ev core.Event, now time.Time) core.OutboundPlan {
	text, ok := ev.Body.(core.TextBody)
	if !ok {
		return core.OutboundPlan{core.TextOut{Text: textPhonePrompt}}
	}
	phone, ok := core.NormalizePhone(text.Text)
	if !ok {
		return core.OutboundPlan{core.TextOut{Text: textPhoneInvalid}}
	}

	s.Customer.Phone = phone
	if s.PendingOrder != nil {
		s.PendingOrder.Customer.Phone = phone
	}
	// The prior create attempt (if any) is logically dead: rotate the key.
	s.IdemKey = core.NewIdempotencyKey()

	if s.Flags["order_retry"] == "1" {
		delete(s.Flags, "order_retry")
		s.Stage = core.StageConfirming
		return e.submitOrder(ctx, tenant, s, now)
	}

	s.Stage = core.StageConfirming
	if s.PendingOrder == nil {
		s.Stage = core.StageReviewingCart
		return e.cartActions(tenant, s)
	}
	return e.confirmPrompt(tenant, s.PendingOrder)
}

// confirmPrompt renders the order summary with confirm/cancel buttons.
func (e *Engine) confirmPrompt(tenant *core.TenantConfig, o *core.Order) core.OutboundPlan {
	return core.OutboundPlan{core.ButtonsOut{
		Body: fmt.Sprintf(textConfirmPrompt, e.orderSummary(tenant, o)),
		Buttons: []core.Button{
			{ID: "confirm", Title: "Confirm"},
			{ID: "cancel", Title: "Cancel"},
		},
	}}
}

func (e *Engine) orderSummary(tenant *core.TenantConfig, o *core.Order) string {
	cur := tenant.Currency
	out := ""
	for _, item := range o.Cart.Items {
		out += fmt.Sprintf("%s x%d = %s %s\n", item.Name, item.Quantity, item.Total(), cur)
	}
	out += fmt.Sprintf("\nSubtotal: %s %s\nTax: %s %s\n", o.Subtotal, cur, o.TaxAmount, cur)
	if o.DeliveryMethod == core.DeliveryMethodDelivery {
		if o.FreeDelivery {
			out += "Delivery: GRATUIT\n"
		} else {
			out += fmt.Sprintf("Delivery: %s %s\n", o.DeliveryFee, cur)
		}
		if o.Customer.Address != "" {
			out += fmt.Sprintf("Address: %s\n", o.Customer.Address)
		}
	}
	if !o.Discount.IsZero() {
		out += fmt.Sprintf("Discount: -%s %s\n", o.Discount, cur)
	}
	out += fmt.Sprintf("Total: %s %s\nPayment: %s\n", o.Total, cur, o.PaymentMethod)
	return out
}
