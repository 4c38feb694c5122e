package fsm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/intent"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/phrase"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/remote"
)

func (e *Engine) stepConfirming(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent, now time.Time) core.OutboundPlan {
	if in.Kind != intent.KindButton && in.Kind != intent.KindConfirmation {
		return e.reprompt(s)
	}
	switch {
	case in.ID == "confirm" || in.Kind == intent.KindConfirmation:
		if s.Customer.Phone == "" {
			s.Stage = core.StageAwaitingPhone
			return core.OutboundPlan{core.TextOut{Text: textPhonePrompt}}
		}
		return e.submitOrder(ctx, tenant, s, now)
	case in.ID == "cancel":
		s.PendingOrder = nil
		s.IdemKey = ""
		s.Stage = core.StageReviewingCart
		plan := core.OutboundPlan{core.TextOut{Text: fmt.Sprintf(textCancelled, e.cart.Summary(tenant, s.Cart))}}
		return append(plan, e.cartActions(tenant, s)...)
	default:
		return e.reprompt(s)
	}
}

// submitOrder freezes the cart snapshot and creates the order remotely. The
// idempotency key makes transport-level replays safe; it is rotated only
// when the prior attempt is logically dead (phone recovery, cancel).
func (e *Engine) submitOrder(ctx context.Context, tenant *core.TenantConfig, s *core.Session, now time.Time) core.OutboundPlan {
	o := s.PendingOrder
	if o == nil {
		s.Stage = core.StageReviewingCart
		return e.cartActions(tenant, s)
	}
	o.Customer = s.Customer
	o.Cart = s.Cart.Snapshot()
	o.Recalculate()
	if s.IdemKey == "" {
		s.IdemKey = core.NewIdempotencyKey()
	}

	orderID, err := e.orders.CreateOrder(ctx, tenant, s.IdemKey, remote.BuildOrderPayload(o))
	if err != nil {
		return e.orderCreateFailed(tenant, s, err)
	}

	o.ID = orderID
	o.Confirm(now)
	s.LastOrderID = orderID
	s.IdemKey = ""
	s.Stage = core.StageConfirmed

	confirmed := e.phrases.Generate(ctx, phrase.KindOrderConfirmed, map[string]string{"order": string(orderID)})
	return core.OutboundPlan{
		core.TextOut{Text: confirmed},
		core.ButtonsOut{
			Body: fmt.Sprintf(textOrderPlaced, orderID),
			Buttons: []core.Button{
				{ID: "track_order", Title: "Track order"},
				{ID: "new_order", Title: "New order"},
			},
		},
	}
}

func (e *Engine) orderCreateFailed(tenant *core.TenantConfig, s *core.Session, err error) core.OutboundPlan {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) && !apiErr.Transient() {
		if strings.Contains(strings.ToLower(apiErr.Message), "phone") {
			// The backend never persisted the order; collect a phone and
			// retry under a fresh key.
			s.Flags["order_retry"] = "1"
			s.Customer.Phone = ""
			if s.PendingOrder != nil {
				s.PendingOrder.Customer.Phone = ""
			}
			s.Stage = core.StageAwaitingPhone
			return core.OutboundPlan{core.TextOut{Text: textPhonePrompt}}
		}
		e.log.Warn("order rejected by backend",
			zap.String("session", string(s.ID)),
			zap.Int("status", apiErr.Status),
			zap.String("message", apiErr.Message))
		s.Stage = core.StageReviewingCart
		plan := core.OutboundPlan{core.TextOut{Text: fmt.Sprintf(textOrderCreateFailed, apiErr.Message)}}
		return append(plan, e.cartActions(tenant, s)...)
	}
	// Transient exhaustion: the key stays, confirm can be retried as-is.
	return e.backendFailure(s, "create order", err)
}

func (e *Engine) stepConfirmed(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent, now time.Time) core.OutboundPlan {
	if in.Kind != intent.KindButton && in.Kind != intent.KindListSel {
		return e.reprompt(s)
	}
	switch in.ID {
	case "track_order":
		return e.track(ctx, tenant, s)
	case "new_order":
		e.cart.Clear(s.Cart, now)
		s.PendingOrder = nil
		s.ResetToBrowsing()
		return e.categoryList(ctx, tenant, s)
	default:
		return e.reprompt(s)
	}
}

// historyLimit caps how many past orders one message lists.
const historyLimit = 5

// isHistoryQuery matches free-text requests for past orders.
func isHistoryQuery(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "orders" || t == "my orders" || strings.Contains(t, "history")
}

// orderHistory lists the customer's most recent orders by phone number.
func (e *Engine) orderHistory(ctx context.Context, tenant *core.TenantConfig, s *core.Session) core.OutboundPlan {
	infos, err := e.orders.OrdersByPhone(ctx, tenant, s.Customer.Phone)
	if err != nil {
		return e.backendFailure(s, "list orders", err)
	}
	if len(infos) == 0 {
		return core.OutboundPlan{core.TextOut{Text: textNoOrders}}
	}
	if len(infos) > historyLimit {
		infos = infos[:historyLimit]
	}

	var b strings.Builder
	b.WriteString(textHistoryHeader)
	for _, info := range infos {
		fmt.Fprintf(&b, "\n%s: %s", info.ID, info.Status)
	}
	return core.OutboundPlan{core.TextOut{Text: b.String()}}
}

func (e *Engine) stepTracking(ctx context.Context, tenant *core.TenantConfig, s *core.Session, in intent.Intent) core.OutboundPlan {
	if (in.Kind == intent.KindButton || in.Kind == intent.KindListSel) && in.ID == "track_order" {
		return e.track(ctx, tenant, s)
	}
	return e.reprompt(s)
}

func (e *Engine) track(ctx context.Context, tenant *core.TenantConfig, s *core.Session) core.OutboundPlan {
	if s.LastOrderID == "" {
		return core.OutboundPlan{core.TextOut{Text: textOrderNotFound}}
	}
	info, err := e.orders.GetOrder(ctx, tenant, s.LastOrderID)
	if err != nil {
		if errors.Is(err, core.ErrOrderNotFound) {
			return core.OutboundPlan{core.TextOut{Text: textOrderNotFound}}
		}
		return e.backendFailure(s, "get order", err)
	}

	status := fmt.Sprintf(textTrackingStatus, info.ID, info.Status)
	if info.EstimatedMinutes > 0 && !info.Status.Terminal() {
		status = fmt.Sprintf(textTrackingEta, info.ID, info.Status, info.EstimatedMinutes)
	}
	s.Stage = core.StageTracking
	return core.OutboundPlan{
		core.TextOut{Text: status},
		core.ButtonsOut{
			Body:    "Check again any time.",
			Buttons: []core.Button{{ID: "track_order", Title: "Refresh"}},
		},
	}
}
