// Package fsm is the per-session conversation state machine. A single
// logical worker owns each session; Step has no internal concurrency.
package fsm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/cart"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/delivery"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/intent"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/phrase"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/remote"
)

// OrderBackend is the slice of the remote client the engine needs for
// order creation, tracking and history.
type OrderBackend interface {
	CreateOrder(ctx context.Context, tenant *core.TenantConfig, key core.IdempotencyKey, payload remote.OrderPayload) (core.OrderID, error)
	GetOrder(ctx context.Context, tenant *core.TenantConfig, id core.OrderID) (*remote.OrderInfo, error)
	OrdersByPhone(ctx context.Context, tenant *core.TenantConfig, phone core.UserRef) ([]remote.OrderInfo, error)
}

// Config carries the engine knobs that are not per-tenant.
type Config struct {
	IdleTTL       time.Duration
	ResetKeywords []string
}

// DefaultResetKeywords restart the conversation from any stage.
func DefaultResetKeywords() []string {
	return []string{"hi", "hello", "start", "restart", "reset", "menu", "0"}
}

// Engine routes events to stage handlers and emits the outbound plan.
// Illegal stage/event combinations produce a reprompt, never an error.
type Engine struct {
	catalog core.MenuCatalog
	cart    *cart.Engine
	pricer  *delivery.Pricer
	orders  OrderBackend
	phrases *phrase.Generator
	log     *zap.Logger
	now     func() time.Time

	idleTTL time.Duration
	resets  map[string]struct{}
}

func NewEngine(catalog core.MenuCatalog, cartEngine *cart.Engine, pricer *delivery.Pricer, orders OrderBackend, phrases *phrase.Generator, cfg Config, log *zap.Logger) *Engine {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	keywords := cfg.ResetKeywords
	if len(keywords) == 0 {
		keywords = DefaultResetKeywords()
	}
	resets := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		resets[strings.ToLower(k)] = struct{}{}
	}
	return &Engine{
		catalog: catalog,
		cart:    cartEngine,
		pricer:  pricer,
		orders:  orders,
		phrases: phrases,
		log:     log,
		now:     time.Now,
		idleTTL: cfg.IdleTTL,
		resets:  resets,
	}
}

// Step processes one inbound event. The session is mutated in place and the
// returned plan is emitted in order by the caller.
func (e *Engine) Step(ctx context.Context, tenant *core.TenantConfig, s *core.Session, ev core.Event) core.OutboundPlan {
	now := e.now()
	if s.Expired(now, e.idleTTL) {
		e.log.Debug("session idle ttl elapsed, resetting to browsing",
			zap.String("session", string(s.ID)))
		s.ResetToBrowsing()
	}

	summary := ev.Body.Summary()
	s.Trail.Append("user", summary, now)

	in := intent.FromEvent(ev.Body, tenant.Keywords)
	s.LastIntent = in.String()

	var plan core.OutboundPlan
	if text, ok := ev.Body.(core.TextBody); ok && e.isReset(text.Text) {
		s.ResetToBrowsing()
		plan = e.greetAndListCategories(ctx, tenant, s)
	} else {
		plan = e.route(ctx, tenant, s, ev, in, now)
	}

	s.Touch(now)
	for _, text := range core.PlanTexts(plan) {
		s.Trail.Append("bot", text, now)
	}
	return plan
}

func (e *Engine) isReset(text string) bool {
	_, ok := e.resets[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func (e *Engine) route(ctx context.Context, tenant *core.TenantConfig, s *core.Session, ev core.Event, in intent.Intent, now time.Time) core.OutboundPlan {
	switch s.Stage {
	case core.StageBrowsing:
		return e.stepBrowsing(ctx, tenant, s, ev, in)
	case core.StageSelectingCategory:
		return e.stepSelectingCategory(ctx, tenant, s, in)
	case core.StageViewingProducts:
		return e.stepViewingProducts(ctx, tenant, s, in, now)
	case core.StageCustomizing:
		return e.stepCustomizing(ctx, tenant, s, in, now)
	case core.StageReviewingCart:
		return e.stepReviewingCart(ctx, tenant, s, in)
	case core.StageCheckoutStart, core.StageAwaitingDeliveryMethod:
		return e.stepDeliveryMethod(ctx, tenant, s, in, now)
	case core.StageAwaitingLocation:
		return e.stepAwaitingLocation(ctx, tenant, s, in)
	case core.StageAwaitingPhone:
		return e.stepAwaitingPhone(ctx, tenant, s, ev, now)
	case core.StageAwaitingPayment:
		return e.stepAwaitingPayment(ctx, tenant, s, in)
	case core.StageConfirming:
		return e.stepConfirming(ctx, tenant, s, in, now)
	case core.StageConfirmed:
		return e.stepConfirmed(ctx, tenant, s, in, now)
	case core.StageTracking:
		return e.stepTracking(ctx, tenant, s, in)
	default:
		e.log.Warn("session in unknown stage, resetting",
			zap.String("session", string(s.ID)),
			zap.String("stage", string(s.Stage)))
		s.ResetToBrowsing()
		return e.greetAndListCategories(ctx, tenant, s)
	}
}

// reprompt leaves the stage unchanged and nudges the user.
func (e *Engine) reprompt(s *core.Session) core.OutboundPlan {
	return core.OutboundPlan{core.TextOut{Text: stagePrompt(string(s.Stage))}}
}

// backendFailure translates a remote error into a user-visible plan without
// changing the stage.
func (e *Engine) backendFailure(s *core.Session, op string, err error) core.OutboundPlan {
	e.log.Warn("backend call failed",
		zap.String("session", string(s.ID)),
		zap.String("op", op),
		zap.Error(err))
	return core.OutboundPlan{core.TextOut{Text: textTransientApology}}
}

// Snapshot derives the durable conversation snapshot pushed to the store
// after each step.
func Snapshot(s *core.Session) core.ConversationSnapshot {
	snap := core.ConversationSnapshot{
		SessionID:     s.ID,
		CurrentIntent: s.LastIntent,
		CurrentStep:   s.Stage,
		Context: core.ConversationContext{
			CustomerName:   s.Customer.Name,
			CurrentOrderID: s.LastOrderID,
		},
	}
	if s.Cart != nil && !s.Cart.IsEmpty() {
		snap.Context.SelectedItems = s.Cart.Snapshot().Items
	}
	if o := s.PendingOrder; o != nil {
		snap.Context.OrderTotal = o.Total
		snap.Context.DeliveryAddress = o.Customer.Address
		snap.Context.PaymentMethod = o.PaymentMethod
	}
	return snap
}
