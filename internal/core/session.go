package core

import "time"

// OrderStage is the conversation FSM state, distinct from OrderStatus.
type OrderStage string

const (
	StageBrowsing               OrderStage = "browsing"
	StageSelectingCategory      OrderStage = "selectingCategory"
	StageViewingProducts        OrderStage = "viewingProducts"
	StageCustomizing            OrderStage = "customizing"
	StageReviewingCart          OrderStage = "reviewingCart"
	StageCheckoutStart          OrderStage = "checkoutStart"
	StageAwaitingDeliveryMethod OrderStage = "awaitingDeliveryMethod"
	StageAwaitingLocation       OrderStage = "awaitingLocation"
	StageAwaitingPhone          OrderStage = "awaitingPhone"
	StageAwaitingPayment        OrderStage = "awaitingPayment"
	StageConfirming             OrderStage = "confirming"
	StageConfirmed              OrderStage = "confirmed"
	StageTracking               OrderStage = "tracking"
)

// Stages enumerates every legal stage value.
func Stages() []OrderStage {
	return []OrderStage{
		StageBrowsing, StageSelectingCategory, StageViewingProducts,
		StageCustomizing, StageReviewingCart, StageCheckoutStart,
		StageAwaitingDeliveryMethod, StageAwaitingLocation, StageAwaitingPhone,
		StageAwaitingPayment, StageConfirming, StageConfirmed, StageTracking,
	}
}

func (s OrderStage) Valid() bool {
	for _, st := range Stages() {
		if st == s {
			return true
		}
	}
	return false
}

// trailCapacity bounds the in-session message trail ring.
const trailCapacity = 20

// TrailEntry is one summarised message kept for context.
type TrailEntry struct {
	Role string    `json:"role"` // "user" or "bot"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// MessageTrail is a bounded ring of the last N message summaries.
type MessageTrail struct {
	entries []TrailEntry
	start   int
	count   int
}

func (t *MessageTrail) Append(role, text string, at time.Time) {
	if t.entries == nil {
		t.entries = make([]TrailEntry, trailCapacity)
	}
	idx := (t.start + t.count) % trailCapacity
	t.entries[idx] = TrailEntry{Role: role, Text: text, At: at}
	if t.count < trailCapacity {
		t.count++
	} else {
		t.start = (t.start + 1) % trailCapacity
	}
}

// Entries returns the trail oldest-first.
func (t *MessageTrail) Entries() []TrailEntry {
	out := make([]TrailEntry, 0, t.count)
	for i := 0; i < t.count; i++ {
		out = append(out, t.entries[(t.start+i)%trailCapacity])
	}
	return out
}

func (t *MessageTrail) Len() int { return t.count }

// Session is the per-(tenant,user) conversation context. It is owned by a
// single dispatcher worker at a time and never shared across workers.
type Session struct {
	ID             SessionID
	Tenant         TenantID
	Branch         BranchID
	User           UserRef
	Stage          OrderStage
	Cart           *Cart
	PendingOrder   *Order
	Customer       Customer
	LastIntent     string
	Flags          map[string]string
	LastActivityAt time.Time
	Trail          MessageTrail

	// Flow scratch state, reset between orders.
	CurrentCategoryID string
	ProductOffset     int
	PendingProductID  string
	IdemKey           IdempotencyKey
	LastOrderID       OrderID
}

func NewSession(id SessionID, tenant TenantID, branch BranchID, user UserRef, now time.Time) *Session {
	return &Session{
		ID:             id,
		Tenant:         tenant,
		Branch:         branch,
		User:           user,
		Stage:          StageBrowsing,
		Cart:           NewCart(now),
		Customer:       Customer{Phone: user},
		Flags:          map[string]string{},
		LastActivityAt: now,
	}
}

// Restore rehydrates a fresh session from a persisted conversation
// snapshot, typically after an idle eviction dropped the in-memory copy.
// Fields the snapshot does not carry keep their fresh-session defaults.
func (s *Session) Restore(snap ConversationSnapshot, now time.Time) {
	if snap.CurrentStep.Valid() {
		s.Stage = snap.CurrentStep
	}
	if snap.CurrentIntent != "" {
		s.LastIntent = snap.CurrentIntent
	}
	if snap.Context.CustomerName != "" {
		s.Customer.Name = snap.Context.CustomerName
	}
	if snap.Context.DeliveryAddress != "" {
		s.Customer.Address = snap.Context.DeliveryAddress
	}
	if snap.Context.CurrentOrderID != "" {
		s.LastOrderID = snap.Context.CurrentOrderID
	}
	if len(snap.Context.SelectedItems) > 0 {
		s.Cart.Items = append([]CartItem(nil), snap.Context.SelectedItems...)
		s.Cart.UpdatedAt = now
	}
}

// Touch records activity for TTL accounting.
func (s *Session) Touch(now time.Time) { s.LastActivityAt = now }

// Expired reports whether the idle TTL elapsed.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivityAt) > ttl
}

// ResetToBrowsing clears the pending order after TTL expiry. The cart is
// retained until the customer clears it explicitly.
func (s *Session) ResetToBrowsing() {
	s.Stage = StageBrowsing
	s.PendingOrder = nil
	s.CurrentCategoryID = ""
	s.ProductOffset = 0
	s.PendingProductID = ""
	s.IdemKey = ""
}
