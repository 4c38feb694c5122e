package core

import "context"

// MenuCatalog serves the tenant menu tree. Implementations cache per tenant
// with a short TTL and coalesce refreshes.
type MenuCatalog interface {
	Categories(ctx context.Context, tenant *TenantConfig) ([]MenuCategory, error)
	ProductByID(ctx context.Context, tenant *TenantConfig, id string) (*Product, error)
	// ProductDetails resolves presentations and modifier groups.
	ProductDetails(ctx context.Context, tenant *TenantConfig, id string) (*Product, error)
	Search(ctx context.Context, tenant *TenantConfig, query string) ([]Product, error)
}

// TenantLookup resolves tenant/business configuration. Modeled as an external
// collaborator; the engine never mutates what it returns.
type TenantLookup interface {
	ByID(ctx context.Context, id TenantID) (*TenantConfig, error)
}

// Transport delivers composed payloads to the messaging channel.
type Transport interface {
	Send(ctx context.Context, tenant TenantID, to UserRef, msg OutboundMessage) error
}

// PhraseGenerator produces short decorative phrasings. Implementations must
// be safe to abandon; callers substitute a static template on error or delay.
type PhraseGenerator interface {
	Generate(ctx context.Context, kind string, vars map[string]string) (string, error)
}

// ConversationContext is the durable per-conversation context persisted by
// the remote backend.
type ConversationContext struct {
	SelectedItems   []CartItem    `json:"selectedItems,omitempty"`
	OrderTotal      Money         `json:"orderTotal"`
	DeliveryAddress string        `json:"deliveryAddress,omitempty"`
	PaymentMethod   PaymentMethod `json:"paymentMethod,omitempty"`
	CustomerName    string        `json:"customerName,omitempty"`
	CurrentOrderID  OrderID       `json:"currentOrderId,omitempty"`
}

// ConversationSnapshot is the state pushed after each FSM step.
type ConversationSnapshot struct {
	SessionID     SessionID           `json:"sessionId"`
	CurrentIntent string              `json:"currentIntent,omitempty"`
	CurrentStep   OrderStage          `json:"currentStep"`
	Context       ConversationContext `json:"context"`
}

// ConversationStore syncs durable conversation state to the remote
// persistence API. All writes are fire-and-forget from the caller's point of
// view: failures are logged and never affect the user-facing flow.
type ConversationStore interface {
	// Initialize is idempotent; it returns the existing active conversation
	// for (tenant, user) when there is one.
	Initialize(ctx context.Context, tenant TenantID, user UserRef) (SessionID, error)
	// Load fetches the persisted snapshot for a session, nil when the
	// backend holds none. Callers rehydrate evicted sessions from it.
	Load(ctx context.Context, sid SessionID) (*ConversationSnapshot, error)
	// RecordStep persists, in order: user message, state snapshot, bot
	// messages, and the optional order link.
	RecordStep(ctx context.Context, sid SessionID, userMsg string, botMsgs []string, snap ConversationSnapshot, orderID OrderID)
	Extend(ctx context.Context, sid SessionID) error
	Reset(ctx context.Context, sid SessionID) error
	End(ctx context.Context, sid SessionID) error
}
