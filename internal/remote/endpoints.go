package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

// Endpoint parameter styles differ per resource: menu structure and orders
// take query parameters, product details and zones take path parameters.
// Each endpoint is encoded explicitly here.

func tenantQuery(t *core.TenantConfig) url.Values {
	q := url.Values{}
	q.Set("subDomain", t.Subdomain)
	q.Set("localId", string(t.Branch))
	return q
}

// MenuStructure fetches the full category tree with embedded products.
func (c *Client) MenuStructure(ctx context.Context, tenant *core.TenantConfig) ([]core.MenuCategory, error) {
	var wire []wireCategory
	if err := c.do(ctx, http.MethodGet, "menu/bot-structure", tenantQuery(tenant), nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("fetch menu structure: %w", err)
	}
	out := make([]core.MenuCategory, 0, len(wire))
	for _, cat := range wire {
		out = append(out, cat.toCore())
	}
	return out, nil
}

// ProductDetails resolves presentations and modifier groups for products.
func (c *Client) ProductDetails(ctx context.Context, tenant *core.TenantConfig, ids []string) ([]core.Product, error) {
	path := fmt.Sprintf("menu/product-details/%s/%s", url.PathEscape(tenant.Subdomain), url.PathEscape(string(tenant.Branch)))
	body := map[string][]string{"productIds": ids}
	var wire []wireProduct
	if err := c.do(ctx, http.MethodPost, path, nil, nil, body, &wire); err != nil {
		return nil, fmt.Errorf("fetch product details: %w", err)
	}
	out := make([]core.Product, 0, len(wire))
	for _, p := range wire {
		out = append(out, p.toCore())
	}
	return out, nil
}

// DeliveryZones fetches the zone catalog.
func (c *Client) DeliveryZones(ctx context.Context, tenant *core.TenantConfig) ([]core.Zone, error) {
	path := fmt.Sprintf("delivery/zones/%s/%s", url.PathEscape(tenant.Subdomain), url.PathEscape(string(tenant.Branch)))
	var wire []wireZone
	if err := c.do(ctx, http.MethodGet, path, nil, nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("fetch delivery zones: %w", err)
	}
	out := make([]core.Zone, 0, len(wire))
	for _, z := range wire {
		out = append(out, z.toCore())
	}
	return out, nil
}

// CalculateDeliveryCost resolves a delivery location to a zone and distance.
// A nil zone means the location is outside every zone; the backend reports
// that either as a null zone or as an envelope failure.
func (c *Client) CalculateDeliveryCost(ctx context.Context, tenant *core.TenantConfig, restaurant, delivery core.LatLng) (*core.Zone, core.Distance, error) {
	body := costRequest{
		RestaurantLocation: restaurant,
		DeliveryLocation:   delivery,
		SubDomain:          tenant.Subdomain,
		LocalID:            string(tenant.Branch),
	}
	var resp costResponse
	err := c.do(ctx, http.MethodPost, "delivery/calculate-cost", nil, nil, body, &resp)
	if err != nil {
		var apiErr *core.APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			// Envelope failure on this endpoint means "no zone covers the
			// location", not a broken backend.
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("calculate delivery cost: %w", err)
	}
	if resp.Zone == nil {
		return nil, core.Distance(resp.DistanceKm), nil
	}
	zone := resp.Zone.toCore()
	return &zone, core.Distance(resp.DistanceKm), nil
}

// CreateOrder creates an order. The idempotency key makes transport replays
// safe; callers rotate the key only when the prior attempt is logically dead.
func (c *Client) CreateOrder(ctx context.Context, tenant *core.TenantConfig, key core.IdempotencyKey, payload OrderPayload) (core.OrderID, error) {
	headers := map[string]string{idempotencyHeader: string(key)}
	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, "orders", tenantQuery(tenant), headers, payload, &resp); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	if resp.OrderID != "" {
		return resp.OrderID, nil
	}
	return resp.ID, nil
}

// GetOrder fetches one order for tracking.
func (c *Client) GetOrder(ctx context.Context, tenant *core.TenantConfig, id core.OrderID) (*OrderInfo, error) {
	var info OrderInfo
	path := "orders/" + url.PathEscape(string(id))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, nil, &info); err != nil {
		var apiErr *core.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, core.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &info, nil
}

// OrdersByPhone fetches the customer's order history.
func (c *Client) OrdersByPhone(ctx context.Context, tenant *core.TenantConfig, phone core.UserRef) ([]OrderInfo, error) {
	q := tenantQuery(tenant)
	q.Set("phone", string(phone))
	var out []OrderInfo
	if err := c.do(ctx, http.MethodGet, "orders", q, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// Conversation-state endpoints, consumed by the conversation store adapter.

func (c *Client) InitConversation(ctx context.Context, tenant *core.TenantConfig, user core.UserRef) (core.SessionID, error) {
	body := map[string]string{
		"subDomain": tenant.Subdomain,
		"localId":   string(tenant.Branch),
		"user":      string(user),
	}
	var resp conversationResponse
	if err := c.do(ctx, http.MethodPost, "conversations", nil, nil, body, &resp); err != nil {
		return "", fmt.Errorf("initialize conversation: %w", err)
	}
	if resp.SessionID != "" {
		return resp.SessionID, nil
	}
	return resp.ID, nil
}

// GetConversation fetches the persisted snapshot for one conversation. A
// conversation the backend no longer holds yields (nil, nil).
func (c *Client) GetConversation(ctx context.Context, sid core.SessionID) (*core.ConversationSnapshot, error) {
	var snap core.ConversationSnapshot
	path := "conversations/" + url.PathEscape(string(sid))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, nil, &snap); err != nil {
		var apiErr *core.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &snap, nil
}

func (c *Client) AppendConversationMessage(ctx context.Context, sid core.SessionID, role, text string) error {
	body := map[string]string{"role": role, "text": text}
	path := fmt.Sprintf("conversations/%s/messages", url.PathEscape(string(sid)))
	return c.do(ctx, http.MethodPost, path, nil, nil, body, nil)
}

func (c *Client) UpdateConversationIntent(ctx context.Context, sid core.SessionID, intent string) error {
	body := map[string]string{"intent": intent}
	path := fmt.Sprintf("conversations/%s/intent", url.PathEscape(string(sid)))
	return c.do(ctx, http.MethodPut, path, nil, nil, body, nil)
}

func (c *Client) UpdateConversationContext(ctx context.Context, sid core.SessionID, snap core.ConversationSnapshot) error {
	path := fmt.Sprintf("conversations/%s/context", url.PathEscape(string(sid)))
	return c.do(ctx, http.MethodPut, path, nil, nil, snap, nil)
}

func (c *Client) LinkConversationOrder(ctx context.Context, sid core.SessionID, orderID core.OrderID) error {
	body := map[string]string{"orderId": string(orderID)}
	path := fmt.Sprintf("conversations/%s/order", url.PathEscape(string(sid)))
	return c.do(ctx, http.MethodPost, path, nil, nil, body, nil)
}

func (c *Client) ResetConversation(ctx context.Context, sid core.SessionID) error {
	path := fmt.Sprintf("conversations/%s/reset", url.PathEscape(string(sid)))
	return c.do(ctx, http.MethodPost, path, nil, nil, nil, nil)
}

func (c *Client) ExtendConversation(ctx context.Context, sid core.SessionID) error {
	path := fmt.Sprintf("conversations/%s/extend", url.PathEscape(string(sid)))
	return c.do(ctx, http.MethodPost, path, nil, nil, nil, nil)
}

func (c *Client) EndConversation(ctx context.Context, sid core.SessionID) error {
	path := fmt.Sprintf("conversations/%s/end", url.PathEscape(string(sid)))
	return c.do(ctx, http.MethodPost, path, nil, nil, nil, nil)
}

func (c *Client) ListConversations(ctx context.Context, tenant *core.TenantConfig) ([]core.SessionID, error) {
	var out []core.SessionID
	if err := c.do(ctx, http.MethodGet, "conversations", tenantQuery(tenant), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}
