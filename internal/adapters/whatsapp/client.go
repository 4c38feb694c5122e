package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

const defaultGraphURL = "https://graph.facebook.com/v19.0"

// PhoneNumberResolver maps a tenant to the WhatsApp phone number id its
// messages are sent from. Single-number deployments return a constant.
type PhoneNumberResolver interface {
	PhoneNumberID(tenant core.TenantID) (string, error)
}

// StaticPhoneNumber resolves every tenant to one phone number id.
type StaticPhoneNumber string

func (s StaticPhoneNumber) PhoneNumberID(core.TenantID) (string, error) {
	return string(s), nil
}

// Client sends outbound payloads through the Cloud API. It implements
// core.Transport: payloads are validated, encoded and posted in order.
type Client struct {
	baseURL    string
	numbers    PhoneNumberResolver
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(numbers PhoneNumberResolver, token string, log *zap.Logger) *Client {
	return &Client{
		baseURL:    defaultGraphURL,
		numbers:    numbers,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// WithBaseURL overrides the Graph API endpoint, used in tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Send validates, encodes and posts one outbound payload.
func (c *Client) Send(ctx context.Context, tenant core.TenantID, to core.UserRef, msg core.OutboundMessage) error {
	validated, err := Compose(msg)
	if err != nil {
		return err
	}
	payload, err := Encode(to, validated)
	if err != nil {
		return err
	}
	phoneID, err := c.numbers.PhoneNumberID(tenant)
	if err != nil {
		return fmt.Errorf("resolve sender number: %w", err)
	}
	return c.post(ctx, phoneID, to, payload)
}

func (c *Client) post(ctx context.Context, phoneID string, to core.UserRef, payload any) error {
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, phoneID)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("cloud api rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("to", string(to)),
			zap.ByteString("body", body))
		return fmt.Errorf("cloud api error: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
