package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/events"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/remote"
)

// fakeDispatcher records enqueued events.
type fakeDispatcher struct {
	mu     sync.Mutex
	events []core.Event
	err    error
}

func (f *fakeDispatcher) Enqueue(ev core.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeDispatcher) Stats() map[string]int {
	return map[string]int{"sessions": 0, "active_workers": 0}
}

func (f *fakeDispatcher) all() []core.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Event, len(f.events))
	copy(out, f.events)
	return out
}

func newTestApp(t *testing.T, verifyToken, appSecret string) (*fiber.App, *fakeDispatcher) {
	t.Helper()
	dispatcher := &fakeDispatcher{}
	backend := remote.NewClient(remote.Config{BaseURL: "http://backend.invalid"}, zap.NewNop())
	tenant := &core.TenantConfig{ID: "t1", Subdomain: "my-restaurant", Branch: "LOC1"}
	h := NewHandler(verifyToken, appSecret, tenant, dispatcher, backend, events.NewEventBus(), zap.NewNop())

	app := fiber.New()
	h.Register(app)
	return app, dispatcher
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, "tok", "")
	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestVerifyWebhookHandshake(t *testing.T) {
	app, _ := newTestApp(t, "secret-token", "")

	resp, err := app.Test(httptest.NewRequest("GET",
		"/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=challenge-42", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "challenge-42", string(body))
}

func TestVerifyWebhookRejectsBadToken(t *testing.T) {
	app, _ := newTestApp(t, "secret-token", "")

	resp, err := app.Test(httptest.NewRequest("GET",
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=x", nil))
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET",
		"/webhook?hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=x", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func webhookBody(messages string) string {
	return `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"phone_number_id": "123"},
					"messages": [` + messages + `]
				}
			}]
		}]
	}`
}

func postWebhook(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestReceiveTextMessage(t *testing.T) {
	app, dispatcher := newTestApp(t, "tok", "")

	status := postWebhook(t, app, webhookBody(
		`{"from":"15551234567","timestamp":"1700000000","type":"text","text":{"body":"menu"}}`))
	assert.Equal(t, 200, status)

	evs := dispatcher.all()
	require.Len(t, evs, 1)
	assert.Equal(t, core.TenantID("t1"), evs[0].Tenant)
	assert.Equal(t, core.UserRef("+15551234567"), evs[0].User)
	assert.Equal(t, int64(1700000000), evs[0].TS)
	require.IsType(t, core.TextBody{}, evs[0].Body)
	assert.Equal(t, "menu", evs[0].Body.(core.TextBody).Text)
}

func TestReceiveInteractiveMessages(t *testing.T) {
	app, dispatcher := newTestApp(t, "tok", "")

	postWebhook(t, app, webhookBody(
		`{"from":"15551234567","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"confirm","title":"Confirm"}}}`))
	postWebhook(t, app, webhookBody(
		`{"from":"15551234567","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"category:c1","title":"Burgers"}}}`))
	postWebhook(t, app, webhookBody(
		`{"from":"15551234567","type":"location","location":{"latitude":-12.05,"longitude":-77.04,"address":"Calle 1"}}`))

	evs := dispatcher.all()
	require.Len(t, evs, 3)
	assert.Equal(t, "confirm", evs[0].Body.(core.ButtonBody).ID)
	assert.Equal(t, "category:c1", evs[1].Body.(core.ListSelBody).ID)
	assert.Equal(t, -12.05, evs[2].Body.(core.LocationBody).Lat)
}

func TestReceiveSkipsUnsupportedAndBadSenders(t *testing.T) {
	app, dispatcher := newTestApp(t, "tok", "")

	// Unknown message type and a non-phone sender both drop silently.
	status := postWebhook(t, app, webhookBody(
		`{"from":"15551234567","type":"sticker"},
		 {"from":"not-a-phone","type":"text","text":{"body":"hi"}}`))
	assert.Equal(t, 200, status)
	assert.Empty(t, dispatcher.all())
}

func TestReceiveAlwaysAcksDroppedEvents(t *testing.T) {
	app, dispatcher := newTestApp(t, "tok", "")
	dispatcher.err = assert.AnError

	status := postWebhook(t, app, webhookBody(
		`{"from":"15551234567","type":"text","text":{"body":"menu"}}`))
	// The Cloud API expects a 200 regardless of processing outcome.
	assert.Equal(t, 200, status)
}

func TestReceiveRejectsMalformedPayload(t *testing.T) {
	app, _ := newTestApp(t, "tok", "")
	assert.Equal(t, 400, postWebhook(t, app, `{"entry": "nope"`))
}

func TestSignatureVerification(t *testing.T) {
	secret := "app-secret"
	app, dispatcher := newTestApp(t, "tok", secret)
	body := webhookBody(`{"from":"15551234567","type":"text","text":{"body":"menu"}}`)

	// Unsigned and wrongly signed requests are rejected.
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	// A correctly signed request goes through.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", sig)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Len(t, dispatcher.all(), 1)
}

func TestConversationsEndpoint(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "/conversations", r.URL.Path)
		assert.Equal(t, "my-restaurant", r.URL.Query().Get("subDomain"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["conv-1","conv-2"]`))
	}))
	defer srv.Close()

	dispatcher := &fakeDispatcher{}
	backend := remote.NewClient(remote.Config{BaseURL: srv.URL}, zap.NewNop())
	tenant := &core.TenantConfig{ID: "t1", Subdomain: "my-restaurant", Branch: "LOC1"}
	h := NewHandler("tok", "", tenant, dispatcher, backend, events.NewEventBus(), zap.NewNop())
	app := fiber.New()
	h.Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/ops/conversations", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out struct {
		Conversations []string `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"conv-1", "conv-2"}, out.Conversations)
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, "tok", "")

	resp, err := app.Test(httptest.NewRequest("GET", "/ops/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out, "backend")
	assert.Contains(t, out, "sessions")
}
