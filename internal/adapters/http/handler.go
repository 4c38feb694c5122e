// Package http exposes the webhook, ops and SSE endpoints on Fiber.
package http

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/adapters/whatsapp"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/events"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/remote"
)

// Enqueuer is the slice of the dispatcher the handler needs.
type Enqueuer interface {
	Enqueue(ev core.Event) error
	Stats() map[string]int
}

// Handler handles WhatsApp webhook traffic and the operator endpoints.
type Handler struct {
	verifyToken string
	appSecret   string
	tenant      *core.TenantConfig
	dispatcher  Enqueuer
	backend     *remote.Client
	eventBus    *events.EventBus
	log         *zap.Logger
}

func NewHandler(verifyToken, appSecret string, tenant *core.TenantConfig, dispatcher Enqueuer, backend *remote.Client, eventBus *events.EventBus, log *zap.Logger) *Handler {
	if strings.TrimSpace(verifyToken) == "" {
		log.Warn("WHATSAPP_VERIFY_TOKEN is not set, webhook verification will reject all requests")
	}
	return &Handler{
		verifyToken: strings.TrimSpace(verifyToken),
		appSecret:   appSecret,
		tenant:      tenant,
		dispatcher:  dispatcher,
		backend:     backend,
		eventBus:    eventBus,
		log:         log,
	}
}

// Register mounts all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/webhook", h.VerifyWebhook)
	app.Post("/webhook", h.ReceiveMessage)
	app.Get("/ops/metrics", h.Metrics)
	app.Get("/ops/conversations", h.Conversations)
	app.Get("/ops/events", h.SSEEvents)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// VerifyWebhook answers the Cloud API subscription handshake: echo
// hub.challenge when the verify token matches.
func (h *Handler) VerifyWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := strings.TrimSpace(c.Query("hub.verify_token"))
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" {
		return c.Status(http.StatusBadRequest).SendString("Invalid mode")
	}
	if h.verifyToken == "" || token != h.verifyToken {
		h.log.Warn("webhook verification rejected", zap.String("mode", mode))
		return c.Status(http.StatusForbidden).SendString("Invalid verify token")
	}
	// Challenge must come back as plain text.
	return c.SendString(challenge)
}

// ReceiveMessage parses the webhook payload into inbound events and queues
// them. The Cloud API expects a fast 200 regardless of processing outcome.
func (h *Handler) ReceiveMessage(c *fiber.Ctx) error {
	if h.appSecret != "" {
		signature := c.Get("X-Hub-Signature-256")
		if signature == "" || !h.verifySignature(signature, c.Body()) {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
		}
	}

	var payload whatsapp.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	for _, ev := range h.toEvents(payload) {
		if err := h.dispatcher.Enqueue(ev); err != nil {
			h.log.Warn("event dropped",
				zap.String("user", string(ev.User)),
				zap.Error(err))
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// toEvents flattens the webhook envelope into transport-agnostic events.
// Unsupported message kinds are skipped.
func (h *Handler) toEvents(payload whatsapp.WebhookPayload) []core.Event {
	var out []core.Event
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				body := whatsapp.ParseMessage(msg)
				if body == nil {
					continue
				}
				user, ok := core.NormalizePhone(msg.From)
				if !ok {
					h.log.Warn("webhook sender is not a phone number",
						zap.String("from", msg.From))
					continue
				}
				ts, _ := strconv.ParseInt(msg.Timestamp, 10, 64)
				out = append(out, core.Event{
					Tenant: h.tenant.ID,
					User:   user,
					TS:     ts,
					Body:   body,
				})
			}
		}
	}
	return out
}

// verifySignature checks the X-Hub-Signature-256 header (sha256=<hex>).
func (h *Handler) verifySignature(signature string, body []byte) bool {
	parts := strings.SplitN(signature, "=", 2)
	if len(parts) != 2 || parts[0] != "sha256" {
		return false
	}
	expected, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	return hmac.Equal(expected, mac.Sum(nil))
}

// Metrics reports the remote client counters and live session stats.
func (h *Handler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"backend":  h.backend.GetMetrics(),
		"sessions": h.dispatcher.Stats(),
	})
}

// Conversations lists the active conversation ids the backend knows for
// this tenant.
func (h *Handler) Conversations(c *fiber.Ctx) error {
	ids, err := h.backend.ListConversations(c.UserContext(), h.tenant)
	if err != nil {
		h.log.Warn("conversation listing failed", zap.Error(err))
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "backend unavailable"})
	}
	return c.JSON(fiber.Map{"conversations": ids})
}

// SSEEvents streams operator events (orders, stage changes, evictions).
func (h *Handler) SSEEvents(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	subscriberID := uuid.New().String()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx := c.Context()
		eventChan := h.eventBus.Subscribe(ctx, subscriberID)

		if _, err := w.WriteString("event: connected\ndata: {\"message\":\"connected\"}\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-eventChan:
				if !ok {
					return
				}
				sseData, err := events.FormatSSE(event)
				if err != nil {
					h.log.Warn("sse format failed", zap.Error(err))
					continue
				}
				if _, err := w.WriteString(sseData); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}
