// Package conversation adapts the remote conversation-state API. Writes are
// best-effort: failures are logged and never surface to the ordering flow.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

type api interface {
	InitConversation(ctx context.Context, tenant *core.TenantConfig, user core.UserRef) (core.SessionID, error)
	GetConversation(ctx context.Context, sid core.SessionID) (*core.ConversationSnapshot, error)
	AppendConversationMessage(ctx context.Context, sid core.SessionID, role, text string) error
	UpdateConversationContext(ctx context.Context, sid core.SessionID, snap core.ConversationSnapshot) error
	UpdateConversationIntent(ctx context.Context, sid core.SessionID, intent string) error
	LinkConversationOrder(ctx context.Context, sid core.SessionID, orderID core.OrderID) error
	ResetConversation(ctx context.Context, sid core.SessionID) error
	ExtendConversation(ctx context.Context, sid core.SessionID) error
	EndConversation(ctx context.Context, sid core.SessionID) error
}

// Store implements core.ConversationStore. With Enabled false every call is
// a no-op with identical signatures; Initialize then mints local session ids.
type Store struct {
	api     api
	tenants core.TenantLookup
	enabled bool
	timeout time.Duration
	log     *zap.Logger
}

func NewStore(api api, tenants core.TenantLookup, enabled bool, timeout time.Duration, log *zap.Logger) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{api: api, tenants: tenants, enabled: enabled, timeout: timeout, log: log}
}

func (s *Store) Initialize(ctx context.Context, tenant core.TenantID, user core.UserRef) (core.SessionID, error) {
	if !s.enabled {
		return core.SessionID(uuid.New().String()), nil
	}
	cfg, err := s.tenants.ByID(ctx, tenant)
	if err != nil {
		return "", err
	}
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.api.InitConversation(reqCtx, cfg, user)
}

func (s *Store) Load(ctx context.Context, sid core.SessionID) (*core.ConversationSnapshot, error) {
	if !s.enabled || sid == "" {
		return nil, nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.api.GetConversation(reqCtx, sid)
}

// RecordStep persists one FSM step in order: user message, state snapshot
// (context, then the intent tag when present), bot messages, optional order
// link. A failed write is logged and does not stop the later ones.
func (s *Store) RecordStep(ctx context.Context, sid core.SessionID, userMsg string, botMsgs []string, snap core.ConversationSnapshot, orderID core.OrderID) {
	if !s.enabled || sid == "" {
		return
	}

	if userMsg != "" {
		s.write(ctx, sid, "append user message", func(c context.Context) error {
			return s.api.AppendConversationMessage(c, sid, "user", userMsg)
		})
	}
	s.write(ctx, sid, "update context", func(c context.Context) error {
		return s.api.UpdateConversationContext(c, sid, snap)
	})
	if snap.CurrentIntent != "" {
		s.write(ctx, sid, "update intent", func(c context.Context) error {
			return s.api.UpdateConversationIntent(c, sid, snap.CurrentIntent)
		})
	}
	for _, msg := range botMsgs {
		msg := msg
		s.write(ctx, sid, "append bot message", func(c context.Context) error {
			return s.api.AppendConversationMessage(c, sid, "bot", msg)
		})
	}
	if orderID != "" {
		s.write(ctx, sid, "link order", func(c context.Context) error {
			return s.api.LinkConversationOrder(c, sid, orderID)
		})
	}
}

func (s *Store) write(ctx context.Context, sid core.SessionID, op string, fn func(context.Context) error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(reqCtx); err != nil {
		s.log.Warn("conversation sync failed",
			zap.String("op", op),
			zap.String("session", string(sid)),
			zap.Error(err))
	}
}

func (s *Store) Extend(ctx context.Context, sid core.SessionID) error {
	if !s.enabled || sid == "" {
		return nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.api.ExtendConversation(reqCtx, sid)
}

func (s *Store) Reset(ctx context.Context, sid core.SessionID) error {
	if !s.enabled || sid == "" {
		return nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.api.ResetConversation(reqCtx, sid)
}

func (s *Store) End(ctx context.Context, sid core.SessionID) error {
	if !s.enabled || sid == "" {
		return nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.api.EndConversation(reqCtx, sid)
}
