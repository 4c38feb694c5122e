// Package dispatch serializes inbound events per session. Sessions run
// concurrently with each other; within one session steps execute strictly
// in arrival order through a bounded mailbox.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/events"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/fsm"
)

const (
	shardCount         = 16
	defaultMailboxSize = 32
	defaultStepTimeout = 30 * time.Second
)

const textPanicFallback = "Something went wrong on our side. Please try again."

// ErrMailboxFull is returned when a session's queue is saturated; the
// transport layer acks the webhook anyway and the user retries naturally.
var ErrMailboxFull = errors.New("session mailbox full")

type Config struct {
	MailboxSize int
	StepTimeout time.Duration
	IdleTTL     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MailboxSize <= 0 {
		c.MailboxSize = defaultMailboxSize
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = defaultStepTimeout
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	return c
}

// slot owns one session and its mailbox. The session pointer is touched
// only by the active worker goroutine.
type slot struct {
	key     string
	session *core.Session
	mailbox chan core.Event
	running bool
}

type shard struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// Dispatcher routes inbound events to per-session workers.
type Dispatcher struct {
	engine    *fsm.Engine
	tenants   core.TenantLookup
	transport core.Transport
	store     core.ConversationStore
	bus       *events.EventBus
	log       *zap.Logger
	cfg       Config
	now       func() time.Time

	shards [shardCount]*shard
}

func New(engine *fsm.Engine, tenants core.TenantLookup, transport core.Transport, store core.ConversationStore, bus *events.EventBus, cfg Config, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		engine:    engine,
		tenants:   tenants,
		transport: transport,
		store:     store,
		bus:       bus,
		log:       log,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	for i := range d.shards {
		d.shards[i] = &shard{slots: make(map[string]*slot)}
	}
	return d
}

func sessionKey(tenant core.TenantID, user core.UserRef) string {
	return string(tenant) + "|" + string(user)
}

func (d *Dispatcher) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return d.shards[h.Sum32()%shardCount]
}

// Enqueue queues one inbound event and spawns a worker if the session has
// none. It never blocks on a slow session.
func (d *Dispatcher) Enqueue(ev core.Event) error {
	key := sessionKey(ev.Tenant, ev.User)
	sh := d.shardFor(key)

	sh.mu.Lock()
	sl, ok := sh.slots[key]
	if !ok {
		sl = &slot{key: key, mailbox: make(chan core.Event, d.cfg.MailboxSize)}
		sh.slots[key] = sl
	}
	select {
	case sl.mailbox <- ev:
	default:
		sh.mu.Unlock()
		d.log.Warn("session mailbox full, dropping event",
			zap.String("tenant", string(ev.Tenant)),
			zap.String("user", string(ev.User)))
		return ErrMailboxFull
	}
	spawn := !sl.running
	if spawn {
		sl.running = true
	}
	sh.mu.Unlock()

	if spawn {
		go d.work(sh, sl)
	}
	return nil
}

// work drains the mailbox sequentially and exits once it runs dry.
func (d *Dispatcher) work(sh *shard, sl *slot) {
	for {
		select {
		case ev := <-sl.mailbox:
			d.step(sl, ev)
		default:
			sh.mu.Lock()
			if len(sl.mailbox) == 0 {
				sl.running = false
				sh.mu.Unlock()
				return
			}
			sh.mu.Unlock()
		}
	}
}

func (d *Dispatcher) step(sl *slot, ev core.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.StepTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic in session step",
				zap.String("session_key", sl.key),
				zap.Any("panic", r))
			fallback := core.TextOut{Text: textPanicFallback}
			if err := d.transport.Send(ctx, ev.Tenant, ev.User, fallback); err != nil {
				d.log.Warn("fallback send failed", zap.Error(err))
			}
		}
	}()

	tenant, err := d.tenants.ByID(ctx, ev.Tenant)
	if err != nil {
		d.log.Error("tenant lookup failed",
			zap.String("tenant", string(ev.Tenant)), zap.Error(err))
		return
	}

	if sl.session == nil {
		sl.session = d.newSession(ctx, tenant, ev)
	}
	s := sl.session
	prevStage := s.Stage

	plan := d.engine.Step(ctx, tenant, s, ev)
	d.send(ctx, ev, plan)

	if s.Stage != prevStage {
		d.bus.PublishStageChanged(string(s.ID), string(s.Stage))
	}
	if s.Stage == core.StageConfirmed && prevStage != core.StageConfirmed {
		d.bus.PublishOrderCreated(string(s.LastOrderID), string(ev.Tenant), string(ev.User))
	}

	// Conversation sync never blocks the reply path.
	snap := fsm.Snapshot(s)
	userMsg := ev.Body.Summary()
	botMsgs := core.PlanTexts(plan)
	var linkedOrder core.OrderID
	if s.Stage == core.StageConfirmed && prevStage != core.StageConfirmed {
		linkedOrder = s.LastOrderID
	}
	go func() {
		syncCtx, syncCancel := context.WithTimeout(context.Background(), d.cfg.StepTimeout)
		defer syncCancel()
		d.store.RecordStep(syncCtx, s.ID, userMsg, botMsgs, snap, linkedOrder)
	}()
}

// newSession resolves the durable session id and builds the in-memory
// session, rehydrating stage and cart from the stored snapshot when the
// backend has one. A store failure degrades to a fresh session with a
// local id; the conversation simply will not sync until the next
// successful initialize.
func (d *Dispatcher) newSession(ctx context.Context, tenant *core.TenantConfig, ev core.Event) *core.Session {
	sid, err := d.store.Initialize(ctx, ev.Tenant, ev.User)
	if err != nil {
		d.log.Warn("conversation initialize failed, using local session id",
			zap.String("tenant", string(ev.Tenant)),
			zap.String("user", string(ev.User)),
			zap.Error(err))
		return core.NewSession(core.SessionID(uuid.New().String()), ev.Tenant, tenant.Branch, ev.User, d.now())
	}
	s := core.NewSession(sid, ev.Tenant, tenant.Branch, ev.User, d.now())
	snap, err := d.store.Load(ctx, sid)
	if err != nil {
		d.log.Warn("conversation load failed, starting fresh",
			zap.String("session", string(sid)), zap.Error(err))
		return s
	}
	if snap != nil {
		s.Restore(*snap, d.now())
	}
	return s
}

// send emits the plan in order. A payload the transport rejects for limit
// violations is downgraded to its text form instead of being dropped.
func (d *Dispatcher) send(ctx context.Context, ev core.Event, plan core.OutboundPlan) {
	for _, msg := range plan {
		err := d.transport.Send(ctx, ev.Tenant, ev.User, msg)
		if err == nil {
			continue
		}
		var composeErr *core.ComposeError
		if errors.As(err, &composeErr) {
			d.log.Warn("payload downgraded to text",
				zap.String("kind", composeErr.Kind),
				zap.String("reason", composeErr.Reason))
			texts := core.PlanTexts(core.OutboundPlan{msg})
			if len(texts) > 0 && texts[0] != "" {
				if err := d.transport.Send(ctx, ev.Tenant, ev.User, core.TextOut{Text: texts[0]}); err != nil {
					d.log.Warn("downgraded send failed", zap.Error(err))
				}
			}
			continue
		}
		d.log.Warn("outbound send failed",
			zap.String("user", string(ev.User)),
			zap.Error(err))
	}
}

// StartJanitor evicts idle sessions until ctx is done.
func (d *Dispatcher) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.evictIdle()
			}
		}
	}()
}

func (d *Dispatcher) evictIdle() {
	now := d.now()
	for _, sh := range d.shards {
		var evicted []*core.Session
		sh.mu.Lock()
		for key, sl := range sh.slots {
			if sl.running || len(sl.mailbox) > 0 || sl.session == nil {
				continue
			}
			if sl.session.Expired(now, d.cfg.IdleTTL) {
				evicted = append(evicted, sl.session)
				delete(sh.slots, key)
			}
		}
		sh.mu.Unlock()

		for _, s := range evicted {
			d.bus.PublishSessionEvicted(string(s.ID))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := d.store.End(ctx, s.ID); err != nil {
				d.log.Debug("conversation end failed", zap.Error(err))
			}
			cancel()
			d.log.Info("idle session evicted",
				zap.String("session", string(s.ID)),
				zap.String("stage", string(s.Stage)))
		}
	}
}

// Stats reports live session counts for the ops endpoint.
func (d *Dispatcher) Stats() map[string]int {
	total, active := 0, 0
	for _, sh := range d.shards {
		sh.mu.Lock()
		total += len(sh.slots)
		for _, sl := range sh.slots {
			if sl.running {
				active++
			}
		}
		sh.mu.Unlock()
	}
	return map[string]int{"sessions": total, "active_workers": active}
}

// String implements fmt.Stringer for debug logging.
func (d *Dispatcher) String() string {
	s := d.Stats()
	return fmt.Sprintf("dispatcher{sessions:%d active:%d}", s["sessions"], s["active_workers"])
}
