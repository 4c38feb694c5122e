package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

type call struct {
	op   string
	arg  string
	role string
}

// recordingAPI captures conversation writes in call order.
type recordingAPI struct {
	calls     []call
	initID    core.SessionID
	initErr   error
	appendErr error
	snapshot  *core.ConversationSnapshot
	getErr    error
}

func (r *recordingAPI) InitConversation(_ context.Context, _ *core.TenantConfig, user core.UserRef) (core.SessionID, error) {
	r.calls = append(r.calls, call{op: "init", arg: string(user)})
	return r.initID, r.initErr
}

func (r *recordingAPI) GetConversation(_ context.Context, sid core.SessionID) (*core.ConversationSnapshot, error) {
	r.calls = append(r.calls, call{op: "get", arg: string(sid)})
	return r.snapshot, r.getErr
}

func (r *recordingAPI) AppendConversationMessage(_ context.Context, _ core.SessionID, role, text string) error {
	r.calls = append(r.calls, call{op: "message", arg: text, role: role})
	return r.appendErr
}

func (r *recordingAPI) UpdateConversationContext(_ context.Context, _ core.SessionID, snap core.ConversationSnapshot) error {
	r.calls = append(r.calls, call{op: "context", arg: string(snap.CurrentStep)})
	return nil
}

func (r *recordingAPI) UpdateConversationIntent(_ context.Context, _ core.SessionID, intent string) error {
	r.calls = append(r.calls, call{op: "intent", arg: intent})
	return nil
}

func (r *recordingAPI) LinkConversationOrder(_ context.Context, _ core.SessionID, orderID core.OrderID) error {
	r.calls = append(r.calls, call{op: "order", arg: string(orderID)})
	return nil
}

func (r *recordingAPI) ResetConversation(context.Context, core.SessionID) error {
	r.calls = append(r.calls, call{op: "reset"})
	return nil
}

func (r *recordingAPI) ExtendConversation(context.Context, core.SessionID) error {
	r.calls = append(r.calls, call{op: "extend"})
	return nil
}

func (r *recordingAPI) EndConversation(context.Context, core.SessionID) error {
	r.calls = append(r.calls, call{op: "end"})
	return nil
}

type staticTenants struct{}

func (staticTenants) ByID(context.Context, core.TenantID) (*core.TenantConfig, error) {
	return &core.TenantConfig{ID: "t1", Subdomain: "my-restaurant", Branch: "LOC1"}, nil
}

func TestDisabledStoreMintsLocalIDs(t *testing.T) {
	api := &recordingAPI{}
	s := NewStore(api, staticTenants{}, false, 0, zap.NewNop())

	sid1, err := s.Initialize(context.Background(), "t1", "+1555")
	require.NoError(t, err)
	sid2, err := s.Initialize(context.Background(), "t1", "+1555")
	require.NoError(t, err)

	assert.NotEmpty(t, sid1)
	assert.NotEqual(t, sid1, sid2)

	s.RecordStep(context.Background(), sid1, "hi", []string{"hello"}, core.ConversationSnapshot{}, "")
	assert.NoError(t, s.Extend(context.Background(), sid1))
	assert.NoError(t, s.End(context.Background(), sid1))
	// No remote traffic at all.
	assert.Empty(t, api.calls)
}

func TestInitializeDelegatesToBackend(t *testing.T) {
	api := &recordingAPI{initID: "conv-9"}
	s := NewStore(api, staticTenants{}, true, 0, zap.NewNop())

	sid, err := s.Initialize(context.Background(), "t1", "+1555")
	require.NoError(t, err)
	assert.Equal(t, core.SessionID("conv-9"), sid)
	require.Len(t, api.calls, 1)
	assert.Equal(t, "+1555", api.calls[0].arg)
}

func TestRecordStepWriteOrder(t *testing.T) {
	api := &recordingAPI{}
	s := NewStore(api, staticTenants{}, true, 0, zap.NewNop())

	snap := core.ConversationSnapshot{
		SessionID:     "conv-1",
		CurrentIntent: "button:confirm",
		CurrentStep:   core.StageConfirmed,
	}
	s.RecordStep(context.Background(), "conv-1", "confirm please",
		[]string{"Order placed!", "Anything else?"}, snap, "ord-1")

	require.Len(t, api.calls, 6)
	assert.Equal(t, "message", api.calls[0].op)
	assert.Equal(t, "user", api.calls[0].role)
	assert.Equal(t, "confirm please", api.calls[0].arg)
	assert.Equal(t, "context", api.calls[1].op)
	assert.Equal(t, "confirmed", api.calls[1].arg)
	assert.Equal(t, "intent", api.calls[2].op)
	assert.Equal(t, "button:confirm", api.calls[2].arg)
	assert.Equal(t, "message", api.calls[3].op)
	assert.Equal(t, "bot", api.calls[3].role)
	assert.Equal(t, "Order placed!", api.calls[3].arg)
	assert.Equal(t, "Anything else?", api.calls[4].arg)
	assert.Equal(t, "order", api.calls[5].op)
	assert.Equal(t, "ord-1", api.calls[5].arg)
}

func TestRecordStepSkipsEmptyParts(t *testing.T) {
	api := &recordingAPI{}
	s := NewStore(api, staticTenants{}, true, 0, zap.NewNop())

	s.RecordStep(context.Background(), "conv-1", "", nil, core.ConversationSnapshot{}, "")
	// Only the context update remains.
	require.Len(t, api.calls, 1)
	assert.Equal(t, "context", api.calls[0].op)
}

func TestRecordStepFailureDoesNotStopLaterWrites(t *testing.T) {
	api := &recordingAPI{appendErr: errors.New("backend down")}
	s := NewStore(api, staticTenants{}, true, 0, zap.NewNop())

	s.RecordStep(context.Background(), "conv-1", "hi", []string{"hello"},
		core.ConversationSnapshot{}, "ord-1")

	// Every write was still attempted.
	ops := make([]string, len(api.calls))
	for i, c := range api.calls {
		ops[i] = c.op
	}
	assert.Equal(t, []string{"message", "context", "message", "order"}, ops)
}

func TestRecordStepNoopWithoutSessionID(t *testing.T) {
	api := &recordingAPI{}
	s := NewStore(api, staticTenants{}, true, 0, zap.NewNop())

	s.RecordStep(context.Background(), "", "hi", []string{"hello"}, core.ConversationSnapshot{}, "")
	assert.Empty(t, api.calls)
}

func TestLoadDelegatesToBackend(t *testing.T) {
	api := &recordingAPI{snapshot: &core.ConversationSnapshot{
		SessionID:   "conv-1",
		CurrentStep: core.StageReviewingCart,
	}}
	s := NewStore(api, staticTenants{}, true, 0, zap.NewNop())

	snap, err := s.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, core.StageReviewingCart, snap.CurrentStep)
	require.Len(t, api.calls, 1)
	assert.Equal(t, "get", api.calls[0].op)
	assert.Equal(t, "conv-1", api.calls[0].arg)
}

func TestLoadNoopWhenDisabledOrAnonymous(t *testing.T) {
	api := &recordingAPI{snapshot: &core.ConversationSnapshot{SessionID: "conv-1"}}

	disabled := NewStore(api, staticTenants{}, false, 0, zap.NewNop())
	snap, err := disabled.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	enabled := NewStore(api, staticTenants{}, true, 0, zap.NewNop())
	snap, err = enabled.Load(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, snap)

	assert.Empty(t, api.calls)
}

func TestLifecycleCallsPassThrough(t *testing.T) {
	api := &recordingAPI{}
	s := NewStore(api, staticTenants{}, true, 0, zap.NewNop())

	require.NoError(t, s.Extend(context.Background(), "conv-1"))
	require.NoError(t, s.Reset(context.Background(), "conv-1"))
	require.NoError(t, s.End(context.Background(), "conv-1"))

	ops := make([]string, len(api.calls))
	for i, c := range api.calls {
		ops[i] = c.op
	}
	assert.Equal(t, []string{"extend", "reset", "end"}, ops)
}
