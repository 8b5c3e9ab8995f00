package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muon-Space/LibreChat/pkg/tools"
)

type sinkEvent struct {
	Channel string
	Event   string
	Payload ValidationEvent
}

type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *recordingSink) Send(channel, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{
		Channel: channel,
		Event:   event,
		Payload: payload.(ValidationEvent),
	})
}

func (s *recordingSink) snapshot() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkEvent(nil), s.events...)
}

// waitForPending polls the sink until the pending emission appears and
// returns its validation ID.
func waitForPending(t *testing.T, sink *recordingSink) string {
	t.Helper()
	var id string
	require.Eventually(t, func() bool {
		for _, e := range sink.snapshot() {
			if e.Event == EventValidationPending {
				id = e.Payload.ID
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return id
}

func gatedTool(invoked *bool) *tools.ResolvedTool {
	return &tools.ResolvedTool{
		Name:             "getPet---api.example.com",
		Source:           tools.NamespaceAction,
		RequiresApproval: true,
		Handler: func(ctx context.Context, args map[string]any) (tools.Output, error) {
			*invoked = true
			return tools.TextOutput("pet data"), nil
		},
	}
}

type handlerResult struct {
	output tools.Output
	err    error
}

func runGated(gate *Gate, tool *tools.ResolvedTool, ctx context.Context, args map[string]any) chan handlerResult {
	wrapped := gate.Wrap(tool, "user-1")
	done := make(chan handlerResult, 1)
	go func() {
		output, err := wrapped.Handler(ctx, args)
		done <- handlerResult{output, err}
	}()
	return done
}

func TestGate_PassthroughForUngatedTools(t *testing.T) {
	gate := NewGate(NewManager(time.Minute, nil), nil, nil)

	open := &tools.ResolvedTool{Name: "web_search", Source: tools.NamespaceBuiltin}
	assert.Same(t, open, gate.Wrap(open, "user-1"))
	assert.Nil(t, gate.Wrap(nil, "user-1"))
}

func TestGate_ApproveResumesInvocation(t *testing.T) {
	manager := NewManager(time.Minute, nil)
	sink := &recordingSink{}
	gate := NewGate(manager, sink, nil)

	invoked := false
	args := map[string]any{"petId": "p1"}
	done := runGated(gate, gatedTool(&invoked), context.Background(), args)

	id := waitForPending(t, sink)
	require.NoError(t, manager.Resolve(id, ActionApprove, "operator"))

	result := <-done
	require.NoError(t, result.err)
	assert.True(t, invoked)
	assert.Equal(t, "pet data", result.output.Text)

	// The flow is evicted once its call observed the decision.
	_, ok := manager.Get(id)
	assert.False(t, ok)
}

func TestGate_RejectNeverInvokes(t *testing.T) {
	manager := NewManager(time.Minute, nil)
	sink := &recordingSink{}
	gate := NewGate(manager, sink, nil)

	invoked := false
	done := runGated(gate, gatedTool(&invoked), context.Background(), nil)

	id := waitForPending(t, sink)
	require.NoError(t, manager.Resolve(id, ActionReject, "operator"))

	result := <-done
	require.Error(t, result.err)
	assert.False(t, invoked)

	var notApproved *NotApprovedError
	require.True(t, errors.As(result.err, &notApproved))
	assert.Equal(t, StateRejected, notApproved.State)
	assert.Equal(t, "operator", notApproved.Actor)
}

func TestGate_WindowExpiry(t *testing.T) {
	manager := NewManager(50*time.Millisecond, nil)
	sink := &recordingSink{}
	gate := NewGate(manager, sink, nil)

	invoked := false
	done := runGated(gate, gatedTool(&invoked), context.Background(), nil)

	result := <-done
	require.Error(t, result.err)
	assert.False(t, invoked)

	var notApproved *NotApprovedError
	require.True(t, errors.As(result.err, &notApproved))
	assert.Equal(t, StateExpired, notApproved.State)
}

func TestGate_CancellationBeforeExpiry(t *testing.T) {
	manager := NewManager(time.Minute, nil)
	sink := &recordingSink{}
	gate := NewGate(manager, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	invoked := false
	done := runGated(gate, gatedTool(&invoked), ctx, nil)

	waitForPending(t, sink)
	cancel()

	// Cancellation resolves promptly, long before the window would expire.
	select {
	case result := <-done:
		require.Error(t, result.err)
		assert.False(t, invoked)
		var notApproved *NotApprovedError
		require.True(t, errors.As(result.err, &notApproved))
		assert.Equal(t, StateCancelled, notApproved.State)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled call did not resolve in time")
	}
}

func TestGate_EventEmissions(t *testing.T) {
	manager := NewManager(time.Minute, nil)
	sink := &recordingSink{}
	gate := NewGate(manager, sink, nil)

	invoked := false
	args := map[string]any{"petId": "p1"}
	done := runGated(gate, gatedTool(&invoked), context.Background(), args)

	id := waitForPending(t, sink)
	require.NoError(t, manager.Resolve(id, ActionApprove, "operator"))
	<-done

	events := sink.snapshot()
	require.Len(t, events, 2)

	pending := events[0]
	assert.Equal(t, "user-1", pending.Channel)
	assert.Equal(t, EventValidationPending, pending.Event)
	require.Len(t, pending.Payload.Delta.ToolCalls, 1)
	assert.Empty(t, pending.Payload.Delta.ToolCalls[0].Args)
	require.NotNil(t, pending.Payload.Delta.Validation)
	assert.Equal(t, id, pending.Payload.Delta.Validation.ID)
	assert.Greater(t, pending.Payload.Delta.ExpiresAt, time.Now().UnixMilli())

	resolved := events[1]
	assert.Equal(t, EventValidationResolved, resolved.Event)
	require.Len(t, resolved.Payload.Delta.ToolCalls, 1)
	assert.JSONEq(t, `{"petId":"p1"}`, resolved.Payload.Delta.ToolCalls[0].Args)
	assert.Nil(t, resolved.Payload.Delta.Validation)
	assert.Zero(t, resolved.Payload.Delta.ExpiresAt)
}

func TestGate_ConcurrentFlowsAreIndependent(t *testing.T) {
	manager := NewManager(time.Minute, nil)
	sink := &recordingSink{}
	gate := NewGate(manager, sink, nil)

	invokedA, invokedB := false, false
	doneA := runGated(gate, gatedTool(&invokedA), context.Background(), nil)

	toolB := gatedTool(&invokedB)
	toolB.Name = "createPet---api.example.com"
	doneB := runGated(gate, toolB, context.Background(), nil)

	var idA, idB string
	require.Eventually(t, func() bool {
		for _, e := range sink.snapshot() {
			if e.Event != EventValidationPending {
				continue
			}
			if e.Payload.Delta.ToolCalls[0].Name == "getPet---api.example.com" {
				idA = e.Payload.ID
			} else {
				idB = e.Payload.ID
			}
		}
		return idA != "" && idB != ""
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, manager.Resolve(idA, ActionReject, "operator"))
	require.NoError(t, manager.Resolve(idB, ActionApprove, "operator"))

	resultA := <-doneA
	resultB := <-doneB

	assert.Error(t, resultA.err)
	assert.False(t, invokedA)
	assert.NoError(t, resultB.err)
	assert.True(t, invokedB)
}
