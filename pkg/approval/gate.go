package approval

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Muon-Space/LibreChat/internal/metrics"
	"github.com/Muon-Space/LibreChat/pkg/tools"
)

// Gate intercepts the invocation entry point of tools flagged as
// requiring approval, replacing direct execution with a suspend/resume
// handshake against the flow manager and event sink.
type Gate struct {
	manager *Manager
	sink    EventSink
	metrics *metrics.Metrics
}

// NewGate creates an approval gate.
func NewGate(manager *Manager, sink EventSink, m *metrics.Metrics) *Gate {
	return &Gate{manager: manager, sink: sink, metrics: m}
}

// Wrap returns a tool whose handler suspends until the call is approved,
// rejected, expired or cancelled. Tools that do not require approval are
// returned unchanged. Each call through the wrapped handler creates its
// own independent flow; concurrent calls never share flow state.
func (g *Gate) Wrap(tool *tools.ResolvedTool, userID string) *tools.ResolvedTool {
	if tool == nil || !tool.RequiresApproval {
		return tool
	}

	gated := *tool
	gated.Handler = func(ctx context.Context, args map[string]any) (tools.Output, error) {
		decision, waited, err := g.await(ctx, &gated, userID, args)
		if g.metrics != nil {
			g.metrics.ApprovalFlowsPending.Dec()
			g.metrics.ObserveApprovalOutcome(string(decision.State), waited)
		}
		if err != nil {
			return tools.Output{}, err
		}
		return tool.Handler(ctx, args)
	}
	return &gated
}

// await runs the handshake for one call and returns the terminal decision.
// A nil error means the call was approved and may proceed.
func (g *Gate) await(ctx context.Context, tool *tools.ResolvedTool, userID string, args map[string]any) (Decision, time.Duration, error) {
	flow := g.manager.CreateFlow(tool.Name, tool.ServerName(), userID, args)
	defer g.manager.remove(flow.ID)

	g.send(userID, EventValidationPending, pendingEvent(flow))

	start := time.Now()
	timer := time.NewTimer(time.Until(flow.ExpiresAt))
	defer timer.Stop()

	var decision Decision
	select {
	case decision = <-flow.decision:
	case <-timer.C:
		flow.resolve(Decision{State: StateExpired})
		decision = <-flow.decision
	case <-ctx.Done():
		flow.resolve(Decision{State: StateCancelled})
		decision = <-flow.decision
	}
	waited := time.Since(start)

	if decision.State != StateApproved {
		log.Warn().
			Str("validation_id", flow.ID).
			Str("tool", tool.Name).
			Str("user", userID).
			Str("state", string(decision.State)).
			Str("actor", decision.Actor).
			Dur("waited", waited).
			Msg("Gated tool call will not proceed")
		return decision, waited, &NotApprovedError{Tool: tool.Name, State: decision.State, Actor: decision.Actor}
	}

	g.send(userID, EventValidationResolved, resolvedEvent(flow, marshalArgs(args)))

	log.Info().
		Str("validation_id", flow.ID).
		Str("tool", tool.Name).
		Str("actor", decision.Actor).
		Dur("waited", waited).
		Msg("Gated tool call approved")

	return decision, waited, nil
}

func (g *Gate) send(channel, event string, payload any) {
	if g.sink == nil {
		return
	}
	g.sink.Send(channel, event, payload)
}

func marshalArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
