package approval

// EventSink delivers validation lifecycle events to the caller's live
// channel. Fire-and-forget: a lost event never blocks or fails the flow.
type EventSink interface {
	Send(channel, event string, payload any)
}

// Event names announced on the sink.
const (
	EventValidationPending  = "validation.pending"
	EventValidationResolved = "validation.resolved"
)

// deltaTypeToolCalls is the delta discriminator both emissions share.
const deltaTypeToolCalls = "tool_calls"

// ValidationEvent is the observable payload shape for both emissions of a
// validation flow: first pending (with validation and expires_at), then
// resolved (omitting both).
type ValidationEvent struct {
	ID    string          `json:"id"`
	Delta ValidationDelta `json:"delta"`
}

// ValidationDelta carries the tool-call envelope of a validation event.
type ValidationDelta struct {
	Type       string          `json:"type"`
	ToolCalls  []EventToolCall `json:"tool_calls"`
	Validation *ValidationInfo `json:"validation,omitempty"`
	ExpiresAt  int64           `json:"expires_at,omitempty"`
}

// EventToolCall names the intercepted call. Args are elided from the
// pending emission: the UI shows that a call is awaiting approval, not a
// live argument stream.
type EventToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"`
}

// ValidationInfo identifies the pending flow an approver must resolve.
type ValidationInfo struct {
	ID string `json:"id"`
}

func pendingEvent(flow *Flow) ValidationEvent {
	return ValidationEvent{
		ID: flow.ID,
		Delta: ValidationDelta{
			Type: deltaTypeToolCalls,
			ToolCalls: []EventToolCall{{
				ID:   flow.ID,
				Name: flow.ToolName,
				Args: "",
			}},
			Validation: &ValidationInfo{ID: flow.ID},
			ExpiresAt:  flow.ExpiresAt.UnixMilli(),
		},
	}
}

func resolvedEvent(flow *Flow, args string) ValidationEvent {
	return ValidationEvent{
		ID: flow.ID,
		Delta: ValidationDelta{
			Type: deltaTypeToolCalls,
			ToolCalls: []EventToolCall{{
				ID:   flow.ID,
				Name: flow.ToolName,
				Args: args,
			}},
		},
	}
}
