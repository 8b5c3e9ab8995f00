package approval

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a validation flow's lifecycle state. A flow starts PENDING and
// reaches exactly one terminal state.
type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateExpired   State = "EXPIRED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether the state ends a flow.
func (s State) Terminal() bool {
	return s != StatePending
}

// Decision is the terminal outcome delivered to a suspended call.
type Decision struct {
	State  State
	Actor  string
	Reason string
}

// Flow represents one pending approval decision for a single tool call.
// At most one flow exists per intercepted call and it is never reused;
// ExpiresAt is fixed at creation and never extended.
type Flow struct {
	ID         string
	ToolName   string
	ServerName string
	UserID     string
	Arguments  map[string]any
	CreatedAt  time.Time
	ExpiresAt  time.Time

	mu       sync.Mutex
	state    State
	decision chan Decision
	once     sync.Once
}

func newFlow(toolName, serverName, userID string, args map[string]any, window time.Duration) *Flow {
	now := time.Now()
	return &Flow{
		ID:         uuid.NewString(),
		ToolName:   toolName,
		ServerName: serverName,
		UserID:     userID,
		Arguments:  args,
		CreatedAt:  now,
		ExpiresAt:  now.Add(window),
		state:      StatePending,
		decision:   make(chan Decision, 1),
	}
}

// State returns the flow's current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// resolve moves the flow to a terminal state. Exactly one caller wins;
// later attempts report false. The winning decision is delivered to the
// suspended call's channel.
func (f *Flow) resolve(decision Decision) bool {
	resolved := false
	f.once.Do(func() {
		f.mu.Lock()
		f.state = decision.State
		f.mu.Unlock()
		f.decision <- decision
		resolved = true
	})
	return resolved
}

// overdue reports whether a still-pending flow has outlived its window.
func (f *Flow) overdue(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StatePending && now.After(f.ExpiresAt)
}

// NotApprovedError is the uniform terminal failure for a gated call that
// was rejected, expired or cancelled. Non-retryable; distinct from an
// invocation error so callers can branch differently.
type NotApprovedError struct {
	Tool  string
	State State
	Actor string
}

func (e *NotApprovedError) Error() string {
	switch e.State {
	case StateRejected:
		if e.Actor != "" {
			return fmt.Sprintf("tool %s was not approved: rejected by %s", e.Tool, e.Actor)
		}
		return fmt.Sprintf("tool %s was not approved: rejected", e.Tool)
	case StateExpired:
		return fmt.Sprintf("tool %s was not approved: the approval window expired", e.Tool)
	case StateCancelled:
		return fmt.Sprintf("tool %s was not approved: the request was cancelled", e.Tool)
	default:
		return fmt.Sprintf("tool %s was not approved", e.Tool)
	}
}

// NotApproved marks this error for classification at the invoker boundary.
func (e *NotApprovedError) NotApproved() bool { return true }
