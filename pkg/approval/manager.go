package approval

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Muon-Space/LibreChat/internal/metrics"
)

// DefaultApprovalWindow is the fixed time an operator has to decide on a
// gated tool call.
const DefaultApprovalWindow = 10 * time.Minute

// Action is an approver's decision on a pending flow.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction parses an approver-provided action string.
func ParseAction(value string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(value)))
	switch action {
	case ActionApprove, ActionReject:
		return action, nil
	default:
		return "", fmt.Errorf("invalid approval action %q", value)
	}
}

// Manager is the flow-state store shared across concurrent requests.
// Flows are keyed strictly by validation ID so unrelated pending
// approvals for the same user never interfere.
type Manager struct {
	window  time.Duration
	metrics *metrics.Metrics

	mu    sync.RWMutex
	flows map[string]*Flow

	cron *cron.Cron
}

// NewManager creates a flow manager. A zero window means
// DefaultApprovalWindow.
func NewManager(window time.Duration, m *metrics.Metrics) *Manager {
	if window <= 0 {
		window = DefaultApprovalWindow
	}
	return &Manager{
		window:  window,
		metrics: m,
		flows:   make(map[string]*Flow),
	}
}

// Window returns the fixed approval window applied to new flows.
func (m *Manager) Window() time.Duration {
	return m.window
}

// CreateFlow registers a fresh validation flow for one intercepted call.
func (m *Manager) CreateFlow(toolName, serverName, userID string, args map[string]any) *Flow {
	flow := newFlow(toolName, serverName, userID, args, m.window)

	m.mu.Lock()
	m.flows[flow.ID] = flow
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ApprovalFlowsPending.Inc()
	}

	log.Info().
		Str("validation_id", flow.ID).
		Str("tool", toolName).
		Str("server", serverName).
		Str("user", userID).
		Time("expires_at", flow.ExpiresAt).
		Msg("Validation flow created")

	return flow
}

// Get returns a flow by validation ID.
func (m *Manager) Get(id string) (*Flow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	flow, ok := m.flows[id]
	return flow, ok
}

// Resolve applies an external approver's decision to a pending flow.
func (m *Manager) Resolve(id string, action Action, actor string) error {
	m.mu.RLock()
	flow, ok := m.flows[id]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("validation %s not found", id)
	}

	state := StateApproved
	if action == ActionReject {
		state = StateRejected
	}

	if !flow.resolve(Decision{State: state, Actor: actor}) {
		return fmt.Errorf("validation %s already resolved", id)
	}

	log.Info().
		Str("validation_id", id).
		Str("tool", flow.ToolName).
		Str("action", string(action)).
		Str("actor", actor).
		Msg("Validation flow resolved")

	return nil
}

// remove evicts a flow once its owning call has observed the terminal
// state.
func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.flows, id)
	m.mu.Unlock()
}

// StartSweeper schedules a periodic pass that expires overdue pending
// flows and evicts flows whose owner is gone. Belt-and-braces behind the
// per-call expiry timer: a flow abandoned by its caller still cannot
// outlive its window.
func (m *Manager) StartSweeper(spec string) error {
	if m.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	if spec == "" {
		spec = "@every 1m"
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, m.sweep); err != nil {
		return fmt.Errorf("schedule flow sweeper: %w", err)
	}
	c.Start()
	m.cron = c

	log.Info().Str("schedule", spec).Msg("Validation flow sweeper started")
	return nil
}

// StopSweeper stops the periodic sweep.
func (m *Manager) StopSweeper() {
	if m.cron != nil {
		m.cron.Stop()
		m.cron = nil
	}
}

func (m *Manager) sweep() {
	now := time.Now()

	m.mu.RLock()
	candidates := make([]*Flow, 0, len(m.flows))
	for _, flow := range m.flows {
		candidates = append(candidates, flow)
	}
	m.mu.RUnlock()

	expired := 0
	evicted := 0
	for _, flow := range candidates {
		if flow.overdue(now) {
			if flow.resolve(Decision{State: StateExpired}) {
				expired++
			}
		}
		if flow.State().Terminal() {
			m.remove(flow.ID)
			evicted++
		}
	}

	if expired > 0 || evicted > 0 {
		log.Debug().
			Int("expired", expired).
			Int("evicted", evicted).
			Msg("Validation flow sweep complete")
	}
}
