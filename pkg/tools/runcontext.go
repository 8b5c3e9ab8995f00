package tools

import (
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/Muon-Space/LibreChat/pkg/actions"
)

// RunContext owns the per-run caches: the compiled action-domain map and
// the resolved-tool cache. It is created when a run starts, passed to
// every component that needs it, and discarded when the run completes.
// Nothing here is shared across concurrent runs.
type RunContext struct {
	ID string

	mu         sync.Mutex
	domains    *actions.DomainMap
	domainsErr error
	compiled   bool
	toolCache  map[string]*ResolvedTool
}

// NewRunContext creates a fresh run context with a unique run ID.
func NewRunContext() *RunContext {
	id, err := gonanoid.New()
	if err != nil {
		id = "run"
	}
	return &RunContext{
		ID:        id,
		toolCache: make(map[string]*ResolvedTool),
	}
}

// cachedTool returns the resolved tool previously cached under the
// original tool identifier, if any.
func (rc *RunContext) cachedTool(identifier string) (*ResolvedTool, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	tool, ok := rc.toolCache[identifier]
	return tool, ok
}

// cacheTool stores a resolved tool under its original identifier so
// repeated references within the run return the same instance.
func (rc *RunContext) cacheTool(identifier string, tool *ResolvedTool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.toolCache[identifier] = tool
}

// actionDomains returns the run's compiled domain map, invoking compile at
// most once for the lifetime of the run.
func (rc *RunContext) actionDomains(compile func() (*actions.DomainMap, error)) (*actions.DomainMap, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if !rc.compiled {
		rc.domains, rc.domainsErr = compile()
		rc.compiled = true
	}
	return rc.domains, rc.domainsErr
}
