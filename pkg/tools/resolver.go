package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Muon-Space/LibreChat/internal/metrics"
	"github.com/Muon-Space/LibreChat/pkg/actions"
)

// Resolver resolves requested tool identifiers across the builtin/function,
// MCP and action namespaces. Action sets are compiled lazily, once per run.
type Resolver struct {
	registry  Registry
	store     actions.Store
	compiler  *actions.Compiler
	allowlist *actions.DomainAllowlist
	metrics   *metrics.Metrics

	// toolkits maps a member tool identifier to its toolkit key. Members
	// of one toolkit collapse to a single representative during
	// resolution.
	toolkits map[string]string
}

// ResolverConfig wires the resolver's collaborators.
type ResolverConfig struct {
	Registry  Registry
	Store     actions.Store
	Compiler  *actions.Compiler
	Allowlist *actions.DomainAllowlist
	Metrics   *metrics.Metrics
	Toolkits  map[string]string
}

// NewResolver creates a resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{
		registry:  cfg.Registry,
		store:     cfg.Store,
		compiler:  cfg.Compiler,
		allowlist: cfg.Allowlist,
		metrics:   cfg.Metrics,
		toolkits:  cfg.Toolkits,
	}
}

// ResolveOptions controls one resolution pass.
type ResolveOptions struct {
	// RequireAll makes any unresolved identifier fatal. Leave false for
	// best-effort agent tool lists, where unresolved names are logged
	// and skipped.
	RequireAll bool
	Auth       AuthContext
	Scope      actions.OwnerScope
	OwnerID    string
}

// Resolution is the outcome of one resolution pass.
type Resolution struct {
	Resolved   []*ResolvedTool
	Unresolved []string
}

// Resolve maps each requested identifier to an executable handle.
//
// Identifiers are first collapsed by toolkit, then resolved against the
// registry; anything the registry does not know is deferred to the run's
// compiled action-domain map. Resolved action tools are cached on the run
// keyed by the original identifier.
func (r *Resolver) Resolve(ctx context.Context, run *RunContext, requested []string, opts ResolveOptions) (*Resolution, error) {
	collapsed := r.collapseToolkits(requested)

	resolution := &Resolution{}
	var pending []string

	for _, id := range collapsed {
		if tool, ok := run.cachedTool(id); ok {
			resolution.Resolved = append(resolution.Resolved, tool)
			continue
		}
		pending = append(pending, id)
	}

	if len(pending) == 0 {
		return resolution, nil
	}

	registryTools, err := r.registry.Load(ctx, pending, opts.Auth)
	if err != nil {
		return nil, fmt.Errorf("load tool registry: %w", err)
	}

	var deferred []string
	for _, id := range pending {
		if tool, ok := registryTools[id]; ok {
			run.cacheTool(id, tool)
			resolution.Resolved = append(resolution.Resolved, tool)
			continue
		}
		deferred = append(deferred, id)
	}

	if len(deferred) > 0 {
		if err := r.resolveActions(ctx, run, deferred, opts, resolution); err != nil {
			return nil, err
		}
	}

	if r.metrics != nil {
		for _, tool := range resolution.Resolved {
			r.metrics.ToolResolutionsTotal.WithLabelValues(string(tool.Source)).Inc()
		}
		for range resolution.Unresolved {
			r.metrics.ToolResolutionFailedTotal.Inc()
		}
	}

	if len(resolution.Unresolved) > 0 {
		if opts.RequireAll {
			return nil, fmt.Errorf("required tools could not be resolved: %s",
				strings.Join(resolution.Unresolved, ", "))
		}
		log.Warn().
			Str("run_id", run.ID).
			Strs("tools", resolution.Unresolved).
			Msg("Skipping unresolved tools")
	}

	return resolution, nil
}

// collapseToolkits deduplicates repeated members of the same toolkit,
// keeping the first member as the representative.
func (r *Resolver) collapseToolkits(requested []string) []string {
	if len(r.toolkits) == 0 {
		return requested
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if key, isMember := r.toolkits[id]; isMember {
			if seen["toolkit:"+key] {
				continue
			}
			seen["toolkit:"+key] = true
		} else if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (r *Resolver) resolveActions(ctx context.Context, run *RunContext, ids []string, opts ResolveOptions, resolution *Resolution) error {
	domains, err := run.actionDomains(func() (*actions.DomainMap, error) {
		sets, err := r.store.LoadForRun(ctx, opts.Scope, opts.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("load action sets: %w", err)
		}
		return r.compiler.Compile(ctx, sets, r.allowlist.Domains())
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		compiled, domain, ok := domains.Match(id)
		if !ok {
			resolution.Unresolved = append(resolution.Unresolved, id)
			continue
		}

		operation := operationName(id, domain)
		builder, hasBuilder := compiled.Builders[operation]
		signature := compiled.Signatures[operation]
		if !hasBuilder {
			resolution.Unresolved = append(resolution.Unresolved, id)
			continue
		}

		tool := newActionTool(id, builder, signature)
		run.cacheTool(id, tool)
		resolution.Resolved = append(resolution.Resolved, tool)

		log.Debug().
			Str("run_id", run.ID).
			Str("tool", id).
			Str("domain", domain).
			Msg("Resolved action tool")
	}

	return nil
}

// operationName strips the domain suffix from an action tool identifier
// to recover the underlying operation name.
func operationName(id, domain string) string {
	if idx := strings.Index(id, ActionDelimiter); idx >= 0 {
		return id[:idx]
	}
	// No delimiter: fall back to trimming the matched domain itself.
	return strings.TrimSuffix(id, domain)
}

// newActionTool wraps a compiled request builder as a resolved tool.
// Arguments are validated against the operation's signature before any
// request leaves the process.
func newActionTool(id string, builder *actions.RequestBuilder, signature *actions.FunctionSignature) *ResolvedTool {
	return &ResolvedTool{
		Name:             id,
		Source:           NamespaceAction,
		RequiresApproval: true,
		Handler: func(ctx context.Context, args map[string]any) (Output, error) {
			if signature != nil {
				if err := signature.ValidateArguments(args); err != nil {
					return Output{}, err
				}
			}
			body, err := builder.Execute(ctx, args)
			if err != nil {
				return Output{}, err
			}
			return TextOutput(body), nil
		},
	}
}
