package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Muon-Space/LibreChat/internal/metrics"
)

// maxDiagnosticLen bounds the diagnostic string produced from a failed
// tool invocation.
const maxDiagnosticLen = 1024

// imageInstruction replaces the textual output of image side-effect tools
// so the model does not restate image details the UI already renders.
const imageInstruction = "The image has been generated and displayed to the user. Do not describe or restate its contents."

// notApprovedErr is implemented by approval errors so the invoker can
// classify them without depending on the approval package.
type notApprovedErr interface {
	error
	NotApproved() bool
}

// CallResult pairs one batch call with its normalized output. Results are
// matched to calls by CallID, never by completion order.
type CallResult struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Output   Output `json:"output"`

	// Failed marks an invocation error that was converted to a
	// diagnostic output. NotApproved marks a declined, expired or
	// cancelled approval handshake; the two never overlap.
	Failed      bool `json:"failed,omitempty"`
	NotApproved bool `json:"not_approved,omitempty"`
}

// TranscriptReporter receives normalized outcomes for the run transcript.
type TranscriptReporter interface {
	ReportToolOutcome(runID string, result CallResult)
}

// Invoker executes resolved tools and normalizes their heterogeneous
// result shapes.
type Invoker struct {
	reporter TranscriptReporter
	metrics  *metrics.Metrics
}

// NewInvoker creates an invoker. Both collaborators are optional.
func NewInvoker(reporter TranscriptReporter, m *metrics.Metrics) *Invoker {
	return &Invoker{reporter: reporter, metrics: m}
}

// Invoke executes one resolved tool and normalizes its output.
//
// An invocation error is caught here and converted into a bounded
// diagnostic returned as the tool's own output, so one failing tool never
// aborts its siblings. Approval declines surface as a distinct
// NotApproved result instead.
func (inv *Invoker) Invoke(ctx context.Context, run *RunContext, tool *ResolvedTool, call ToolCall) CallResult {
	start := time.Now()
	result := CallResult{CallID: call.ID, ToolName: tool.Name}

	output, err := tool.Handler(ctx, call.Arguments)
	switch {
	case err == nil:
		result.Output = normalizeOutput(output)
	default:
		var declined notApprovedErr
		if errors.As(err, &declined) && declined.NotApproved() {
			result.NotApproved = true
			result.Output = TextOutput(truncateDiagnostic(err.Error()))
			log.Warn().
				Str("run_id", run.ID).
				Str("tool", tool.Name).
				Str("call_id", call.ID).
				Msg("Tool call was not approved")
		} else {
			result.Failed = true
			result.Output = TextOutput(truncateDiagnostic(fmt.Sprintf("tool %s failed: %v", tool.Name, err)))
			log.Error().
				Err(err).
				Str("run_id", run.ID).
				Str("tool", tool.Name).
				Str("call_id", call.ID).
				Msg("Tool invocation failed")
		}
	}

	if inv.metrics != nil {
		inv.metrics.ObserveToolInvocation(tool.Name, string(tool.Source), result.Failed, time.Since(start))
	}
	if inv.reporter != nil {
		inv.reporter.ReportToolOutcome(run.ID, result)
	}

	return result
}

// InvokeBatch executes every call concurrently and joins them. The
// returned map is a bijection with the input calls by call ID; one call's
// failure does not cancel the others.
func (inv *Invoker) InvokeBatch(ctx context.Context, run *RunContext, toolsByName map[string]*ResolvedTool, calls []ToolCall) map[string]CallResult {
	results := make([]CallResult, len(calls))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, call := range calls {
		group.Go(func() error {
			tool, ok := toolsByName[call.Name]
			if !ok {
				results[i] = CallResult{
					CallID:   call.ID,
					ToolName: call.Name,
					Failed:   true,
					Output:   TextOutput(fmt.Sprintf("tool %s is not available in this run", call.Name)),
				}
				return nil
			}
			results[i] = inv.Invoke(groupCtx, run, tool, call)
			return nil
		})
	}
	// Workers never return errors; failures live inside each result.
	_ = group.Wait()

	byID := make(map[string]CallResult, len(results))
	for _, result := range results {
		byID[result.CallID] = result
	}
	return byID
}

// normalizeOutput decodes the tagged result variant once, at the invoker
// boundary.
func normalizeOutput(output Output) Output {
	switch output.Kind {
	case OutputImage:
		output.Text = imageInstruction
		return output
	case OutputArtifact, OutputText:
		return output
	default:
		output.Kind = OutputText
		return output
	}
}

func truncateDiagnostic(s string) string {
	if len(s) <= maxDiagnosticLen {
		return s
	}
	return s[:maxDiagnosticLen] + "... [truncated]"
}
