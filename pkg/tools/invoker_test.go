package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type declinedError struct{ tool string }

func (e *declinedError) Error() string     { return fmt.Sprintf("tool call %s was rejected", e.tool) }
func (e *declinedError) NotApproved() bool { return true }

type recordingReporter struct {
	mu      sync.Mutex
	results []CallResult
}

func (r *recordingReporter) ReportToolOutcome(runID string, result CallResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func TestInvoker_Invoke(t *testing.T) {
	reporter := &recordingReporter{}
	inv := NewInvoker(reporter, nil)
	run := NewRunContext()

	tool := &ResolvedTool{
		Name:   "echo",
		Source: NamespaceBuiltin,
		Handler: func(ctx context.Context, args map[string]any) (Output, error) {
			return TextOutput(fmt.Sprintf("%v", args["text"])), nil
		},
	}

	result := inv.Invoke(context.Background(), run, tool, ToolCall{
		ID:        "call-1",
		Name:      "echo",
		Arguments: map[string]any{"text": "hello"},
	})

	assert.Equal(t, "call-1", result.CallID)
	assert.Equal(t, "echo", result.ToolName)
	assert.Equal(t, "hello", result.Output.Text)
	assert.False(t, result.Failed)
	assert.False(t, result.NotApproved)
	require.Len(t, reporter.results, 1)
	assert.Equal(t, result, reporter.results[0])
}

func TestInvoker_FailureBecomesDiagnostic(t *testing.T) {
	inv := NewInvoker(nil, nil)
	run := NewRunContext()

	tool := &ResolvedTool{
		Name:   "flaky",
		Source: NamespaceBuiltin,
		Handler: func(ctx context.Context, args map[string]any) (Output, error) {
			return Output{}, fmt.Errorf("connection refused")
		},
	}

	result := inv.Invoke(context.Background(), run, tool, ToolCall{ID: "call-1", Name: "flaky"})

	assert.True(t, result.Failed)
	assert.False(t, result.NotApproved)
	assert.Contains(t, result.Output.Text, "flaky")
	assert.Contains(t, result.Output.Text, "connection refused")
}

func TestInvoker_DiagnosticIsBounded(t *testing.T) {
	inv := NewInvoker(nil, nil)
	run := NewRunContext()

	tool := &ResolvedTool{
		Name:   "chatty",
		Source: NamespaceBuiltin,
		Handler: func(ctx context.Context, args map[string]any) (Output, error) {
			return Output{}, fmt.Errorf("%s", strings.Repeat("x", 4096))
		},
	}

	result := inv.Invoke(context.Background(), run, tool, ToolCall{ID: "call-1", Name: "chatty"})

	assert.True(t, result.Failed)
	assert.LessOrEqual(t, len(result.Output.Text), maxDiagnosticLen+len("... [truncated]"))
	assert.Contains(t, result.Output.Text, "[truncated]")
}

func TestInvoker_NotApprovedClassification(t *testing.T) {
	inv := NewInvoker(nil, nil)
	run := NewRunContext()

	tool := &ResolvedTool{
		Name:             "gated",
		Source:           NamespaceAction,
		RequiresApproval: true,
		Handler: func(ctx context.Context, args map[string]any) (Output, error) {
			return Output{}, &declinedError{tool: "gated"}
		},
	}

	result := inv.Invoke(context.Background(), run, tool, ToolCall{ID: "call-1", Name: "gated"})

	assert.True(t, result.NotApproved)
	assert.False(t, result.Failed)
	assert.Contains(t, result.Output.Text, "rejected")
}

func TestInvoker_ImageOutputRewritten(t *testing.T) {
	inv := NewInvoker(nil, nil)
	run := NewRunContext()

	artifact := &Artifact{Type: "image", Content: "data:image/png;base64,AAAA"}
	tool := &ResolvedTool{
		Name:   "draw",
		Source: NamespaceBuiltin,
		Handler: func(ctx context.Context, args map[string]any) (Output, error) {
			return ImageOutput("a red square on white background", artifact), nil
		},
	}

	result := inv.Invoke(context.Background(), run, tool, ToolCall{ID: "call-1", Name: "draw"})

	assert.Equal(t, OutputImage, result.Output.Kind)
	assert.Equal(t, imageInstruction, result.Output.Text)
	assert.Same(t, artifact, result.Output.Artifact)
}

func TestInvoker_ArtifactOutputPreserved(t *testing.T) {
	inv := NewInvoker(nil, nil)
	run := NewRunContext()

	artifact := &Artifact{Type: "chart", Content: "{}"}
	tool := &ResolvedTool{
		Name:   "chart",
		Source: NamespaceBuiltin,
		Handler: func(ctx context.Context, args map[string]any) (Output, error) {
			return ArtifactOutput("rendered a chart", artifact), nil
		},
	}

	result := inv.Invoke(context.Background(), run, tool, ToolCall{ID: "call-1", Name: "chart"})

	assert.Equal(t, "rendered a chart", result.Output.Text)
	assert.Same(t, artifact, result.Output.Artifact)
}

func TestInvokeBatch_ResultsMatchedByID(t *testing.T) {
	inv := NewInvoker(nil, nil)
	run := NewRunContext()

	// The slow tool finishes last; results must still line up by call ID.
	toolsByName := map[string]*ResolvedTool{
		"slow": {
			Name:   "slow",
			Source: NamespaceBuiltin,
			Handler: func(ctx context.Context, args map[string]any) (Output, error) {
				time.Sleep(50 * time.Millisecond)
				return TextOutput("slow done"), nil
			},
		},
		"fast": {
			Name:   "fast",
			Source: NamespaceBuiltin,
			Handler: func(ctx context.Context, args map[string]any) (Output, error) {
				return TextOutput("fast done"), nil
			},
		},
	}

	calls := []ToolCall{
		{ID: "call-slow", Name: "slow"},
		{ID: "call-fast", Name: "fast"},
	}

	results := inv.InvokeBatch(context.Background(), run, toolsByName, calls)

	require.Len(t, results, 2)
	assert.Equal(t, "slow done", results["call-slow"].Output.Text)
	assert.Equal(t, "fast done", results["call-fast"].Output.Text)
}

func TestInvokeBatch_FailureContained(t *testing.T) {
	inv := NewInvoker(nil, nil)
	run := NewRunContext()

	toolsByName := map[string]*ResolvedTool{
		"ok": {
			Name:   "ok",
			Source: NamespaceBuiltin,
			Handler: func(ctx context.Context, args map[string]any) (Output, error) {
				return TextOutput("fine"), nil
			},
		},
		"broken": {
			Name:   "broken",
			Source: NamespaceBuiltin,
			Handler: func(ctx context.Context, args map[string]any) (Output, error) {
				return Output{}, fmt.Errorf("boom")
			},
		},
	}

	results := inv.InvokeBatch(context.Background(), run, toolsByName, []ToolCall{
		{ID: "call-1", Name: "ok"},
		{ID: "call-2", Name: "broken"},
		{ID: "call-3", Name: "unknown"},
	})

	require.Len(t, results, 3)
	assert.False(t, results["call-1"].Failed)
	assert.Equal(t, "fine", results["call-1"].Output.Text)
	assert.True(t, results["call-2"].Failed)
	assert.True(t, results["call-3"].Failed)
	assert.Contains(t, results["call-3"].Output.Text, "not available")
}
