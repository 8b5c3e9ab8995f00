package tools

import (
	"context"
	"strings"
)

// Namespace identifies where a resolved tool came from.
type Namespace string

const (
	NamespaceBuiltin Namespace = "builtin"
	NamespaceMCP     Namespace = "mcp"
	NamespaceAction  Namespace = "action"
)

// Identifier delimiters. An action-derived tool is named
// "operationName---domain"; an MCP tool is named "toolName_mcp_serverName".
const (
	ActionDelimiter = "---"
	MCPDelimiter    = "_mcp_"
)

// BuiltinServerLabel is the server name reported for tools that have no
// external origin.
const BuiltinServerLabel = "builtin"

// OutputKind discriminates the shapes a tool result can take.
type OutputKind string

const (
	// OutputText is a plain string returned to the model.
	OutputText OutputKind = "text"
	// OutputArtifact carries a UI-visible payload distinct from the text
	// returned to the model.
	OutputArtifact OutputKind = "artifact"
	// OutputImage is an image-generation side effect: the artifact holds
	// the rendered image descriptor and the text is rewritten so the
	// model does not restate image details.
	OutputImage OutputKind = "image"
)

// Artifact is the UI-visible half of a content-and-artifact result.
type Artifact struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Output is the tagged-variant result of a tool invocation, decoded once
// at the invoker boundary instead of inferred per tool name.
type Output struct {
	Kind     OutputKind `json:"kind"`
	Text     string     `json:"text"`
	Artifact *Artifact  `json:"artifact,omitempty"`
}

// TextOutput builds a plain-text result.
func TextOutput(text string) Output {
	return Output{Kind: OutputText, Text: text}
}

// ArtifactOutput builds a content-and-artifact result.
func ArtifactOutput(text string, artifact *Artifact) Output {
	return Output{Kind: OutputArtifact, Text: text, Artifact: artifact}
}

// ImageOutput builds an image side-effect result.
func ImageOutput(text string, artifact *Artifact) Output {
	return Output{Kind: OutputImage, Text: text, Artifact: artifact}
}

// Handler executes a tool call.
type Handler func(ctx context.Context, args map[string]any) (Output, error)

// ResolvedTool is an executable handle for one tool identifier. A
// ToolIdentifier resolves to at most one ResolvedTool per run.
type ResolvedTool struct {
	Name             string
	Source           Namespace
	RequiresApproval bool
	Handler          Handler
}

// ServerName derives the origin server label from the tool's identifier:
// the qualifier after the MCP delimiter for external tools, a fixed
// builtin label otherwise.
func (t *ResolvedTool) ServerName() string {
	if t.Source == NamespaceMCP {
		if idx := strings.LastIndex(t.Name, MCPDelimiter); idx >= 0 {
			return t.Name[idx+len(MCPDelimiter):]
		}
	}
	return BuiltinServerLabel
}

// ToolCall is one requested invocation within a batch, matched back to
// its result by ID regardless of completion order.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// AuthContext carries the caller identity and per-server MCP credentials
// used when loading registry tools.
type AuthContext struct {
	UserID  string
	MCPAuth map[string]map[string]string
}

// Registry is the preloaded tool registry collaborator: builtin, function
// and MCP tools are resolved against it before the action namespace is
// consulted.
type Registry interface {
	Load(ctx context.Context, names []string, auth AuthContext) (map[string]*ResolvedTool, error)
}

// CredentialSource supplies per-user MCP authentication material.
type CredentialSource interface {
	GetUserMCPAuthMap(ctx context.Context, userID string) (map[string]map[string]string, error)
}
