package gateway

import (
	"fmt"

	"github.com/Muon-Space/LibreChat/pkg/approval"
)

// ResolveValidationParams is the wire shape an external approver submits
// to resolve a pending validation flow.
type ResolveValidationParams struct {
	ValidationID string `json:"validation_id"`
	Action       string `json:"action"`
}

// ValidationResolver binds the approver-facing RPC surface to the flow
// manager. The transport that carries the request is outside this core;
// any server can hand decoded params to HandleResolve.
type ValidationResolver struct {
	manager *approval.Manager
}

// NewValidationResolver creates a resolver bound to a flow manager.
func NewValidationResolver(manager *approval.Manager) *ValidationResolver {
	return &ValidationResolver{manager: manager}
}

// HandleResolve applies an approver's decision. The actor is the
// authenticated identity of the submitting client.
func (r *ValidationResolver) HandleResolve(params ResolveValidationParams, actor string) error {
	if params.ValidationID == "" {
		return &RPCError{Code: InvalidParams, Message: "validation_id is required"}
	}
	if params.Action == "" {
		return &RPCError{Code: InvalidParams, Message: "action is required"}
	}

	action, err := approval.ParseAction(params.Action)
	if err != nil {
		return &RPCError{Code: InvalidParams, Message: fmt.Sprintf("invalid action: %v", err)}
	}

	if actor == "" {
		actor = "unknown"
	}

	if err := r.manager.Resolve(params.ValidationID, action, actor); err != nil {
		return &RPCError{Code: InternalError, Message: err.Error()}
	}

	return nil
}
