package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// BuildAuthContext assembles the auth context for one resolution pass,
// loading the caller's per-server MCP credentials from the credential
// source. A nil source yields an identity-only context, which is enough
// for builtin and action tools.
func BuildAuthContext(ctx context.Context, userID string, creds CredentialSource) (AuthContext, error) {
	auth := AuthContext{UserID: userID}
	if creds == nil {
		return auth, nil
	}

	mcpAuth, err := creds.GetUserMCPAuthMap(ctx, userID)
	if err != nil {
		return AuthContext{}, fmt.Errorf("load MCP credentials for user %s: %w", userID, err)
	}
	auth.MCPAuth = mcpAuth

	log.Debug().
		Str("user", userID).
		Int("servers", len(mcpAuth)).
		Msg("MCP auth context prepared")

	return auth, nil
}
