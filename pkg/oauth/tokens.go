package oauth

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// TokenFieldMapping supplies dot-separated paths into a provider token
// response for each canonical token field. AccessToken is required; the
// remaining paths are optional and fall back to a top-level field of the
// same name when unset.
type TokenFieldMapping struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    string `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenRecord is the canonical token shape produced from a provider
// response. Immutable once produced.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ObtainedAt   int64  `json:"obtained_at"`
}

// DefaultTokenType is applied when no token type is present at any
// resolvable location.
const DefaultTokenType = "Bearer"

// MappingError reports a required field path that did not resolve,
// including the top-level keys actually present in the response so the
// provider mismatch can be diagnosed without dumping the payload.
type MappingError struct {
	Path string
	Keys []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("access_token not found at path %q; top-level keys: [%s]",
		e.Path, strings.Join(e.Keys, ", "))
}

// MapTokenResponse maps an arbitrary provider token response into a
// TokenRecord using the supplied field paths. Optional fields fall back to
// their top-level names; access_token must resolve to a non-empty value.
func MapTokenResponse(raw []byte, mapping TokenFieldMapping) (TokenRecord, error) {
	now := time.Now().UnixMilli()

	accessPath := mapping.AccessToken
	if accessPath == "" {
		accessPath = "access_token"
	}

	access := gjson.GetBytes(raw, accessPath)
	if !access.Exists() || access.String() == "" {
		return TokenRecord{}, &MappingError{Path: accessPath, Keys: topLevelKeys(raw)}
	}

	record := TokenRecord{
		AccessToken:  access.String(),
		TokenType:    resolveString(raw, mapping.TokenType, "token_type"),
		Scope:        resolveString(raw, mapping.Scope, "scope"),
		RefreshToken: resolveString(raw, mapping.RefreshToken, "refresh_token"),
		ObtainedAt:   now,
	}

	if record.TokenType == "" {
		record.TokenType = DefaultTokenType
	}

	if expiresIn := resolveValue(raw, mapping.ExpiresIn, "expires_in"); expiresIn.Exists() {
		if seconds := expiresIn.Int(); seconds > 0 {
			record.ExpiresIn = seconds
			record.ExpiresAt = now + seconds*1000
		}
	}

	log.Debug().
		Str("token_type", record.TokenType).
		Bool("has_refresh", record.RefreshToken != "").
		Int64("expires_in", record.ExpiresIn).
		Msg("Token response mapped")

	return record, nil
}

func resolveString(raw []byte, path, fallback string) string {
	return resolveValue(raw, path, fallback).String()
}

// resolveValue reads a mapped path when one is supplied, otherwise the
// top-level field of the canonical name.
func resolveValue(raw []byte, path, fallback string) gjson.Result {
	if path != "" {
		return gjson.GetBytes(raw, path)
	}
	return gjson.GetBytes(raw, fallback)
}

func topLevelKeys(raw []byte) []string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
