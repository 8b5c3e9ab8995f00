package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Auth types recognized on action-set metadata.
const (
	AuthTypeNone   = "none"
	AuthTypeAPIKey = "api_key"
	AuthTypeOAuth  = "oauth"
)

const maxResponseBytes = 512 * 1024

// RequestBuilder turns one OpenAPI operation into an executable HTTP call.
// Builders are compiled once per run and shared by every tool identifier
// that resolves to the same operation.
type RequestBuilder struct {
	Name      string
	Method    string
	Path      string
	ServerURL string

	pathParams   []string
	queryParams  []string
	headerParams []string
	hasBody      bool

	client *http.Client
	auth   authConfig
}

type authConfig struct {
	kind   string
	apiKey string
	bearer string
}

// SetAPIKey configures API-key authentication for requests built here.
func (b *RequestBuilder) SetAPIKey(key string) {
	b.auth = authConfig{kind: AuthTypeAPIKey, apiKey: key}
}

// SetBearerToken configures OAuth bearer authentication. Called after a
// token has been obtained for the owning user.
func (b *RequestBuilder) SetBearerToken(token string) {
	b.auth = authConfig{kind: AuthTypeOAuth, bearer: token}
}

// Execute performs the HTTP call described by this builder. Path and query
// parameters are taken from args by name; any remaining arguments become
// the JSON request body when the operation declares one.
func (b *RequestBuilder) Execute(ctx context.Context, args map[string]any) (string, error) {
	remaining := make(map[string]any, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	path := b.Path
	for _, name := range b.pathParams {
		value, ok := remaining[name]
		if !ok {
			return "", fmt.Errorf("operation %s: missing path parameter %q", b.Name, name)
		}
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(fmt.Sprintf("%v", value)))
		delete(remaining, name)
	}

	query := url.Values{}
	for _, name := range b.queryParams {
		if value, ok := remaining[name]; ok {
			query.Set(name, fmt.Sprintf("%v", value))
			delete(remaining, name)
		}
	}

	headers := map[string]string{}
	for _, name := range b.headerParams {
		if value, ok := remaining[name]; ok {
			headers[name] = fmt.Sprintf("%v", value)
			delete(remaining, name)
		}
	}

	target := strings.TrimSuffix(b.ServerURL, "/") + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var body io.Reader
	contentType := ""
	if b.hasBody && len(remaining) > 0 {
		payload, err := json.Marshal(remaining)
		if err != nil {
			return "", fmt.Errorf("operation %s: marshal request body: %w", b.Name, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, b.Method, target, body)
	if err != nil {
		return "", fmt.Errorf("operation %s: build request: %w", b.Name, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	switch b.auth.kind {
	case AuthTypeAPIKey:
		req.Header.Set("Authorization", "Bearer "+b.auth.apiKey)
	case AuthTypeOAuth:
		req.Header.Set("Authorization", "Bearer "+b.auth.bearer)
	}

	client := b.client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("operation %s: %w", b.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("operation %s: read response: %w", b.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("operation %s: %s returned %d: %s",
			b.Name, b.Method, resp.StatusCode, truncate(string(data), 256))
	}

	return string(data), nil
}

// buildOperation derives a request builder and function signature from a
// parsed OpenAPI operation.
func buildOperation(serverURL, path, method string, op *openapi3.Operation, client *http.Client) (*RequestBuilder, *FunctionSignature, error) {
	name := op.OperationID
	if name == "" {
		return nil, nil, fmt.Errorf("operation %s %s has no operationId", method, path)
	}

	builder := &RequestBuilder{
		Name:      name,
		Method:    method,
		Path:      path,
		ServerURL: serverURL,
		hasBody:   op.RequestBody != nil,
		client:    client,
	}

	properties := map[string]any{}
	var required []string

	for _, ref := range op.Parameters {
		param := ref.Value
		if param == nil {
			continue
		}
		switch param.In {
		case openapi3.ParameterInPath:
			builder.pathParams = append(builder.pathParams, param.Name)
		case openapi3.ParameterInQuery:
			builder.queryParams = append(builder.queryParams, param.Name)
		case openapi3.ParameterInHeader:
			builder.headerParams = append(builder.headerParams, param.Name)
		default:
			continue
		}

		prop := map[string]any{"type": "string"}
		if param.Schema != nil && param.Schema.Value != nil {
			if types := param.Schema.Value.Type; types != nil && len(*types) > 0 {
				prop["type"] = (*types)[0]
			}
			if param.Schema.Value.Description != "" {
				prop["description"] = param.Schema.Value.Description
			}
		}
		if param.Description != "" {
			prop["description"] = param.Description
		}
		properties[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if media := op.RequestBody.Value.Content.Get("application/json"); media != nil && media.Schema != nil && media.Schema.Value != nil {
			for propName, propRef := range media.Schema.Value.Properties {
				if propRef.Value == nil {
					continue
				}
				prop := map[string]any{"type": "string"}
				if types := propRef.Value.Type; types != nil && len(*types) > 0 {
					prop["type"] = (*types)[0]
				}
				if propRef.Value.Description != "" {
					prop["description"] = propRef.Value.Description
				}
				properties[propName] = prop
			}
			required = append(required, media.Schema.Value.Required...)
		}
	}

	parameters := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		parameters["required"] = required
	}

	signature := &FunctionSignature{
		Name:        name,
		Description: firstNonEmpty(op.Summary, op.Description),
		Parameters:  parameters,
	}
	signature.schema = compileParameterSchema(parameters)

	return builder, signature, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "... [truncated]"
}
