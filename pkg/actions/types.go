package actions

import (
	"github.com/xeipuuv/gojsonschema"
)

// OwnerScope identifies which kind of owner an action set belongs to.
type OwnerScope string

const (
	ScopeAssistant OwnerScope = "assistant"
	ScopeAgent     OwnerScope = "agent"
)

// Metadata holds the stored configuration of an action set. The OAuth
// client secret arrives encrypted and is only decrypted in-memory for the
// lifetime of a single run.
type Metadata struct {
	Domain            string `json:"domain"`
	RawSpec           string `json:"raw_spec"`
	AuthType          string `json:"auth_type,omitempty"`
	APIKey            string `json:"api_key,omitempty"`
	OAuthClientID     string `json:"oauth_client_id,omitempty"`
	OAuthClientSecret string `json:"oauth_client_secret,omitempty"`
	OAuthTokenURL     string `json:"oauth_token_url,omitempty"`
}

// ActionSet is a stored OpenAPI specification plus credentials, scoped to
// an assistant or agent. Loaded once per run, never written back here.
type ActionSet struct {
	ID       string     `json:"id"`
	OwnerID  string     `json:"owner_id"`
	Scope    OwnerScope `json:"scope"`
	Metadata Metadata   `json:"metadata"`
}

// FunctionSignature describes one callable operation derived from an
// OpenAPI document, with a compiled parameter schema for argument
// validation before a request is built.
type FunctionSignature struct {
	Name        string
	Description string
	Parameters  map[string]any
	schema      *gojsonschema.Schema
}

// ValidateArguments checks call arguments against the operation's
// parameter schema. A signature without a schema accepts anything.
func (s *FunctionSignature) ValidateArguments(args map[string]any) error {
	if s.schema == nil {
		return nil
	}
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		return &ArgumentError{Function: s.Name, Problems: describeProblems(result)}
	}
	return nil
}

// CompiledAction is the per-run compilation product for one action set:
// the validated server URL, one request builder per operation, and the
// decrypted credential material.
type CompiledAction struct {
	Set        ActionSet
	Domain     string
	ServerURL  string
	Builders   map[string]*RequestBuilder
	Signatures map[string]*FunctionSignature
	Creds      Metadata
}

// DomainMap holds the compiled actions for a run in insertion order.
// Owned exclusively by the run that built it; not shared across runs.
type DomainMap struct {
	order   []string
	entries map[string]*CompiledAction
}

// NewDomainMap creates an empty domain map.
func NewDomainMap() *DomainMap {
	return &DomainMap{entries: make(map[string]*CompiledAction)}
}

// Add records a compiled action under its canonical domain.
func (m *DomainMap) Add(domain string, action *CompiledAction) {
	if _, exists := m.entries[domain]; !exists {
		m.order = append(m.order, domain)
	}
	m.entries[domain] = action
}

// Get returns the compiled action for an exact canonical domain.
func (m *DomainMap) Get(domain string) (*CompiledAction, bool) {
	action, ok := m.entries[domain]
	return action, ok
}

// Domains returns the canonical domains in insertion order.
func (m *DomainMap) Domains() []string {
	return append([]string(nil), m.order...)
}

// Len returns the number of compiled actions.
func (m *DomainMap) Len() int {
	return len(m.entries)
}

// Match finds the compiled action whose domain is contained in the given
// tool identifier. Domains are scanned in the order they were compiled and
// the first containment match wins; when one compiled domain is a
// substring of another, insertion order decides. Callers that need an
// unambiguous mapping should register the shorter domain last.
func (m *DomainMap) Match(toolID string) (*CompiledAction, string, bool) {
	for _, domain := range m.order {
		if containsDomain(toolID, domain) {
			return m.entries[domain], domain, true
		}
	}
	return nil, "", false
}
