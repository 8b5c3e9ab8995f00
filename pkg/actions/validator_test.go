package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare domain", "api.example.com", "api.example.com"},
		{"https url", "https://api.example.com", "api.example.com"},
		{"url with path", "https://api.example.com/v1/pets", "api.example.com"},
		{"url with port", "https://api.example.com:8443/v1", "api.example.com"},
		{"uppercase", "API.Example.COM", "api.example.com"},
		{"trailing slash", "https://api.example.com/", "api.example.com"},
		{"whitespace", "  api.example.com  ", "api.example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDomain(tt.input))
		})
	}
}

func TestValidateActionDomain(t *testing.T) {
	allowed := []string{"api.example.com", "tools.internal.net"}

	tests := []struct {
		name      string
		stored    string
		serverURL string
		valid     bool
	}{
		{"exact match allowed", "api.example.com", "https://api.example.com/v1", true},
		{"stored with scheme", "https://api.example.com", "https://api.example.com", true},
		{"server domain mismatch", "api.example.com", "https://evil.example.net/v1", false},
		{"subdomain is not a match", "api.example.com", "https://sandbox.api.example.com", false},
		{"domain not on allowlist", "other.example.com", "https://other.example.com", false},
		{"empty stored domain", "", "https://api.example.com", false},
		{"unresolvable server url", "api.example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateActionDomain(tt.stored, tt.serverURL, allowed)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				assert.NotEmpty(t, result.Reason)
			}
		})
	}
}

func TestValidateActionDomain_BothChecksRequired(t *testing.T) {
	// Domain matches its spec but is not allow-listed.
	result := ValidateActionDomain("rogue.example.com", "https://rogue.example.com", []string{"api.example.com"})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "not on the allowed domains list")

	// Domain is allow-listed but the spec points elsewhere.
	result = ValidateActionDomain("api.example.com", "https://rogue.example.com", []string{"api.example.com"})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "does not match")
}

func TestDomainMap_MatchInsertionOrder(t *testing.T) {
	m := NewDomainMap()
	first := &CompiledAction{Domain: "api.example.com"}
	second := &CompiledAction{Domain: "sandbox.api.example.com"}
	m.Add("api.example.com", first)
	m.Add("sandbox.api.example.com", second)

	// "api.example.com" is a substring of both identifiers; first
	// compiled domain wins deterministically.
	matched, domain, ok := m.Match("getPet---sandbox.api.example.com")
	assert.True(t, ok)
	assert.Equal(t, "api.example.com", domain)
	assert.Same(t, first, matched)

	// Reversed insertion order flips the winner.
	m2 := NewDomainMap()
	m2.Add("sandbox.api.example.com", second)
	m2.Add("api.example.com", first)

	matched, domain, ok = m2.Match("getPet---sandbox.api.example.com")
	assert.True(t, ok)
	assert.Equal(t, "sandbox.api.example.com", domain)
	assert.Same(t, second, matched)
}

func TestDomainMap_MatchMiss(t *testing.T) {
	m := NewDomainMap()
	m.Add("api.example.com", &CompiledAction{Domain: "api.example.com"})

	_, _, ok := m.Match("web_search")
	assert.False(t, ok)
}
