package actions

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationResult reports whether an action set passed domain-integrity
// validation, with a human-readable reason on failure.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// NormalizeDomain reduces a stored domain identifier or server URL to a
// comparable canonical form: lowercased host without scheme, credentials,
// port or path.
func NormalizeDomain(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Hostname() == "" {
		// Not URL-shaped; fall back to stripping any path suffix by hand.
		host := trimmed
		if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
			host = host[:idx]
		}
		if idx := strings.LastIndex(host, ":"); idx >= 0 && !strings.Contains(host, "]") {
			host = host[:idx]
		}
		return strings.ToLower(host)
	}

	return strings.ToLower(parsed.Hostname())
}

// ValidateActionDomain verifies that the domain implied by an OpenAPI
// spec's server URL exactly matches the stored domain, and that the stored
// domain is on the operator allow-list. Both checks must pass. A mismatch
// means the spec points somewhere other than where the action was
// registered, so the whole set is rejected.
func ValidateActionDomain(storedDomain, specServerURL string, allowedDomains []string) ValidationResult {
	stored := NormalizeDomain(storedDomain)
	if stored == "" {
		return ValidationResult{Reason: "stored domain is empty"}
	}

	specDomain := NormalizeDomain(specServerURL)
	if specDomain == "" {
		return ValidationResult{Reason: fmt.Sprintf("spec server URL %q has no resolvable domain", specServerURL)}
	}

	if specDomain != stored {
		return ValidationResult{
			Reason: fmt.Sprintf("spec server domain %q does not match registered domain %q", specDomain, stored),
		}
	}

	for _, allowed := range allowedDomains {
		if NormalizeDomain(allowed) == stored {
			return ValidationResult{Valid: true}
		}
	}

	return ValidationResult{Reason: fmt.Sprintf("domain %q is not on the allowed domains list", stored)}
}

// containsDomain is the tool-identifier-to-domain containment test used by
// DomainMap.Match.
func containsDomain(toolID, domain string) bool {
	return strings.Contains(strings.ToLower(toolID), domain)
}
