package actions

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog/log"

	"github.com/Muon-Space/LibreChat/internal/metrics"
)

// Compiler turns stored action sets into per-run compiled actions. Spec
// parsing and secret decryption are the expensive steps, so the resulting
// DomainMap is built once per run and reused for every tool identifier
// that shares a domain. It is never cached across runs: secrets are
// re-decrypted each run and discarded with it.
type Compiler struct {
	decryptor Decryptor
	client    *http.Client
	metrics   *metrics.Metrics
}

// NewCompiler creates a compiler. The HTTP client is shared by every
// request builder the compiler produces; nil means http.DefaultClient.
// Metrics are optional.
func NewCompiler(decryptor Decryptor, client *http.Client, m *metrics.Metrics) *Compiler {
	return &Compiler{decryptor: decryptor, client: client, metrics: m}
}

// Compile validates and compiles the given action sets against the
// operator allow-list.
//
// Per-set failures are contained: an unparsable spec or a domain-integrity
// failure excludes that set and the rest proceed. Decryption failure is
// fatal and aborts compilation. Cancellation of ctx aborts the remaining
// unvalidated sets.
func (c *Compiler) Compile(ctx context.Context, sets []ActionSet, allowedDomains []string) (*DomainMap, error) {
	domains := NewDomainMap()

	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			return domains, fmt.Errorf("action compilation aborted: %w", err)
		}

		domain := NormalizeDomain(set.Metadata.Domain)
		if domain == "" {
			log.Warn().Str("action_set", set.ID).Msg("Action set has no domain, skipping")
			c.countExcluded("missing_domain")
			continue
		}

		doc, serverURL, err := c.parseSpec(ctx, set)
		if err != nil {
			log.Warn().
				Err(err).
				Str("action_set", set.ID).
				Str("domain", domain).
				Msg("Action spec failed to parse, skipping")
			c.countExcluded("spec_parse")
			continue
		}

		if result := ValidateActionDomain(set.Metadata.Domain, serverURL, allowedDomains); !result.Valid {
			// Security-relevant: a stored spec pointing at a host other
			// than its registered domain is indistinguishable from a
			// spoofing attempt.
			log.Error().
				Str("action_set", set.ID).
				Str("domain", domain).
				Str("server_url", serverURL).
				Str("reason", result.Reason).
				Msg("Action domain validation failed, excluding action set")
			c.countExcluded("domain_validation")
			continue
		}

		creds, err := c.decryptor.DecryptMetadata(set.Metadata)
		if err != nil {
			return domains, fmt.Errorf("%w: action set %s: %v", ErrDecryptFailed, set.ID, err)
		}

		compiled := &CompiledAction{
			Set:        set,
			Domain:     domain,
			ServerURL:  serverURL,
			Builders:   make(map[string]*RequestBuilder),
			Signatures: make(map[string]*FunctionSignature),
			Creds:      creds,
		}

		for path, item := range doc.Paths.Map() {
			for method, op := range item.Operations() {
				builder, signature, err := buildOperation(serverURL, path, method, op, c.client)
				if err != nil {
					log.Warn().
						Err(err).
						Str("action_set", set.ID).
						Str("path", path).
						Str("method", method).
						Msg("Skipping uncompilable operation")
					continue
				}
				if creds.AuthType == AuthTypeAPIKey && creds.APIKey != "" {
					builder.SetAPIKey(creds.APIKey)
				}
				compiled.Builders[builder.Name] = builder
				compiled.Signatures[signature.Name] = signature
			}
		}

		if len(compiled.Builders) == 0 {
			log.Warn().
				Str("action_set", set.ID).
				Str("domain", domain).
				Msg("Action spec compiled to zero operations, skipping")
			c.countExcluded("no_operations")
			continue
		}

		domains.Add(domain, compiled)
		if c.metrics != nil {
			c.metrics.ActionSetsCompiledTotal.WithLabelValues(domain).Inc()
		}

		log.Info().
			Str("action_set", set.ID).
			Str("domain", domain).
			Int("operations", len(compiled.Builders)).
			Msg("Action set compiled")
	}

	return domains, nil
}

func (c *Compiler) parseSpec(ctx context.Context, set ActionSet) (*openapi3.T, string, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData([]byte(set.Metadata.RawSpec))
	if err != nil {
		return nil, "", fmt.Errorf("parse openapi spec: %w", err)
	}

	if len(doc.Servers) == 0 || doc.Servers[0].URL == "" {
		return nil, "", fmt.Errorf("spec declares no server URL")
	}

	return doc, doc.Servers[0].URL, nil
}

func (c *Compiler) countExcluded(reason string) {
	if c.metrics != nil {
		c.metrics.ActionSetsExcludedTotal.WithLabelValues(reason).Inc()
	}
}
