package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Capability identifies which kind of work a model call is for. A deployment
// may route each capability to its own application key.
type Capability string

const (
	CapabilityCompany   Capability = "company"
	CapabilitySelf      Capability = "self"
	CapabilityWeakness  Capability = "weakness"
	CapabilityResume    Capability = "resume"
	CapabilityKnowledge Capability = "knowledge"
)

// Capabilities lists every known capability.
var Capabilities = []Capability{
	CapabilityCompany,
	CapabilitySelf,
	CapabilityWeakness,
	CapabilityResume,
	CapabilityKnowledge,
}

// ParseCapability returns the capability named s.
func ParseCapability(s string) (Capability, bool) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Capabilities {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Resolver returns the gateway serving a capability.
type Resolver interface {
	For(c Capability) Gateway
}

// Registry maps capabilities to gateways. It is built once and read-only after.
type Registry struct {
	fallback Gateway
	byCap    map[Capability]Gateway
}

// NewRegistry creates a registry that serves overrides where present and
// fallback otherwise.
func NewRegistry(fallback Gateway, overrides map[Capability]Gateway) *Registry {
	byCap := make(map[Capability]Gateway, len(overrides))
	for c, g := range overrides {
		if g != nil {
			byCap[c] = g
		}
	}
	return &Registry{fallback: fallback, byCap: byCap}
}

// For returns the gateway for c, or the default gateway.
func (r *Registry) For(c Capability) Gateway {
	if g, ok := r.byCap[c]; ok {
		return g
	}
	return r.fallback
}

// BuildRegistry creates the default gateway from cfg and one gateway per
// capability key in keys, each sharing cfg except for the API key. Every
// gateway is wrapped with request logging.
func BuildRegistry(ctx context.Context, cfg Config, keys map[string]string, logger *slog.Logger) (*Registry, error) {
	fallback, err := New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create default gateway: %w", err)
	}

	overrides := make(map[Capability]Gateway)
	for name, key := range keys {
		c, ok := ParseCapability(name)
		if !ok {
			logger.Warn("ignoring key for unknown capability", "capability", name)
			continue
		}
		if strings.TrimSpace(key) == "" || key == cfg.APIKey {
			continue
		}
		capCfg := cfg
		capCfg.APIKey = key
		g, err := New(ctx, capCfg)
		if err != nil {
			return nil, fmt.Errorf("create %s gateway: %w", c, err)
		}
		overrides[c] = WithLogging(g, logger)
		logger.Info("capability gateway configured", "capability", c, "provider", g.Name())
	}

	return NewRegistry(WithLogging(fallback, logger), overrides), nil
}
