// Package policy exposes the scrutiny-ceiling table and feature flags the
// lifecycle engine compares against. Loading stays here, at the edge; the
// engine never reads policy files itself.
package policy

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/provara/provara/provenance"
)

// AgentPermission bounds what one automated reviewer may certify.
type AgentPermission struct {
	ID            string `yaml:"id"`
	MaxScrutiny   string `yaml:"max_scrutiny,omitempty"`
	AllowFinalize bool   `yaml:"allow_finalize,omitempty"`
}

// AgentSettings gates agent certification.
type AgentSettings struct {
	Enabled   bool              `yaml:"enabled"`
	Reviewers []AgentPermission `yaml:"reviewers,omitempty"`
}

// Enforcement holds the certification policy flags.
type Enforcement struct {
	AIComposedRequiresHighScrutiny bool     `yaml:"ai_composed_requires_high_scrutiny"`
	MinCoverage                    *float64 `yaml:"min_coverage,omitempty"`
	IgnoreUnannotated              bool     `yaml:"ignore_unannotated,omitempty"`
}

// Config is the aggregate policy.
type Config struct {
	Enforcement Enforcement   `yaml:"enforcement"`
	Agents      AgentSettings `yaml:"agents"`
	Reviewers   []string      `yaml:"reviewers,omitempty"`
}

// Default is the policy applied when no file is present.
func Default() *Config {
	return &Config{
		Enforcement: Enforcement{AIComposedRequiresHighScrutiny: true},
	}
}

// Permission returns the permission record for an agent, or an error when
// agent certification is disabled or the agent is not listed.
func (c *Config) Permission(agentID string) (*AgentPermission, error) {
	if !c.Agents.Enabled {
		return nil, fmt.Errorf("agent certification disabled for %s", agentID)
	}
	for i := range c.Agents.Reviewers {
		if c.Agents.Reviewers[i].ID == agentID {
			return &c.Agents.Reviewers[i], nil
		}
	}
	return nil, fmt.Errorf("agent %s is not permitted to certify", agentID)
}

// Ceiling returns the agent's scrutiny ceiling; an empty or unrecognized
// max_scrutiny means unbounded.
func (p *AgentPermission) Ceiling() provenance.Scrutiny {
	return provenance.ParseScrutiny(p.MaxScrutiny)
}

// Load reads a policy file; a missing file yields the default policy.
func Load(ctx context.Context, path string) (*Config, error) {
	fs := afs.New()
	if ok, _ := fs.Exists(ctx, path); !ok {
		return Default(), nil
	}
	data, err := fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode policy %s: %w", path, err)
	}
	return config, nil
}
