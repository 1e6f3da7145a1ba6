package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provara/provara/provenance"
)

func TestDefault(t *testing.T) {
	config := Default()
	assert.True(t, config.Enforcement.AIComposedRequiresHighScrutiny)
	assert.Nil(t, config.Enforcement.MinCoverage)
	assert.False(t, config.Agents.Enabled)
}

func TestPermission(t *testing.T) {
	config := Default()
	_, err := config.Permission("reviewbot")
	require.EqualError(t, err, "agent certification disabled for reviewbot")

	config.Agents.Enabled = true
	_, err = config.Permission("reviewbot")
	require.EqualError(t, err, "agent reviewbot is not permitted to certify")

	config.Agents.Reviewers = []AgentPermission{{ID: "reviewbot", MaxScrutiny: "medium"}}
	permission, err := config.Permission("reviewbot")
	require.NoError(t, err)
	assert.Equal(t, provenance.ScrutinyMedium, permission.Ceiling())
}

func TestCeiling(t *testing.T) {
	tests := []struct {
		maxScrutiny string
		want        provenance.Scrutiny
	}{
		{"high", provenance.ScrutinyHigh},
		{"MEDIUM", provenance.ScrutinyMedium},
		{"", ""},
		{"unbounded", ""},
	}
	for _, tc := range tests {
		permission := AgentPermission{ID: "bot", MaxScrutiny: tc.maxScrutiny}
		assert.Equal(t, tc.want, permission.Ceiling(), tc.maxScrutiny)
	}
}

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	config, err := Load(context.Background(), filepath.Join(t.TempDir(), "policy.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	content := `enforcement:
  ai_composed_requires_high_scrutiny: false
  min_coverage: 0.8
  ignore_unannotated: true
agents:
  enabled: true
  reviewers:
    - id: reviewbot
      max_scrutiny: medium
    - id: trusted-bot
      max_scrutiny: high
      allow_finalize: true
reviewers:
  - alice
  - bob
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, config.Enforcement.AIComposedRequiresHighScrutiny)
	require.NotNil(t, config.Enforcement.MinCoverage)
	assert.Equal(t, 0.8, *config.Enforcement.MinCoverage)
	assert.True(t, config.Enforcement.IgnoreUnannotated)
	assert.True(t, config.Agents.Enabled)
	require.Len(t, config.Agents.Reviewers, 2)
	assert.True(t, config.Agents.Reviewers[1].AllowFinalize)
	assert.Equal(t, []string{"alice", "bob"}, config.Reviewers)
}

func TestLoadInvalidYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t-"), 0644))
	_, err := Load(context.Background(), path)
	require.Error(t, err)
}
