package lifecycle

import (
	"fmt"

	"github.com/provara/provara/policy"
	"github.com/provara/provara/provenance"
)

// EnforcePolicy returns the policy violations detected for the artifacts:
// ai_composed artifacts below high scrutiny when the policy demands it, and
// certified coverage below the configured threshold. Agent reviews count
// toward coverage only within their configured ceiling.
func EnforcePolicy(artifacts []*provenance.Artifact, config *policy.Config) []string {
	if config == nil {
		return nil
	}
	var violations []string

	if config.Enforcement.AIComposedRequiresHighScrutiny {
		for _, artifact := range artifacts {
			if artifact.Tags.AIComposed != "" && artifact.Tags.Scrutiny != provenance.ScrutinyHigh {
				violations = append(violations, fmt.Sprintf(
					"%s:%d requires high scrutiny for ai_composed artifacts",
					artifact.Path, artifact.DefinitionLine))
			}
		}
	}

	if config.Enforcement.MinCoverage != nil {
		var functions []*provenance.Artifact
		for _, artifact := range artifacts {
			if artifact.Kind != provenance.KindFunction && artifact.Kind != provenance.KindAsyncFunction {
				continue
			}
			if artifact.Tags.HasMetadata() || !config.Enforcement.IgnoreUnannotated {
				functions = append(functions, artifact)
			}
		}
		if total := len(functions); total > 0 {
			certified := 0
			for _, artifact := range functions {
				if isCertified(artifact.Tags, config) {
					certified++
				}
			}
			coverage := float64(certified) / float64(total)
			if coverage < *config.Enforcement.MinCoverage {
				violations = append(violations, fmt.Sprintf(
					"coverage %d/%d (%.2f%%) below required %.0f%%",
					certified, total, coverage*100, *config.Enforcement.MinCoverage*100))
			}
		}
	}
	return violations
}

// isCertified accepts a non-pending human certification, or an agent review
// whose scrutiny stays within the agent's configured ceiling.
func isCertified(metadata *provenance.Metadata, config *policy.Config) bool {
	if metadata.HasHumanCertification() {
		return true
	}
	for _, reviewer := range metadata.Reviewers {
		if reviewer.Kind != "agent" {
			continue
		}
		for _, permission := range config.Agents.Reviewers {
			if permission.ID != reviewer.ID {
				continue
			}
			ceiling := permission.Ceiling()
			if ceiling == "" {
				return true
			}
			level := reviewer.Scrutiny
			if level == "" {
				level = provenance.ScrutinyAuto
			}
			if level.Within(ceiling) {
				return true
			}
		}
	}
	return false
}
