package lifecycle

import (
	"context"
	"fmt"

	"github.com/provara/provara/digest"
	"github.com/provara/provara/mutate"
	"github.com/provara/provara/provenance"
	"github.com/provara/provara/scanner"
)

// CertifyOptions configures a certification pass.
type CertifyOptions struct {
	// Notes replaces the metadata notes when non-empty.
	Notes string
	// IncludeExisting re-certifies artifacts that already carry a
	// non-pending certification.
	IncludeExisting bool
}

// CertifyResult reports which artifacts were certified.
type CertifyResult struct {
	Artifacts    []*provenance.Artifact
	UpdatedFiles []string
	Warnings     []string
	Errors       []string
}

// Certify marks pending artifacts as certified by a human reviewer at the
// given scrutiny level. An unrecognized scrutiny string fails the whole call
// before any file is written. Artifacts without an annotation block are
// skipped with a warning; a file with no eligible artifacts is a silent
// no-op.
func (e *Engine) Certify(ctx context.Context, paths []string, reviewer, scrutiny string, options CertifyOptions) (*CertifyResult, error) {
	level := provenance.ParseScrutiny(scrutiny)
	if level == "" {
		return nil, fmt.Errorf("unsupported scrutiny level: %s", scrutiny)
	}
	return e.certify(ctx, paths, certification{
		reviewerKind: "human",
		reviewerID:   reviewer,
		level:        level,
		options:      options,
		auditAction:  "certify",
	})
}

// CertifyAgent marks pending artifacts as reviewed by an automated agent.
// The requested scrutiny must not exceed the agent's configured ceiling;
// a violation fails the whole call without writing any file.
func (e *Engine) CertifyAgent(ctx context.Context, paths []string, agentID, scrutiny string, options CertifyOptions) (*CertifyResult, error) {
	level := provenance.ParseScrutiny(scrutiny)
	if level == "" {
		return nil, fmt.Errorf("unsupported scrutiny level: %s", scrutiny)
	}
	permission, err := e.policy.Permission(agentID)
	if err != nil {
		return nil, err
	}
	if ceiling := permission.Ceiling(); ceiling != "" && !level.Within(ceiling) {
		return nil, fmt.Errorf("agent %s is limited to %s scrutiny", agentID, ceiling)
	}
	return e.certify(ctx, paths, certification{
		reviewerKind: "agent",
		reviewerID:   agentID,
		level:        level,
		options:      options,
		auditAction:  "agent-certify",
	})
}

// VerifyAll certifies every pending artifact under the paths at high
// scrutiny on behalf of the reviewer.
func (e *Engine) VerifyAll(ctx context.Context, reviewer string, paths ...string) (*CertifyResult, error) {
	return e.Certify(ctx, paths, reviewer, string(provenance.ScrutinyHigh), CertifyOptions{})
}

type certification struct {
	reviewerKind string
	reviewerID   string
	level        provenance.Scrutiny
	options      CertifyOptions
	auditAction  string
}

func (e *Engine) certify(ctx context.Context, paths []string, spec certification) (*CertifyResult, error) {
	files, err := scanner.PythonFiles(paths...)
	if err != nil {
		return nil, err
	}
	result := &CertifyResult{}
	timestamp := e.now()
	stamp := timestamp.UTC().Format(timeLayout)

	for _, path := range files {
		file, err := e.scanner.ScanFile(ctx, path)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		var targets []*provenance.Artifact
		for _, artifact := range file.Artifacts {
			if spec.options.IncludeExisting || artifact.Tags.IsPendingCertification() {
				targets = append(targets, artifact)
			}
		}
		if len(targets) == 0 {
			continue
		}

		var edits []mutate.Edit
		for _, artifact := range targets {
			if artifact.Block == nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"artifact %s at %s lacks a metadata block; skipping certification",
					artifact.QualifiedName, path))
				continue
			}
			metadata := artifact.Tags.Clone()
			metadata.Done = false
			metadata.AddReviewer(provenance.Reviewer{
				Kind:      spec.reviewerKind,
				ID:        spec.reviewerID,
				Scrutiny:  spec.level,
				Notes:     spec.options.Notes,
				Timestamp: stamp,
			})
			if spec.reviewerKind == "human" {
				metadata.HumanCertified = spec.reviewerID
			} else {
				metadata.AgentCertified = spec.reviewerID
			}
			metadata.Scrutiny = spec.level
			metadata.Date = stamp
			if spec.options.Notes != "" {
				metadata.Notes = spec.options.Notes
			}
			metadata.History = []string{
				digest.HistoryEntry(artifact, metadata, timestamp,
					fmt.Sprintf("certified by %s (%s)", spec.reviewerID, spec.level), e.blame),
			}
			edits = append(edits, mutate.Edit{Artifact: artifact, Metadata: metadata})
		}
		if len(edits) == 0 {
			continue
		}

		changed, err := e.mutator.Update(ctx, path, edits)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		result.UpdatedFiles = append(result.UpdatedFiles, path)

		refreshed, err := e.scanner.ScanFile(ctx, path)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		for _, edit := range edits {
			artifact := refreshed.Lookup(edit.Artifact.QualifiedName)
			if artifact == nil {
				continue
			}
			result.Artifacts = append(result.Artifacts, artifact)
			e.record(ctx, spec.auditAction, map[string]any{
				"artifact":    artifact.QualifiedName,
				"filepath":    path,
				"reviewer":    spec.reviewerID,
				"kind":        spec.reviewerKind,
				"scrutiny":    string(spec.level),
				"notes":       spec.options.Notes,
				"ai_composed": artifact.Tags.AIComposed,
			})
		}
	}
	return result, nil
}
