package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/provara/provara/digest"
	"github.com/provara/provara/mutate"
	"github.com/provara/provara/provenance"
	"github.com/provara/provara/scanner"
)

// AnnotateOptions configures the annotate transition.
type AnnotateOptions struct {
	// Agent is the attribution written into ai_composed.
	Agent string
	// Notes is the default notes text for fresh annotations.
	Notes string
}

// AnnotateResult reports what annotation changed.
type AnnotateResult struct {
	Artifacts    []*provenance.Artifact
	UpdatedFiles []string
	Violations   []string
	Errors       []string
}

// Annotate ensures every discovered artifact carries a metadata block:
// unannotated artifacts get a fresh pending record with a single "annotated"
// history entry, and already-annotated artifacts have history regenerated
// whenever the stored digest no longer matches the current provenance
// fields. Files that fail to parse are reported and skipped.
func (e *Engine) Annotate(ctx context.Context, paths []string, options AnnotateOptions) (*AnnotateResult, error) {
	files, err := scanner.PythonFiles(paths...)
	if err != nil {
		return nil, err
	}
	result := &AnnotateResult{}
	timestamp := e.now()

	for _, path := range files {
		file, err := e.scanner.ScanFile(ctx, path)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		fileChanged := false

		if !e.policy.Enforcement.IgnoreUnannotated {
			var edits []mutate.Edit
			for _, artifact := range file.Artifacts {
				if artifact.Tags.HasMetadata() {
					continue
				}
				metadata := &provenance.Metadata{
					AIComposed:     options.Agent,
					HumanCertified: "pending",
					Scrutiny:       provenance.ScrutinyAuto,
					Date:           timestamp.UTC().Format(timeLayout),
					Notes:          options.Notes,
				}
				metadata.History = []string{
					digest.HistoryEntry(artifact, metadata, timestamp, "annotated", e.blame),
				}
				edits = append(edits, mutate.Edit{Artifact: artifact, Metadata: metadata})
			}
			changed, err := e.mutator.Update(ctx, path, edits)
			if err != nil {
				return nil, err
			}
			if changed {
				fileChanged = true
				if file, err = e.scanner.ScanFile(ctx, path); err != nil {
					result.Errors = append(result.Errors, err.Error())
					continue
				}
			}
		}

		changed, err := e.refreshHistory(ctx, file, timestamp)
		if err != nil {
			return nil, err
		}
		if changed {
			fileChanged = true
			if file, err = e.scanner.ScanFile(ctx, path); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
		}

		result.Artifacts = append(result.Artifacts, file.Artifacts...)
		if fileChanged {
			result.UpdatedFiles = append(result.UpdatedFiles, path)
		}
	}

	result.Violations = EnforcePolicy(result.Artifacts, e.policy)
	return result, nil
}

// refreshHistory regenerates history[0] for every annotated artifact whose
// stored digest no longer matches the current metadata digest, catching
// out-of-band edits to provenance fields.
func (e *Engine) refreshHistory(ctx context.Context, file *scanner.File, timestamp time.Time) (bool, error) {
	var edits []mutate.Edit
	for _, artifact := range file.Artifacts {
		if artifact.Block == nil {
			continue
		}
		metadata := artifact.Tags.Clone()
		current := digest.OfMetadata(metadata)
		stored := ""
		if len(metadata.History) > 0 {
			stored = digest.ExtractDigest(metadata.History[0])
		}
		if stored == current && len(metadata.History) > 0 {
			continue
		}
		metadata.History = []string{
			digest.HistoryEntry(artifact, metadata, timestamp, "", e.blame),
		}
		edits = append(edits, mutate.Edit{Artifact: artifact, Metadata: metadata})
	}
	changed, err := e.mutator.Update(ctx, file.Path, edits)
	if err != nil {
		return false, fmt.Errorf("failed to refresh history in %s: %w", file.Path, err)
	}
	return changed, nil
}
