package lifecycle

import (
	"context"

	"github.com/provara/provara/digest"
	"github.com/provara/provara/mutate"
	"github.com/provara/provara/provenance"
	"github.com/provara/provara/registry"
	"github.com/provara/provara/scanner"
)

// FinalizeResult reports which artifacts moved into the registry.
type FinalizeResult struct {
	Finalized    []*provenance.Artifact
	UpdatedFiles []string
	Errors       []string
}

// Finalize transplants provenance from source annotations into the registry.
// Eligible artifacts carry a non-pending human certification and are not
// already finalized. The in-source annotation block is deleted entirely; the
// registry entry snapshots reviewers, history and notes, stamped with the
// content digest at finalize time. An empty registryPath resolves against the
// project root detected from the first file.
func (e *Engine) Finalize(ctx context.Context, paths []string, registryPath string) (*FinalizeResult, error) {
	files, err := scanner.PythonFiles(paths...)
	if err != nil {
		return nil, err
	}
	result := &FinalizeResult{}
	if registryPath == "" {
		if len(files) == 0 {
			return result, nil
		}
		if registryPath, err = registry.ProjectPath(files[0]); err != nil {
			return nil, err
		}
	}
	store, err := registry.Load(ctx, registryPath)
	if err != nil {
		return nil, err
	}
	timestamp := e.now()

	for _, path := range files {
		file, err := e.scanner.ScanFile(ctx, path)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		var edits []mutate.Edit
		var entries []*registry.Entry
		for _, artifact := range file.Artifacts {
			if !finalizable(artifact) {
				continue
			}
			contentDigest := digest.Content(artifact, file.Source)
			entries = append(entries, registry.NewEntry(artifact, artifact.Tags, contentDigest, timestamp))
			edits = append(edits, mutate.Edit{Artifact: artifact, Metadata: nil})
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
		for i, edit := range edits {
			store.Put(entries[i])
			result.Finalized = append(result.Finalized, edit.Artifact)
			e.record(ctx, "finalize", map[string]any{
				"artifact":        edit.Artifact.QualifiedName,
				"filepath":        path,
				"human_certified": edit.Artifact.Tags.HumanCertified,
				"ai_composed":     edit.Artifact.Tags.AIComposed,
				"digest":          entries[i].Digest,
			})
		}
	}

	if len(result.Finalized) > 0 {
		if err := registry.Save(ctx, store, registryPath); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// finalizable requires an annotation block carrying a non-pending human
// certification on an artifact not yet marked done.
func finalizable(artifact *provenance.Artifact) bool {
	if artifact.Block == nil || artifact.Tags.Done {
		return false
	}
	return artifact.Tags.HasHumanCertification()
}
