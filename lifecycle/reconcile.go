package lifecycle

import (
	"context"
	"os"
	"sort"

	"github.com/provara/provara/digest"
	"github.com/provara/provara/mutate"
	"github.com/provara/provara/provenance"
	"github.com/provara/provara/registry"
)

// ReconcileResult reports the outcome of a registry reconciliation pass.
type ReconcileResult struct {
	Reopened     []registry.Key
	Pruned       []registry.Key
	UpdatedFiles []string
	Errors       []string
}

// Reconcile re-scans every file owning an active registry entry and detects
// drift. Entries whose file or artifact no longer exists are pruned
// silently. An entry whose live content digest differs from the recorded one
// is archived with reason "code_changed", replaced in source by a minimal
// pending annotation carrying over only the ai_composed attribution, and
// removed from the active map. An empty registryPath resolves against the
// project root detected from the working directory.
func (e *Engine) Reconcile(ctx context.Context, registryPath string) (*ReconcileResult, error) {
	if registryPath == "" {
		var err error
		if registryPath, err = registry.ProjectPath("."); err != nil {
			return nil, err
		}
	}
	store, err := registry.Load(ctx, registryPath)
	if err != nil {
		return nil, err
	}
	result := &ReconcileResult{}
	if len(store.Active) == 0 {
		return result, nil
	}
	timestamp := e.now()

	keys := make([]registry.Key, 0, len(store.Active))
	for key := range store.Active {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Filepath != keys[j].Filepath {
			return keys[i].Filepath < keys[j].Filepath
		}
		return keys[i].QualifiedName < keys[j].QualifiedName
	})

	storeChanged := false
	for _, key := range keys {
		entry := store.Get(key)
		if _, err := os.Stat(key.Filepath); err != nil {
			store.Remove(key)
			result.Pruned = append(result.Pruned, key)
			storeChanged = true
			continue
		}
		file, err := e.scanner.ScanFile(ctx, key.Filepath)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		artifact := file.Lookup(key.QualifiedName)
		if artifact == nil {
			store.Remove(key)
			result.Pruned = append(result.Pruned, key)
			storeChanged = true
			continue
		}
		current := digest.Content(artifact, file.Source)
		if current == entry.Digest {
			continue
		}

		metadata := &provenance.Metadata{
			AIComposed:     entry.AIComposed,
			HumanCertified: "pending",
			Scrutiny:       provenance.ScrutinyAuto,
			Date:           timestamp.UTC().Format(timeLayout),
		}
		changed, err := e.mutator.Update(ctx, key.Filepath, []mutate.Edit{
			{Artifact: artifact, Metadata: metadata},
		})
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		store.ArchiveEntry(key, "code_changed", entry.Digest, current, timestamp)
		storeChanged = true
		result.Reopened = append(result.Reopened, key)
		result.UpdatedFiles = appendUnique(result.UpdatedFiles, key.Filepath)
		e.record(ctx, "reopen", map[string]any{
			"artifact":    key.QualifiedName,
			"filepath":    key.Filepath,
			"reason":      "code_changed",
			"old_digest":  entry.Digest,
			"new_digest":  current,
			"ai_composed": entry.AIComposed,
		})
	}

	if storeChanged {
		if err := registry.Save(ctx, store, registryPath); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
