package registry

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/provara/provara/repository"
)

// DefaultPath returns the registry file location under a project root.
func DefaultPath(root string) string {
	return filepath.Join(root, ".provara", "registry.yml")
}

// ProjectPath resolves the registry location for a source path by anchoring
// at its detected project root.
func ProjectPath(source string) (string, error) {
	project, err := repository.New().DetectProject(source)
	if err != nil {
		return "", fmt.Errorf("failed to locate project root for %s: %w", source, err)
	}
	return DefaultPath(project.RootPath), nil
}

// document is the on-disk registry layout: active entries plus the archive.
type document struct {
	Artifacts []*Entry        `yaml:"artifacts"`
	History   []ArchiveRecord `yaml:"history,omitempty"`
}

// Load reads the registry file; a missing file yields an empty store.
func Load(ctx context.Context, path string) (*Store, error) {
	fs := afs.New()
	if ok, _ := fs.Exists(ctx, path); !ok {
		return NewStore(), nil
	}
	data, err := fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode registry %s: %w", path, err)
	}
	store := NewStore()
	for _, entry := range doc.Artifacts {
		store.Put(entry)
	}
	store.Archive = doc.History
	return store, nil
}

// Save writes the registry file with active entries sorted by
// (filepath, qualified_name) for deterministic diffs.
func Save(ctx context.Context, store *Store, path string) error {
	doc := document{History: store.Archive}
	for _, entry := range store.Active {
		doc.Artifacts = append(doc.Artifacts, entry)
	}
	sort.Slice(doc.Artifacts, func(i, j int) bool {
		left, right := doc.Artifacts[i], doc.Artifacts[j]
		if left.Filepath != right.Filepath {
			return left.Filepath < right.Filepath
		}
		return left.QualifiedName < right.QualifiedName
	})
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	fs := afs.New()
	if err := fs.Upload(ctx, path, 0644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write registry %s: %w", path, err)
	}
	return nil
}
