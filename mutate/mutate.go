// Package mutate rewrites annotation regions inside source files. Each file
// is handled in one read-modify-write pass; edits land bottom-up so line
// numbers computed from the original file stay valid throughout.
package mutate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/afs"

	"github.com/provara/provara/provenance"
)

// Edit pairs an artifact with its replacement metadata. A nil Metadata
// deletes the artifact's existing annotation block together with the spacer
// line an earlier insert added.
type Edit struct {
	Artifact *provenance.Artifact
	Metadata *provenance.Metadata
}

// Mutator applies annotation edits to source files.
type Mutator struct {
	fs afs.Service
}

// New creates a mutator backed by the default file service.
func New() *Mutator {
	return &Mutator{fs: afs.New()}
}

// Update applies the edits to one file and reports whether anything changed.
// The file is read once, spliced in descending start-line order, and written
// back as a single whole-file write. Ascending application would invalidate
// every later edit's line numbers.
func (m *Mutator) Update(ctx context.Context, path string, edits []Edit) (bool, error) {
	if len(edits) == 0 {
		return false, nil
	}
	source, err := m.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return false, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	lines := strings.Split(strings.TrimSuffix(string(source), "\n"), "\n")

	ordered := append([]Edit(nil), edits...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Artifact.StartLine > ordered[j].Artifact.StartLine
	})

	changed := false
	for _, edit := range ordered {
		artifact := edit.Artifact
		switch {
		case edit.Metadata == nil:
			if artifact.Block == nil {
				continue
			}
			end := artifact.Block.EndLine
			// A lone indent-only spacer between block and definition belongs
			// to the block; insert/delete cycles must not accumulate blanks.
			if end < len(lines) && end+1 < artifact.DefinitionLine && strings.TrimSpace(lines[end]) == "" {
				end++
			}
			lines = splice(lines, artifact.Block.StartLine-1, end, nil)
		case artifact.Block != nil:
			lines = splice(lines, artifact.Block.StartLine-1, artifact.Block.EndLine, encode(edit.Metadata, artifact.Indent))
		default:
			lines = splice(lines, artifact.StartLine-1, artifact.StartLine-1, encode(edit.Metadata, artifact.Indent))
		}
		changed = true
	}
	if !changed {
		return false, nil
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := m.fs.Upload(ctx, path, 0644, strings.NewReader(content)); err != nil {
		return false, fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return true, nil
}

// encode renders the metadata block followed by an indent-only trailing line
// separating it from the definition.
func encode(metadata *provenance.Metadata, indent string) []string {
	block := provenance.EncodeDecorator(metadata, indent)
	return append(block, indent)
}

// splice replaces lines[start:end] (0-based, end exclusive) with replacement.
func splice(lines []string, start, end int, replacement []string) []string {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		start = end
	}
	result := make([]string, 0, len(lines)-(end-start)+len(replacement))
	result = append(result, lines[:start]...)
	result = append(result, replacement...)
	result = append(result, lines[end:]...)
	return result
}
