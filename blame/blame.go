// Package blame resolves version-control attribution for individual source
// lines. The engine only consumes the Describer interface; absence of a
// repository degrades to sentinel values in history entries.
package blame

import (
	"os"
	"path/filepath"
)

// Commit describes the last committed revision touching a line.
type Commit struct {
	Hash      string
	Author    string
	Email     string
	Timestamp string
}

// Describer is the collaborator interface used to decorate history entries.
type Describer interface {
	// Describe returns commit metadata for a line, or nil when no committed
	// revision covers it.
	Describe(file string, line int) (*Commit, error)
	// Dirty reports whether the file has uncommitted modifications.
	Dirty(file string) bool
}

// Null is a Describer for environments without version control; every lookup
// reports no information.
type Null struct{}

func (Null) Describe(string, int) (*Commit, error) { return nil, nil }

func (Null) Dirty(string) bool { return false }

// findGitRoot walks up from the given directory looking for a .git marker.
func findGitRoot(startDir string) string {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
