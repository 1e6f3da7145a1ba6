package blame

import (
	"bufio"
	"bytes"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Git resolves line attribution through the git binary. Lookups outside a
// repository, for uncommitted lines, or with git unavailable return nil
// without error so history stamping can degrade to sentinel suffixes.
type Git struct{}

// NewGit creates a git-backed describer.
func NewGit() *Git {
	return &Git{}
}

// Describe runs a single-line porcelain blame for the file.
func (g *Git) Describe(file string, line int) (*Commit, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, nil
	}
	root := findGitRoot(filepath.Dir(absPath))
	if root == "" {
		return nil, nil
	}
	lineRange := strconv.Itoa(line) + "," + strconv.Itoa(line)
	cmd := exec.Command("git", "blame", "--porcelain", "-L", lineRange, "HEAD", "--", absPath)
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		return nil, nil
	}
	return parsePorcelain(output), nil
}

// Dirty reports whether the file carries uncommitted modifications.
func (g *Git) Dirty(file string) bool {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return false
	}
	root := findGitRoot(filepath.Dir(absPath))
	if root == "" {
		return false
	}
	cmd := exec.Command("git", "status", "--porcelain", "--", absPath)
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(bytes.TrimSpace(output)) > 0
}

// parsePorcelain extracts commit, author and time from porcelain blame
// output. A zero-hash header means the line is not committed yet.
func parsePorcelain(output []byte) *Commit {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	commit := &Commit{}
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case commit.Hash == "" && len(line) >= 40 && !strings.ContainsRune(line[:40], ' '):
			commit.Hash = line[:40]
		case strings.HasPrefix(line, "author "):
			commit.Author = strings.TrimPrefix(line, "author ")
		case strings.HasPrefix(line, "author-mail "):
			commit.Email = strings.Trim(strings.TrimPrefix(line, "author-mail "), "<>")
		case strings.HasPrefix(line, "author-time "):
			if seconds, err := strconv.ParseInt(strings.TrimPrefix(line, "author-time "), 10, 64); err == nil {
				commit.Timestamp = time.Unix(seconds, 0).UTC().Format(time.RFC3339)
			}
		}
	}
	if commit.Hash == "" || strings.Trim(commit.Hash, "0") == "" {
		return nil
	}
	return commit
}
