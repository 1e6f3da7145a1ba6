// Package repository locates the project root that anchors the registry
// directory and default audit log.
package repository

import (
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/mod/modfile"
)

// Project describes a detected project root.
type Project struct {
	RootPath string // absolute path to the project root directory
	Type     string // go, python, git, unknown
	Name     string // extracted from config files when possible
}

// Detector identifies project root folders.
type Detector struct {
	markers []string
}

// New creates a detector with the common root markers.
func New() *Detector {
	return &Detector{
		markers: []string{
			"go.mod",           // Go projects
			"pyproject.toml",   // Python projects
			"requirements.txt", // Python projects
			"setup.py",         // Python projects
			".git",             // generic VCS marker
		},
	}
}

// DetectProject walks up from the given path until a project marker is
// found. Paths outside any project fall back to the path itself with type
// "unknown".
func (d *Detector) DetectProject(path string) (*Project, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	startDir := absPath
	if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
		startDir = filepath.Dir(absPath)
	}

	project := &Project{RootPath: startDir, Type: "unknown"}
	root, marker := d.findProjectRoot(startDir)
	if root == "" {
		project.Name = filepath.Base(project.RootPath)
		return project, nil
	}
	project.RootPath = root
	project.Type = projectType(marker)
	project.Name = d.extractProjectName(root, marker)
	return project, nil
}

func (d *Detector) findProjectRoot(startDir string) (string, string) {
	dir := startDir
	for {
		for _, marker := range d.markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, marker
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ""
		}
		dir = parent
	}
}

var pyProjectNameRe = regexp.MustCompile(`(?m)^\s*name\s*=\s*["']([^"']+)["']`)

func (d *Detector) extractProjectName(root, marker string) string {
	switch marker {
	case "go.mod":
		if data, err := os.ReadFile(filepath.Join(root, "go.mod")); err == nil {
			if mod, _ := modfile.Parse("go.mod", data, nil); mod != nil && mod.Module != nil {
				return mod.Module.Mod.Path
			}
		}
	case "pyproject.toml", "setup.py":
		if data, err := os.ReadFile(filepath.Join(root, marker)); err == nil {
			if match := pyProjectNameRe.FindSubmatch(data); match != nil {
				return string(match[1])
			}
		}
	}
	return filepath.Base(root)
}

func projectType(marker string) string {
	switch marker {
	case "go.mod":
		return "go"
	case "pyproject.toml", "requirements.txt", "setup.py":
		return "python"
	case ".git":
		return "git"
	default:
		return "unknown"
	}
}
