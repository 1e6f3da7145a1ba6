package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PythonFiles resolves the provided paths into an ordered list of Python
// files. Directories are walked recursively; non-Python files are ignored.
func PythonFiles(paths ...string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if strings.HasSuffix(path, ".py") {
				files = append(files, path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(candidate string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() && strings.HasSuffix(candidate, ".py") {
				files = append(files, candidate)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
