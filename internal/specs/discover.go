// Package specs discovers, loads, validates, and migrates agent spec
// files: the YAML documents describing one agent's command, contracts,
// refinement policy, and determinism profile (spec.md §3).
package specs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// excludedDirs mirrors the original auto-discovery walk's skip list: VCS,
// caches, and TRT's own state directory never hold spec files worth
// discovering.
var excludedDirs = map[string]bool{
	".git":            true,
	".github":         true,
	".trajectly":       true,
	".venv":           true,
	".pytest_cache":   true,
	".mypy_cache":     true,
	".ruff_cache":     true,
	"__pycache__":     true,
	"node_modules":    true,
}

const specFileSuffix = ".trt.yaml"

// Discover walks projectRoot for *.trt.yaml spec files in deterministic
// order: directories are visited sorted, hidden and excluded directories
// are skipped, and the final file list is sorted by full path.
func Discover(projectRoot string) ([]string, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}

	var discovered []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}

		var subdirs []string
		var files []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				if excludedDirs[name] || strings.HasPrefix(name, ".") {
					continue
				}
				subdirs = append(subdirs, name)
				continue
			}
			files = append(files, name)
		}

		sort.Strings(files)
		for _, name := range files {
			if strings.HasSuffix(name, specFileSuffix) {
				discovered = append(discovered, filepath.Join(dir, name))
			}
		}

		sort.Strings(subdirs)
		for _, name := range subdirs {
			if err := walk(filepath.Join(dir, name)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	sort.Strings(discovered)
	return discovered, nil
}
