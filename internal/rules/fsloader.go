// Package rules reads rule files from disk for batch translation.
package rules

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is one rule file: its path and raw text.
type File struct {
	Path  string
	Query string
}

// DefaultExtensions by source platform; anything else reads every file.
var DefaultExtensions = map[string][]string{
	"sigma":          {".yml", ".yaml"},
	"logscale_alert": {".json"},
}

func hasExt(p string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	l := strings.ToLower(p)
	for _, e := range exts {
		if strings.HasSuffix(l, e) {
			return true
		}
	}
	return false
}

// LoadDirRecursive walks root and returns files with one of exts (all files
// when exts is empty), sorted by path. Hidden files and directories are skipped.
func LoadDirRecursive(root string, exts ...string) ([]File, error) {
	var out []File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasExt(p, exts) {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, File{Path: p, Query: string(b)})
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, err
}
