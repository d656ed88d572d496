package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoadDirRecursive(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "b", "proc.yml"), "title: b")
	write(t, filepath.Join(root, "a.YAML"), "title: a")
	write(t, filepath.Join(root, "notes.txt"), "ignore")
	write(t, filepath.Join(root, ".git", "x.yml"), "hidden")

	files, err := LoadDirRecursive(root, DefaultExtensions["sigma"]...)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %+v", files)
	}
	if filepath.Base(files[0].Path) != "a.YAML" || files[1].Query != "title: b" {
		t.Fatalf("files = %+v", files)
	}

	all, err := LoadDirRecursive(root)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %+v", all)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDirRecursive(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error")
	}
}
