package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunMigrations applies the *.sql files directly under dir at every start.
// File names carry a numeric prefix (0001_translations.sql) so byte order is
// apply order, and statements must be idempotent (IF NOT EXISTS). Each file
// runs in its own transaction; statements are separated by ';'.
func (h *HistoryStore) RunMigrations(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := h.applyMigration(ctx, string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (h *HistoryStore) applyMigration(ctx context.Context, script string) (err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, c := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(c); stmt != "" {
			if _, err = tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// InitSchema runs migrations from the first usable directory: path, then
// ./migrations and /srv/migrations.
func (h *HistoryStore) InitSchema(path string) error {
	var candidates []string
	if path != "" {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, "./migrations", "/srv/migrations")
	var lastErr error
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			lastErr = err
			continue
		}
		if err := h.RunMigrations(p); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("init schema: no usable migrations path; last error: %v", lastErr)
}
