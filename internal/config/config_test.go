package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRANSLATOR_ADDR", ":9090")
	t.Setenv("TRANSLATOR_LOG_LEVEL", "warn")
	t.Setenv("TRANSLATOR_BATCH_CONCURRENCY", "8")
	t.Setenv("TRANSLATOR_STRICT_MAPPING", "true")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Addr)
	assert.Equal(t, 8, c.BatchConcurrency)
	l, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	tc := c.Translator()
	assert.True(t, tc.StrictMapping)
	assert.Equal(t, 8, tc.BatchConcurrency)
}

func TestLoadDotEnv(t *testing.T) {
	// đăng ký khôi phục rồi bỏ biến để godotenv được phép ghi
	t.Setenv("TRANSLATOR_DB_DSN", "")
	require.NoError(t, os.Unsetenv("TRANSLATOR_DB_DSN"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRANSLATOR_DB_DSN=postgres://u:p@db:5432/translator?sslmode=disable\n"), 0o600))

	c, err := Load(filepath.Join(t.TempDir(), "missing.env"), path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/translator?sslmode=disable", c.DatabaseDSN)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TRANSLATOR_LOG_LEVEL", "loud")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TRANSLATOR_LOG_LEVEL", "info")
	t.Setenv("TRANSLATOR_BATCH_CONCURRENCY", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestMappingsOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "splunk"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "splunk", "default.yml"), []byte("source: default\n"), 0o600))

	b, err := fs.ReadFile(Config{MappingsPath: dir}.Mappings(), "splunk/default.yml")
	require.NoError(t, err)
	assert.Contains(t, string(b), "source: default")

	b, err = fs.ReadFile(Config{}.Mappings(), "splunk/default.yml")
	require.NoError(t, err)
	assert.Contains(t, string(b), "field_mapping")
}
