// Package config loads the translator service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/PhucNguyen204/query_translator/mappings"
	"github.com/PhucNguyen204/query_translator/pkg/translator"
)

type Config struct {
	Addr string `env:"TRANSLATOR_ADDR" env-default:":8080"`
	// DatabaseDSN rỗng thì không lưu lịch sử dịch
	DatabaseDSN string `env:"TRANSLATOR_DB_DSN"`
	// MappingsPath overrides the embedded mapping catalogue.
	MappingsPath     string `env:"TRANSLATOR_MAPPINGS_PATH"`
	LogLevel         string `env:"TRANSLATOR_LOG_LEVEL" env-default:"info"`
	BatchConcurrency int    `env:"TRANSLATOR_BATCH_CONCURRENCY" env-default:"4"`
	StrictMapping    bool   `env:"TRANSLATOR_STRICT_MAPPING" env-default:"false"`
	MigrationsPath   string `env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

// Load reads the given .env files (missing ones are skipped) and then the
// process environment. Variables already set win over .env values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var c Config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return Config{}, err
	}
	if c.BatchConcurrency <= 0 {
		return Config{}, fmt.Errorf("TRANSLATOR_BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}
	return c, nil
}

func (c Config) Level() (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("TRANSLATOR_LOG_LEVEL: %w", err)
	}
	return l, nil
}

// Logger builds the production JSON logger at the configured level.
func (c Config) Logger() (*zap.SugaredLogger, error) {
	l, err := c.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(l)
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Mappings returns the mapping catalogue: a directory when MappingsPath is
// set, the embedded records otherwise.
func (c Config) Mappings() fs.FS {
	if c.MappingsPath != "" {
		return os.DirFS(c.MappingsPath)
	}
	return mappings.FS
}

func (c Config) Translator() translator.Config {
	return translator.DefaultConfig().
		WithStrictMapping(c.StrictMapping).
		WithBatchConcurrency(c.BatchConcurrency)
}
