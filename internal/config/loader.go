package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	EnvPrefix  = "COFFEE_"
	EnvConfig  = "COFFEE_CONFIG"
	EnvEnvFile = "COFFEE_ENV_FILE"

	defaultEnvFile = ".env"
)

// Load builds a Config by layering defaults, .env, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (COFFEE_ENV_FILE, default ".env"); a missing file is ignored
//  3. file (YAML) if COFFEE_CONFIG is set, in the process or in .env
//  4. env (prefix COFFEE_)
//
// Values read from .env only feed the config; the process environment
// is left untouched.
func Load(ctx context.Context) (*Config, error) {
	dotenv, err := readEnvFile()
	if err != nil {
		return nil, err
	}

	base := New()
	k := koanf.New(".")

	for name, val := range dotenv {
		if !strings.HasPrefix(name, EnvPrefix) || name == EnvConfig || name == EnvEnvFile {
			continue
		}
		if err := k.Set(envKey(name), val); err != nil {
			return nil, fmt.Errorf("%w: .env: %w", ErrLoadConfig, err)
		}
	}

	path := os.Getenv(EnvConfig)
	if path == "" {
		path = dotenv[EnvConfig]
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps COFFEE_QUEUE_SIZE -> queue_size. Underscores are kept to
// match the koanf tags on the struct.
func envKey(name string) string {
	return strings.TrimPrefix(strings.ToLower(name), strings.ToLower(EnvPrefix))
}

func readEnvFile() (map[string]string, error) {
	path := os.Getenv(EnvEnvFile)
	if path == "" {
		path = defaultEnvFile
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	return vals, nil
}
