package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if QUIZ_CONFIG is set
//  3. env (prefix QUIZ_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("QUIZ_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: QUIZ_ADDR, QUIZ_DEDUPE_SIZE, ...
	// Keys keep their underscores to match the koanf struct tags.
	envProvider := env.Provider("QUIZ_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "quiz_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if len(c.Relays) == 0 {
		return fmt.Errorf("%w: at least one relay is required", ErrInvalidConfig)
	}
	if c.PublishTimeoutMS <= 0 {
		return fmt.Errorf("%w: publish_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.DefaultTimePerQuestion <= 0 {
		return fmt.Errorf("%w: default_time_per_question must be positive", ErrInvalidConfig)
	}
	return nil
}
