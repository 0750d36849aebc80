package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/wcs/internal/domain/period"
	"github.com/okian/wcs/internal/domain/personalize"
)

// Environment conventions.
const (
	EnvPrefix     = "WCS_"
	EnvConfigPath = "WCS_CONFIG"
)

// Load builds a Config by layering defaults, an optional file named by
// WCS_CONFIG, and env vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML)
//  3. env (prefix WCS_; "__" separates nested keys, e.g.
//     WCS_DEFAULT_WEIGHTS__EC=30)
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, os.Getenv(EnvConfigPath))
}

// LoadFrom is Load with an explicit file path. An empty path skips the file.
func LoadFrom(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}
	k.Delete("config")

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

// Validate checks field ranges, the reporting rule and every weight set.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := period.NewCalendar(c.ReportingRule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !personalize.ValidWeights(c.DefaultWeights) {
		return fmt.Errorf("%w: default_weights %+v", ErrInvalidConfig, c.DefaultWeights)
	}
	for team, w := range c.TeamWeights {
		if !personalize.ValidWeights(w) {
			return fmt.Errorf("%w: team_weights.%s %+v", ErrInvalidConfig, team, w)
		}
	}
	return nil
}
