// Package config defines service configuration and how it is loaded.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and environment on top.
// - Every loaded Config is validated before it is returned.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"runtime"

	"github.com/okian/wcs/internal/domain/credit"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/internal/domain/period"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// StoreDriver selects where score records live.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory sqlite"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=StoreDriver sqlite"`

	// QueueSize bounds the asynchronous submission queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// DedupeSize sets how many submission ids are remembered.
	DedupeSize int `koanf:"dedupe_size" validate:"gt=0"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit" validate:"gt=0"`

	// RollingWindow is the number of recent periods averaged per employee.
	RollingWindow int `koanf:"rolling_window" validate:"gt=0"`

	// StreakThreshold is the WCS that extends a streak.
	StreakThreshold float64 `koanf:"streak_threshold" validate:"gt=0"`

	// CheckMarkTolerance is the absolute tolerance for OC == 1.0.
	CheckMarkTolerance float64 `koanf:"checkmark_tolerance" validate:"gte=0,lt=0.01"`

	// ReportingRule is an RRULE naming the days a daily post is expected.
	ReportingRule string `koanf:"reporting_rule" validate:"required"`

	// RateLimitRPS throttles write endpoints. 0 disables throttling.
	RateLimitRPS float64 `koanf:"rate_limit_rps" validate:"gte=0"`
	// RateLimitBurst is the token bucket size for write endpoints.
	RateLimitBurst int `koanf:"rate_limit_burst" validate:"gte=0"`

	// DefaultWeights apply to employees whose team has none.
	DefaultWeights model.Weights `koanf:"default_weights"`

	// TeamWeights are seeded into the store at startup.
	TeamWeights map[string]model.Weights `koanf:"team_weights"`

	// UserMultipliers are seeded into the store at startup.
	UserMultipliers map[string]float64 `koanf:"user_multipliers" validate:"dive,gt=0"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StoreDriver:         StoreMemory,
		SQLitePath:          "data/wcs.db",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 1000,
		RollingWindow:       leaderboard.DefaultWindow,
		StreakThreshold:     leaderboard.DefaultStreakThreshold,
		CheckMarkTolerance:  credit.DefaultCheckMarkTolerance,
		ReportingRule:       period.DefaultRule,
		RateLimitRPS:        200,
		RateLimitBurst:      400,
		DefaultWeights:      model.DefaultWeights(),
		TeamWeights:         map[string]model.Weights{},
		UserMultipliers:     map[string]float64{},
	}
}
