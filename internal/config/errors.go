package config

import "errors"

var (
	// ErrInvalidConfig reports a config that loaded but failed validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig reports a config file or environment that could not be read.
	ErrLoadConfig = errors.New("load config failed")
)
