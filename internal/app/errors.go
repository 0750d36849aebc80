package service

import (
	"errors"

	"github.com/okian/wcs/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrBackpressure  = errors.New("scoring queue full")
	ErrInvalidConfig = errors.New("invalid personalization config")
	ErrStoreClosed   = errors.New("store closed by a previous stop")
	ErrNotFound      = repository.ErrNotFound
)
