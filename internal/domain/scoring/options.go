package scoring

import (
	"time"

	"github.com/okian/wcs/internal/domain/period"
	"github.com/okian/wcs/internal/domain/personalize"
	"github.com/okian/wcs/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithCalendar sets the reporting calendar used for the collaboration credit.
func WithCalendar(c *period.Calendar) Option {
	return func(e *Engine) {
		e.calendar = c
	}
}

// WithResolver sets the personalization resolver.
func WithResolver(r *personalize.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// WithCheckMarkTolerance sets the absolute tolerance for OC == 1.0.
func WithCheckMarkTolerance(tol float64) Option {
	return func(e *Engine) {
		if tol >= 0 {
			e.tolerance = tol
		}
	}
}

// WithClock overrides the ScoredAt source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger enables debug logging of scored records.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}
