// Package personalize resolves per-team weights and per-employee multipliers
// and turns component credits into a personalized final score. Lookups never
// fail: missing or malformed configuration resolves to defaults.
package personalize

import (
	"context"
	"errors"
	"math"

	"github.com/okian/wcs/internal/domain/credit"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/pkg/logger"
	"github.com/okian/wcs/pkg/metrics"
)

// DefaultMultiplier leaves the composite score unchanged.
const DefaultMultiplier = 1.0

// ErrNotConfigured is returned by a ConfigSource when nothing is stored for
// the key. It is the quiet path; every other error is reported.
var ErrNotConfigured = errors.New("not configured")

// ConfigSource reads admin-owned configuration.
type ConfigSource interface {
	TeamWeights(ctx context.Context, teamID string) (model.TeamWeightConfig, error)
	Multiplier(ctx context.Context, employeeID string) (model.UserMultiplier, error)
}

// FinalScore is the outcome of ComputeFinalScore.
type FinalScore struct {
	BaseScore  float64       `json:"base_score"`
	FinalScore float64       `json:"final_score"`
	Multiplier float64       `json:"multiplier"`
	Weights    model.Weights `json:"weights"`
}

// Resolver resolves personalization against a ConfigSource.
type Resolver struct {
	source   ConfigSource
	defaults model.Weights
	logger   logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaultWeights replaces the 40/50/10 fallback. Invalid weights are ignored.
func WithDefaultWeights(w model.Weights) Option {
	return func(r *Resolver) {
		if ValidWeights(w) {
			r.defaults = w
		}
	}
}

// WithLogger reports fallbacks through l.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver. A nil source always yields defaults.
func NewResolver(source ConfigSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:   source,
		defaults: model.DefaultWeights(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultWeights returns the fallback weights.
func (r *Resolver) DefaultWeights() model.Weights {
	return r.defaults
}

// ResolveTeamWeights returns the team's weights when present and valid,
// otherwise the default weights.
func (r *Resolver) ResolveTeamWeights(ctx context.Context, teamID string) model.Weights {
	if teamID == "" || r.source == nil {
		return r.defaults
	}
	cfg, err := r.source.TeamWeights(ctx, teamID)
	if err != nil {
		r.fallback(ctx, "team_weights", teamID, err)
		return r.defaults
	}
	if !ValidWeights(cfg.Weights) {
		r.invalid(ctx, "team_weights", teamID, logger.Any("weights", cfg.Weights))
		return r.defaults
	}
	if cfg.Weights.Sum() != 100 && r.logger != nil {
		r.logger.Warn(ctx, "team weights do not sum to 100",
			logger.String("team", teamID),
			logger.Float64("sum", cfg.Weights.Sum()),
		)
	}
	return cfg.Weights
}

// ResolveUserMultiplier returns the stored multiplier when present and
// positive, otherwise DefaultMultiplier.
func (r *Resolver) ResolveUserMultiplier(ctx context.Context, employeeID string) float64 {
	if employeeID == "" || r.source == nil {
		return DefaultMultiplier
	}
	m, err := r.source.Multiplier(ctx, employeeID)
	if err != nil {
		r.fallback(ctx, "multiplier", employeeID, err)
		return DefaultMultiplier
	}
	if !validMultiplier(m.Multiplier) {
		r.invalid(ctx, "multiplier", employeeID, logger.Float64("multiplier", m.Multiplier))
		return DefaultMultiplier
	}
	return m.Multiplier
}

// ComputeFinalScore resolves weights and multiplier, computes the weighted
// composite as the base score and applies the multiplier.
func (r *Resolver) ComputeFinalScore(ctx context.Context, ec, oc, cc float64, employeeID, teamID string) FinalScore {
	weights := r.ResolveTeamWeights(ctx, teamID)
	multiplier := r.ResolveUserMultiplier(ctx, employeeID)
	base := credit.CompositeWeighted(ec, oc, cc, weights)
	return FinalScore{
		BaseScore:  base,
		FinalScore: ApplyMultiplier(base, multiplier),
		Multiplier: multiplier,
		Weights:    weights,
	}
}

// ApplyMultiplier scales a score and rounds to 2dp.
func ApplyMultiplier(score, multiplier float64) float64 {
	return credit.Round(score * multiplier)
}

// ValidWeights reports whether every component is finite and non-negative
// and at least one is positive.
func ValidWeights(w model.Weights) bool {
	for _, v := range []float64{w.EC, w.OC, w.CC} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return w.Sum() > 0
}

func validMultiplier(m float64) bool {
	return m > 0 && !math.IsInf(m, 0) && !math.IsNaN(m)
}

func (r *Resolver) fallback(ctx context.Context, kind, key string, err error) {
	if errors.Is(err, ErrNotConfigured) {
		metrics.RecordConfigFallback(kind, "missing")
		if r.logger != nil {
			r.logger.Debug(ctx, "no configuration, using default", logger.String("kind", kind), logger.String("key", key))
		}
		return
	}
	metrics.RecordConfigFallback(kind, "lookup_error")
	metrics.RecordErrorByComponent("personalize", kind)
	if r.logger != nil {
		r.logger.Warn(ctx, "configuration lookup failed, using default",
			logger.String("kind", kind),
			logger.String("key", key),
			logger.Error(err),
		)
	}
}

func (r *Resolver) invalid(ctx context.Context, kind, key string, value logger.Field) {
	metrics.RecordConfigFallback(kind, "invalid")
	if r.logger != nil {
		r.logger.Warn(ctx, "invalid configuration, using default",
			logger.String("kind", kind),
			logger.String("key", key),
			value,
		)
	}
}
