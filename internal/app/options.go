package service

import (
	"time"

	"github.com/okian/wcs/internal/adapters/repository"
	"github.com/okian/wcs/internal/config"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The service closes it on Stop.
// Without one an in-memory store is created at Start.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRollingWindow sets how many recent periods the leaderboard averages.
func WithRollingWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rollingWindow = n
		}
	}
}

// WithStreakThreshold sets the WCS that extends a streak.
func WithStreakThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.streakThreshold = t
		}
	}
}

// WithCheckMarkTolerance sets the tolerance for OC == 1.0.
func WithCheckMarkTolerance(tol float64) Option {
	return func(s *Service) {
		if tol >= 0 {
			s.checkMarkTolerance = tol
		}
	}
}

// WithReportingRule sets the RRULE that defines reporting days.
func WithReportingRule(rule string) Option {
	return func(s *Service) {
		if rule != "" {
			s.reportingRule = rule
		}
	}
}

// WithDefaultWeights sets the weights used when a team has none.
func WithDefaultWeights(w model.Weights) Option {
	return func(s *Service) {
		s.defaultWeights = w
	}
}

// WithMaxLeaderboardLimit caps the entries returned by one leaderboard read.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// WithClock overrides the time source for ScoredAt and submissions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConfig applies every engine, queue and leaderboard setting from cfg.
// The store and personalization tables are wired separately.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		for _, opt := range []Option{
			WithWorkerCount(cfg.WorkerCount),
			WithQueueSize(cfg.QueueSize),
			WithDedupeSize(cfg.DedupeSize),
			WithRollingWindow(cfg.RollingWindow),
			WithStreakThreshold(cfg.StreakThreshold),
			WithCheckMarkTolerance(cfg.CheckMarkTolerance),
			WithReportingRule(cfg.ReportingRule),
			WithDefaultWeights(cfg.DefaultWeights),
			WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		} {
			opt(s)
		}
	}
}
