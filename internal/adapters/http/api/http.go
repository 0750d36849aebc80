// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/wcs/internal/app"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/pkg/logger"
	"golang.org/x/time/rate"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ActivityDependencies
	ScoreDependencies
	LeaderboardDependencies
	RankDependencies
	AdminDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = leaderboard.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	activitiesHandler  *ActivitiesHandler
	scoresHandler      *ScoresHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	adminHandler       *AdminHandler

	limiter *rate.Limiter
	logger  logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit throttles write routes to rps requests per second with the
// given burst. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		activitiesHandler:  NewActivitiesHandler(deps),
		scoresHandler:      NewScoresHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		rankHandler:        NewRankHandler(deps),
		adminHandler:       NewAdminHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	read := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}
	write := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(RateLimitMiddleware(h, s.limiter, endpoint), endpoint))
	}

	read("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	read("GET /stats", "stats", s.statsHandler.HandleStats)
	read("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	read("GET /rank/{employee}", "rank", s.rankHandler.HandleGetRank)
	read("GET /scores/{employee}", "history", s.scoresHandler.HandleGetHistory)

	write("POST /activities", "activities", s.activitiesHandler.HandlePostActivity)
	write("POST /scores", "scores", s.scoresHandler.HandlePostScore)
	write("PATCH /scores/{employee}/{period}", "edit_score", s.scoresHandler.HandlePatchScore)
	write("PUT /employees/{employee}", "employees", s.adminHandler.HandlePutEmployee)
	write("PUT /employees/{employee}/multiplier", "multiplier", s.adminHandler.HandlePutMultiplier)
	write("PUT /teams/{team}/weights", "team_weights", s.adminHandler.HandlePutTeamWeights)

	limited := s.limiter != nil
	s.logger.Info(ctx, "api routes registered", logger.Bool("write_rate_limited", limited))
}

// ActivityDependencies submits activity for asynchronous scoring.
type ActivityDependencies interface {
	SubmitActivity(ctx context.Context, sub model.Submission) (service.SubmitResult, error)
}
