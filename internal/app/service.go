// Package service wires the scoring engine, the store and the submission
// pipeline into the operations the HTTP API and the CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	eventqueue "github.com/okian/wcs/internal/adapters/mq/queue"
	workerpool "github.com/okian/wcs/internal/adapters/mq/worker"
	"github.com/okian/wcs/internal/adapters/repository"
	"github.com/okian/wcs/internal/domain/credit"
	"github.com/okian/wcs/internal/domain/dedupe"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/internal/domain/period"
	"github.com/okian/wcs/internal/domain/personalize"
	"github.com/okian/wcs/internal/domain/scoring"
	"github.com/okian/wcs/pkg/logger"
	"github.com/okian/wcs/pkg/metrics"
)

const (
	defaultQueueSize           = 10000
	defaultDedupeSize          = 50000
	defaultMaxLeaderboardLimit = 1000
	shutdownTimeout            = 10 * time.Second
)

// configSource exposes the store's personalization tables to the resolver.
type configSource struct {
	store repository.Store
}

func (c configSource) TeamWeights(ctx context.Context, teamID string) (model.TeamWeightConfig, error) {
	cfg, err := c.store.TeamWeights(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.TeamWeightConfig{}, personalize.ErrNotConfigured
	}
	return cfg, err
}

func (c configSource) Multiplier(ctx context.Context, employeeID string) (model.UserMultiplier, error) {
	m, err := c.store.Multiplier(ctx, employeeID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.UserMultiplier{}, personalize.ErrNotConfigured
	}
	return m, err
}

// scoringAdapter fills in the roster team before handing an activity to the
// engine, so queued and synchronous submissions score the same way.
type scoringAdapter struct {
	svc *Service
}

func (a scoringAdapter) Score(ctx context.Context, in model.ActivityRecord) (model.ScoreRecord, error) {
	return a.svc.engine.Score(ctx, a.svc.withTeam(ctx, in))
}

// SubmitResult acknowledges an asynchronous submission.
type SubmitResult struct {
	SubmissionID string `json:"submission_id"`
	Duplicate    bool   `json:"duplicate"`
}

// Service implements the Weekly Credit Score operations.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	deduper  dedupe.Deduper
	queue    eventqueue.Queue
	engine   *scoring.Engine
	resolver *personalize.Resolver
	pool     *workerpool.Pool
	board    *leaderboardCache

	workerCount         int
	queueSize           int
	dedupeSize          int
	rollingWindow       int
	streakThreshold     float64
	checkMarkTolerance  float64
	reportingRule       string
	defaultWeights      model.Weights
	maxLeaderboardLimit int
	now                 func() time.Time

	started bool
	// ownsStore marks a store created by Start; Stop drops it so a restart
	// opens a fresh one.
	ownsStore bool
	// storeClosed marks an injected store that Stop has closed.
	storeClosed bool
	logger      logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:         runtime.NumCPU(),
		queueSize:           defaultQueueSize,
		dedupeSize:          defaultDedupeSize,
		rollingWindow:       leaderboard.DefaultWindow,
		streakThreshold:     leaderboard.DefaultStreakThreshold,
		checkMarkTolerance:  credit.DefaultCheckMarkTolerance,
		reportingRule:       period.DefaultRule,
		defaultWeights:      model.DefaultWeights(),
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the engine and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if !personalize.ValidWeights(s.defaultWeights) {
		return fmt.Errorf("%w: default weights %+v", ErrInvalidConfig, s.defaultWeights)
	}
	calendar, err := period.NewCalendar(s.reportingRule)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	if s.storeClosed {
		return ErrStoreClosed
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.ownsStore = true
		s.logger.Info(ctx, "using in-memory store")
	}

	s.resolver = personalize.NewResolver(configSource{store: s.store},
		personalize.WithDefaultWeights(s.defaultWeights),
		personalize.WithLogger(s.logger.Named("personalize")),
	)
	s.engine = scoring.NewEngine(
		scoring.WithCalendar(calendar),
		scoring.WithResolver(s.resolver),
		scoring.WithCheckMarkTolerance(s.checkMarkTolerance),
		scoring.WithClock(s.now),
		scoring.WithLogger(s.logger.Named("scoring")),
	)
	s.board = newLeaderboardCache(s.store,
		leaderboard.WithWindow(s.rollingWindow),
		leaderboard.WithStreakThreshold(s.streakThreshold),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, scoringAdapter{svc: s}, s,
		workerpool.WithFailureHandler(s.onJobFailure),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "credit score service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("reportingRule", calendar.Rule()),
	)
	return nil
}

// Stop drains queued submissions and closes the store. A store created by
// Start is dropped, so Start may be called again with a fresh in-memory
// store; a store passed with WithStore stays closed and a later Start fails
// with ErrStoreClosed.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping credit score service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}
	if s.ownsStore {
		s.store, s.ownsStore = nil, false
	} else {
		s.storeClosed = true
	}
	s.started = false
	s.logger.Info(ctx, "credit score service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SubmitActivity validates an activity and queues it for scoring. A
// submission id seen before is acknowledged as a duplicate and not queued
// again. An empty id is replaced with a fresh one.
func (s *Service) SubmitActivity(ctx context.Context, sub model.Submission) (SubmitResult, error) {
	if err := s.running(); err != nil {
		return SubmitResult{}, err
	}
	if err := s.engine.Validate(sub.Activity); err != nil {
		metrics.RecordInvalidActivity()
		return SubmitResult{}, err
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = s.now().UTC()
	}

	if s.deduper.SeenAndRecord(ctx, sub.ID) {
		metrics.RecordDuplicate()
		s.logger.Debug(ctx, "duplicate submission", logger.String("submission", sub.ID))
		return SubmitResult{SubmissionID: sub.ID, Duplicate: true}, nil
	}
	if err := s.queue.Enqueue(ctx, sub); err != nil {
		s.deduper.Unrecord(ctx, sub.ID)
		if errors.Is(err, eventqueue.ErrFull) {
			return SubmitResult{}, fmt.Errorf("%w: %d queued", ErrBackpressure, s.queue.Len(ctx))
		}
		if errors.Is(err, eventqueue.ErrClosed) {
			return SubmitResult{}, ErrNotStarted
		}
		return SubmitResult{}, fmt.Errorf("enqueue submission %s: %w", sub.ID, err)
	}
	return SubmitResult{SubmissionID: sub.ID}, nil
}

// ScoreActivity scores an activity synchronously and stores the result.
func (s *Service) ScoreActivity(ctx context.Context, in model.ActivityRecord) (model.ScoreRecord, error) {
	if err := s.running(); err != nil {
		return model.ScoreRecord{}, err
	}
	rec, err := scoringAdapter{svc: s}.Score(ctx, in)
	if err != nil {
		return model.ScoreRecord{}, err
	}
	if err := s.Record(ctx, rec); err != nil {
		return model.ScoreRecord{}, err
	}
	return rec, nil
}

// Record stores a computed record and invalidates its leaderboard entry.
// Workers write through it. A record already stored for the same employee
// and period is replaced by the full rescore and the replacement is logged.
func (s *Service) Record(ctx context.Context, rec model.ScoreRecord) error {
	prev, err := s.store.Score(ctx, rec.EmployeeID, rec.PeriodID)
	replaced := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("record score: %w", err)
	}
	if err := s.save(ctx, rec); err != nil {
		return err
	}
	if replaced {
		metrics.RecordScoreReplaced()
		s.logger.Info(ctx, "score replaced by rescoring",
			logger.String("employee", rec.EmployeeID),
			logger.String("period", rec.PeriodID),
			logger.Float64("from", prev.WCS),
			logger.Float64("to", rec.WCS),
		)
	}
	return nil
}

func (s *Service) save(ctx context.Context, rec model.ScoreRecord) error {
	if err := s.store.SaveScore(ctx, rec); err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	s.board.invalidate(rec.EmployeeID, rec.PeriodID)
	s.logger.Debug(ctx, "score recorded",
		logger.String("employee", rec.EmployeeID),
		logger.String("period", rec.PeriodID),
		logger.Float64("wcs", rec.WCS),
	)
	return nil
}

// EditScore applies an authorized edit to a stored record, recomputing every
// derived field, and stores the result.
func (s *Service) EditScore(ctx context.Context, employeeID, periodID string, patch model.ScorePatch) (model.ScoreRecord, error) {
	if err := s.running(); err != nil {
		return model.ScoreRecord{}, err
	}
	current, err := s.store.Score(ctx, employeeID, periodID)
	if err != nil {
		return model.ScoreRecord{}, err
	}
	updated, err := s.engine.ApplyPatch(ctx, current, patch)
	if err != nil {
		return model.ScoreRecord{}, err
	}
	if err := s.save(ctx, updated); err != nil {
		return model.ScoreRecord{}, err
	}
	s.logger.Info(ctx, "score edited",
		logger.String("employee", employeeID),
		logger.String("period", periodID),
		logger.Float64("from", current.WCS),
		logger.Float64("to", updated.WCS),
	)
	return updated, nil
}

// History returns an employee's roster entry and records, most recent first.
// It returns ErrNotFound when the employee is neither on the roster nor scored.
func (s *Service) History(ctx context.Context, employeeID string) (model.History, error) {
	if err := s.running(); err != nil {
		return model.History{}, err
	}
	records, err := s.store.History(ctx, employeeID)
	if err != nil {
		return model.History{}, err
	}
	emp, err := s.store.Employee(ctx, employeeID)
	switch {
	case errors.Is(err, repository.ErrNotFound) && len(records) == 0:
		return model.History{}, err
	case errors.Is(err, repository.ErrNotFound):
		emp = model.Employee{ID: employeeID}
	case err != nil:
		return model.History{}, err
	}
	return model.History{Employee: emp, Records: records}, nil
}

// Leaderboard returns up to limit entries ordered for view. limit <= 0 or
// above the configured maximum is clamped to the maximum.
func (s *Service) Leaderboard(ctx context.Context, view leaderboard.View, limit int) ([]leaderboard.Entry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.maxLeaderboardLimit {
		limit = s.maxLeaderboardLimit
	}
	entries, err := s.board.ranked(ctx)
	if err != nil {
		return nil, err
	}
	return leaderboard.Top(leaderboard.SortBy(entries, view), limit), nil
}

// Rank returns one employee's leaderboard entry.
func (s *Service) Rank(ctx context.Context, employeeID string) (leaderboard.Entry, error) {
	if err := s.running(); err != nil {
		return leaderboard.Entry{}, err
	}
	entries, err := s.board.ranked(ctx)
	if err != nil {
		return leaderboard.Entry{}, err
	}
	e, ok := leaderboard.Find(entries, employeeID)
	if !ok {
		return leaderboard.Entry{}, fmt.Errorf("rank %s: %w", employeeID, ErrNotFound)
	}
	return e, nil
}

// UpsertEmployee adds or updates a roster entry.
func (s *Service) UpsertEmployee(ctx context.Context, e model.Employee) error {
	if err := s.running(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertEmployee(ctx, e); err != nil {
		return err
	}
	s.board.invalidate(e.ID, "")
	return nil
}

// SetTeamWeights stores a team's weights. Weights must be finite,
// non-negative and not all zero.
func (s *Service) SetTeamWeights(ctx context.Context, cfg model.TeamWeightConfig) error {
	if err := s.running(); err != nil {
		return err
	}
	if cfg.TeamID == "" || !personalize.ValidWeights(cfg.Weights) {
		return fmt.Errorf("%w: team %q weights %+v", ErrInvalidConfig, cfg.TeamID, cfg.Weights)
	}
	if sum := cfg.Weights.Sum(); sum != 100 {
		s.logger.Warn(ctx, "team weights do not sum to 100",
			logger.String("team", cfg.TeamID),
			logger.Float64("sum", sum),
		)
	}
	return s.store.SetTeamWeights(ctx, cfg)
}

// SetMultiplier stores an employee's multiplier. It must be positive and finite.
func (s *Service) SetMultiplier(ctx context.Context, m model.UserMultiplier) error {
	if err := s.running(); err != nil {
		return err
	}
	if m.EmployeeID == "" || !(m.Multiplier > 0) || math.IsInf(m.Multiplier, 0) {
		return fmt.Errorf("%w: multiplier %v for %q", ErrInvalidConfig, m.Multiplier, m.EmployeeID)
	}
	return s.store.SetMultiplier(ctx, m)
}

// SeedConfig stores configured team weights and multipliers, skipping and
// logging invalid entries.
func (s *Service) SeedConfig(ctx context.Context, teams map[string]model.Weights, multipliers map[string]float64) error {
	if err := s.running(); err != nil {
		return err
	}
	var seeded int
	for team, w := range teams {
		if err := s.SetTeamWeights(ctx, model.TeamWeightConfig{TeamID: team, Weights: w}); err != nil {
			if !errors.Is(err, ErrInvalidConfig) {
				return err
			}
			s.logger.Warn(ctx, "skipping team weights", logger.String("team", team), logger.Error(err))
			continue
		}
		seeded++
	}
	for emp, m := range multipliers {
		if err := s.SetMultiplier(ctx, model.UserMultiplier{EmployeeID: emp, Multiplier: m}); err != nil {
			if !errors.Is(err, ErrInvalidConfig) {
				return err
			}
			s.logger.Warn(ctx, "skipping multiplier", logger.String("employee", emp), logger.Error(err))
			continue
		}
		seeded++
	}
	s.logger.Info(ctx, "personalization seeded", logger.Int("entries", seeded))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"rollingWindow": s.rollingWindow,
		"reportingRule": s.reportingRule,
	}
	if s.started {
		ctx := context.Background()
		queueLen := s.queue.Len(ctx)
		records := s.store.Count(ctx)
		stats["queueLength"] = queueLen
		stats["scoreRecords"] = records
		stats["processed"] = s.pool.Processed()
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRepositoryRecords(records)
	}
	return stats
}

// withTeam fills an empty TeamID from the roster.
func (s *Service) withTeam(ctx context.Context, in model.ActivityRecord) model.ActivityRecord {
	if in.TeamID != "" {
		return in
	}
	if emp, err := s.store.Employee(ctx, in.EmployeeID); err == nil {
		in.TeamID = emp.TeamID
	}
	return in
}

func (s *Service) onJobFailure(ctx context.Context, job eventqueue.Job, err error) { //nolint:gocritic // hugeParam: jobs travel by value
	s.deduper.Unrecord(ctx, job.ID)
	s.logger.Warn(ctx, "submission failed, retry allowed",
		logger.String("submission", job.ID),
		logger.String("employee", job.Activity.EmployeeID),
		logger.Error(err),
	)
}
