package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/wcs/internal/adapters/repository"
	service "github.com/okian/wcs/internal/app"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Rejection names an activity that failed validation.
type Rejection struct {
	Index      int    `json:"index" yaml:"index"`
	EmployeeID string `json:"employee_id" yaml:"employee_id"`
	PeriodID   string `json:"period_id" yaml:"period_id"`
	Reason     string `json:"reason" yaml:"reason"`
}

// Result is the outcome of scoring one file.
type Result struct {
	RunID    string              `json:"run_id" yaml:"run_id"`
	Records  []model.ScoreRecord `json:"records" yaml:"records"`
	Rejected []Rejection         `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Took     time.Duration       `json:"took" yaml:"took"`
}

// Runner scores batch files through a private service instance.
type Runner struct {
	svc     *service.Service
	workers int
	strict  bool
	logger  logger.Logger
}

// Option configures a Runner.
type Option func(*runnerConfig)

type runnerConfig struct {
	workers int
	strict  bool
	store   repository.Store
	svcOpts []service.Option
	logger  logger.Logger
}

// WithWorkers bounds how many activities are scored at once.
func WithWorkers(n int) Option {
	return func(c *runnerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithStrict makes the first invalid activity abort the run instead of
// being reported as a rejection.
func WithStrict(strict bool) Option {
	return func(c *runnerConfig) { c.strict = strict }
}

// WithStore scores into store instead of a fresh in-memory store. The
// runner closes it on Close.
func WithStore(store repository.Store) Option {
	return func(c *runnerConfig) { c.store = store }
}

// WithServiceOptions passes engine settings such as the reporting rule or
// default weights through to the service.
func WithServiceOptions(opts ...service.Option) Option {
	return func(c *runnerConfig) { c.svcOpts = append(c.svcOpts, opts...) }
}

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(c *runnerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewRunner starts the service the runner scores through.
func NewRunner(ctx context.Context, opts ...Option) (*Runner, error) {
	cfg := runnerConfig{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Named("batch")
	}

	svcOpts := []service.Option{
		service.WithWorkerCount(1),
		service.WithLogger(cfg.logger.Named("service")),
	}
	if cfg.store != nil {
		svcOpts = append(svcOpts, service.WithStore(cfg.store))
	}
	svcOpts = append(svcOpts, cfg.svcOpts...)

	svc := service.New(svcOpts...)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start batch service: %w", err)
	}
	return &Runner{svc: svc, workers: cfg.workers, strict: cfg.strict, logger: cfg.logger}, nil
}

// Score stores the file's roster and personalization, then scores every
// activity in parallel. Records come back in file order.
func (r *Runner) Score(ctx context.Context, f *File) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}

	if err := r.svc.SeedConfig(ctx, f.TeamWeights, f.UserMultipliers); err != nil {
		return nil, fmt.Errorf("seed personalization: %w", err)
	}
	for _, e := range f.Employees {
		if err := r.svc.UpsertEmployee(ctx, e); err != nil {
			return nil, fmt.Errorf("roster entry %q: %w", e.ID, err)
		}
	}

	records := make([]model.ScoreRecord, len(f.Activities))
	scored := make([]bool, len(f.Activities))
	var (
		mu       sync.Mutex
		rejected []Rejection
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, a := range f.Activities {
		g.Go(func() error {
			rec, err := r.svc.ScoreActivity(gctx, a)
			switch {
			case err == nil:
				records[i], scored[i] = rec, true
				return nil
			case errors.Is(err, model.ErrInvalidActivity) && !r.strict:
				mu.Lock()
				rejected = append(rejected, Rejection{Index: i, EmployeeID: a.EmployeeID, PeriodID: a.PeriodID, Reason: err.Error()})
				mu.Unlock()
				return nil
			default:
				return fmt.Errorf("activities[%d] %s/%s: %w", i, a.EmployeeID, a.PeriodID, err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Records = make([]model.ScoreRecord, 0, len(records))
	for i, ok := range scored {
		if ok {
			res.Records = append(res.Records, records[i])
		}
	}
	sort.Slice(rejected, func(i, j int) bool { return rejected[i].Index < rejected[j].Index })
	res.Rejected = rejected
	res.Took = time.Since(start)

	r.logger.Info(ctx, "batch scored",
		logger.String("run", res.RunID),
		logger.Int("scored", len(res.Records)),
		logger.Int("rejected", len(res.Rejected)),
		logger.Duration("took", res.Took),
	)
	return res, nil
}

// Leaderboard ranks everything the runner's store holds.
func (r *Runner) Leaderboard(ctx context.Context, view leaderboard.View, limit int) ([]leaderboard.Entry, error) {
	return r.svc.Leaderboard(ctx, view, limit)
}

// Close stops the service and closes its store.
func (r *Runner) Close() {
	r.svc.Stop()
}
