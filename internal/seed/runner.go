package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	directoryPermission = 0o750
	settlePollInterval  = 100 * time.Millisecond
	defaultSettle       = 30 * time.Second
)

// Run executes a complete seeding run: health check, roster and team
// weights, concurrent submissions, settle, then leaderboard verification.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("seed")
	start := time.Now()
	stats := &Stats{}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("employees", cfg.Employees),
		logger.Int("weeks", cfg.Weeks),
		logger.Int("workers", cfg.Workers),
	)

	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	ds, err := Generate(cfg)
	if err != nil {
		return nil, fmt.Errorf("generate dataset: %w", err)
	}
	stats.ActivitiesGenerated = len(ds.Submissions)
	if cfg.OutputFile != "" {
		if err := saveDataset(cfg.OutputFile, ds); err != nil {
			log.Warn(ctx, "failed to save dataset", logger.Error(err))
		}
	}

	for team, w := range ds.TeamWeights {
		if err := client.PutTeamWeights(ctx, team, w); err != nil {
			return nil, fmt.Errorf("team %s: %w", team, err)
		}
	}
	if err := forEach(ctx, cfg.Workers, len(ds.Employees), func(ctx context.Context, i int) error {
		return client.PutEmployee(ctx, ds.Employees[i])
	}); err != nil {
		return nil, fmt.Errorf("create roster: %w", err)
	}
	stats.EmployeesCreated = len(ds.Employees)

	baseline, err := processed(ctx, client)
	if err != nil {
		return nil, err
	}
	submit(ctx, client, cfg, ds, stats)
	log.Info(ctx, "submissions sent",
		logger.Int("accepted", stats.SubmissionsAccepted),
		logger.Int("duplicate", stats.SubmissionsDuplicate),
		logger.Int("failed", stats.SubmissionsFailed),
	)

	if err := settle(ctx, client, baseline+stats.SubmissionsAccepted, cfg.Settle); err != nil {
		return nil, err
	}

	board, err := client.Leaderboard(ctx, leaderboard.ViewRanking, cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(board)
	if err := VerifyLeaderboard(board); err != nil {
		return nil, err
	}

	lookups := make(map[string]leaderboard.Entry, len(board))
	var mu sync.Mutex
	if err := forEach(ctx, cfg.Workers, len(board), func(ctx context.Context, i int) error {
		e, err := client.Rank(ctx, board[i].EmployeeID)
		if err != nil {
			return err
		}
		mu.Lock()
		lookups[e.EmployeeID] = e
		mu.Unlock()
		return nil
	}); err != nil {
		return nil, fmt.Errorf("rank lookups: %w", err)
	}
	if err := VerifyRanks(board, lookups); err != nil {
		return nil, err
	}
	stats.RanksVerified = len(lookups)
	stats.Duration = time.Since(start)

	log.Info(ctx, "seed run completed",
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("ranksVerified", stats.RanksVerified),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// submit posts every submission, resending a share of them to exercise
// idempotency. Failures are counted, not fatal.
func submit(ctx context.Context, client *Client, cfg *Config, ds *Dataset, stats *Stats) {
	resend := int(float64(len(ds.Submissions)) * min(max(cfg.DuplicateRate, 0), 1))
	total := len(ds.Submissions) + resend

	var accepted, duplicate, failed atomic.Int64
	_ = forEach(ctx, cfg.Workers, total, func(ctx context.Context, i int) error {
		sub := ds.Submissions[i%len(ds.Submissions)]
		switch o, _ := client.Submit(ctx, sub); o {
		case outcomeAccepted:
			accepted.Add(1)
		case outcomeDuplicate:
			duplicate.Add(1)
		default:
			failed.Add(1)
		}
		return nil
	})

	stats.SubmissionsSent = total
	stats.SubmissionsAccepted = int(accepted.Load())
	stats.SubmissionsDuplicate = int(duplicate.Load())
	stats.SubmissionsFailed = int(failed.Load())
}

// forEach runs fn for 0..n-1 with at most workers in flight.
func forEach(ctx context.Context, workers, n int, fn func(context.Context, int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range n {
		g.Go(func() error { return fn(gctx, i) })
	}
	return g.Wait()
}

// settle waits until the queue is empty and the workers have written at
// least target jobs since the server started.
func settle(ctx context.Context, client *Client, target int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultSettle
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		stats, err := client.Stats(ctx)
		if err == nil {
			queued, _ := stats["queueLength"].(float64)
			done, _ := stats["processed"].(float64)
			if queued == 0 && int(done) >= target {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNotSettled, ctx.Err())
		case <-ticker.C:
		}
	}
}

func processed(ctx context.Context, client *Client) (int, error) {
	stats, err := client.Stats(ctx)
	if err != nil {
		return 0, fmt.Errorf("read stats: %w", err)
	}
	n, _ := stats["processed"].(float64)
	return int(n), nil
}

// saveDataset writes the generated dataset as YAML.
func saveDataset(filename string, ds *Dataset) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}
