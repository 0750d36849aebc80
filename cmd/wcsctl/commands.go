package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/okian/wcs/internal/adapters/repository"
	service "github.com/okian/wcs/internal/app"
	"github.com/okian/wcs/internal/batch"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/seed"
	"github.com/okian/wcs/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	outputTable = "table"
	outputYAML  = "yaml"
	outputJSON  = "json"

	defaultSeedEmployees = 200
	defaultSeedTeams     = 4
	defaultSeedWeeks     = 12
	defaultSeedTopN      = 50
	defaultSeedTimeout   = 30 * time.Second
	defaultSeedSettle    = 30 * time.Second
	defaultSeedDupRate   = 0.05
	defaultReportingDays = 5
	defaultSeedWorkers   = 2 // multiplier for runtime.NumCPU()
)

var errNoInput = errors.New("one of --file or --db is required")

func scoreCmd(c *cli) *cobra.Command {
	var (
		file    string
		db      string
		workers int
		strict  bool
		output  string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score every activity in a batch file",
		Long:  `Reads a YAML roster and activity file, scores each activity in parallel and prints the score records.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkOutput(output, outputYAML, outputJSON); err != nil {
				return err
			}
			f, err := batch.Load(file)
			if err != nil {
				return err
			}

			runner, err := c.runner(cmd.Context(), db, workers, strict)
			if err != nil {
				return err
			}
			defer runner.Close()

			res, err := runner.Score(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("failed to score %s: %w", file, err)
			}
			return write(cmd.OutOrStdout(), output, res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Batch file to score")
	cmd.Flags().StringVar(&db, "db", "", "SQLite file the records are written to (default: in memory)")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Activities scored at once")
	cmd.Flags().BoolVar(&strict, "strict", false, "Abort on the first invalid activity")
	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "Output format (yaml or json)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func leaderboardCmd(c *cli) *cobra.Command {
	var (
		file   string
		db     string
		sortBy string
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard of a batch file or a SQLite store",
		Long:  `Ranks every employee with score history. With --file the file is scored first; with --db the stored history is included.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" && db == "" {
				return errNoInput
			}
			if err := checkOutput(output, outputTable, outputYAML, outputJSON); err != nil {
				return err
			}
			view, err := leaderboard.ParseView(sortBy)
			if err != nil {
				return err
			}

			runner, err := c.runner(cmd.Context(), db, runtime.NumCPU(), false)
			if err != nil {
				return err
			}
			defer runner.Close()

			if file != "" {
				f, err := batch.Load(file)
				if err != nil {
					return err
				}
				if _, err := runner.Score(cmd.Context(), f); err != nil {
					return fmt.Errorf("failed to score %s: %w", file, err)
				}
			}

			entries, err := runner.Leaderboard(cmd.Context(), view, limit)
			if err != nil {
				return fmt.Errorf("failed to build leaderboard: %w", err)
			}
			if entries == nil {
				entries = []leaderboard.Entry{}
			}
			if output == outputTable {
				return writeTable(cmd.OutOrStdout(), entries)
			}
			return write(cmd.OutOrStdout(), output, entries)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Batch file to score before ranking")
	cmd.Flags().StringVar(&db, "db", "", "SQLite file holding score history")
	cmd.Flags().StringVar(&sortBy, "sort", string(leaderboard.ViewRanking), "View: ranking, average, streak or checkmarks")
	cmd.Flags().IntVar(&limit, "limit", 0, "Entries to print (0 means the configured maximum)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, yaml or json)")
	return cmd
}

func seedCmd(c *cli) *cobra.Command {
	cfg := &seed.Config{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a running server with synthetic activity",
		Long:  `Generates a roster and weeks of activity, submits it to the server, waits for scoring and verifies the leaderboard.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Seed == 0 {
				cfg.Seed = uint64(time.Now().UnixNano())
			}
			stats, err := seed.Run(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("seed run failed: %w", err)
			}
			logger.Named("wcsctl").Info(cmd.Context(), "seed run complete",
				logger.Int("accepted", stats.SubmissionsAccepted),
				logger.Int("duplicates", stats.SubmissionsDuplicate),
				logger.Int("failed", stats.SubmissionsFailed),
				logger.Duration("took", stats.Duration),
			)
			return write(cmd.OutOrStdout(), outputYAML, stats)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&cfg.Employees, "employees", defaultSeedEmployees, "Roster size")
	f.IntVar(&cfg.Teams, "teams", defaultSeedTeams, "Teams the roster is spread over")
	f.IntVar(&cfg.Weeks, "weeks", defaultSeedWeeks, "Weeks of activity per employee")
	f.StringVar(&cfg.StartWeek, "start", "", "First period, e.g. 2026-W01 (default: weeks before now)")
	f.IntVar(&cfg.ReportingDays, "reporting-days", defaultReportingDays, "Upper bound for daily posts")
	f.Float64Var(&cfg.DuplicateRate, "duplicates", defaultSeedDupRate, "Share of submissions resent")
	f.IntVar(&cfg.TopN, "top", defaultSeedTopN, "Leaderboard entries fetched and verified")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultSeedWorkers, "Concurrent requests")
	f.DurationVar(&cfg.Timeout, "timeout", defaultSeedTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", defaultSeedSettle, "How long to wait for the queue to drain")
	f.Uint64Var(&cfg.Seed, "seed", 0, "Random seed (default: time based)")
	f.StringVarP(&cfg.OutputFile, "output", "o", "", "Write the generated dataset to this YAML file")
	return cmd
}

// runner starts a batch runner configured from the loaded config, backed by
// the SQLite file at db when set.
func (c *cli) runner(ctx context.Context, db string, workers int, strict bool) (*batch.Runner, error) {
	opts := []batch.Option{
		batch.WithWorkers(workers),
		batch.WithStrict(strict),
		batch.WithServiceOptions(service.WithConfig(c.cfg)),
	}
	if db != "" {
		store, err := repository.OpenSQLite(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", db, err)
		}
		runner, err := batch.NewRunner(ctx, append(opts, batch.WithStore(store))...)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return runner, nil
	}
	return batch.NewRunner(ctx, opts...)
}

func checkOutput(output string, allowed ...string) error {
	for _, a := range allowed {
		if output == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported output %q, want one of %v", output, allowed)
}

func write(w io.Writer, output string, v any) error {
	if output == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return batch.Encode(w, v)
}

func writeTable(w io.Writer, entries []leaderboard.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tEMPLOYEE\tNAME\tTEAM\tAVERAGE\tSTREAK\tCHECKS\tSCORE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.3f\t%d\t%d\t%.2f\n",
			e.Rank, e.EmployeeID, e.Name, e.TeamID, e.RollingAverageScore, e.CurrentStreak, e.CheckMarkCount, e.RankingScore)
	}
	return tw.Flush()
}
