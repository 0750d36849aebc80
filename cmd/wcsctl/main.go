// Command wcsctl scores batch files offline, prints leaderboards and seeds a
// running server with synthetic activity.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/wcs/internal/config"
	"github.com/okian/wcs/pkg/logger"
	"github.com/spf13/cobra"
)

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string
	cfg        *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "wcsctl",
		Short:        "Weekly Credit Score operator tool",
		Long:         `Score activity files offline, inspect leaderboards and seed a running server with synthetic data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv(config.EnvConfigPath), "YAML config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "Log format (text or json)")

	root.AddCommand(scoreCmd(c))
	root.AddCommand(leaderboardCmd(c))
	root.AddCommand(seedCmd(c))
	return root
}

// setup sets up logging on stderr and loads configuration.
func (c *cli) setup(cmd *cobra.Command) error {
	if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr()), logger.WithFormat(c.logFormat)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadFrom(cmd.Context(), c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg

	level := cfg.LogLevel
	if c.logLevel != "" {
		level = c.logLevel
	}
	if err := logger.SetLevelString(level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}
