package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/config"
	logpkg "github.com/kailas-cloud/assessdex/internal/logger"
	"github.com/kailas-cloud/assessdex/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by subcommands.
type cli struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "assessdex",
		Short:         "Vector search over assessment documents",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.env, "env", "", "config environment (overrides ENV)")

	root.AddCommand(
		newServeCmd(c),
		newIngestCmd(c),
		newSearchCmd(c),
		newInsightsCmd(c),
		newRebuildCmd(c),
		newStatsCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) init() error {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if c.env == "" {
		c.env = config.GetEnv()
	}
	cfg, err := config.Load(c.env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(c.env, logpkg.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

// withApp builds the composition root for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(logpkg.ContextWithLogger(ctx, c.logger), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.String())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
