// Package cli implements the scheduler-cli command tree.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/task-scheduler-api/pkg/config"
	"github.com/noah-isme/task-scheduler-api/pkg/logger"
)

// Build metadata, set with -ldflags at release time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

type rootOptions struct {
	logLevel  string
	logFormat string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCmd creates the root cobra command for scheduler-cli.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "scheduler-cli",
		Short: "Place prioritized tasks on a timeline",
		Long: `scheduler-cli solves scheduling requests locally with the same pipeline
as the HTTP API. Requests come from JSON or YAML documents, or from
semicolon separated task and tag tables.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") || cfg.Log.Level == "" {
				cfg.Log.Level = opts.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format = opts.logFormat
			}
			log, err := logger.New(cfg)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "Log format (console, json)")

	root.AddCommand(
		newSolveCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)

	return root
}
