// Package cmd provides the CLI commands for credsync.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/syncer"
	"github.com/credsync/credsync/internal/transport"
	"github.com/credsync/credsync/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the credsync CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credsync",
		Short: "Keep repository secrets in step with a local credential file",
		Long: `credsync watches a local credential file whose content changes
asynchronously (OAuth token refresh) and pushes the updated content to the
GitHub Actions secret store of every configured repository.

Content is fingerprinted, so a rewrite that does not change bytes never
triggers a push, and each repository only receives content it does not
already hold.

Run 'credsync setup' once, then 'credsync watch' to keep secrets current.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("credsync version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file path")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig(config.StateDir())
	cfg.WriteToStderr = false
	if debugMode {
		cfg.Level = "debug"
		cfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig loads the config file, routing a missing file to setup.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no configuration at %s (run 'credsync setup' first)", configPath)
		}
		return nil, err
	}
	return cfg, nil
}

// buildTransport constructs the configured transport variant. The dispatcher
// treats both identically.
func buildTransport(cfg *config.Config) (syncer.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportGH:
		var opts []transport.CLIOption
		if cfg.Transport.GHBinary != "" {
			opts = append(opts, transport.WithBinary(cfg.Transport.GHBinary))
		}
		opts = append(opts, transport.WithCLILogger(slog.Default()))
		return transport.NewCLI(opts...), nil

	case config.TransportAPI:
		opts := []transport.APIOption{transport.WithAPILogger(slog.Default())}
		if cfg.GitHub.APIBaseURL != "" {
			opts = append(opts, transport.WithBaseURL(cfg.GitHub.APIBaseURL))
		}
		return transport.NewAPI(cfg.ResolveToken(), opts...), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
}
