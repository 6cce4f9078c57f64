package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/engine"
	"github.com/credsync/credsync/internal/output"
	"github.com/credsync/credsync/internal/state"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the credential file and sync secrets on change",
		Long: `Watch the configured credential file in the foreground. Whenever its
content materially changes, the new content is pushed to every target
repository that does not already hold it.

Only one watch instance may run per state directory.`,
		Example: `  # Run in the foreground until interrupted
  credsync watch

  # With debug logging mirrored to stderr
  credsync watch --debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets configured (run 'credsync setup')")
	}

	stateDir := config.StateDir()
	lock := state.NewInstanceLock(stateDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another credsync instance is already watching (lock: %s)", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	store, err := state.Open(filepath.Join(stateDir, "credsync.db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tr, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	out.Statusf("👀", "Watching %s", cfg.Credentials.Path)
	out.Statusf("🎯", "%d target(s), secret %s, transport %s",
		len(cfg.Targets), cfg.Credentials.SecretName, cfg.Transport.Kind)
	out.Newline()

	if err := engine.New(cfg, store, tr, nil).Run(ctx); err != nil {
		return err
	}

	out.Success("Watch stopped")
	return nil
}
