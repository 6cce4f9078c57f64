package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/engine"
	"github.com/credsync/credsync/internal/output"
	"github.com/credsync/credsync/internal/state"
)

func newSyncCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the credential file to all targets once",
		Long: `Read the credential file and push its content to every configured
target repository that does not already hold it, then exit.

With --force every target is pushed regardless of recorded state.`,
		Example: `  # Push to targets that are out of date
  credsync sync

  # Re-push to every target
  credsync sync --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Push to every target even if already up to date")
	return cmd
}

func runSync(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets configured (run 'credsync setup')")
	}

	store, err := state.Open(filepath.Join(config.StateDir(), "credsync.db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tr, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	summary, err := engine.New(cfg, store, tr, nil).SyncNow(cmd.Context(), force)
	if err != nil {
		return err
	}

	if summary.Total == 0 {
		out.Success("All targets already up to date")
		return nil
	}

	out.Summary(summary)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d target(s) failed", summary.Failed, summary.Total)
	}
	return nil
}
