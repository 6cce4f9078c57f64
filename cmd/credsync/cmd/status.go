package cmd

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/creds"
	"github.com/credsync/credsync/internal/output"
	"github.com/credsync/credsync/internal/state"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which targets hold the current credential content",
		Long: `Compare the fingerprint of the credential file on disk against the
fingerprint recorded for each target repository and report which
targets are up to date.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out.Statusf("📄", "Credentials: %s", cfg.Credentials.Path)
	out.Statusf("🔑", "Secret name: %s", cfg.Credentials.SecretName)
	out.Statusf("🚚", "Transport:   %s", cfg.Transport.Kind)
	out.Newline()

	var current string
	raw, err := os.ReadFile(cfg.Credentials.Path)
	switch {
	case err == nil:
		current = creds.Fingerprint(raw)
		out.Statusf("🔍", "Current fingerprint: %s", shortFingerprint(current))
	case errors.Is(err, fs.ErrNotExist):
		out.Warning("Credential file does not exist yet")
	default:
		return err
	}

	store, err := state.Open(filepath.Join(config.StateDir(), "credsync.db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recorded, err := store.Targets()
	if err != nil {
		return err
	}

	out.Newline()
	stale := 0
	for _, target := range cfg.Targets {
		fp, ok := recorded[target]
		switch {
		case !ok:
			out.Statusf("⚪", "%s: never pushed", target)
			stale++
		case current != "" && fp == current:
			out.Statusf("✅", "%s: up to date", target)
		default:
			out.Statusf("❌", "%s: stale (%s)", target, shortFingerprint(fp))
			stale++
		}
	}

	out.Newline()
	if stale == 0 {
		out.Success("All targets hold the current content")
	} else {
		out.Warningf("%d target(s) out of date (run 'credsync sync')", stale)
	}
	return nil
}

// shortFingerprint abbreviates a SHA-256 hex digest for display.
func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
