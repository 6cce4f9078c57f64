package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/output"
	"github.com/credsync/credsync/internal/wizard"
)

func newSetupCmd() *cobra.Command {
	var (
		credentialsPath string
		repos           []string
		secretName      string
		transportKind   string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create or update the credsync configuration",
		Long: `Configure the credential file to watch and the repositories to push
to. Run without flags for an interactive wizard, or pass flags for
non-interactive use.

An existing config file provides the starting values; setup never
discards settings it does not ask about.`,
		Example: `  # Interactive wizard
  credsync setup

  # Non-interactive
  credsync setup --credentials ~/.claude/.credentials.json \
      --repo acme/api --repo acme/web`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd, credentialsPath, repos, secretName, transportKind)
		},
	}

	cmd.Flags().StringVar(&credentialsPath, "credentials", "", "Path to the credential file to watch")
	cmd.Flags().StringArrayVar(&repos, "repo", nil, "Target repository as owner/repo (repeatable)")
	cmd.Flags().StringVar(&secretName, "secret-name", "", "Secret name to set in each repository")
	cmd.Flags().StringVar(&transportKind, "transport", "", "Secret transport: gh or api")

	return cmd
}

func runSetup(cmd *cobra.Command, credentialsPath string, repos []string, secretName, transportKind string) error {
	out := output.New(cmd.OutOrStdout())

	base, err := config.Load(configPath)
	if err != nil {
		base = config.Default()
	}

	nonInteractive := credentialsPath != "" || len(repos) > 0 || secretName != "" || transportKind != ""

	var cfg *config.Config
	if nonInteractive {
		cfg, err = applySetupFlags(base, credentialsPath, repos, secretName, transportKind)
		if err != nil {
			return err
		}
	} else {
		var accepted bool
		cfg, accepted, err = wizard.Run(base)
		if err != nil {
			return err
		}
		if !accepted {
			out.Warning("Setup cancelled, configuration unchanged")
			return nil
		}
	}

	if err := cfg.Save(configPath); err != nil {
		return err
	}

	out.Successf("Configuration written to %s", configPath)
	out.Statusf("📄", "Watching %s", cfg.Credentials.Path)
	for _, target := range cfg.Targets {
		out.Statusf("🎯", "%s ← %s", target, cfg.Credentials.SecretName)
	}
	out.Newline()
	out.Status("", "Run 'credsync watch' to start syncing")
	return nil
}

// applySetupFlags overlays non-empty flag values onto the base config and
// validates the result.
func applySetupFlags(base *config.Config, credentialsPath string, repos []string, secretName, transportKind string) (*config.Config, error) {
	cfg := *base

	if credentialsPath != "" {
		cfg.Credentials.Path = credentialsPath
	}
	if secretName != "" {
		cfg.Credentials.SecretName = secretName
	}
	if transportKind != "" {
		cfg.Transport.Kind = transportKind
	}
	if len(repos) > 0 {
		cfg.Targets = repos
	}

	if cfg.Credentials.Path == "" {
		return nil, fmt.Errorf("--credentials is required")
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("at least one --repo is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
