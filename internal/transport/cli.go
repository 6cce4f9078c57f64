// Package transport provides the two interchangeable secret-delivery
// mechanisms: invoking the GitHub CLI, and calling the GitHub REST API
// directly with sealed-box encryption. Both satisfy syncer.Transport and the
// dispatcher treats them identically.
package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// commandRunner executes one external command with stdin attached and returns
// its captured stderr. Injectable so CLI tests never shell out.
type commandRunner func(ctx context.Context, stdin, name string, args ...string) (stderr string, err error)

func execRunner(ctx context.Context, stdin, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// CLI pushes secrets by invoking the GitHub CLI (`gh secret set`). The secret
// value travels on stdin so it never appears in the process argument list.
type CLI struct {
	binary string
	run    commandRunner
	logger *slog.Logger
}

// CLIOption configures a CLI transport.
type CLIOption func(*CLI)

// WithBinary overrides the gh binary path.
func WithBinary(path string) CLIOption {
	return func(c *CLI) { c.binary = path }
}

// WithCLILogger sets the logger.
func WithCLILogger(logger *slog.Logger) CLIOption {
	return func(c *CLI) { c.logger = logger }
}

func withRunner(run commandRunner) CLIOption {
	return func(c *CLI) { c.run = run }
}

// NewCLI creates a CLI transport using `gh` from PATH.
func NewCLI(opts ...CLIOption) *CLI {
	c := &CLI{
		binary: "gh",
		run:    execRunner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSecret sets one repository secret. Success is exit code 0; on failure
// the error text is the command's captured stderr, verbatim, so it matches
// what an operator would see running gh by hand.
func (c *CLI) SetSecret(ctx context.Context, target, name, value string) error {
	c.logger.Debug("invoking gh",
		slog.String("target", target),
		slog.String("secret", name))

	stderr, err := c.run(ctx, value, c.binary, "secret", "set", name, "--repo", target)
	if err == nil {
		return nil
	}

	if msg := strings.TrimSpace(stderr); msg != "" {
		return errors.New(msg)
	}
	return err
}
