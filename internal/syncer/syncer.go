// Package syncer fans a secret value out to a list of remote targets and
// aggregates the per-target outcomes.
//
// Dispatch is strictly sequential in input order: that bounds rate-limit
// exposure on the remote side and keeps result ordering trivially
// deterministic. A failing target never prevents attempts on the remaining
// ones, and no failure escapes the dispatcher as anything but data.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
)

// Transport delivers one secret to one target. Implementations return nil on
// success and an error whose text is the underlying system's own diagnostic
// (CLI stderr, HTTP response body) on failure.
type Transport interface {
	SetSecret(ctx context.Context, target, name, value string) error
}

// Result is the outcome for a single target, immutable once produced.
type Result struct {
	Target  string `json:"target"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Summary aggregates one dispatch call. Results preserves input target order
// and always holds exactly Total entries, with Successful+Failed == Total.
type Summary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// AllSucceeded reports whether every target was pushed successfully.
// True for an empty dispatch.
func (s Summary) AllSucceeded() bool { return s.Failed == 0 }

// FailedResults returns the failure entries in dispatch order.
func (s Summary) FailedResults() []Result {
	var failed []Result
	for _, r := range s.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// Dispatcher pushes secret values through a pluggable transport.
type Dispatcher struct {
	transport Transport
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for per-target dispatch logging.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a Dispatcher using the given transport.
func New(transport Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SyncAll pushes value under name to every target, one at a time, in input
// order. Duplicate targets are dispatched redundantly. An empty target list
// is valid and yields a zero summary. SyncAll always returns a well-formed
// summary; it never panics past its boundary.
func (d *Dispatcher) SyncAll(ctx context.Context, targets []string, name, value string) Summary {
	summary := Summary{
		Total:   len(targets),
		Results: make([]Result, 0, len(targets)),
	}

	for _, target := range targets {
		result := Result{Target: target, Success: true}

		if err := d.setSecret(ctx, target, name, value); err != nil {
			// Carry the transport diagnostic verbatim so operators can match
			// it against the remote system's own error vocabulary.
			result.Success = false
			result.Error = err.Error()
			summary.Failed++
			d.logger.Warn("secret push failed",
				slog.String("target", target),
				slog.String("secret", name),
				slog.String("error", result.Error))
		} else {
			summary.Successful++
			d.logger.Info("secret pushed",
				slog.String("target", target),
				slog.String("secret", name))
		}

		summary.Results = append(summary.Results, result)
	}

	return summary
}

// setSecret invokes the transport, converting a panic into a plain error so
// one misbehaving transport call cannot abort the batch.
func (d *Dispatcher) setSecret(ctx context.Context, target, name, value string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return d.transport.SetSecret(ctx, target, name, value)
}
