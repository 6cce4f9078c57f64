// Package engine wires change detection to secret dispatch.
//
// The engine owns the policy around the watcher and the dispatcher: which
// targets are stale for a given fingerprint, what gets persisted after a
// push, and when the cross-restart baseline advances. The watcher and
// dispatcher stay mechanism-only.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/creds"
	"github.com/credsync/credsync/internal/state"
	"github.com/credsync/credsync/internal/syncer"
	"github.com/credsync/credsync/internal/watcher"
)

// Engine runs the credential sync loop for one configuration.
type Engine struct {
	cfg        *config.Config
	store      *state.Store
	dispatcher *syncer.Dispatcher
	logger     *slog.Logger
}

// New creates an engine dispatching through the given transport.
func New(cfg *config.Config, store *state.Store, transport syncer.Transport, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		store:      store,
		dispatcher: syncer.New(transport, syncer.WithLogger(logger)),
		logger:     logger,
	}
}

// SyncNow reads the credential file once and pushes it to stale targets
// (all targets when force is set). It returns the dispatch summary; the
// error covers read, decode, and state access, not per-target failures.
func (e *Engine) SyncNow(ctx context.Context, force bool) (syncer.Summary, error) {
	raw, err := os.ReadFile(e.cfg.Credentials.Path)
	if err != nil {
		return syncer.Summary{}, fmt.Errorf("read credentials: %w", err)
	}
	if _, err := creds.Decode(raw); err != nil {
		return syncer.Summary{}, err
	}

	fingerprint := creds.Fingerprint(raw)

	targets := e.cfg.Targets
	if !force {
		targets, err = e.staleTargets(fingerprint)
		if err != nil {
			return syncer.Summary{}, err
		}
	}

	summary := e.dispatchAndRecord(ctx, targets, raw, fingerprint)
	return summary, nil
}

// Run watches the credential file and dispatches on every distinct-content
// change until ctx is cancelled. Change notifications queue behind an
// in-flight dispatch rather than interrupting it; stopping the watcher never
// aborts a dispatch already running.
func (e *Engine) Run(ctx context.Context) error {
	baseline, err := e.store.Baseline()
	if err != nil {
		return err
	}

	debounce, err := e.cfg.DebounceWindow()
	if err != nil {
		return err
	}
	settle, err := e.cfg.SettleWindow()
	if err != nil {
		return err
	}

	type change struct {
		raw         []byte
		fingerprint string
	}
	changes := make(chan change, 8)

	w, err := watcher.New(e.cfg.Credentials.Path, watcher.Callbacks{
		OnChange: func(_ creds.File, raw []byte, fingerprint string) {
			select {
			case changes <- change{raw: raw, fingerprint: fingerprint}:
			default:
				// The queue only fills when dispatch is badly stuck; the
				// watcher re-fires on the next real change anyway.
				e.logger.Warn("dropping change notification, dispatch backlog full",
					slog.String("fingerprint", fingerprint))
			}
		},
		OnError: func(err error) {
			e.logger.Warn("credential watch error", slog.String("error", err.Error()))
		},
	}, watcher.Options{
		DebounceWindow: debounce,
		SettleWindow:   settle,
		Baseline:       baseline,
		Logger:         e.logger,
	})
	if err != nil {
		return err
	}

	e.logger.Info("watching credentials",
		slog.String("path", w.Path()),
		slog.Int("targets", len(e.cfg.Targets)),
		slog.String("baseline", baseline))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-changes:
				summary := e.dispatchAndRecord(gctx, e.mustStaleTargets(ev.fingerprint), ev.raw, ev.fingerprint)
				e.logger.Info("dispatch complete",
					slog.Int("total", summary.Total),
					slog.Int("successful", summary.Successful),
					slog.Int("failed", summary.Failed))
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		return w.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// staleTargets returns the configured targets whose recorded fingerprint
// differs from the current one, preserving configuration order.
func (e *Engine) staleTargets(fingerprint string) ([]string, error) {
	stale := make([]string, 0, len(e.cfg.Targets))
	for _, target := range e.cfg.Targets {
		recorded, err := e.store.TargetFingerprint(target)
		if err != nil {
			return nil, err
		}
		if recorded != fingerprint {
			stale = append(stale, target)
		}
	}
	return stale, nil
}

// mustStaleTargets is staleTargets with state read errors degraded to a full
// dispatch: pushing to an already-synced target is idempotent, skipping a
// stale one is not.
func (e *Engine) mustStaleTargets(fingerprint string) []string {
	stale, err := e.staleTargets(fingerprint)
	if err != nil {
		e.logger.Warn("state read failed, dispatching to all targets",
			slog.String("error", err.Error()))
		return e.cfg.Targets
	}
	return stale
}

// dispatchAndRecord pushes raw to targets and persists per-target
// fingerprints for the successful ones. The watcher baseline only advances
// when every configured target holds the new content, so a restart after a
// partial failure retries the stragglers instead of silencing them.
func (e *Engine) dispatchAndRecord(ctx context.Context, targets []string, raw []byte, fingerprint string) syncer.Summary {
	if len(targets) == 0 {
		e.logger.Info("all targets current", slog.String("fingerprint", fingerprint))
		if err := e.store.SetBaseline(fingerprint); err != nil {
			e.logger.Warn("persist baseline failed", slog.String("error", err.Error()))
		}
		return syncer.Summary{Results: []syncer.Result{}}
	}

	summary := e.dispatcher.SyncAll(ctx, targets, e.cfg.Credentials.SecretName, string(raw))

	for _, result := range summary.Results {
		if !result.Success {
			continue
		}
		if err := e.store.SetTargetFingerprint(result.Target, fingerprint); err != nil {
			e.logger.Warn("persist target fingerprint failed",
				slog.String("target", result.Target),
				slog.String("error", err.Error()))
		}
	}

	if e.allTargetsAt(fingerprint) {
		if err := e.store.SetBaseline(fingerprint); err != nil {
			e.logger.Warn("persist baseline failed", slog.String("error", err.Error()))
		}
	}

	return summary
}

func (e *Engine) allTargetsAt(fingerprint string) bool {
	for _, target := range e.cfg.Targets {
		recorded, err := e.store.TargetFingerprint(target)
		if err != nil || recorded != fingerprint {
			return false
		}
	}
	return true
}
