package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/credsync/credsync/internal/creds"
)

// ErrNoChangeCallback is returned by New when no change callback is given.
var ErrNoChangeCallback = errors.New("watcher: change callback is required")

// Callbacks are invoked from the watcher's own goroutine. OnChange fires once
// per distinct-content evaluation; OnError reports transient read and decode
// failures. Neither is called again after Stop returns.
type Callbacks struct {
	// OnChange receives the decoded credentials, the raw file content, and
	// the content fingerprint. Required.
	OnChange func(file creds.File, raw []byte, fingerprint string)

	// OnError receives read and decode failures. Optional; failures are
	// logged when nil.
	OnError func(err error)
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period after the last raw event before the
	// file is read and compared. Default: 500ms.
	DebounceWindow time.Duration

	// SettleWindow is the pause between stability probes of a file that is
	// still being written. Default: 50ms.
	SettleWindow time.Duration

	// SettleAttempts is how many stability probes to make before giving up
	// on an evaluation. Default: 10.
	SettleAttempts int

	// Baseline is a fingerprint known from a prior run. When the first
	// observed content matches it, no change callback fires.
	Baseline string

	// Clock drives the debounce timer and settle pauses. Default: wall clock.
	Clock Clock

	// Logger receives debug and warning logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 500 * time.Millisecond,
		SettleWindow:   50 * time.Millisecond,
		SettleAttempts: 10,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.SettleWindow == 0 {
		o.SettleWindow = defaults.SettleWindow
	}
	if o.SettleAttempts == 0 {
		o.SettleAttempts = defaults.SettleAttempts
	}
	if o.Clock == nil {
		o.Clock = NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher observes a single credential file and emits hash-gated change
// notifications. One evaluation is in flight at a time: the debounce timer,
// the settle check, the fingerprint comparison, and both callbacks all run on
// the watcher's internal goroutine.
type Watcher struct {
	path      string
	callbacks Callbacks
	opts      Options
	clock     Clock
	logger    *slog.Logger

	fsw *fsnotify.Watcher

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// lastFingerprint is owned by the run goroutine.
	lastFingerprint string
}

// New starts watching path and returns a running watcher. The parent
// directory is watched rather than the file itself so atomic saves (write to
// a temp file, rename over the target) keep being observed after the inode
// changes.
//
// If the file already exists an initial evaluation is scheduled, honoring
// Options.Baseline.
func New(path string, callbacks Callbacks, opts Options) (*Watcher, error) {
	if callbacks.OnChange == nil {
		return nil, ErrNoChangeCallback
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}

	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:            abs,
		callbacks:       callbacks,
		opts:            opts,
		clock:           opts.Clock,
		logger:          opts.Logger,
		fsw:             fsw,
		stopCh:          make(chan struct{}),
		lastFingerprint: opts.Baseline,
	}

	_, statErr := os.Stat(abs)
	initial := statErr == nil

	w.wg.Add(1)
	go w.run(initial)

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Stop cancels any pending evaluation and releases the underlying OS watch.
// It is idempotent, and no callback fires after it returns.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
	})
	return w.fsw.Close()
}

// run is the single loop that owns the debounce timer and all evaluations.
// A raw event during an evaluation stays queued on the fsnotify channel and
// arms a fresh debounce cycle afterwards, so timer management never races
// against the read-and-compare sequence.
func (w *Watcher) run(initial bool) {
	defer w.wg.Done()

	var timer Timer
	var timerC <-chan time.Time

	arm := func() {
		if timer == nil {
			timer = w.clock.NewTimer(w.opts.DebounceWindow)
			timerC = timer.C()
			return
		}
		if !timer.Stop() {
			select {
			case <-timerC:
			default:
			}
		}
		timer.Reset(w.opts.DebounceWindow)
	}

	if initial {
		// The file was already present at watch start; treat that as an event.
		arm()
	}

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("raw file event",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()))
			arm()

		case <-timerC:
			timer = nil
			timerC = nil
			w.evaluate()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.emitError(fmt.Errorf("fs watch: %w", err))
		}
	}
}

// relevant reports whether a directory event concerns the watched file and a
// content-bearing operation.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

// evaluate reads the settled file, fingerprints it, and fires the change
// callback when content materially changed. Failures leave the stored
// fingerprint untouched so the next event gets a clean comparison.
func (w *Watcher) evaluate() {
	raw, err := w.readSettled()
	if err != nil {
		w.emitError(fmt.Errorf("read credentials: %w", err))
		return
	}

	fingerprint := creds.Fingerprint(raw)
	if fingerprint == w.lastFingerprint {
		w.logger.Debug("content unchanged", slog.String("fingerprint", fingerprint))
		return
	}

	file, err := creds.Decode(raw)
	if err != nil {
		w.emitError(err)
		return
	}

	w.lastFingerprint = fingerprint
	w.logger.Debug("credentials changed",
		slog.String("fingerprint", fingerprint),
		slog.Int("providers", len(file)))
	w.callbacks.OnChange(file, raw, fingerprint)
}

// readSettled reads the file once its size and mtime stop moving between two
// consecutive probes. Atomic saves normally settle on the first attempt; a
// writer that streams into the file in place needs a few rounds.
func (w *Watcher) readSettled() ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < w.opts.SettleAttempts; attempt++ {
		if attempt > 0 {
			w.clock.Sleep(w.opts.SettleWindow)
		}

		before, err := os.Stat(w.path)
		if err != nil {
			lastErr = err
			continue
		}
		raw, err := os.ReadFile(w.path)
		if err != nil {
			lastErr = err
			continue
		}
		after, err := os.Stat(w.path)
		if err != nil {
			lastErr = err
			continue
		}

		if before.Size() == after.Size() &&
			before.ModTime().Equal(after.ModTime()) &&
			int64(len(raw)) == after.Size() {
			return raw, nil
		}
		lastErr = fmt.Errorf("file still changing (size %d -> %d)", before.Size(), after.Size())
	}
	return nil, fmt.Errorf("did not settle after %d attempts: %w", w.opts.SettleAttempts, lastErr)
}

func (w *Watcher) emitError(err error) {
	if w.callbacks.OnError != nil {
		w.callbacks.OnError(err)
		return
	}
	w.logger.Warn("watch error", slog.String("error", err.Error()))
}
