package watcher

import "time"

// Clock abstracts timer creation so debounce behavior can be driven
// deterministically in tests.
type Clock interface {
	// NewTimer returns a timer that fires once after d.
	NewTimer(d time.Duration) Timer
	// Sleep blocks for d.
	Sleep(d time.Duration)
}

// Timer is the subset of time.Timer the watcher needs.
type Timer interface {
	// C returns the channel the timer fires on.
	C() <-chan time.Time
	// Stop prevents the timer from firing. Reports whether it was stopped
	// before firing, with time.Timer semantics.
	Stop() bool
	// Reset re-arms the timer for d. Must only be called on a stopped or
	// drained timer.
	Reset(d time.Duration) bool
}

// realClock is the wall-clock implementation used outside tests.
type realClock struct{}

// NewRealClock returns a Clock backed by the time package.
func NewRealClock() Clock { return realClock{} }

func (realClock) NewTimer(d time.Duration) Timer { return &realTimer{t: time.NewTimer(d)} }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

type realTimer struct {
	t *time.Timer
}

func (rt *realTimer) C() <-chan time.Time { return rt.t.C }

func (rt *realTimer) Stop() bool { return rt.t.Stop() }

func (rt *realTimer) Reset(d time.Duration) bool { return rt.t.Reset(d) }
