// Package watcher converts an unreliable stream of filesystem events for a
// single credential file into a reliable stream of distinct-content
// notifications.
//
// Raw events are debounced with a trailing-edge timer: a burst of rapid
// writes collapses into one evaluation per quiet period. On evaluation the
// file is read once it has stopped changing (a settle check separate from the
// debounce window, tolerating atomic-save races), its content is
// fingerprinted, and the change callback fires only when the fingerprint
// differs from the last one seen. A caller-supplied baseline fingerprint
// suppresses the initial notification across restarts.
//
// Read and decode failures are reported through the error callback and never
// update the stored fingerprint, so a transient failure cannot poison future
// comparisons.
package watcher
