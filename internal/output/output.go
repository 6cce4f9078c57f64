// Package output provides consistent CLI output formatting for credsync
// commands.
package output

import (
	"fmt"
	"io"

	"github.com/credsync/credsync/internal/syncer"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Result prints the outcome of a single target push.
func (w *Writer) Result(r syncer.Result) {
	if r.Success {
		w.Statusf("✅", "%s", r.Target)
		return
	}
	w.Statusf("❌", "%s: %s", r.Target, r.Error)
}

// Summary prints per-target results followed by a one-line total.
func (w *Writer) Summary(s syncer.Summary) {
	for _, r := range s.Results {
		w.Result(r)
	}
	w.Newline()
	if s.Failed == 0 {
		w.Successf("%d/%d targets updated", s.Successful, s.Total)
		return
	}
	w.Errorf("%d/%d targets updated, %d failed", s.Successful, s.Total, s.Failed)
}
