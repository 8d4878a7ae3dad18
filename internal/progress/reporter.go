// Package progress reports the progress of long-running CLI commands such as
// catalog imports.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides progress feedback for a batch of items.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish(summary string)
}

// InCI reports whether the process runs under a CI system.
func InCI() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}

// NewReporter returns a TerminalReporter for interactive use, or a
// LineReporter when running in CI. Output goes to w.
func NewReporter(w io.Writer, label string) Reporter {
	if InCI() {
		return &LineReporter{w: w, label: label}
	}
	return &TerminalReporter{w: w, label: label}
}

// TerminalReporter draws a progress bar.
type TerminalReporter struct {
	w     io.Writer
	label string
	bar   *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(r.label),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar != nil {
		r.bar.Describe(fmt.Sprintf("%s: %s", r.label, message))
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish(summary string) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	if summary != "" {
		fmt.Fprintln(r.w, summary)
	}
}

// LineReporter prints one line per update, suitable for CI logs.
type LineReporter struct {
	w     io.Writer
	label string
	total int
}

func (r *LineReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(r.w, "%s: %d items\n", r.label, total)
}

func (r *LineReporter) Update(current int, message string) {
	fmt.Fprintf(r.w, "[%d/%d] %s\n", current, r.total, message)
}

func (r *LineReporter) Finish(summary string) {
	if summary == "" {
		summary = r.label + ": done"
	}
	fmt.Fprintln(r.w, summary)
}
