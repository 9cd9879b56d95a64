// Package console provides small terminal helpers for long-running commands.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ProgressLog rewrites a single terminal line to report progress over a
// known number of steps.
type ProgressLog struct {
	out       io.Writer
	bar       bool
	percent   bool
	steps     int
	lineWidth int
}

// Option customizes a ProgressLog.
type Option func(*ProgressLog)

// ToWriter redirects the output, mainly for tests.
func ToWriter(w io.Writer) Option {
	return func(l *ProgressLog) { l.out = w }
}

// HideBar disables the leading '#' bar.
func HideBar() Option {
	return func(l *ProgressLog) { l.bar = false }
}

// ShowPercent reports a percentage instead of a step counter.
func ShowPercent() Option {
	return func(l *ProgressLog) { l.percent = true }
}

// LineLength overrides the line width (80 by default).
func LineLength(characters int) Option {
	return func(l *ProgressLog) { l.lineWidth = characters }
}

func NewProgressLog(steps int, options ...Option) *ProgressLog {
	l := &ProgressLog{
		out:       os.Stdout,
		bar:       true,
		steps:     steps,
		lineWidth: 80,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Log rewrites the progress line for the given step.
func (l *ProgressLog) Log(step int, message string) {
	percent := step * 100 / l.steps

	var sb strings.Builder
	if l.bar {
		filled := percent / 10
		sb.WriteString(strings.Repeat("#", filled))
		sb.WriteString(strings.Repeat(" ", 10-filled))
		sb.WriteRune(' ')
	}
	if l.percent {
		fmt.Fprintf(&sb, "(%3d%%) ", percent)
	} else {
		fmt.Fprintf(&sb, "(%d/%d) ", step, l.steps)
	}
	sb.WriteString(message)

	fmt.Fprint(l.out, l.pad(sb.String()), "\r")
}

// Clear replaces the progress line with a final message, or blanks it when
// the message is empty.
func (l *ProgressLog) Clear(message string) {
	fmt.Fprint(l.out, l.pad(message))
	if message == "" {
		fmt.Fprint(l.out, "\r")
	} else {
		fmt.Fprint(l.out, "\n")
	}
}

// pad truncates or right-pads the line to the configured width.
func (l *ProgressLog) pad(line string) string {
	if len(line) > l.lineWidth {
		return line[:l.lineWidth]
	}
	return line + strings.Repeat(" ", l.lineWidth-len(line))
}
