// Package output renders walletkit results for a terminal or as JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Logger provides colored output functions for CLI feedback.
type Logger struct {
	out      io.Writer
	errOut   io.Writer
	noColor  bool
	verbose  bool
	jsonMode bool
}

// NewLogger creates a Logger writing to stdout and stderr.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr)
}

// NewLoggerTo creates a Logger writing to the given streams.
func NewLoggerTo(out, errOut io.Writer) *Logger {
	return &Logger{out: out, errOut: errOut}
}

// SetNoColor disables colored output.
func (l *Logger) SetNoColor(noColor bool) {
	l.noColor = noColor
	color.NoColor = noColor
}

// SetVerbose enables verbose logging.
func (l *Logger) SetVerbose(verbose bool) {
	l.verbose = verbose
}

// SetJSONMode makes results print as JSON and suppresses text output.
func (l *Logger) SetJSONMode(jsonMode bool) {
	l.jsonMode = jsonMode
}

// JSONMode reports whether results print as JSON.
func (l *Logger) JSONMode() bool {
	return l.jsonMode
}

// Writer returns the standard output stream.
func (l *Logger) Writer() io.Writer {
	return l.out
}

func (l *Logger) colored(w io.Writer, attr color.Attribute, format string, args ...any) {
	c := color.New(attr)
	if l.noColor {
		c.DisableColor()
	}
	c.Fprintf(w, format, args...)
}

// Info prints an informational message in default color.
func (l *Logger) Info(format string, args ...any) {
	if l.jsonMode {
		return
	}
	fmt.Fprintf(l.out, format+"\n", args...)
}

// Warn prints a warning message in yellow.
func (l *Logger) Warn(format string, args ...any) {
	if l.jsonMode {
		return
	}
	l.colored(l.errOut, color.FgYellow, "Warning: "+format+"\n", args...)
}

// Error prints an error message in red.
func (l *Logger) Error(format string, args ...any) {
	if l.jsonMode {
		return
	}
	l.colored(l.errOut, color.FgRed, "Error: "+format+"\n", args...)
}

// Success prints a success message in green with checkmark.
func (l *Logger) Success(format string, args ...any) {
	if l.jsonMode {
		return
	}
	l.colored(l.out, color.FgGreen, "✓ "+format+"\n", args...)
}

// Debug prints a debug message if verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if l.jsonMode || !l.verbose {
		return
	}
	l.colored(l.out, color.FgHiBlack, "[DEBUG] "+format+"\n", args...)
}

// Bold prints a message in bold.
func (l *Logger) Bold(format string, args ...any) {
	if l.jsonMode {
		return
	}
	l.colored(l.out, color.Bold, format+"\n", args...)
}

// Cyan prints a message in cyan (for highlights).
func (l *Logger) Cyan(format string, args ...any) {
	if l.jsonMode {
		return
	}
	l.colored(l.out, color.FgCyan, format+"\n", args...)
}

// JSON prints v as one indented JSON document. It prints in every mode.
func (l *Logger) JSON(v any) error {
	enc := json.NewEncoder(l.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
