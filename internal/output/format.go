package output

import (
	"strings"

	"github.com/fatih/color"
)

// Visual separator constants.
const (
	// SeparatorWidth is the width of separator lines.
	SeparatorWidth = 48

	// SeparatorChar is the character used for separator lines.
	SeparatorChar = "─"
)

// Separator returns a separator line of the default width.
func Separator() string {
	return strings.Repeat(SeparatorChar, SeparatorWidth)
}

func (l *Logger) separator(attr color.Attribute) {
	if l.jsonMode {
		return
	}
	l.colored(l.out, attr, "%s\n", Separator())
}

// padRight pads s with spaces to width display columns.
func padRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
