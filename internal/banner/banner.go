// Package banner prints the daemon's startup summary: the name of the
// service plus whatever runtime configuration the caller wants visible
// in the first lines of its log.
package banner

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const minWidth = 40

// ConfigLine is one label/value pair rendered inside the banner frame.
type ConfigLine struct {
	Label string
	Value string
}

// Print writes the startup banner for serviceName to stdout, framed to
// fit the longest line among the title and the given config lines.
func Print(serviceName string, lines []ConfigLine) {
	Fprint(os.Stdout, serviceName, lines)
}

// Fprint writes the startup banner to w. Exported separately from Print
// so tests can capture the output without touching stdout.
func Fprint(w io.Writer, serviceName string, lines []ConfigLine) {
	width := minWidth
	if l := len(serviceName) + 2; l > width {
		width = l
	}
	for _, c := range lines {
		if l := len(c.Label) + len(c.Value) + 5; l > width {
			width = l
		}
	}

	top := "+" + strings.Repeat("-", width) + "+"
	fmt.Fprintln(w, top)
	fmt.Fprintln(w, frameLine(width, " "+serviceName))
	fmt.Fprintln(w, "+"+strings.Repeat("-", width)+"+")

	if len(lines) == 0 {
		fmt.Fprintln(w, frameLine(width, " no configuration"))
	}
	for _, c := range lines {
		fmt.Fprintln(w, frameLine(width, fmt.Sprintf(" %s: %s", c.Label, c.Value)))
	}

	fmt.Fprintln(w, top)
}

// frameLine pads s with trailing spaces to width and wraps it in the
// frame's side bars.
func frameLine(width int, s string) string {
	if len(s) > width {
		s = s[:width]
	}
	return "|" + s + strings.Repeat(" ", width-len(s)) + "|"
}
