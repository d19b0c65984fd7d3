package overlay

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Composite draws fg over bg at the anchor described by xPos/yPos, shifted by
// xOff/yOff cells. Both strings may contain ANSI escape sequences; background
// cells covered by the foreground are replaced, everything else stays as is.
// The result always has the background's dimensions.
func Composite(fg, bg string, xPos, yPos Position, xOff, yOff int) string {
	fgLines := lines(fg)
	bgLines := lines(bg)
	x, y := offsets(fg, bg, xPos, yPos, xOff, yOff)

	out := make([]string, len(bgLines))
	for i, bgLine := range bgLines {
		j := i - y
		if j < 0 || j >= len(fgLines) {
			out[i] = bgLine
			continue
		}
		fgLine := fgLines[j]
		fgWidth := ansi.StringWidth(fgLine)
		left := ansi.Truncate(bgLine, x, "")
		if pad := x - ansi.StringWidth(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		right := ansi.TruncateLeft(bgLine, x+fgWidth, "")
		out[i] = left + fgLine + right
	}
	return strings.Join(out, "\n")
}

// offsets computes the top-left cell of fg within bg for the given anchor.
func offsets(fg, bg string, xPos, yPos Position, xOff, yOff int) (int, int) {
	fgLines := lines(fg)
	bgLines := lines(bg)
	fgWidth := maxWidth(fgLines)
	bgWidth := maxWidth(bgLines)

	var x, y int
	switch xPos {
	case Right:
		x = bgWidth - fgWidth
	case Center:
		// odd leftovers push left
		x = (bgWidth - fgWidth) / 2
	}
	switch yPos {
	case Bottom:
		y = len(bgLines) - len(fgLines)
	case Center:
		y = (len(bgLines) - len(fgLines)) / 2
	}
	x = clamp(x+xOff, 0, bgWidth-fgWidth)
	y = clamp(y+yOff, 0, len(bgLines)-len(fgLines))
	return x, y
}

// lines splits s into display lines, tolerating CRLF. An empty string is one
// empty line.
func lines(s string) []string {
	out := strings.Split(s, "\n")
	for i := range out {
		out[i] = strings.TrimSuffix(out[i], "\r")
	}
	return out
}

func maxWidth(ls []string) int {
	w := 0
	for _, l := range ls {
		if lw := ansi.StringWidth(l); lw > w {
			w = lw
		}
	}
	return w
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
