package overlay

// Position anchors the foreground within the background: Top, Right, Bottom,
// Left, or Center.
type Position int

const (
	Top Position = iota + 1
	Right
	Bottom
	Left
	Center
)
