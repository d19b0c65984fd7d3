package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	tea "github.com/charmbracelet/bubbletea/v2"
)

// yamlViewer is a scrollable, syntax-highlighted view of one object's YAML.
type yamlViewer struct {
	lines  []string
	width  int
	height int
	offset int
}

// newYAMLViewer highlights text with the given chroma theme. Highlighting is
// best-effort; on failure the plain text is shown.
func newYAMLViewer(text, theme string) *yamlViewer {
	var b strings.Builder
	if err := quick.Highlight(&b, text, "yaml", "terminal256", theme); err != nil {
		b.Reset()
		b.WriteString(text)
	}
	return &yamlViewer{lines: strings.Split(b.String(), "\n")}
}

func (v *yamlViewer) Init() tea.Cmd          { return nil }
func (v *yamlViewer) SetDimensions(w, h int) { v.width, v.height = w, h }

func (v *yamlViewer) maxOffset() int {
	return max(0, len(v.lines)-v.height)
}

func (v *yamlViewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}
	switch key.String() {
	case "up":
		if v.offset > 0 {
			v.offset--
		}
	case "down":
		if v.offset < v.maxOffset() {
			v.offset++
		}
	case "pgup":
		v.offset = max(0, v.offset-(v.height-1))
	case "pgdown":
		v.offset = min(v.maxOffset(), v.offset+(v.height-1))
	case "home":
		v.offset = 0
	case "end":
		v.offset = v.maxOffset()
	}
	return v, nil
}

func (v *yamlViewer) View() string {
	if v.width <= 0 || v.height <= 0 {
		return ""
	}
	end := min(len(v.lines), v.offset+v.height)
	out := make([]string, 0, v.height)
	for _, line := range v.lines[v.offset:end] {
		out = append(out, pad(line, v.width))
	}
	return strings.Join(out, "\n")
}

// FooterHints wires the modal footer hints.
func (v *yamlViewer) FooterHints() [][2]string {
	return [][2]string{{"↑/↓", "Scroll"}}
}
