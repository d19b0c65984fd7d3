package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
)

// nsPicker is a multi-select list over the connected context's namespaces.
// Space toggles one namespace, "a" toggles the all-namespaces mode, enter
// applies. Applying with all-namespaces on reports a nil scope.
type nsPicker struct {
	namespaces []string
	checked    map[string]bool
	all        bool
	cursor     int
	width      int
	height     int
	onApply    func(scope []string) tea.Cmd
}

func newNsPicker(namespaces, selected []string, onApply func([]string) tea.Cmd) *nsPicker {
	p := &nsPicker{
		namespaces: namespaces,
		checked:    map[string]bool{},
		all:        selected == nil,
		onApply:    onApply,
	}
	for _, ns := range selected {
		p.checked[ns] = true
	}
	return p
}

func (p *nsPicker) Init() tea.Cmd          { return nil }
func (p *nsPicker) SetDimensions(w, h int) { p.width, p.height = w, h }

func (p *nsPicker) scope() []string {
	if p.all {
		return nil
	}
	scope := []string{}
	for _, ns := range p.namespaces {
		if p.checked[ns] {
			scope = append(scope, ns)
		}
	}
	return scope
}

func (p *nsPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "up":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down":
		if p.cursor < len(p.namespaces)-1 {
			p.cursor++
		}
	case " ", "space":
		if p.cursor < len(p.namespaces) {
			ns := p.namespaces[p.cursor]
			p.checked[ns] = !p.checked[ns]
			p.all = false
		}
	case "a":
		p.all = !p.all
	case "enter":
		if p.onApply != nil {
			return p, p.onApply(p.scope())
		}
	}
	return p, nil
}

func (p *nsPicker) View() string {
	var b strings.Builder
	allMark := "[ ]"
	if p.all {
		allMark = "[x]"
	}
	b.WriteString(ModalItemStyle.Render(pad(allMark+" <all namespaces>", p.width)))

	rows := max(0, p.height-1)
	start := 0
	if rows > 0 && p.cursor >= rows {
		start = p.cursor - rows + 1
	}
	for i := start; i < len(p.namespaces) && i-start < rows; i++ {
		ns := p.namespaces[i]
		mark := "[ ]"
		if !p.all && p.checked[ns] {
			mark = "[x]"
		}
		style := ModalItemStyle
		if i == p.cursor {
			style = ModalItemSelectedStyle
		}
		b.WriteString("\n")
		b.WriteString(style.Render(pad(mark+" "+ns, p.width)))
	}
	return b.String()
}

// FooterHints wires the modal footer hints.
func (p *nsPicker) FooterHints() [][2]string {
	return [][2]string{{"Space", "Toggle"}, {"a", "All"}, {"Enter", "Apply"}}
}
