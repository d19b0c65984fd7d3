package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
)

// listEntry is one selectable row: what to show and the value handed to the
// apply callback.
type listEntry struct {
	label string
	value string
}

// listSelector is a filterable single-choice list used by the kind and
// context selectors. Typing narrows the list, enter applies the selection.
type listSelector struct {
	entries  []listEntry
	filtered []listEntry
	filter   string
	selected int
	width    int
	height   int
	onApply  func(value string) tea.Cmd
}

func newListSelector(entries []listEntry, onApply func(string) tea.Cmd) *listSelector {
	s := &listSelector{entries: entries, onApply: onApply}
	s.applyFilter()
	return s
}

func (s *listSelector) Init() tea.Cmd          { return nil }
func (s *listSelector) SetDimensions(w, h int) { s.width, s.height = w, h }

// Preselect moves the cursor to the entry with the given value.
func (s *listSelector) Preselect(value string) {
	for i, e := range s.filtered {
		if e.value == value {
			s.selected = i
			return
		}
	}
}

func (s *listSelector) applyFilter() {
	if s.filter == "" {
		s.filtered = s.entries
	} else {
		needle := strings.ToLower(s.filter)
		s.filtered = nil
		for _, e := range s.entries {
			if strings.Contains(strings.ToLower(e.label), needle) {
				s.filtered = append(s.filtered, e)
			}
		}
	}
	if s.selected >= len(s.filtered) {
		s.selected = max(0, len(s.filtered)-1)
	}
}

func (s *listSelector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}
	switch key.String() {
	case "up":
		if s.selected > 0 {
			s.selected--
		}
		return s, nil
	case "down":
		if s.selected < len(s.filtered)-1 {
			s.selected++
		}
		return s, nil
	case "backspace":
		if s.filter != "" {
			s.filter = s.filter[:len(s.filter)-1]
			s.applyFilter()
		}
		return s, nil
	}
	k := key.Key()
	switch k.Code {
	case tea.KeyEnter:
		if s.onApply != nil && s.selected < len(s.filtered) {
			return s, s.onApply(s.filtered[s.selected].value)
		}
		return s, nil
	}
	if k.Text != "" && k.Mod == 0 {
		s.filter += k.Text
		s.applyFilter()
	}
	return s, nil
}

func (s *listSelector) View() string {
	rows := s.height
	if s.filter != "" {
		rows--
	}
	start := 0
	if rows > 0 && s.selected >= rows {
		start = s.selected - rows + 1
	}
	var b strings.Builder
	if s.filter != "" {
		b.WriteString(ModalItemStyle.Render(pad("/"+s.filter, s.width)))
		b.WriteString("\n")
	}
	for i := start; i < len(s.filtered) && i-start < rows; i++ {
		style := ModalItemStyle
		if i == s.selected {
			style = ModalItemSelectedStyle
		}
		b.WriteString(style.Render(pad(s.filtered[i].label, s.width)))
		if i < len(s.filtered)-1 && i-start < rows-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FooterHints wires the modal footer hints.
func (s *listSelector) FooterHints() [][2]string {
	return [][2]string{{"Enter", "Select"}, {"Type", "Filter"}}
}
