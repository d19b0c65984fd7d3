package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
)

// confirmModel renders a Yes/No prompt. The default focus is "No".
type confirmModel struct {
	width, height int
	question      string
	focus         int // 0=yes, 1=no
	onResult      func(confirm bool) tea.Cmd
}

func newConfirmModel(question string, onResult func(bool) tea.Cmd) *confirmModel {
	return &confirmModel{question: question, focus: 1, onResult: onResult}
}

func (m *confirmModel) Init() tea.Cmd          { return nil }
func (m *confirmModel) SetDimensions(w, h int) { m.width, m.height = w, h }

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y":
		return m, m.onResult(true)
	case "n":
		return m, m.onResult(false)
	case "left", "right", "tab":
		m.focus = (m.focus + 1) % 2
		return m, nil
	case "enter":
		return m, m.onResult(m.focus == 0)
	}
	return m, nil
}

func (m *confirmModel) View() string {
	bg := lipgloss.NewStyle().
		Background(lipgloss.Color(ColorCyan)).
		Foreground(lipgloss.Color(ColorBlack)).
		Width(m.width)
	title := bg.Bold(true).Align(lipgloss.Center).Render(m.question)
	yes := m.renderOption("Yes", m.focus == 0)
	no := m.renderOption("No", m.focus == 1)
	sep := bg.Width(1).Render(" ")
	buttons := bg.Align(lipgloss.Center).Render(lipgloss.JoinHorizontal(lipgloss.Center, yes, sep, no))
	spacer := bg.Render("")
	return lipgloss.JoinVertical(lipgloss.Left, title, spacer, buttons)
}

func (m *confirmModel) renderOption(label string, focused bool) string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorBlack)).
		Background(lipgloss.Color(ColorGrey)).
		Width(8).
		Align(lipgloss.Center)
	if focused {
		style = style.
			Foreground(lipgloss.Color(ColorWhite)).
			Background(lipgloss.Color(ColorRed)).
			Bold(true)
	}
	return style.Render(label)
}

// FooterHints wires the modal footer hints.
func (m *confirmModel) FooterHints() [][2]string {
	return [][2]string{{"Enter", "Confirm"}, {"y/n", "Yes/No"}}
}

func deleteQuestion(kind, namespace, name string) string {
	if namespace != "" {
		return fmt.Sprintf("Delete %s %q in namespace %q?", kind, name, namespace)
	}
	return fmt.Sprintf("Delete %s %q?", kind, name)
}
