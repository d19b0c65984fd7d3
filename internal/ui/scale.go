package ui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
)

// scaleModel is a minimal numeric input for the desired replica count.
type scaleModel struct {
	width, height int
	target        string
	digits        string
	err           string
	onApply       func(replicas int64) tea.Cmd
}

func newScaleModel(target string, current int64, onApply func(int64) tea.Cmd) *scaleModel {
	return &scaleModel{target: target, digits: strconv.FormatInt(current, 10), onApply: onApply}
}

func (m *scaleModel) Init() tea.Cmd          { return nil }
func (m *scaleModel) SetDimensions(w, h int) { m.width, m.height = w, h }

func (m *scaleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "backspace", "ctrl+h":
		if m.digits != "" {
			m.digits = m.digits[:len(m.digits)-1]
		}
		return m, nil
	case "enter":
		replicas, err := strconv.ParseInt(m.digits, 10, 64)
		if err != nil || replicas < 0 {
			m.err = "Enter a non-negative number"
			return m, nil
		}
		return m, m.onApply(replicas)
	}
	if text := key.Key().Text; len(text) == 1 && text[0] >= '0' && text[0] <= '9' {
		if len(m.digits) < 6 {
			m.digits += text
			m.err = ""
		}
	}
	return m, nil
}

func (m *scaleModel) View() string {
	bg := lipgloss.NewStyle().
		Background(lipgloss.Color(ColorCyan)).
		Foreground(lipgloss.Color(ColorBlack)).
		Width(m.width)
	title := bg.Bold(true).Align(lipgloss.Center).Render(fmt.Sprintf("Scale %s to", m.target))
	field := m.digits + "_"
	input := bg.Align(lipgloss.Center).Render(
		lipgloss.NewStyle().
			Background(lipgloss.Color(ColorBlack)).
			Foreground(lipgloss.Color(ColorWhite)).
			Width(10).
			Render(field))
	lines := []string{title, bg.Render(""), input}
	if m.err != "" {
		lines = append(lines, bg.Render(""), bg.Foreground(lipgloss.Color(ColorRed)).Align(lipgloss.Center).Render(m.err))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// FooterHints wires the modal footer hints.
func (m *scaleModel) FooterHints() [][2]string {
	return [][2]string{{"Enter", "Scale"}}
}

func replicasOf(obj map[string]any) int64 {
	spec, ok := obj["spec"].(map[string]any)
	if !ok {
		return 1
	}
	switch v := spec["replicas"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 1
	}
}
