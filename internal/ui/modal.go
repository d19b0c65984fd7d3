package ui

import (
	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/kmirror-dev/kmirror/internal/overlay"
)

// ModalFooterHints lets modal content contribute key hints to the function
// key bar while the modal is open.
type ModalFooterHints interface {
	FooterHints() [][2]string
}

// Modal frames one content model as a centered window over the main view.
// Esc closes it; everything else goes to the content.
type Modal struct {
	title     string
	content   tea.Model
	winWidth  int
	winHeight int
	onClose   func() tea.Cmd
}

// NewModal creates a modal window of the given inner size.
func NewModal(title string, content tea.Model, width, height int) *Modal {
	return &Modal{title: title, content: content, winWidth: width, winHeight: height}
}

func (m *Modal) Init() tea.Cmd { return m.content.Init() }

// SetOnClose sets the callback invoked when the modal closes itself via Esc.
func (m *Modal) SetOnClose(fn func() tea.Cmd) { m.onClose = fn }

func (m *Modal) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		if m.onClose != nil {
			return m, m.onClose()
		}
		return m, nil
	}
	content, cmd := m.content.Update(msg)
	m.content = content
	return m, cmd
}

// Overlay renders the modal centered over base, sized to fit.
func (m *Modal) Overlay(base string, width, height int) string {
	winW := min(m.winWidth, max(10, width-4))
	winH := min(m.winHeight, max(4, height-3))
	innerW := max(1, winW-2)
	innerH := max(1, winH-2)
	if setter, ok := m.content.(interface{ SetDimensions(int, int) }); ok {
		setter.SetDimensions(innerW, innerH)
	}
	inner := ""
	if viewable, ok := m.content.(interface{ View() string }); ok {
		inner = viewable.View()
	}
	box := ModalStyle.Width(winW).Height(winH).Render(
		ModalItemStyle.Width(innerW).Height(innerH).Render(inner))
	titled := overlay.Composite(ModalTitleStyle.Render(m.title), box, overlay.Center, overlay.Top, 0, 0)
	return overlay.Composite(titled, base, overlay.Center, overlay.Center, 0, -1)
}

// FooterHints forwards the content's hints, with Esc always present.
func (m *Modal) FooterHints() [][2]string {
	hints := [][2]string{{"Esc", "Close"}}
	if provider, ok := m.content.(ModalFooterHints); ok {
		hints = append(hints, provider.FooterHints()...)
	}
	return hints
}
