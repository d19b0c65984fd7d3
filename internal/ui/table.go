package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/duration"
)

// itemTable renders the mirror's items as a scrollable table with a cursor.
// The selection is tracked by object identity, so it survives the constant
// item churn of a live view.
type itemTable struct {
	items      []*unstructured.Unstructured
	namespaced bool
	selectedID string
	offset     int
	width      int
	height     int
}

func newItemTable() *itemTable { return &itemTable{} }

func (t *itemTable) SetDimensions(w, h int) {
	t.width, t.height = w, h
	t.scrollToSelection()
}

// SetItems replaces the table contents, keeping the cursor on the same object
// when it still exists and clamping it otherwise.
func (t *itemTable) SetItems(items []*unstructured.Unstructured, namespaced bool) {
	t.items = items
	t.namespaced = namespaced
	if t.indexOf(t.selectedID) < 0 {
		t.clampSelection()
	}
	t.scrollToSelection()
}

// Selected returns the object under the cursor, or nil for an empty table.
func (t *itemTable) Selected() *unstructured.Unstructured {
	if i := t.indexOf(t.selectedID); i >= 0 {
		return t.items[i]
	}
	if len(t.items) > 0 {
		return t.items[0]
	}
	return nil
}

func (t *itemTable) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, obj := range t.items {
		if rowID(obj) == id {
			return i
		}
	}
	return -1
}

func rowID(obj *unstructured.Unstructured) string {
	if ns := obj.GetNamespace(); ns != "" {
		return ns + "/" + obj.GetName()
	}
	return obj.GetName()
}

func (t *itemTable) clampSelection() {
	if len(t.items) == 0 {
		t.selectedID = ""
		return
	}
	t.selectedID = rowID(t.items[0])
}

func (t *itemTable) move(delta int) {
	if len(t.items) == 0 {
		return
	}
	i := t.indexOf(t.selectedID)
	if i < 0 {
		i = 0
	} else {
		i += delta
	}
	if i < 0 {
		i = 0
	}
	if i >= len(t.items) {
		i = len(t.items) - 1
	}
	t.selectedID = rowID(t.items[i])
	t.scrollToSelection()
}

func (t *itemTable) rowsVisible() int {
	// one line is the column header
	return max(0, t.height-1)
}

func (t *itemTable) scrollToSelection() {
	rows := t.rowsVisible()
	if rows == 0 {
		return
	}
	i := t.indexOf(t.selectedID)
	if i < 0 {
		t.offset = 0
		return
	}
	if i < t.offset {
		t.offset = i
	}
	if i >= t.offset+rows {
		t.offset = i - rows + 1
	}
}

func (t *itemTable) Init() tea.Cmd { return nil }

func (t *itemTable) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up":
			t.move(-1)
		case "down":
			t.move(1)
		case "pgup":
			t.move(-max(1, t.rowsVisible()-1))
		case "pgdown":
			t.move(max(1, t.rowsVisible()-1))
		case "home":
			t.move(-len(t.items))
		case "end":
			t.move(len(t.items))
		}
	}
	return t, nil
}

// columns computes the column widths for the current table width. The name
// column takes what the fixed columns leave over.
func (t *itemTable) columns() (name, namespace, age int) {
	age = 8
	if t.namespaced {
		namespace = min(20, max(10, t.width/4))
	}
	name = max(8, t.width-namespace-age-2)
	return name, namespace, age
}

func pad(s string, w int) string {
	s = ansi.Truncate(s, w, "…")
	if gap := w - ansi.StringWidth(s); gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s
}

func (t *itemTable) View() string {
	if t.width <= 0 || t.height <= 0 {
		return ""
	}
	nameW, nsW, ageW := t.columns()

	var b strings.Builder
	header := pad("NAME", nameW)
	if nsW > 0 {
		header += " " + pad("NAMESPACE", nsW)
	}
	header += " " + pad("AGE", ageW)
	b.WriteString(TableHeaderStyle.Render(pad(header, t.width)))

	rows := t.rowsVisible()
	end := min(len(t.items), t.offset+rows)
	for i := t.offset; i < end; i++ {
		obj := t.items[i]
		line := pad(obj.GetName(), nameW)
		if nsW > 0 {
			line += " " + pad(obj.GetNamespace(), nsW)
		}
		line += " " + pad(ageOf(obj), ageW)
		style := RowStyle
		if rowID(obj) == t.selectedID {
			style = RowSelectedStyle
		}
		b.WriteString("\n")
		b.WriteString(style.Render(pad(line, t.width)))
	}
	for i := end - t.offset; i < rows; i++ {
		b.WriteString("\n")
		b.WriteString(RowStyle.Render(pad("", t.width)))
	}
	return b.String()
}

func ageOf(obj *unstructured.Unstructured) string {
	created := obj.GetCreationTimestamp()
	if created.IsZero() {
		return ""
	}
	return duration.HumanDuration(time.Since(created.Time))
}
