package ui

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	yaml "sigs.k8s.io/yaml"

	"github.com/kmirror-dev/kmirror/internal/overlay"
	"github.com/kmirror-dev/kmirror/pkg/appconfig"
	"github.com/kmirror-dev/kmirror/pkg/mirror"
	"github.com/kmirror-dev/kmirror/pkg/resources"
)

// Engine is the slice of the mirror engine the UI consumes. *mirror.Engine
// satisfies it; tests substitute a stub.
type Engine interface {
	Connect(ctx context.Context, name string) error
	Select(ctx context.Context, gvk schema.GroupVersionKind) error
	SetNamespaces(ctx context.Context, namespaces []string) error
	OnChange(fn func())

	Items() []*unstructured.Unstructured
	Loading() bool
	HasInitialData() bool
	IsChangingNamespace() bool
	Err() string
	ConnectionState() mirror.ConnState
	ConnectionError() string
	SelectedContext() string
	AttemptedContext() string
	CurrentKind() (schema.GroupVersionKind, bool)
	Namespaces() []string
	SelectedNamespaces() []string
	Contexts() []resources.Context
}

// engineChangedMsg tells the UI the engine's externally visible state moved.
type engineChangedMsg struct{}

type connectDoneMsg struct {
	name string
	err  error
}

type selectDoneMsg struct {
	gvk schema.GroupVersionKind
	err error
}

type scopeDoneMsg struct{ err error }

type mutateDoneMsg struct {
	action string
	err    error
}

// App is the single-panel kmirror TUI.
type App struct {
	engine  Engine
	mutator resources.Mutator
	kinds   *resources.Kinds
	cfg     *appconfig.Config
	log     logr.Logger
	ctx     context.Context

	width  int
	height int

	table *itemTable
	modal *Modal

	toast      *toaster
	toastText  string
	toastUntil time.Time

	initialContext string
}

// Invariant: a.cfg is always non-nil; NewApp falls back to defaults.

// NewApp wires the TUI over an engine and the mutation client.
func NewApp(ctx context.Context, engine Engine, mutator resources.Mutator, kinds *resources.Kinds, cfg *appconfig.Config, log logr.Logger) *App {
	if cfg == nil {
		cfg = appconfig.Default()
	}
	return &App{
		engine:  engine,
		mutator: mutator,
		kinds:   kinds,
		cfg:     cfg,
		log:     log.WithName("ui"),
		ctx:     ctx,
		table:   newItemTable(),
		toast:   newToaster(2 * time.Second),
	}
}

// SetInitialContext makes Init connect to the named context.
func (a *App) SetInitialContext(name string) { a.initialContext = name }

func (a *App) Init() tea.Cmd {
	if a.initialContext == "" {
		return nil
	}
	return a.connectCmd(a.initialContext)
}

func (a *App) connectCmd(name string) tea.Cmd {
	return func() tea.Msg {
		return connectDoneMsg{name: name, err: a.engine.Connect(a.ctx, name)}
	}
}

func (a *App) selectCmd(gvk schema.GroupVersionKind) tea.Cmd {
	return func() tea.Msg {
		return selectDoneMsg{gvk: gvk, err: a.engine.Select(a.ctx, gvk)}
	}
}

func (a *App) scopeCmd(scope []string) tea.Cmd {
	return func() tea.Msg {
		return scopeDoneMsg{err: a.engine.SetNamespaces(a.ctx, scope)}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.table.SetDimensions(a.width, a.tableHeight())
		return a, nil

	case engineChangedMsg:
		a.refreshTable()
		return a, nil

	case connectDoneMsg:
		if msg.err != nil {
			// the classified message is already on the status line; the toast
			// just draws the eye
			return a, a.toast.Error("connect failed")
		}
		return a, a.restoreContextSelection(msg.name)

	case selectDoneMsg:
		if msg.err != nil {
			return a, a.toast.Error(msg.err.Error())
		}
		a.rememberKind(msg.gvk)
		a.refreshTable()
		return a, nil

	case scopeDoneMsg:
		if msg.err != nil {
			return a, a.toast.Error(msg.err.Error())
		}
		a.rememberScope()
		a.refreshTable()
		return a, nil

	case mutateDoneMsg:
		if msg.err != nil {
			return a, a.toast.Error(fmt.Sprintf("%s: %v", msg.action, msg.err))
		}
		return a, nil

	case showToastMsg:
		a.toastText = msg.text
		a.toastUntil = time.Now().Add(msg.ttl)
		return a, tea.Tick(msg.ttl, func(time.Time) tea.Msg { return toastTickMsg{} })

	case toastTickMsg:
		if time.Now().After(a.toastUntil) {
			a.toastText = ""
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.modal != nil {
		model, cmd := a.modal.Update(msg)
		if a.modal != nil { // a callback may have closed it
			a.modal = model.(*Modal)
		}
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.modal != nil {
		model, cmd := a.modal.Update(key)
		if a.modal != nil { // a callback may have closed it
			a.modal = model.(*Modal)
		}
		return a, cmd
	}

	switch key.String() {
	case "ctrl+c", "q", "f10":
		return a, tea.Quit
	case "f2", "k":
		a.openKindSelector()
		return a, nil
	case "f9", "c":
		a.openContextSelector()
		return a, nil
	case "n":
		a.openNamespacePicker()
		return a, nil
	case "f3", "v":
		return a, a.openYAMLViewer()
	case "f8", "d":
		a.openDeleteConfirm()
		return a, nil
	case "s":
		a.openScalePrompt()
		return a, nil
	case "r":
		if gvk, ok := a.engine.CurrentKind(); ok {
			return a, a.selectCmd(gvk)
		}
		return a, nil
	}

	model, cmd := a.table.Update(key)
	a.table = model.(*itemTable)
	return a, cmd
}

func (a *App) refreshTable() {
	namespaced := false
	if gvk, ok := a.engine.CurrentKind(); ok {
		namespaced = a.kinds.Namespaced(gvk)
	}
	a.table.SetItems(a.engine.Items(), namespaced)
}

func (a *App) closeModal() tea.Cmd {
	a.modal = nil
	return nil
}

func (a *App) openModal(title string, content tea.Model, w, h int) {
	m := NewModal(title, content, w, h)
	m.SetOnClose(a.closeModal)
	a.modal = m
}

func (a *App) openKindSelector() {
	var entries []listEntry
	seen := map[string]bool{}
	for _, fav := range a.cfg.Favourites {
		if gvk, ok := a.parseKind(fav); ok {
			entries = append(entries, listEntry{label: "★ " + kindLabel(gvk), value: fav})
			seen[fav] = true
		}
	}
	for _, info := range a.kinds.All() {
		key := kindKey(info.GVK)
		if seen[key] {
			continue
		}
		entries = append(entries, listEntry{label: kindLabel(info.GVK), value: key})
	}
	selector := newListSelector(entries, func(value string) tea.Cmd {
		gvk, ok := a.parseKind(value)
		if !ok {
			return nil
		}
		closeCmd := a.closeModal()
		return tea.Batch(closeCmd, a.selectCmd(gvk))
	})
	if gvk, ok := a.engine.CurrentKind(); ok {
		selector.Preselect(kindKey(gvk))
	}
	a.openModal("Resource kind", selector, 44, 18)
}

func (a *App) openContextSelector() {
	var entries []listEntry
	for _, ctx := range a.engine.Contexts() {
		label := ctx.Name
		if ctx.Cluster != "" {
			label += "  (" + ctx.Cluster + ")"
		}
		entries = append(entries, listEntry{label: label, value: ctx.Name})
	}
	selector := newListSelector(entries, func(name string) tea.Cmd {
		closeCmd := a.closeModal()
		return tea.Batch(closeCmd, a.connectCmd(name))
	})
	selector.Preselect(a.engine.SelectedContext())
	a.openModal("Cluster context", selector, 52, 14)
}

func (a *App) openNamespacePicker() {
	available := a.engine.Namespaces()
	if len(available) == 0 {
		return
	}
	picker := newNsPicker(available, a.engine.SelectedNamespaces(), func(scope []string) tea.Cmd {
		closeCmd := a.closeModal()
		return tea.Batch(closeCmd, a.scopeCmd(scope))
	})
	a.openModal("Namespaces", picker, 40, 16)
}

func (a *App) openYAMLViewer() tea.Cmd {
	obj := a.table.Selected()
	if obj == nil {
		return nil
	}
	data, err := yaml.Marshal(obj.Object)
	if err != nil {
		return a.toast.Error(fmt.Sprintf("render yaml: %v", err))
	}
	viewer := newYAMLViewer(string(data), a.cfg.Viewer.Theme)
	title := obj.GetKind() + " " + obj.GetName()
	a.openModal(title, viewer, max(60, a.width-10), max(12, a.height-6))
	return nil
}

func (a *App) openDeleteConfirm() {
	obj := a.table.Selected()
	if obj == nil {
		return
	}
	gvk := obj.GroupVersionKind()
	namespace, name := obj.GetNamespace(), obj.GetName()
	confirm := newConfirmModel(deleteQuestion(gvk.Kind, namespace, name), func(confirmed bool) tea.Cmd {
		closeCmd := a.closeModal()
		if !confirmed {
			return closeCmd
		}
		return tea.Batch(closeCmd, func() tea.Msg {
			return mutateDoneMsg{action: "delete " + name, err: a.mutator.Delete(a.ctx, gvk, namespace, name)}
		})
	})
	a.openModal("Delete", confirm, 56, 6)
}

func (a *App) openScalePrompt() {
	obj := a.table.Selected()
	if obj == nil {
		return
	}
	gvk := obj.GroupVersionKind()
	namespace, name := obj.GetNamespace(), obj.GetName()
	prompt := newScaleModel(gvk.Kind+" "+name, replicasOf(obj.Object), func(replicas int64) tea.Cmd {
		closeCmd := a.closeModal()
		return tea.Batch(closeCmd, func() tea.Msg {
			return mutateDoneMsg{action: "scale " + name, err: a.mutator.Scale(a.ctx, gvk, namespace, name, replicas)}
		})
	})
	a.openModal("Scale", prompt, 40, 8)
}

// restoreContextSelection re-applies the remembered scope and kind after a
// successful connect. The scope must be applied before the kind subscribes,
// so both run in one command.
func (a *App) restoreContextSelection(name string) tea.Cmd {
	cc, ok := a.cfg.Contexts[name]
	if !ok {
		return nil
	}
	gvk, hasKind := a.parseKind(cc.Kind)
	if len(cc.Namespaces) == 0 && !hasKind {
		return nil
	}
	return func() tea.Msg {
		if len(cc.Namespaces) > 0 {
			if err := a.engine.SetNamespaces(a.ctx, cc.Namespaces); err != nil {
				return scopeDoneMsg{err: err}
			}
		}
		if hasKind {
			return selectDoneMsg{gvk: gvk, err: a.engine.Select(a.ctx, gvk)}
		}
		return scopeDoneMsg{}
	}
}

func (a *App) rememberKind(gvk schema.GroupVersionKind) {
	name := a.engine.SelectedContext()
	if name == "" {
		return
	}
	cc := a.cfg.Contexts[name]
	cc.Kind = kindKey(gvk)
	a.cfg.Contexts[name] = cc
	a.saveConfig()
}

func (a *App) rememberScope() {
	name := a.engine.SelectedContext()
	if name == "" {
		return
	}
	cc := a.cfg.Contexts[name]
	cc.Namespaces = a.engine.SelectedNamespaces()
	a.cfg.Contexts[name] = cc
	a.saveConfig()
}

func (a *App) saveConfig() {
	if err := appconfig.Save(a.cfg); err != nil {
		a.log.V(1).Info("saving config", "error", err)
	}
}

func kindKey(gvk schema.GroupVersionKind) string {
	if gvk.Group == "" {
		return gvk.Version + "/" + gvk.Kind
	}
	return gvk.Group + "/" + gvk.Version + "/" + gvk.Kind
}

func kindLabel(gvk schema.GroupVersionKind) string {
	if gvk.Group == "" {
		return gvk.Kind
	}
	return gvk.Kind + "." + gvk.Group
}

func (a *App) parseKind(key string) (schema.GroupVersionKind, bool) {
	parts := strings.Split(key, "/")
	switch len(parts) {
	case 2:
		return schema.GroupVersionKind{Version: parts[0], Kind: parts[1]}, true
	case 3:
		return schema.GroupVersionKind{Group: parts[0], Version: parts[1], Kind: parts[2]}, true
	default:
		return schema.GroupVersionKind{}, false
	}
}

func (a *App) tableHeight() int {
	// header, status line, function key bar
	return max(0, a.height-3)
}

func (a *App) headerView() string {
	state := a.engine.ConnectionState()
	ctx := a.engine.SelectedContext()
	if state != mirror.StateConnected {
		ctx = a.engine.AttemptedContext()
	}
	left := fmt.Sprintf(" kmirror  %s [%s]", ctx, state)
	if gvk, ok := a.engine.CurrentKind(); ok {
		left += "  " + kindLabel(gvk)
		left += "  ns:" + scopeLabel(a.engine.SelectedNamespaces())
	}
	right := fmt.Sprintf("%d items ", len(a.engine.Items()))
	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right))
	return HeaderStyle.Render(pad(left+strings.Repeat(" ", gap)+right, a.width))
}

func scopeLabel(scope []string) string {
	if scope == nil {
		return "*"
	}
	if len(scope) == 0 {
		return "-"
	}
	if len(scope) > 2 {
		return fmt.Sprintf("%s,+%d", scope[0], len(scope)-1)
	}
	return strings.Join(scope, ",")
}

func (a *App) statusView() string {
	if msg := a.engine.ConnectionError(); msg != "" {
		return StatusErrorStyle.Render(pad(" "+msg, a.width))
	}
	if msg := a.engine.Err(); msg != "" {
		return StatusErrorStyle.Render(pad(" "+msg, a.width))
	}
	var parts []string
	if a.engine.Loading() {
		parts = append(parts, "loading…")
	}
	if a.engine.IsChangingNamespace() {
		parts = append(parts, "changing namespace…")
	}
	if !a.engine.HasInitialData() && a.engine.ConnectionState() == mirror.StateConnected {
		parts = append(parts, "waiting for data")
	}
	return StatusStyle.Render(pad(" "+strings.Join(parts, "  "), a.width))
}

func (a *App) footerView() string {
	hints := [][2]string{
		{"F2", "Kind"}, {"n", "Namespaces"}, {"F9", "Context"},
		{"F3", "View"}, {"F8", "Delete"}, {"s", "Scale"}, {"F10", "Quit"},
	}
	if a.modal != nil {
		hints = a.modal.FooterHints()
	}
	var b strings.Builder
	for i, kv := range hints {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(FunctionKeyStyle.Render(kv[0]))
		b.WriteString(FunctionKeyDescriptionStyle.Render(kv[1]))
	}
	return FunctionKeyBarStyle.Width(a.width).Render(b.String())
}

func (a *App) View() (string, *tea.Cursor) {
	if a.width <= 0 || a.height <= 0 {
		return "", nil
	}
	a.table.SetDimensions(a.width, a.tableHeight())
	body := a.table.View()
	if a.toastText != "" {
		body = overlay.Composite(ToastStyle.Render(a.toastText), body, overlay.Right, overlay.Top, -1, 0)
	}
	main := lipgloss.JoinVertical(lipgloss.Left, a.headerView(), body, a.statusView(), a.footerView())
	if a.modal != nil {
		main = a.modal.Overlay(main, a.width, a.height)
	}
	return main, nil
}

// Run drives the TUI until quit. The engine's change notifications are
// forwarded into the bubbletea loop.
func Run(ctx context.Context, app *App) error {
	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	app.engine.OnChange(func() { p.Send(engineChangedMsg{}) })

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			p.Quit()
		case <-ctx.Done():
			p.Quit()
		}
	}()

	_, err := p.Run()
	return err
}
