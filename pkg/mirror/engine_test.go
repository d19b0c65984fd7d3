package mirror

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	kmtesting "github.com/kmirror-dev/kmirror/internal/testing"
	"github.com/kmirror-dev/kmirror/pkg/resources"
)

// subscribeCall is handed out by the fake while blocking mode is on, so tests
// can order the completion of in-flight subscribes.
type subscribeCall struct {
	key     resources.Key
	release chan struct{}
}

type fakeClient struct {
	mu             sync.Mutex
	contexts       []resources.Context
	current        string
	connectErrs    map[string]error
	connectGate    map[string]chan struct{}
	namespaces     []string
	namespacesErr  error
	snapshots      map[resources.Key][]*unstructured.Unstructured
	subscribeErrs  map[resources.Key]error
	block          bool
	started        chan subscribeCall
	events         chan resources.Event
	subscribes     []resources.Key
	unsubscribes   []resources.Key
	unsubscribeErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		current:       "dev",
		contexts:      []resources.Context{{Name: "dev"}, {Name: "prod"}},
		namespaces:    []string{"default", "kube-system"},
		connectErrs:   map[string]error{},
		connectGate:   map[string]chan struct{}{},
		snapshots:     map[resources.Key][]*unstructured.Unstructured{},
		subscribeErrs: map[resources.Key]error{},
		started:       make(chan subscribeCall, 8),
		events:        make(chan resources.Event, 64),
	}
}

func (f *fakeClient) Subscribe(ctx context.Context, key resources.Key) ([]*unstructured.Unstructured, error) {
	f.mu.Lock()
	f.subscribes = append(f.subscribes, key)
	blocked := f.block
	snapshot := f.snapshots[key]
	err := f.subscribeErrs[key]
	f.mu.Unlock()
	if blocked {
		call := subscribeCall{key: key, release: make(chan struct{})}
		f.started <- call
		select {
		case <-call.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return snapshot, err
}

func (f *fakeClient) Unsubscribe(ctx context.Context, key resources.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes = append(f.unsubscribes, key)
	return f.unsubscribeErr
}

func (f *fakeClient) Events() <-chan resources.Event { return f.events }

func (f *fakeClient) ListContexts() []resources.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contexts
}

func (f *fakeClient) CurrentContext() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeClient) Connect(ctx context.Context, name string) error {
	f.mu.Lock()
	gate := f.connectGate[name]
	err := f.connectErrs[name]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeClient) ListNamespaces(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.namespaces, f.namespacesErr
}

func (f *fakeClient) setSnapshot(key resources.Key, objs ...*unstructured.Unstructured) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[key] = objs
}

func (f *fakeClient) setBlocking(block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = block
}

func (f *fakeClient) push(ev resources.Event) { f.events <- ev }

func (f *fakeClient) subscribed() []resources.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resources.Key(nil), f.subscribes...)
}

func (f *fakeClient) unsubscribed() []resources.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resources.Key(nil), f.unsubscribes...)
}

// startEngine wires an engine to the fake with compressed timings and runs
// the event pump for the duration of the test.
func startEngine(t *testing.T, f *fakeClient, opts Options) *Engine {
	t.Helper()
	if opts.BatchWindow == 0 {
		opts.BatchWindow = 40 * time.Millisecond
	}
	if opts.SelectFallback == 0 {
		opts.SelectFallback = 150 * time.Millisecond
	}
	if opts.NamespaceFallback == 0 {
		opts.NamespaceFallback = 120 * time.Millisecond
	}
	e := New(f, resources.NewKinds(), opts)
	go e.Run(t.Context())
	t.Cleanup(e.Close)
	return e
}

func connect(t *testing.T, e *Engine, name string) {
	t.Helper()
	if err := e.Connect(t.Context(), name); err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
}

func itemNames(e *Engine) []string {
	var names []string
	for _, obj := range e.Items() {
		names = append(names, itemID(obj))
	}
	return names
}

func hasItem(e *Engine, id string) bool {
	for _, obj := range e.Items() {
		if itemID(obj) == id {
			return true
		}
	}
	return false
}

func TestConnectSelectsDefaultNamespace(t *testing.T) {
	f := newFakeClient()
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if got := e.ConnectionState(); got != StateConnected {
		t.Fatalf("expected connected, got %v", got)
	}
	if got := e.SelectedContext(); got != "dev" {
		t.Fatalf("expected selected context dev, got %q", got)
	}
	if got := e.SelectedNamespaces(); len(got) != 1 || got[0] != "default" {
		t.Fatalf("expected scope [default], got %v", got)
	}
	if got := e.Namespaces(); len(got) != 2 {
		t.Fatalf("expected 2 namespaces, got %v", got)
	}
}

func TestConnectFallsBackToFirstNamespace(t *testing.T) {
	f := newFakeClient()
	f.namespaces = []string{"alpha", "beta"}
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if got := e.SelectedNamespaces(); len(got) != 1 || got[0] != "alpha" {
		t.Fatalf("expected scope [alpha], got %v", got)
	}
}

func TestConnectWithoutNamespacesKeepsEmptyScope(t *testing.T) {
	f := newFakeClient()
	f.namespaces = nil
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	got := e.SelectedNamespaces()
	if got == nil {
		t.Fatalf("expected an explicit empty scope, got nil (all namespaces)")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty scope, got %v", got)
	}
}

func TestConnectNamespaceListFailureStaysConnected(t *testing.T) {
	f := newFakeClient()
	f.namespacesErr = errors.New("namespaces is forbidden")
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if got := e.ConnectionState(); got != StateConnected {
		t.Fatalf("expected connected despite namespace list failure, got %v", got)
	}
	if got := e.SelectedNamespaces(); got == nil || len(got) != 0 {
		t.Fatalf("expected empty scope, got %v", got)
	}
}

func TestConnectFailureClassified(t *testing.T) {
	f := newFakeClient()
	f.connectErrs["prod"] = errors.New("dial tcp 10.0.0.1:6443: connect: connection refused")
	e := startEngine(t, f, Options{})

	if err := e.Connect(t.Context(), "prod"); err == nil {
		t.Fatalf("expected connect error")
	}
	if got := e.ConnectionState(); got != StateFailed {
		t.Fatalf("expected failed, got %v", got)
	}
	msg := e.ConnectionError()
	if !strings.Contains(msg, "Cannot reach the cluster") {
		t.Fatalf("expected a reachability message, got %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Fatalf("expected the original error text retained, got %q", msg)
	}
	if got := e.AttemptedContext(); got != "prod" {
		t.Fatalf("expected attempted context prod, got %q", got)
	}
	if got := e.SelectedContext(); got != "" {
		t.Fatalf("expected no selected context, got %q", got)
	}
}

func TestFailedConnectKeepsSelectedContext(t *testing.T) {
	f := newFakeClient()
	f.connectErrs["prod"] = errors.New("Unauthorized")
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if err := e.Connect(t.Context(), "prod"); err == nil {
		t.Fatalf("expected connect error")
	}
	if got := e.SelectedContext(); got != "dev" {
		t.Fatalf("expected selected context to remain dev, got %q", got)
	}
	if got := e.AttemptedContext(); got != "prod" {
		t.Fatalf("expected attempted context prod, got %q", got)
	}
	if got := e.ConnectionState(); got != StateFailed {
		t.Fatalf("expected failed, got %v", got)
	}
}

func TestFailedConnectKeepsWorkingView(t *testing.T) {
	f := newFakeClient()
	key := resources.Key{GVK: podGVK, Namespace: "default"}
	f.setSnapshot(key, pod("default", "web"))
	f.connectErrs["prod"] = errors.New("Unauthorized")
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := e.Connect(t.Context(), "prod"); err == nil {
		t.Fatalf("expected connect error")
	}

	if !hasItem(e, "default/web") {
		t.Fatalf("expected the working view retained, got %v", itemNames(e))
	}
	if gvk, ok := e.CurrentKind(); !ok || gvk != podGVK {
		t.Fatalf("expected the subscription retained, got %v ok=%v", gvk, ok)
	}
	if !e.HasInitialData() {
		t.Fatalf("expected the settled view to stay settled")
	}
	if got := f.unsubscribed(); len(got) != 0 {
		t.Fatalf("expected no unsubscribe on a failed attempt, got %v", got)
	}

	// the still-selected context keeps folding its events
	f.push(resources.Event{Type: resources.Added, Context: "dev", Object: pod("default", "web-2")})
	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return hasItem(e, "default/web-2")
	}, "events from the prior context stopped folding after a failed connect")
}

func TestConnectSupersededByNewerConnect(t *testing.T) {
	f := newFakeClient()
	gate := make(chan struct{})
	f.connectGate["prod"] = gate
	e := startEngine(t, f, Options{})

	done := make(chan error, 1)
	go func() { done <- e.Connect(context.Background(), "prod") }()
	kmtesting.Eventually(t, time.Second, 2*time.Millisecond, func() bool {
		return e.ConnectionState() == StateConnecting
	}, "connect attempt did not start")

	connect(t, e, "dev")
	close(gate)
	<-done

	if got := e.SelectedContext(); got != "dev" {
		t.Fatalf("expected the newer connect to win, got %q", got)
	}
	if got := e.ConnectionState(); got != StateConnected {
		t.Fatalf("expected connected, got %v", got)
	}
}

func TestSelectNonEmptySnapshotSettlesImmediately(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"},
		pod("default", "web-1"), pod("default", "web-2"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := itemNames(e); len(got) != 2 {
		t.Fatalf("expected 2 items, got %v", got)
	}
	if !e.HasInitialData() {
		t.Fatalf("expected a non-empty snapshot to settle immediately")
	}
	if e.Loading() {
		t.Fatalf("expected loading to be done")
	}
}

func TestSelectEmptySnapshotSettlesAfterFallback(t *testing.T) {
	f := newFakeClient()
	e := startEngine(t, f, Options{SelectFallback: 80 * time.Millisecond})
	connect(t, e, "dev")

	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}
	if e.Loading() {
		t.Fatalf("expected loading to be done after the snapshot returned")
	}
	if e.HasInitialData() {
		t.Fatalf("expected an empty snapshot to stay unsettled at first")
	}
	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, e.HasInitialData,
		"empty view did not settle via the fallback")
	if got := e.Items(); len(got) != 0 {
		t.Fatalf("expected an empty settled view, got %d items", len(got))
	}
}

func TestSelectErrorSurfacesAndSettles(t *testing.T) {
	f := newFakeClient()
	key := resources.Key{GVK: podGVK, Namespace: "default"}
	f.subscribeErrs[key] = errors.New("the server could not find the requested resource")
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if err := e.Select(t.Context(), podGVK); err == nil {
		t.Fatalf("expected select to fail")
	}
	if got := e.Err(); !strings.Contains(got, "subscribe Pod") {
		t.Fatalf("expected a subscribe error message, got %q", got)
	}
	if !e.HasInitialData() {
		t.Fatalf("expected a failed subscribe to settle the view")
	}
	if got := e.Items(); len(got) != 0 {
		t.Fatalf("expected no items after a failed subscribe, got %d", len(got))
	}
}

func TestSelectWithoutConnectionFails(t *testing.T) {
	f := newFakeClient()
	e := startEngine(t, f, Options{})
	if err := e.Select(t.Context(), podGVK); err == nil {
		t.Fatalf("expected select without a connection to fail")
	}
}

func TestEventsCoalesceIntoOneFold(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"}, pod("default", "existing"))
	e := startEngine(t, f, Options{BatchWindow: 100 * time.Millisecond})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	var folds atomic.Int32
	e.OnChange(func() { folds.Add(1) })

	f.push(resources.Event{Type: resources.Added, Context: "dev", Object: pod("default", "tmp")})
	f.push(resources.Event{Type: resources.Deleted, Context: "dev", Object: pod("default", "tmp")})

	kmtesting.Eventually(t, 2*time.Second, 5*time.Millisecond, func() bool {
		return folds.Load() >= 1
	}, "batch never folded")
	if got := folds.Load(); got != 1 {
		t.Fatalf("expected exactly one fold for one batch, got %d", got)
	}
	if hasItem(e, "default/tmp") {
		t.Fatalf("expected add+delete within one window to net out")
	}
	if !hasItem(e, "default/existing") {
		t.Fatalf("expected unrelated item to survive")
	}
}

func TestEventRestartsBatchWindow(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"}, pod("default", "existing"))
	e := startEngine(t, f, Options{BatchWindow: 150 * time.Millisecond})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	var folds atomic.Int32
	e.OnChange(func() { folds.Add(1) })

	for _, name := range []string{"a", "b", "c"} {
		f.push(resources.Event{Type: resources.Added, Context: "dev", Object: pod("default", name)})
		time.Sleep(50 * time.Millisecond)
	}

	kmtesting.Eventually(t, 2*time.Second, 5*time.Millisecond, func() bool {
		return folds.Load() >= 1
	}, "batch never folded")
	if got := folds.Load(); got != 1 {
		t.Fatalf("expected the window to restart and fold once, got %d folds", got)
	}
	for _, id := range []string{"default/a", "default/b", "default/c"} {
		if !hasItem(e, id) {
			t.Fatalf("expected %s in items, got %v", id, itemNames(e))
		}
	}
}

func TestNamespaceChangeRetainsItemsUntilSettle(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"}, pod("default", "web"))
	e := startEngine(t, f, Options{NamespaceFallback: 100 * time.Millisecond})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := e.SetNamespaces(t.Context(), []string{"kube-system"}); err != nil {
		t.Fatalf("set namespaces: %v", err)
	}
	// the empty snapshot for the new scope must not flash an empty view
	if !hasItem(e, "default/web") {
		t.Fatalf("expected prior items retained during the transition, got %v", itemNames(e))
	}
	if !e.IsChangingNamespace() {
		t.Fatalf("expected a namespace transition in progress")
	}
	if e.HasInitialData() {
		t.Fatalf("expected the transition to be unsettled")
	}

	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return !e.IsChangingNamespace() && e.HasInitialData()
	}, "transition did not settle via the fallback")
	if got := e.Items(); len(got) != 0 {
		t.Fatalf("expected out-of-scope items pruned at settle, got %v", itemNames(e))
	}
}

func TestModifiedOutOfScopeRemovesDuringTransition(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"}, pod("default", "web"))
	e := startEngine(t, f, Options{NamespaceFallback: 2 * time.Second})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := e.SetNamespaces(t.Context(), []string{"kube-system"}); err != nil {
		t.Fatalf("set namespaces: %v", err)
	}
	f.push(resources.Event{Type: resources.Modified, Context: "dev", Object: pod("default", "web")})

	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return len(e.Items()) == 0
	}, "modified out-of-scope item was not removed")
}

func TestDoubleNamespaceChangeSettlesOnce(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"}, pod("default", "web"))
	e := startEngine(t, f, Options{NamespaceFallback: 100 * time.Millisecond})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	var mu sync.Mutex
	var seq []bool
	e.OnChange(func() {
		mu.Lock()
		seq = append(seq, e.IsChangingNamespace())
		mu.Unlock()
	})

	f.setBlocking(true)
	go func() { _ = e.SetNamespaces(context.Background(), []string{"kube-system"}) }()
	first := <-f.started
	go func() { _ = e.SetNamespaces(context.Background(), []string{"monitoring"}) }()
	second := <-f.started

	if first.key.Namespace != "kube-system" || second.key.Namespace != "monitoring" {
		t.Fatalf("unexpected subscribe order: %v then %v", first.key, second.key)
	}

	// the first completion is stale and must neither settle nor arm a timer
	close(first.release)
	close(second.release)

	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return !e.IsChangingNamespace() && e.HasInitialData()
	}, "second transition did not settle")

	mu.Lock()
	defer mu.Unlock()
	var flips int
	for i := 1; i < len(seq); i++ {
		if seq[i-1] && !seq[i] {
			flips++
		}
	}
	if flips != 1 {
		t.Fatalf("expected exactly one transition end, got %d (sequence %v)", flips, seq)
	}
}

func TestStaleContextEventsDropped(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"}, pod("default", "web"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	f.push(resources.Event{Type: resources.Added, Context: "prod", Object: pod("default", "ghost")})
	f.push(resources.Event{Type: resources.Added, Context: "dev", Object: pod("default", "real")})

	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return hasItem(e, "default/real")
	}, "event from the selected context was not applied")
	if hasItem(e, "default/ghost") {
		t.Fatalf("expected the event from the abandoned context to be dropped")
	}
}

func TestWrongKindEventsIgnored(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"}, pod("default", "web"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	f.push(resources.Event{Type: resources.Added, Context: "dev", Object: configMap("default", "settings")})
	f.push(resources.Event{Type: resources.Added, Context: "dev", Object: pod("default", "real")})

	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return hasItem(e, "default/real")
	}, "pod event was not applied")
	if hasItem(e, "default/settings") {
		t.Fatalf("expected the event for another kind to be ignored")
	}
}

func TestSyncedSettlesEvenMidTransition(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "default"}, pod("default", "web"))
	e := startEngine(t, f, Options{NamespaceFallback: 5 * time.Second})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := e.SetNamespaces(t.Context(), []string{"kube-system"}); err != nil {
		t.Fatalf("set namespaces: %v", err)
	}

	f.push(resources.Event{Type: resources.Synced, Context: "dev"})

	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return !e.IsChangingNamespace() && e.HasInitialData()
	}, "sync marker did not settle the transition")
	if got := e.Items(); len(got) != 0 {
		t.Fatalf("expected out-of-scope items pruned at settle, got %v", itemNames(e))
	}
}

func TestSyncedFromOtherContextIgnored(t *testing.T) {
	f := newFakeClient()
	e := startEngine(t, f, Options{SelectFallback: 5 * time.Second})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	f.push(resources.Event{Type: resources.Synced, Context: "prod"})

	kmtesting.Consistently(t, 150*time.Millisecond, 10*time.Millisecond, func() bool {
		return !e.HasInitialData()
	}, "sync marker from another context settled the view")
}

func TestConnectTearsDownSubscription(t *testing.T) {
	f := newFakeClient()
	key := resources.Key{GVK: podGVK, Namespace: "default"}
	f.setSnapshot(key, pod("default", "web"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	connect(t, e, "prod")

	if got := e.Items(); len(got) != 0 {
		t.Fatalf("expected the view cleared on context switch, got %v", itemNames(e))
	}
	if _, ok := e.CurrentKind(); ok {
		t.Fatalf("expected no subscription after a context switch")
	}
	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		for _, k := range f.unsubscribed() {
			if k == key {
				return true
			}
		}
		return false
	}, "prior subscription was not dropped")
}

func TestSelectUnsubscribesPriorKind(t *testing.T) {
	f := newFakeClient()
	podKey := resources.Key{GVK: podGVK, Namespace: "default"}
	f.setSnapshot(podKey, pod("default", "web"))
	f.setSnapshot(resources.Key{GVK: cmGVK, Namespace: "default"}, configMap("default", "settings"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select pods: %v", err)
	}
	if err := e.Select(t.Context(), cmGVK); err != nil {
		t.Fatalf("select configmaps: %v", err)
	}

	if !hasItem(e, "default/settings") {
		t.Fatalf("expected configmap items, got %v", itemNames(e))
	}
	kmtesting.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		for _, k := range f.unsubscribed() {
			if k == podKey {
				return true
			}
		}
		return false
	}, "prior kind was not unsubscribed")
}

func TestSetNamespacesBeforeSelectOnlyStoresScope(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK, Namespace: "kube-system"}, pod("kube-system", "dns"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if err := e.SetNamespaces(t.Context(), []string{"kube-system"}); err != nil {
		t.Fatalf("set namespaces: %v", err)
	}
	if got := f.subscribed(); len(got) != 0 {
		t.Fatalf("expected no subscribe without a selected kind, got %v", got)
	}

	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}
	subs := f.subscribed()
	if len(subs) != 1 || subs[0].Namespace != "kube-system" {
		t.Fatalf("expected a narrow subscribe for kube-system, got %v", subs)
	}
	if !hasItem(e, "kube-system/dns") {
		t.Fatalf("expected items from the stored scope, got %v", itemNames(e))
	}
}

func TestSetNamespacesOnClusterScopedKindSkipsResubscribe(t *testing.T) {
	f := newFakeClient()
	node := &unstructured.Unstructured{}
	node.SetAPIVersion("v1")
	node.SetKind("Node")
	node.SetName("worker-1")
	f.setSnapshot(resources.Key{GVK: nodeGVK}, node)
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), nodeGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := e.SetNamespaces(t.Context(), []string{"kube-system"}); err != nil {
		t.Fatalf("set namespaces: %v", err)
	}
	if got := f.subscribed(); len(got) != 1 {
		t.Fatalf("expected no resubscribe for a cluster-scoped kind, got %v", got)
	}
	if !hasItem(e, "worker-1") {
		t.Fatalf("expected nodes unaffected by namespace scope, got %v", itemNames(e))
	}
	if e.IsChangingNamespace() {
		t.Fatalf("expected no namespace transition for a cluster-scoped kind")
	}
}

func TestMultiNamespaceScopeSubscribesBroadly(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK},
		pod("alpha", "x"), pod("beta", "y"), pod("gamma", "z"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if err := e.SetNamespaces(t.Context(), []string{"alpha", "beta"}); err != nil {
		t.Fatalf("set namespaces: %v", err)
	}
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	subs := f.subscribed()
	if len(subs) != 1 || subs[0].Namespace != "" {
		t.Fatalf("expected one broad subscribe, got %v", subs)
	}
	if got := itemNames(e); len(got) != 2 {
		t.Fatalf("expected local filtering to 2 items, got %v", got)
	}
	if hasItem(e, "gamma/z") {
		t.Fatalf("expected gamma/z filtered out, got %v", itemNames(e))
	}
}

func TestNilScopeSelectsEveryNamespace(t *testing.T) {
	f := newFakeClient()
	f.setSnapshot(resources.Key{GVK: podGVK},
		pod("alpha", "x"), pod("beta", "y"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")

	if err := e.SetNamespaces(t.Context(), nil); err != nil {
		t.Fatalf("set namespaces: %v", err)
	}
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := itemNames(e); len(got) != 2 {
		t.Fatalf("expected every namespace in scope, got %v", got)
	}
}

func TestCloseStopsPendingWork(t *testing.T) {
	f := newFakeClient()
	e := startEngine(t, f, Options{SelectFallback: 50 * time.Millisecond})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select: %v", err)
	}

	e.Close()

	kmtesting.Consistently(t, 120*time.Millisecond, 10*time.Millisecond, func() bool {
		return !e.HasInitialData()
	}, "fallback fired after close")
	if err := e.Select(t.Context(), podGVK); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := e.Connect(t.Context(), "dev"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := e.SetNamespaces(t.Context(), nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestUnsubscribeFailureIsIgnored(t *testing.T) {
	f := newFakeClient()
	f.unsubscribeErr = errors.New("stream already closed")
	podKey := resources.Key{GVK: podGVK, Namespace: "default"}
	f.setSnapshot(podKey, pod("default", "web"))
	f.setSnapshot(resources.Key{GVK: cmGVK, Namespace: "default"}, configMap("default", "settings"))
	e := startEngine(t, f, Options{})
	connect(t, e, "dev")
	if err := e.Select(t.Context(), podGVK); err != nil {
		t.Fatalf("select pods: %v", err)
	}

	if err := e.Select(t.Context(), cmGVK); err != nil {
		t.Fatalf("expected unsubscribe failure to stay silent, got %v", err)
	}
	if !hasItem(e, "default/settings") {
		t.Fatalf("expected the new subscription to work, got %v", itemNames(e))
	}
}
