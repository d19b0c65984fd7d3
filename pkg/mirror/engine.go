package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/kmirror-dev/kmirror/pkg/resources"
)

// ErrClosed is returned by engine operations after Close.
var ErrClosed = errors.New("engine closed")

// Client is the remote surface the engine drives: subscriptions plus context
// management. Mutations happen outside the engine.
type Client interface {
	resources.Subscriber
	resources.ContextClient
}

// Options tune engine timing. The zero value selects production defaults;
// tests compress the durations.
type Options struct {
	// BatchWindow is how long a fold waits after the last accepted event for
	// more events to coalesce. Every accepted event restarts the window.
	BatchWindow time.Duration
	// SelectFallback bounds how long a fresh subscription with an empty
	// snapshot stays unsettled before the empty result is trusted.
	SelectFallback time.Duration
	// NamespaceFallback bounds how long a namespace change keeps the prior
	// items on screen when neither events nor a sync marker arrive.
	NamespaceFallback time.Duration
	Logger            logr.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchWindow <= 0 {
		o.BatchWindow = 50 * time.Millisecond
	}
	if o.SelectFallback <= 0 {
		o.SelectFallback = 2 * time.Second
	}
	if o.NamespaceFallback <= 0 {
		o.NamespaceFallback = time.Second
	}
	if o.Logger.GetSink() == nil {
		o.Logger = logr.Discard()
	}
	return o
}

// Engine keeps a local mirror of one subscribed resource kind together with
// the connection state the mirror depends on. All exported methods are safe
// for concurrent use. The lock is held for local state updates only, never
// across remote calls; every remote completion is generation checked so a
// superseded operation cannot clobber newer state, and every timer callback
// is identity checked so a replaced timer cannot fire stale logic.
type Engine struct {
	client Client
	kinds  *resources.Kinds
	opts   Options
	log    logr.Logger

	mu sync.Mutex

	// connection
	conn         ConnState
	connErr      string
	selectedCtx  string // last successfully connected context
	attemptedCtx string // context of the latest connect attempt
	connGen      uint64

	// namespaces of the connected context
	available []string
	selected  []string // nil selects every namespace

	// subscription
	gvk        schema.GroupVersionKind
	namespaced bool
	hasSub     bool
	subKey     resources.Key
	subGen     uint64

	// mirror
	items      map[string]*unstructured.Unstructured
	hasInitial bool
	loading    bool
	lastErr    string

	// namespace transition
	changingNS bool
	fallback   *delay

	// event batching
	batch      []resources.Event
	batchTimer *delay

	onChange func()
	closed   bool
}

// New creates an engine over client. Kind scopedness is answered by kinds.
func New(client Client, kinds *resources.Kinds, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		client: client,
		kinds:  kinds,
		opts:   opts,
		log:    opts.Logger.WithName("mirror"),
		items:  map[string]*unstructured.Unstructured{},
	}
}

// OnChange registers a callback invoked after every externally visible state
// change. It runs outside the engine lock and must not block.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *Engine) notify() {
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Run consumes the client's event stream until ctx is cancelled or the
// stream closes.
func (e *Engine) Run(ctx context.Context) {
	events := e.client.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.handleEvent(ev)
		}
	}
}

// Close stops all pending timers. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.stopBatchLocked()
	e.stopFallbackLocked()
	e.mu.Unlock()
}

// Connect switches to the named context. The running subscription and view
// stay untouched while the attempt is in flight and are torn down only once
// the new context is reachable, so a failed attempt leaves the prior
// context's data on screen next to the classified error. On success the
// namespace list is refreshed and a default selection applied. Completions
// of superseded connects are discarded.
func (e *Engine) Connect(ctx context.Context, name string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.connGen++
	gen := e.connGen
	e.conn = StateConnecting
	e.connErr = ""
	e.attemptedCtx = name
	e.mu.Unlock()
	e.notify()

	err := e.client.Connect(ctx, name)

	e.mu.Lock()
	if e.closed || gen != e.connGen {
		e.mu.Unlock()
		return err
	}
	if err != nil {
		e.conn = StateFailed
		e.connErr = classifyConnError(name, err)
		e.mu.Unlock()
		e.notify()
		return err
	}
	e.conn = StateConnected
	e.selectedCtx = name
	// the old context's subscription and items are meaningless now
	e.subGen++
	prior, hadPrior := e.subKey, e.hasSub
	e.hasSub = false
	e.items = map[string]*unstructured.Unstructured{}
	e.hasInitial = false
	e.loading = false
	e.lastErr = ""
	e.changingNS = false
	e.stopBatchLocked()
	e.stopFallbackLocked()
	e.mu.Unlock()
	e.notify()

	if hadPrior {
		e.unsubscribeAsync(prior)
	}

	namespaces, nsErr := e.client.ListNamespaces(ctx)

	e.mu.Lock()
	if e.closed || gen != e.connGen {
		e.mu.Unlock()
		return nil
	}
	if nsErr != nil {
		// connected, but the namespace list is unavailable (commonly a
		// permissions restriction); keep an empty scope
		e.log.Error(nsErr, "listing namespaces", "context", name)
		e.available = nil
		e.selected = []string{}
	} else {
		e.available = namespaces
		e.selected = defaultNamespaces(namespaces)
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// Select subscribes to gvk in the current namespace scope, replacing any
// prior subscription. The view clears until the snapshot arrives. A
// non-empty snapshot settles the view; an empty one leaves it unsettled
// until events, a sync marker, or the select fallback confirm it.
func (e *Engine) Select(ctx context.Context, gvk schema.GroupVersionKind) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.conn != StateConnected {
		e.mu.Unlock()
		return fmt.Errorf("no connected context")
	}
	e.subGen++
	gen := e.subGen
	prior, hadPrior := e.subKey, e.hasSub
	e.gvk = gvk
	e.namespaced = e.kinds.Namespaced(gvk)
	e.subKey = e.subscriptionKeyLocked()
	e.hasSub = true
	e.loading = true
	e.lastErr = ""
	e.hasInitial = false
	e.items = map[string]*unstructured.Unstructured{}
	e.changingNS = false
	e.stopBatchLocked()
	e.stopFallbackLocked()
	key := e.subKey
	e.mu.Unlock()
	e.notify()

	if hadPrior && prior != key {
		e.unsubscribeAsync(prior)
	}
	return e.finishSubscribe(ctx, gen, key, e.opts.SelectFallback)
}

// SetNamespaces changes the selected namespace scope; nil selects every
// namespace. Unlike Select, the current items stay on screen while the new
// subscription is in flight, so the view never flashes empty. The next fold
// or the settle prunes whatever left scope.
func (e *Engine) SetNamespaces(ctx context.Context, namespaces []string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if namespaces == nil {
		e.selected = nil
	} else {
		e.selected = append([]string(nil), namespaces...)
	}
	if !e.hasSub || !e.namespaced {
		// nothing subscribed, or the kind ignores namespace scope
		e.mu.Unlock()
		e.notify()
		return nil
	}
	e.subGen++
	gen := e.subGen
	prior := e.subKey
	e.subKey = e.subscriptionKeyLocked()
	key := e.subKey
	e.loading = true
	e.lastErr = ""
	e.hasInitial = false
	e.changingNS = true
	e.stopFallbackLocked()
	e.mu.Unlock()
	e.notify()

	if prior != key {
		e.unsubscribeAsync(prior)
	}
	return e.finishSubscribe(ctx, gen, key, e.opts.NamespaceFallback)
}

// finishSubscribe performs the remote subscribe for key and applies the
// result, unless a newer operation superseded gen meanwhile.
func (e *Engine) finishSubscribe(ctx context.Context, gen uint64, key resources.Key, fallback time.Duration) error {
	snapshot, err := e.client.Subscribe(ctx, key)

	e.mu.Lock()
	if e.closed || gen != e.subGen {
		e.mu.Unlock()
		return err
	}
	e.loading = false
	if err != nil {
		e.items = map[string]*unstructured.Unstructured{}
		e.hasInitial = true
		e.changingNS = false
		e.lastErr = fmt.Sprintf("subscribe %s: %v", key.GVK.Kind, err)
		e.stopFallbackLocked()
		e.mu.Unlock()
		e.notify()
		return err
	}
	if len(snapshot) > 0 {
		e.items = seedItems(snapshot, e.scopeLocked())
		e.hasInitial = true
		e.changingNS = false
		e.stopFallbackLocked()
	} else if !e.hasInitial {
		// empty snapshots are not trusted immediately: events or a sync
		// marker may still be on the way
		e.armFallbackLocked(gen, fallback)
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// handleEvent ingests one pushed event. Events from other contexts, for
// other kinds, or without an object name are dropped. Sync markers settle
// the view immediately; everything else is batched and folded when the batch
// window closes.
func (e *Engine) handleEvent(ev resources.Event) {
	e.mu.Lock()
	if e.closed || !e.hasSub {
		e.mu.Unlock()
		return
	}
	if ev.Context != e.selectedCtx {
		e.log.V(2).Info("dropping event from abandoned context", "context", ev.Context)
		e.mu.Unlock()
		return
	}
	if ev.Type == resources.Synced {
		e.stopFallbackLocked()
		e.settleLocked()
		e.mu.Unlock()
		e.notify()
		return
	}
	if ev.Object == nil || ev.Object.GroupVersionKind() != e.gvk {
		e.mu.Unlock()
		return
	}
	e.batch = append(e.batch, ev)
	e.armBatchLocked()
	e.mu.Unlock()
}

// settleLocked accepts the current view as complete. The scope filter runs
// once more so items retained across a namespace change get pruned, and any
// in-progress transition ends.
func (e *Engine) settleLocked() {
	e.items = foldBatch(e.items, nil, e.scopeLocked())
	e.hasInitial = true
	e.changingNS = false
}

// armBatchLocked restarts the batch window. The callback folds the whole
// batch in one pass; handle identity protects against a window that was
// restarted or cleared after this one fired.
func (e *Engine) armBatchLocked() {
	if e.batchTimer != nil {
		e.batchTimer.Stop()
	}
	var h *delay
	h = startDelay(e.opts.BatchWindow, func() {
		e.mu.Lock()
		if e.closed || e.batchTimer != h {
			e.mu.Unlock()
			return
		}
		e.batchTimer = nil
		batch := e.batch
		e.batch = nil
		e.items = foldBatch(e.items, batch, e.scopeLocked())
		e.mu.Unlock()
		e.notify()
	})
	e.batchTimer = h
}

// armFallbackLocked schedules the settle fallback for the operation
// identified by gen, replacing any previous one. Handle identity plus the
// generation guard the callback, so a fallback superseded before firing
// never settles anything.
func (e *Engine) armFallbackLocked(gen uint64, d time.Duration) {
	e.stopFallbackLocked()
	var h *delay
	h = startDelay(d, func() {
		e.mu.Lock()
		if e.closed || e.fallback != h || gen != e.subGen {
			e.mu.Unlock()
			return
		}
		e.fallback = nil
		e.settleLocked()
		e.mu.Unlock()
		e.notify()
	})
	e.fallback = h
}

func (e *Engine) stopBatchLocked() {
	if e.batchTimer != nil {
		e.batchTimer.Stop()
		e.batchTimer = nil
	}
	e.batch = nil
}

func (e *Engine) stopFallbackLocked() {
	if e.fallback != nil {
		e.fallback.Stop()
		e.fallback = nil
	}
}

// unsubscribeAsync drops a subscription without blocking the caller. By the
// time an unsubscribe runs the view has already moved on, so failures are
// only logged.
func (e *Engine) unsubscribeAsync(key resources.Key) {
	go func() {
		if err := e.client.Unsubscribe(context.Background(), key); err != nil {
			e.log.V(1).Info("unsubscribe failed", "kind", key.GVK.Kind, "namespace", key.Namespace, "error", err)
		}
	}()
}

// subscriptionKeyLocked derives the remote key for the current kind and
// scope: exactly one selected namespace subscribes narrowly, anything else
// subscribes across namespaces and filters locally.
func (e *Engine) subscriptionKeyLocked() resources.Key {
	key := resources.Key{GVK: e.gvk}
	if e.namespaced && len(e.selected) == 1 {
		key.Namespace = e.selected[0]
	}
	return key
}

func (e *Engine) scopeLocked() scope {
	s := scope{gvk: e.gvk, namespaced: e.namespaced}
	if e.selected != nil {
		s.namespaces = make(map[string]struct{}, len(e.selected))
		for _, ns := range e.selected {
			s.namespaces[ns] = struct{}{}
		}
	}
	return s
}

// Items returns the current mirror ordered by identity.
func (e *Engine) Items() []*unstructured.Unstructured {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedItems(e.items)
}

// Loading reports whether a subscribe call is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// HasInitialData reports whether the current view is settled, meaning an
// empty Items result is a true empty rather than a not-yet-loaded state.
func (e *Engine) HasInitialData() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasInitial
}

// IsChangingNamespace reports whether a namespace transition is in progress.
func (e *Engine) IsChangingNamespace() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changingNS
}

// Err returns the message of the last failed subscribe, or empty.
func (e *Engine) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// ConnectionState returns the current connection state.
func (e *Engine) ConnectionState() ConnState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn
}

// ConnectionError returns the classified message of the last failed connect,
// or empty.
func (e *Engine) ConnectionError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connErr
}

// SelectedContext returns the last successfully connected context.
func (e *Engine) SelectedContext() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedCtx
}

// AttemptedContext returns the context of the latest connect attempt, which
// differs from SelectedContext while an attempt is in flight or failed.
func (e *Engine) AttemptedContext() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attemptedCtx
}

// CurrentKind returns the subscribed kind, or the zero value when nothing is
// subscribed.
func (e *Engine) CurrentKind() (schema.GroupVersionKind, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gvk, e.hasSub
}

// Namespaces returns the namespaces of the connected context.
func (e *Engine) Namespaces() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.available...)
}

// SelectedNamespaces returns the selected namespace scope; nil means every
// namespace, a non-nil empty slice means none.
func (e *Engine) SelectedNamespaces() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return nil
	}
	out := make([]string, len(e.selected))
	copy(out, e.selected)
	return out
}

// Contexts lists the selectable cluster contexts.
func (e *Engine) Contexts() []resources.Context {
	return e.client.ListContexts()
}
