package resources

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	toolscache "k8s.io/client-go/tools/cache"
	crcache "sigs.k8s.io/controller-runtime/pkg/cache"

	"github.com/kmirror-dev/kmirror/internal/cluster"
	"github.com/kmirror-dev/kmirror/pkg/kubeconfig"
)

var namespacesGVR = schema.GroupVersionResource{Version: "v1", Resource: "namespaces"}

// Live implements Client against real clusters. Contexts come from the
// kubeconfig manager, one controller-runtime cluster per context is pooled,
// and subscriptions are informer event handlers whose events get tagged with
// the context they came from. Handlers of abandoned contexts keep sending
// until unsubscribed or evicted; consumers drop those by tag.
type Live struct {
	log   logr.Logger
	kube  *kubeconfig.Manager
	pool  *cluster.Pool
	kinds *Kinds

	events    chan Event
	quit      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	current string
	cl      *cluster.Cluster
	subs    map[Key]*liveSub
}

type liveSub struct {
	informer   crcache.Informer
	handle     toolscache.ResourceEventHandlerRegistration
	cancelSync context.CancelFunc
}

func (s *liveSub) stop() error {
	s.cancelSync()
	return s.informer.RemoveEventHandler(s.handle)
}

// NewLive builds a live client over the given kubeconfig manager and cluster
// pool. Discovered kinds are merged into kinds after each connect.
func NewLive(kube *kubeconfig.Manager, pool *cluster.Pool, kinds *Kinds, log logr.Logger) *Live {
	return &Live{
		log:    log.WithName("live"),
		kube:   kube,
		pool:   pool,
		kinds:  kinds,
		events: make(chan Event, 1024),
		quit:   make(chan struct{}),
		subs:   map[Key]*liveSub{},
	}
}

// Close releases event senders. Pooled clusters are stopped by the pool.
func (l *Live) Close() {
	l.closeOnce.Do(func() { close(l.quit) })
}

func (l *Live) Events() <-chan Event { return l.events }

func (l *Live) ListContexts() []Context {
	var out []Context
	for _, ctx := range l.kube.Contexts() {
		out = append(out, Context{Name: ctx.Name, Cluster: ctx.Cluster, Path: ctx.Path})
	}
	return out
}

func (l *Live) CurrentContext() string {
	return l.kube.CurrentContext()
}

// Connect selects the named context: the pooled cluster is built (or
// reused), then probed with a short retry budget so flaky startup does not
// immediately fail, while a dead cluster fails within a few seconds. On
// probe failure the cluster is evicted so the next attempt starts fresh.
func (l *Live) Connect(ctx context.Context, name string) error {
	kctx := l.kube.ContextByName(name)
	if kctx == nil {
		return fmt.Errorf("context %q was not found in any kubeconfig", name)
	}
	key := cluster.Key{KubeconfigPath: kctx.Path, ContextName: name}
	cfg, err := l.kube.RESTConfig(name)
	if err != nil {
		return err
	}
	cl, err := l.pool.Get(key, cfg)
	if err != nil {
		return err
	}

	probe := backoff.NewExponentialBackOff()
	probe.InitialInterval = 200 * time.Millisecond
	probe.MaxInterval = time.Second
	probe.MaxElapsedTime = 3 * time.Second
	err = backoff.Retry(func() error {
		_, verr := cl.Discovery().ServerVersion()
		return verr
	}, backoff.WithContext(probe, ctx))
	if err != nil {
		l.pool.Evict(key)
		return err
	}

	l.mu.Lock()
	l.current = name
	l.cl = cl
	l.mu.Unlock()

	go l.refreshKinds(cl)
	return nil
}

// refreshKinds merges server discovery into the kind registry. Partial
// results are merged even when discovery reports group errors.
func (l *Live) refreshKinds(cl *cluster.Cluster) {
	lists, err := cl.Discovery().ServerPreferredResources()
	if err != nil {
		l.log.V(1).Info("partial discovery", "error", err)
	}
	if infos := InfosFromResourceLists(lists); len(infos) > 0 {
		l.kinds.Merge(infos)
	}
}

func (l *Live) ListNamespaces(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	cl := l.cl
	l.mu.Unlock()
	if cl == nil {
		return nil, fmt.Errorf("no connected context")
	}
	list, err := cl.Dynamic().Resource(namespacesGVR).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.GetName())
	}
	sort.Strings(names)
	return names, nil
}

// Subscribe attaches an event handler for the key's kind on the connected
// context and returns the informer store as the snapshot. Subscribing again
// with the same key replaces the prior registration. A sync marker is
// emitted once the informer reports synced.
func (l *Live) Subscribe(ctx context.Context, key Key) ([]*unstructured.Unstructured, error) {
	l.mu.Lock()
	cl := l.cl
	ctxName := l.current
	old := l.subs[key]
	delete(l.subs, key)
	l.mu.Unlock()
	if cl == nil {
		return nil, fmt.Errorf("no connected context")
	}
	if old != nil {
		if err := old.stop(); err != nil {
			l.log.V(1).Info("replacing subscription", "kind", key.GVK.Kind, "error", err)
		}
	}

	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(key.GVK)
	informer, err := cl.GetCache().GetInformer(ctx, obj, crcache.BlockUntilSynced(true))
	if err != nil {
		return nil, fmt.Errorf("informer for %s: %w", key.GVK.Kind, err)
	}

	handle, err := informer.AddEventHandler(l.handlerFor(ctxName))
	if err != nil {
		return nil, fmt.Errorf("event handler for %s: %w", key.GVK.Kind, err)
	}

	syncCtx, cancelSync := context.WithCancel(context.Background())
	l.mu.Lock()
	l.subs[key] = &liveSub{informer: informer, handle: handle, cancelSync: cancelSync}
	l.mu.Unlock()

	go func() {
		if toolscache.WaitForCacheSync(syncCtx.Done(), informer.HasSynced) {
			l.emit(Event{Type: Synced, Context: ctxName})
		}
	}()

	type storeInformer interface {
		GetStore() toolscache.Store
	}
	if si, ok := informer.(storeInformer); ok {
		return snapshotFromStore(si.GetStore(), key.Namespace), nil
	}
	return nil, nil
}

// Unsubscribe removes the handler for the key. Unknown keys are a no-op.
func (l *Live) Unsubscribe(ctx context.Context, key Key) error {
	l.mu.Lock()
	sub := l.subs[key]
	delete(l.subs, key)
	l.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.stop()
}

// handlerFor converts informer callbacks into tagged events. The informer is
// cluster-wide; namespace narrowing happens at the consumer, which already
// filters by its selected scope.
func (l *Live) handlerFor(ctxName string) toolscache.ResourceEventHandler {
	return toolscache.ResourceEventHandlerFuncs{
		AddFunc: func(obj any) {
			l.emitObject(Added, ctxName, obj)
		},
		UpdateFunc: func(_, newObj any) {
			l.emitObject(Modified, ctxName, newObj)
		},
		DeleteFunc: func(obj any) {
			if unknown, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
				obj = unknown.Obj
			}
			l.emitObject(Deleted, ctxName, obj)
		},
	}
}

func (l *Live) emitObject(t EventType, ctxName string, raw any) {
	obj, ok := raw.(*unstructured.Unstructured)
	if !ok {
		return
	}
	l.emit(Event{Type: t, Context: ctxName, Object: obj})
}

// emit delivers one event, giving up only when the client is closed so
// informer callbacks can never wedge on a vanished consumer.
func (l *Live) emit(ev Event) {
	select {
	case l.events <- ev:
	case <-l.quit:
	}
}

// snapshotFromStore lists the store filtered to the namespace; empty means
// every namespace.
func snapshotFromStore(store toolscache.Store, namespace string) []*unstructured.Unstructured {
	var out []*unstructured.Unstructured
	for _, raw := range store.List() {
		obj, ok := raw.(*unstructured.Unstructured)
		if !ok {
			continue
		}
		if namespace != "" && obj.GetNamespace() != namespace {
			continue
		}
		out = append(out, obj)
	}
	return out
}
