package cluster

import (
	"context"
	"time"

	metamapper "k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	klog "k8s.io/klog/v2"
	crcluster "sigs.k8s.io/controller-runtime/pkg/cluster"
)

// Cluster is a thin extension around controller-runtime's Cluster adding a
// cached discovery client, a self-refreshing RESTMapper, and a dynamic
// client. The embedded Cluster promotes GetCache/GetClient/GetConfig/Start.
type Cluster struct {
	crcluster.Cluster

	disco      discovery.CachedDiscoveryInterface
	baseMapper metamapper.ResettableRESTMapper
	mapper     metamapper.RESTMapper
	dyn        dynamic.Interface

	cancel  context.CancelFunc
	refresh time.Duration
}

// Option configures Cluster.
type Option func(*options)

type options struct {
	scheme  *runtime.Scheme
	refresh time.Duration
}

// WithScheme sets the runtime.Scheme used by the controller-runtime cluster.
func WithScheme(s *runtime.Scheme) Option {
	return func(o *options) { o.scheme = s }
}

// WithRefreshInterval sets the discovery/RESTMapper refresh interval
// (default 30s), so added CRDs become mappable without a restart.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) { o.refresh = d }
}

// New builds a Cluster for cfg. The discovery cache refreshes in the
// background until Stop is called.
func New(cfg *rest.Config, opts ...Option) (*Cluster, error) {
	o := &options{scheme: scheme.Scheme, refresh: 30 * time.Second}
	for _, fn := range opts {
		fn(o)
	}

	cl, err := crcluster.New(cfg, func(co *crcluster.Options) {
		co.Scheme = o.scheme
	})
	if err != nil {
		return nil, err
	}

	dc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, err
	}
	cached := memory.NewMemCacheClient(dc)
	base := restmapper.NewDeferredDiscoveryRESTMapper(cached)
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cluster{
		Cluster:    cl,
		disco:      cached,
		baseMapper: base,
		mapper:     restmapper.NewShortcutExpander(base, dc, expanderWarning),
		dyn:        dyn,
		cancel:     cancel,
		refresh:    o.refresh,
	}
	go c.refreshLoop(ctx)
	return c, nil
}

func (c *Cluster) refreshLoop(ctx context.Context) {
	t := time.NewTicker(c.refresh)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.disco.Invalidate()
			c.baseMapper.Reset()
		}
	}
}

// expanderWarning routes shortcut-expansion ambiguity warnings to the logs;
// the TUI owns stdout.
func expanderWarning(msg string) {
	klog.V(4).Info(msg)
}

// Stop cancels the refresh loop. Callers also cancel the Start context.
func (c *Cluster) Stop() { c.cancel() }

// RESTMapper exposes the cluster's RESTMapper (with shortcut expansion).
func (c *Cluster) RESTMapper() metamapper.RESTMapper { return c.mapper }

// Discovery exposes the cached discovery client.
func (c *Cluster) Discovery() discovery.CachedDiscoveryInterface { return c.disco }

// Dynamic exposes a dynamic client for mutations outside the cache.
func (c *Cluster) Dynamic() dynamic.Interface { return c.dyn }
