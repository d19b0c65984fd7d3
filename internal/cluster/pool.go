package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/client-go/rest"
)

// Key identifies a cluster by kubeconfig path and context name.
type Key struct {
	KubeconfigPath string
	ContextName    string
}

type entry struct {
	key      Key
	cl       *Cluster
	cancel   context.CancelFunc
	lastUsed time.Time
}

// Pool keeps one running Cluster per kubeconfig+context and evicts entries
// idle for longer than the TTL, so switching between contexts is instant
// while abandoned ones eventually release their watches.
type Pool struct {
	mu      sync.Mutex
	ttl     time.Duration
	closing chan struct{}
	started bool
	items   map[Key]*entry
}

func NewPool(ttl time.Duration) *Pool {
	return &Pool{ttl: ttl, closing: make(chan struct{}), items: map[Key]*entry{}}
}

// Start launches the idle eviction loop. Safe to call once.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()
	go p.evictLoop()
}

// Stop cancels every pooled cluster and the eviction loop.
func (p *Pool) Stop() {
	close(p.closing)
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.items {
		e.cancel()
		e.cl.Stop()
		delete(p.items, k)
	}
}

// Get returns a running Cluster for the key, building one from cfg and
// starting it on first use. Reuse refreshes the idle clock.
func (p *Pool) Get(k Key, cfg *rest.Config) (*Cluster, error) {
	p.mu.Lock()
	if e, ok := p.items[k]; ok {
		e.lastUsed = time.Now()
		p.mu.Unlock()
		return e.cl, nil
	}
	p.mu.Unlock()

	cl, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{key: k, cl: cl, cancel: cancel, lastUsed: time.Now()}

	p.mu.Lock()
	if racing, ok := p.items[k]; ok {
		// another caller built the entry meanwhile; keep theirs
		p.mu.Unlock()
		cancel()
		cl.Stop()
		return racing.cl, nil
	}
	p.items[k] = e
	p.mu.Unlock()

	go func() { _ = cl.Start(ctx) }()
	return cl, nil
}

// Evict drops the cluster for the key, stopping its informers. Used when a
// connect probe fails, so the next attempt builds a fresh cluster.
func (p *Pool) Evict(k Key) {
	p.mu.Lock()
	e, ok := p.items[k]
	if ok {
		delete(p.items, k)
	}
	p.mu.Unlock()
	if ok {
		e.cancel()
		e.cl.Stop()
	}
}

func (p *Pool) evictLoop() {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-p.closing:
			return
		case <-t.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	cutoff := time.Now().Add(-p.ttl)
	var stale []*entry
	p.mu.Lock()
	for k, e := range p.items {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e)
			delete(p.items, k)
		}
	}
	p.mu.Unlock()
	for _, e := range stale {
		e.cancel()
		e.cl.Stop()
	}
}
