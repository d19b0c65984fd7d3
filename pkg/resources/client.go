package resources

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Key identifies a subscription to one resource kind within a namespace scope.
// Namespace may be empty for cluster-scoped kinds or all-namespaces views.
type Key struct {
	GVK       schema.GroupVersionKind
	Namespace string
}

// EventType describes a change pushed for a subscription.
type EventType string

const (
	Added    EventType = "Added"
	Modified EventType = "Modified"
	Deleted  EventType = "Deleted"
	// Synced indicates the initial replay for a context completed.
	Synced EventType = "Synced"
)

// Event is a change notification. Context names the cluster context the event
// originated from; events from contexts other than the selected one must be
// ignored by consumers. Object is nil for Synced events.
type Event struct {
	Type    EventType
	Context string
	Object  *unstructured.Unstructured
}

// Context describes one selectable cluster context from a kubeconfig.
type Context struct {
	Name    string
	Cluster string
	// Path is the kubeconfig file the context was read from.
	Path string
}

// Subscriber is the push side of the resource API. Subscribe returns the
// current snapshot for the key and arranges for subsequent changes to be
// delivered on Events; subscribing again with the same key replaces the
// prior registration. Unsubscribe stops delivery for the key; pending events
// may still arrive afterwards and carry enough identity (context, kind) for
// consumers to discard them.
type Subscriber interface {
	Subscribe(ctx context.Context, key Key) ([]*unstructured.Unstructured, error)
	Unsubscribe(ctx context.Context, key Key) error
	Events() <-chan Event
}

// ContextClient manages cluster contexts and their namespaces.
type ContextClient interface {
	ListContexts() []Context
	CurrentContext() string
	Connect(ctx context.Context, name string) error
	ListNamespaces(ctx context.Context) ([]string, error)
}

// Mutator performs write operations against the connected context.
type Mutator interface {
	Delete(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) error
	Scale(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string, replicas int64) error
	Apply(ctx context.Context, obj *unstructured.Unstructured) error
}

// Client is the full remote surface the application consumes.
type Client interface {
	Subscriber
	ContextClient
	Mutator
}
