package mirror

import (
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/kmirror-dev/kmirror/pkg/resources"
)

// scope describes which objects belong to the current subscription.
type scope struct {
	gvk        schema.GroupVersionKind
	namespaced bool
	// namespaces is the selected namespace set. nil selects every namespace,
	// an empty non-nil set selects none. Ignored for cluster-scoped kinds.
	namespaces map[string]struct{}
}

func (s scope) includes(obj *unstructured.Unstructured) bool {
	if !s.namespaced || s.namespaces == nil {
		return true
	}
	_, ok := s.namespaces[obj.GetNamespace()]
	return ok
}

// itemID returns the identity of an object within a subscription. Namespaced
// objects are keyed namespace/name so equally named objects from different
// namespaces stay distinct in all-namespaces views.
func itemID(obj *unstructured.Unstructured) string {
	if ns := obj.GetNamespace(); ns != "" {
		return ns + "/" + obj.GetName()
	}
	return obj.GetName()
}

// foldBatch applies a batch of events to items in arrival order and returns a
// new map; the input map is not modified. Existing items are re-checked
// against the scope first, so items retained across a namespace change get
// pruned as soon as a fold runs. Events for other kinds and events without an
// object name are ignored. Added and Modified upsert when the object is in
// scope and remove when it is not, so an object modified out of the selected
// namespaces disappears. Deleted removes unconditionally and is idempotent.
// Duplicate identities within one batch resolve to the last write. A nil
// batch reduces to the scope filter pass, which is how settling prunes.
func foldBatch(items map[string]*unstructured.Unstructured, batch []resources.Event, s scope) map[string]*unstructured.Unstructured {
	next := make(map[string]*unstructured.Unstructured, len(items))
	for id, obj := range items {
		if s.includes(obj) {
			next[id] = obj
		}
	}
	for _, ev := range batch {
		obj := ev.Object
		if obj == nil || obj.GetName() == "" {
			continue
		}
		if obj.GroupVersionKind() != s.gvk {
			continue
		}
		id := itemID(obj)
		switch ev.Type {
		case resources.Added, resources.Modified:
			if s.includes(obj) {
				next[id] = obj
			} else {
				delete(next, id)
			}
		case resources.Deleted:
			delete(next, id)
		}
	}
	return next
}

// seedItems builds an item map from a subscription snapshot, dropping
// out-of-scope and nameless objects. Duplicate identities keep the last
// occurrence.
func seedItems(snapshot []*unstructured.Unstructured, s scope) map[string]*unstructured.Unstructured {
	items := make(map[string]*unstructured.Unstructured, len(snapshot))
	for _, obj := range snapshot {
		if obj == nil || obj.GetName() == "" {
			continue
		}
		if !s.includes(obj) {
			continue
		}
		items[itemID(obj)] = obj
	}
	return items
}

// sortedItems returns the items ordered by identity.
func sortedItems(items map[string]*unstructured.Unstructured) []*unstructured.Unstructured {
	out := make([]*unstructured.Unstructured, 0, len(items))
	for _, obj := range items {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool {
		return itemID(out[i]) < itemID(out[j])
	})
	return out
}
