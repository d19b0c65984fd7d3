package resources

import (
	"sort"
	"strings"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Info describes one watchable API resource kind.
type Info struct {
	GVK        schema.GroupVersionKind
	Resource   string // plural resource name (e.g., pods)
	Namespaced bool
}

// Kinds is a registry of known resource kinds. It is seeded with the built-in
// kinds so the application is usable before discovery completes, and extended
// with server discovery results as they arrive.
type Kinds struct {
	mu    sync.RWMutex
	byGVK map[schema.GroupVersionKind]Info
}

// NewKinds returns a registry seeded with the built-in kinds.
func NewKinds() *Kinds {
	k := &Kinds{byGVK: make(map[schema.GroupVersionKind]Info, len(builtinKinds))}
	for _, info := range builtinKinds {
		k.byGVK[info.GVK] = info
	}
	return k
}

// Lookup returns the info for gvk.
func (k *Kinds) Lookup(gvk schema.GroupVersionKind) (Info, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	info, ok := k.byGVK[gvk]
	return info, ok
}

// Namespaced reports whether gvk is namespace-scoped. Unknown kinds are
// treated as namespaced, which is the common case for custom resources.
func (k *Kinds) Namespaced(gvk schema.GroupVersionKind) bool {
	if info, ok := k.Lookup(gvk); ok {
		return info.Namespaced
	}
	return true
}

// Merge adds or updates registry entries from discovery results.
func (k *Kinds) Merge(infos []Info) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, info := range infos {
		k.byGVK[info.GVK] = info
	}
}

// All returns every known kind sorted by group, then kind.
func (k *Kinds) All() []Info {
	k.mu.RLock()
	defer k.mu.RUnlock()
	infos := make([]Info, 0, len(k.byGVK))
	for _, info := range k.byGVK {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].GVK.Group != infos[j].GVK.Group {
			return infos[i].GVK.Group < infos[j].GVK.Group
		}
		return infos[i].GVK.Kind < infos[j].GVK.Kind
	})
	return infos
}

// InfosFromResourceLists converts discovery results into kind infos, skipping
// subresources and non-resource types.
func InfosFromResourceLists(lists []*metav1.APIResourceList) []Info {
	var infos []Info
	for _, list := range lists {
		if list == nil {
			continue
		}
		gv, err := schema.ParseGroupVersion(list.GroupVersion)
		if err != nil {
			continue
		}
		for _, res := range list.APIResources {
			if isSubresource(res.Name) || isNonResourceType(res.Kind) {
				continue
			}
			infos = append(infos, Info{
				GVK:        schema.GroupVersionKind{Group: gv.Group, Version: gv.Version, Kind: res.Kind},
				Resource:   res.Name,
				Namespaced: res.Namespaced,
			})
		}
	}
	return infos
}

// isSubresource checks if a resource name indicates a subresource
func isSubresource(name string) bool {
	// Subresources contain a slash (e.g., "pods/log", "pods/status")
	return strings.Contains(name, "/")
}

// isNonResourceType checks if a kind represents a non-resource type
func isNonResourceType(kind string) bool {
	nonResourceTypes := map[string]bool{
		"Status":                    true,
		"List":                      true,
		"WatchEvent":                true,
		"APIGroup":                  true,
		"APIVersion":                true,
		"APIResourceList":           true,
		"CreateOptions":             true,
		"UpdateOptions":             true,
		"DeleteOptions":             true,
		"PatchOptions":              true,
		"GetOptions":                true,
		"Table":                     true,
		"PartialObjectMetadata":     true,
		"PartialObjectMetadataList": true,
	}

	return nonResourceTypes[kind]
}

var builtinKinds = []Info{
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "Pod"}, Resource: "pods", Namespaced: true},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "Service"}, Resource: "services", Namespaced: true},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}, Resource: "configmaps", Namespaced: true},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "Secret"}, Resource: "secrets", Namespaced: true},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "ServiceAccount"}, Resource: "serviceaccounts", Namespaced: true},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "PersistentVolumeClaim"}, Resource: "persistentvolumeclaims", Namespaced: true},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "Event"}, Resource: "events", Namespaced: true},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "Namespace"}, Resource: "namespaces", Namespaced: false},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "Node"}, Resource: "nodes", Namespaced: false},
	{GVK: schema.GroupVersionKind{Version: "v1", Kind: "PersistentVolume"}, Resource: "persistentvolumes", Namespaced: false},
	{GVK: schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}, Resource: "deployments", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "ReplicaSet"}, Resource: "replicasets", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "StatefulSet"}, Resource: "statefulsets", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "DaemonSet"}, Resource: "daemonsets", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "batch", Version: "v1", Kind: "Job"}, Resource: "jobs", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "batch", Version: "v1", Kind: "CronJob"}, Resource: "cronjobs", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "networking.k8s.io", Version: "v1", Kind: "Ingress"}, Resource: "ingresses", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "networking.k8s.io", Version: "v1", Kind: "NetworkPolicy"}, Resource: "networkpolicies", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "Role"}, Resource: "roles", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "RoleBinding"}, Resource: "rolebindings", Namespaced: true},
	{GVK: schema.GroupVersionKind{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "ClusterRole"}, Resource: "clusterroles", Namespaced: false},
	{GVK: schema.GroupVersionKind{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "ClusterRoleBinding"}, Resource: "clusterrolebindings", Namespaced: false},
	{GVK: schema.GroupVersionKind{Group: "storage.k8s.io", Version: "v1", Kind: "StorageClass"}, Resource: "storageclasses", Namespaced: false},
	{GVK: schema.GroupVersionKind{Group: "apiextensions.k8s.io", Version: "v1", Kind: "CustomResourceDefinition"}, Resource: "customresourcedefinitions", Namespaced: false},
}
