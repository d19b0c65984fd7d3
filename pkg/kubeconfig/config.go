package kubeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

// Kubeconfig is one loaded kubeconfig file.
type Kubeconfig struct {
	Path   string
	Config *api.Config
}

// Context is one selectable context across all loaded kubeconfigs.
type Context struct {
	Name      string
	Cluster   string
	Namespace string
	User      string
	// Path is the kubeconfig file that defines the context.
	Path string
}

// Manager discovers kubeconfig files and answers context questions. Files
// named by KUBECONFIG take precedence; without it every loadable file under
// ~/.kube is considered, the conventional ~/.kube/config first.
type Manager struct {
	kubeconfigs []*Kubeconfig
	contexts    []*Context
}

func NewManager() *Manager {
	return &Manager{}
}

// Discover loads all candidate kubeconfig files and builds the context list.
// Files that do not parse as kubeconfigs are skipped silently; it is an
// error only when nothing loadable was found at all.
func (m *Manager) Discover() error {
	paths, err := m.candidatePaths()
	if err != nil {
		return err
	}
	m.kubeconfigs = nil
	seen := map[string]bool{}
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		config, err := clientcmd.LoadFromFile(path)
		if err != nil {
			continue
		}
		m.kubeconfigs = append(m.kubeconfigs, &Kubeconfig{Path: path, Config: config})
	}
	if len(m.kubeconfigs) == 0 {
		return fmt.Errorf("no kubeconfig found (checked KUBECONFIG and ~/.kube)")
	}
	m.buildContexts()
	return nil
}

// candidatePaths returns kubeconfig paths in precedence order.
func (m *Manager) candidatePaths() ([]string, error) {
	if env := os.Getenv(clientcmd.RecommendedConfigPathEnvVar); env != "" {
		return filepath.SplitList(env), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	kubeDir := filepath.Join(homeDir, ".kube")
	if _, err := os.Stat(kubeDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("kube directory does not exist: %s", kubeDir)
	}

	paths := []string{filepath.Join(kubeDir, "config")}
	err = filepath.Walk(kubeDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", kubeDir, err)
	}
	return paths, nil
}

// buildContexts flattens the loaded kubeconfigs into one context list. When
// two files define the same context name the earlier file wins, matching the
// path precedence of Discover.
func (m *Manager) buildContexts() {
	m.contexts = nil
	byName := map[string]bool{}
	for _, kubeconfig := range m.kubeconfigs {
		for name, kctx := range kubeconfig.Config.Contexts {
			if byName[name] {
				continue
			}
			byName[name] = true
			namespace := kctx.Namespace
			if namespace == "" {
				namespace = "default"
			}
			m.contexts = append(m.contexts, &Context{
				Name:      name,
				Cluster:   kctx.Cluster,
				Namespace: namespace,
				User:      kctx.AuthInfo,
				Path:      kubeconfig.Path,
			})
		}
	}
	sort.Slice(m.contexts, func(i, j int) bool {
		return m.contexts[i].Name < m.contexts[j].Name
	})
}

// Kubeconfigs returns the loaded kubeconfig files.
func (m *Manager) Kubeconfigs() []*Kubeconfig {
	return m.kubeconfigs
}

// Contexts returns all discovered contexts sorted by name.
func (m *Manager) Contexts() []*Context {
	return m.contexts
}

// ContextByName finds a context by name.
func (m *Manager) ContextByName(name string) *Context {
	for _, ctx := range m.contexts {
		if ctx.Name == name {
			return ctx
		}
	}
	return nil
}

// CurrentContext returns the current context of the first kubeconfig that
// declares one, or the first known context, or empty.
func (m *Manager) CurrentContext() string {
	for _, kubeconfig := range m.kubeconfigs {
		if cur := kubeconfig.Config.CurrentContext; cur != "" && m.ContextByName(cur) != nil {
			return cur
		}
	}
	if len(m.contexts) > 0 {
		return m.contexts[0].Name
	}
	return ""
}

// RESTConfig builds a rest.Config for the named context.
func (m *Manager) RESTConfig(name string) (*rest.Config, error) {
	ctx := m.ContextByName(name)
	if ctx == nil {
		return nil, fmt.Errorf("context %q was not found in any kubeconfig", name)
	}
	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: ctx.Path},
		&clientcmd.ConfigOverrides{CurrentContext: ctx.Name},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("building client config for %q: %w", name, err)
	}
	return config, nil
}
