package appconfig

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	yaml "sigs.k8s.io/yaml"
)

type ViewerConfig struct {
	Theme string `json:"theme"`
}

// ContextConfig remembers per-context selections across restarts.
type ContextConfig struct {
	// Namespaces is the namespace scope to restore when connecting to the
	// context. Empty means the connect-time default.
	Namespaces []string `json:"namespaces,omitempty"`
	// Kind is the last selected kind, as group/version/Kind (core kinds as
	// version/Kind).
	Kind string `json:"kind,omitempty"`
}

type Config struct {
	Viewer ViewerConfig `json:"viewer"`
	// Favourites are kinds listed first in the kind selector.
	Favourites []string `json:"favourites,omitempty"`
	// Contexts holds per-context selections, keyed by context name.
	Contexts map[string]ContextConfig `json:"contexts,omitempty"`
}

func Default() *Config {
	return &Config{
		Viewer:     ViewerConfig{Theme: "dracula"},
		Favourites: []string{"v1/Pod", "apps/v1/Deployment", "v1/Service", "v1/ConfigMap", "v1/Secret", "v1/Node"},
		Contexts:   map[string]ContextConfig{},
	}
}

func path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".kmirror", "config.yaml"), nil
}

// Load reads ~/.kmirror/config.yaml if present, otherwise returns defaults.
// A malformed file returns defaults together with the parse error so the
// caller can start anyway.
func Load() (*Config, error) {
	cfg := Default()
	p, err := path()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), err
	}
	if cfg.Viewer.Theme == "" {
		cfg.Viewer.Theme = "dracula"
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]ContextConfig{}
	}
	return cfg, nil
}

// Save writes the config to ~/.kmirror/config.yaml, creating the directory if
// needed.
func Save(cfg *Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	out := *cfg
	out.Viewer.Theme = strings.ToLower(out.Viewer.Theme)
	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}
