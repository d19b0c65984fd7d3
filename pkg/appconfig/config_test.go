package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTheme(t *testing.T) {
	cfg := Default()
	if cfg.Viewer.Theme != "dracula" {
		t.Fatalf("expected default theme dracula, got %q", cfg.Viewer.Theme)
	}
}

func TestDefaultFavouritesStartWithPods(t *testing.T) {
	cfg := Default()
	if len(cfg.Favourites) == 0 || cfg.Favourites[0] != "v1/Pod" {
		t.Fatalf("expected pods first in favourites, got %v", cfg.Favourites)
	}
}

func TestDefaultContextsNonNil(t *testing.T) {
	cfg := Default()
	if cfg.Contexts == nil {
		t.Fatalf("expected a non-nil contexts map")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Viewer.Theme != "dracula" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := Default()
	cfg.Viewer.Theme = "Monokai"
	cfg.Contexts["prod"] = ContextConfig{Namespaces: []string{"default", "dev"}, Kind: "apps/v1/Deployment"}
	if err := Save(cfg); err != nil {
		t.Fatalf("saving: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got.Viewer.Theme != "monokai" {
		t.Errorf("expected the theme lowercased, got %q", got.Viewer.Theme)
	}
	cc := got.Contexts["prod"]
	if len(cc.Namespaces) != 2 || cc.Kind != "apps/v1/Deployment" {
		t.Errorf("unexpected context config: %+v", cc)
	}
}

func TestLoadMalformedFileFallsBack(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".kmirror")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	if cfg == nil || cfg.Viewer.Theme != "dracula" {
		t.Fatalf("expected defaults alongside the error, got %+v", cfg)
	}
}
