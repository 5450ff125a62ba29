package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "weave.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.MaxFileSizeBytes != want.MaxFileSizeBytes ||
		cfg.MaxInnerMergeDepth != want.MaxInnerMergeDepth ||
		cfg.SemanticValidation != want.SemanticValidation ||
		len(cfg.ExcludeDecoratorTags) != 0 {
		t.Fatalf("Load(missing) = %+v, want %+v", cfg, want)
	}
}

func TestLoadOverlaysOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weave.toml")
	body := `
max_file_size_bytes = 2097152
exclude_decorator_tags = ["generated", "autoformat"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFileSizeBytes != 2097152 {
		t.Fatalf("MaxFileSizeBytes = %d, want 2097152", cfg.MaxFileSizeBytes)
	}
	if cfg.MaxInnerMergeDepth != defaultInnerMergeDepth {
		t.Fatalf("MaxInnerMergeDepth = %d, want default %d", cfg.MaxInnerMergeDepth, defaultInnerMergeDepth)
	}
	if !cfg.SemanticValidation {
		t.Fatalf("SemanticValidation = false, want default true to survive the overlay")
	}
	if len(cfg.ExcludeDecoratorTags) != 2 || cfg.ExcludeDecoratorTags[0] != "generated" {
		t.Fatalf("ExcludeDecoratorTags = %v, want [generated autoformat]", cfg.ExcludeDecoratorTags)
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weave.toml")
	if err := os.WriteFile(path, []byte("max_file_size_bytes = [not valid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("Load: expected error for malformed toml, got nil")
	}
}
