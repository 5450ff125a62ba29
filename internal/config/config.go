// Package config loads weave.toml, the engine's file-size and behavior
// tuning knobs.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the tunables a weave.toml file can override. Every field
// has a zero value that Default fills in, so a partial or missing file
// still produces a usable Config.
type Config struct {
	// MaxFileSizeBytes bounds structural merging; a file larger than this
	// on any side skips straight to the line-level fallback.
	MaxFileSizeBytes int64 `toml:"max_file_size_bytes"`
	// MaxInnerMergeDepth bounds how many container levels the inner-entity
	// strategy recurses through before declaring the nesting pathological
	// and falling back, since deeply nested containers are the case the
	// member-split heuristic trusts least.
	MaxInnerMergeDepth int `toml:"max_inner_merge_depth"`
	// ExcludeDecoratorTags lists decorator/annotation names the decorator
	// merger drops from its union instead of carrying forward, for tags
	// that are regenerated by tooling rather than authored by hand.
	ExcludeDecoratorTags []string `toml:"exclude_decorator_tags"`
	// SemanticValidation toggles the post-merge cross-reference warning
	// pass; it re-parses the merged file, so large repositories may want
	// it off by default and on only for interactive use.
	SemanticValidation bool `toml:"semantic_validation"`
}

const (
	defaultMaxFileSizeBytes  = 1 << 20
	defaultInnerMergeDepth   = 8
	defaultSemanticValidated = true
)

// Default returns the Config used when no weave.toml is present.
func Default() Config {
	return Config{
		MaxFileSizeBytes:   defaultMaxFileSizeBytes,
		MaxInnerMergeDepth: defaultInnerMergeDepth,
		SemanticValidation: defaultSemanticValidated,
	}
}

// Load reads path as TOML and overlays it onto Default. A missing file is
// not an error; it simply returns the defaults, the way a repository
// without a weave.toml still merges with sane behavior.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
