package entity

import "fmt"

// Extractor turns source bytes into an ordered EntityList. It is the single
// seam between the merge engine and whatever parses source code; the
// engine never imports a grammar package directly, only this interface,
// so tests can inject a stub extractor and production code can swap in a
// different parsing backend without touching pkg/merge.
type Extractor interface {
	// Extract parses source for filename and returns its EntityList, or an
	// error if the file's language is unsupported or the source fails to
	// parse. Implementations must guarantee that concatenating every
	// returned entity's Body reproduces source exactly.
	Extract(filename string, source []byte) (*EntityList, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(filename string, source []byte) (*EntityList, error)

func (f ExtractorFunc) Extract(filename string, source []byte) (*EntityList, error) {
	return f(filename, source)
}

// Registry resolves the Extractor to use for a merge. Callers that need a
// non-default backend (a test stub, a future alternate grammar backend)
// construct their own Registry instead of mutating global state.
type Registry struct {
	extractor Extractor
}

// NewRegistry builds a Registry backed by extractor. A nil extractor falls
// back to DefaultExtractor.
func NewRegistry(extractor Extractor) *Registry {
	if extractor == nil {
		extractor = DefaultExtractor()
	}
	return &Registry{extractor: extractor}
}

// Extract delegates to the registry's configured Extractor.
func (r *Registry) Extract(filename string, source []byte) (*EntityList, error) {
	if r == nil || r.extractor == nil {
		return nil, fmt.Errorf("entity: registry has no extractor configured")
	}
	return r.extractor.Extract(filename, source)
}

var defaultExtractor Extractor = ExtractorFunc(Extract)

// DefaultExtractor returns the tree-sitter-backed Extractor used when no
// registry is supplied.
func DefaultExtractor() Extractor {
	return defaultExtractor
}

// DefaultRegistry returns a Registry wired to DefaultExtractor.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultExtractor())
}
