package merge

import (
	"fmt"
	"strings"

	"github.com/odvcencio/weave/pkg/entity"
)

// WarningKind classifies a SemanticWarning.
type WarningKind int

const (
	WarningDependencyAlsoModified WarningKind = iota
	WarningDependentAlsoModified
	WarningParseFailedAfterMerge
)

func (k WarningKind) String() string {
	switch k {
	case WarningDependencyAlsoModified:
		return "dependency_also_modified"
	case WarningDependentAlsoModified:
		return "dependent_also_modified"
	case WarningParseFailedAfterMerge:
		return "parse_failed_after_merge"
	}
	return "unknown"
}

// RelatedEntity names the other side of a dependency relationship flagged
// by a warning.
type RelatedEntity struct {
	Name string
	Kind string
}

// SemanticWarning is an advisory, non-blocking note surfaced after a merge
// completes: it never prevents the merge from landing, but flags entities
// whose callers or callees also changed in the same merge, since those
// changes may need cross-checking even though neither one is itself a
// structural conflict.
type SemanticWarning struct {
	Kind    WarningKind
	Entity  string
	Related RelatedEntity
	Message string
}

func (w SemanticWarning) String() string {
	return w.Message
}

// ModifiedEntity is one declaration the caller wants cross-checked against
// the rest of the merged file for validate.
type ModifiedEntity struct {
	Name string
	Kind string
}

// referenceGraph is a light-weight, intra-file stand-in for the original's
// cross-file call graph: it maps each declaration's name to the set of
// other declaration names whose identifier appears as a whole word inside
// its body. This is necessarily an approximation (no import resolution, no
// type information) — see DESIGN.md for why a real call graph dependency
// was not wired in here.
type referenceGraph struct {
	dependencies map[string]map[string]bool // name -> names it references
	dependents   map[string]map[string]bool // name -> names that reference it
}

func buildReferenceGraph(el *entity.EntityList) *referenceGraph {
	g := &referenceGraph{
		dependencies: map[string]map[string]bool{},
		dependents:   map[string]map[string]bool{},
	}

	var names []string
	for i := range el.Entities {
		e := &el.Entities[i]
		if e.Kind == entity.KindDeclaration && e.Name != "" {
			names = append(names, e.Name)
		}
	}

	for i := range el.Entities {
		e := &el.Entities[i]
		if e.Kind != entity.KindDeclaration || e.Name == "" {
			continue
		}
		body := string(e.Body)
		refs := map[string]bool{}
		for _, other := range names {
			if other == e.Name {
				continue
			}
			if containsWholeWord(body, other) {
				refs[other] = true
				if g.dependents[other] == nil {
					g.dependents[other] = map[string]bool{}
				}
				g.dependents[other][e.Name] = true
			}
		}
		g.dependencies[e.Name] = refs
	}
	return g
}

func containsWholeWord(haystack, word string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		before := start == 0 || !isIdentRune(haystack[start-1])
		after := end == len(haystack) || !isIdentRune(haystack[end])
		if before && after {
			return true
		}
		idx = start + 1
		if idx >= len(haystack) {
			return false
		}
	}
}

func isIdentRune(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ValidateMerge inspects the merged file's re-extracted entity list for
// cross-references between the entities the caller says were modified by
// this merge. It requires at least two modified entities to say anything
// (a single modified entity has nothing to cross-check against). For each
// modified entity it reports every other modified entity it references
// (DependencyAlsoModified) and every modified entity that references it
// (DependentAlsoModified), skipping a dependent already reported as a
// dependency of that same entity; a caller-callee pair of modified entities
// therefore yields one warning from each side.
func ValidateMerge(mergedPath string, merged []byte, modified []ModifiedEntity, reg *entity.Registry) ([]SemanticWarning, error) {
	if len(modified) < 2 {
		return nil, nil
	}
	if reg == nil {
		reg = entity.DefaultRegistry()
	}

	el, err := reg.Extract(mergedPath, merged)
	if err != nil {
		return []SemanticWarning{{
			Kind:    WarningParseFailedAfterMerge,
			Message: fmt.Sprintf("merged file failed to re-parse: %v", err),
		}}, nil
	}
	if len(merged) > 0 && countDeclarations(el) == 0 {
		// A file that held declarations before the merge and holds none
		// after it almost certainly has broken syntax (stray markers, a
		// half-merged brace); the parser silently yields nothing rather
		// than erroring, so this is the same failure in different clothes.
		return []SemanticWarning{{
			Kind:    WarningParseFailedAfterMerge,
			Message: "merged file re-parsed to zero declarations; output syntax is likely broken",
		}}, nil
	}

	graph := buildReferenceGraph(el)
	modifiedSet := map[string]bool{}
	for _, m := range modified {
		modifiedSet[m.Name] = true
	}

	var warnings []SemanticWarning

	for _, m := range modified {
		paired := map[string]bool{}
		for dep := range graph.dependencies[m.Name] {
			if !modifiedSet[dep] {
				continue
			}
			paired[dep] = true
			warnings = append(warnings, SemanticWarning{
				Kind:    WarningDependencyAlsoModified,
				Entity:  m.Name,
				Related: RelatedEntity{Name: dep, Kind: "declaration"},
				Message: fmt.Sprintf("%s was modified and also references %s, which was modified in the same merge", m.Name, dep),
			})
		}
		for dependent := range graph.dependents[m.Name] {
			if !modifiedSet[dependent] || paired[dependent] {
				continue
			}
			warnings = append(warnings, SemanticWarning{
				Kind:    WarningDependentAlsoModified,
				Entity:  m.Name,
				Related: RelatedEntity{Name: dependent, Kind: "declaration"},
				Message: fmt.Sprintf("%s was modified and is referenced by %s, which was also modified in the same merge", m.Name, dependent),
			})
		}
	}

	return warnings, nil
}

func countDeclarations(el *entity.EntityList) int {
	n := 0
	for i := range el.Entities {
		if el.Entities[i].Kind == entity.KindDeclaration {
			n++
		}
	}
	return n
}

func pairKey(a, b string) string {
	if a < b {
		return a + "\x00" + b
	}
	return b + "\x00" + a
}
