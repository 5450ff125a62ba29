package merge

import (
	"strings"

	"github.com/odvcencio/weave/pkg/diff3"
)

// importLinePrefixes are the trimmed-line prefixes spec §4.6's import-region
// predicate recognizes across languages: a region qualifies as import-heavy
// when strictly more than half of its non-empty lines match one of these
// (or the "const x = require(...)" CommonJS variant, checked separately).
var importLinePrefixes = []string{
	"import ", "from ", "use ", "require(", "package ", "#include ", "using ",
}

func isImportLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "= require(") {
		return true
	}
	for _, p := range importLinePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// IsImportRegion reports whether content qualifies as an import-heavy
// interstitial under spec §4.6: strictly more than half its non-empty
// lines look like import statements.
func IsImportRegion(content []byte) bool {
	total, imports := 0, 0
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if isImportLine(line) {
			imports++
		}
	}
	return total > 0 && imports*2 > total
}

// importEntry is one importable unit within a region: key is a
// whitespace-normalized form used for set membership (so "fmt" and "fmt "
// count as the same import), line is the text to emit on output.
type importEntry struct {
	key, line string
}

func normalizeImportKey(line string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(line), ";")
	return strings.Join(strings.Fields(trimmed), " ")
}

// importSplitter turns a region's raw text into its ordered import
// entries; importJoiner turns a merged entry list back into region text.
// The textual shape of "one import" differs by language (Go's
// parenthesized block vs. one statement per line elsewhere), so each
// language owns a splitter/joiner pair, but all of them feed the single
// shared commutative-merge routine below — the part of this file that
// actually implements spec §4.6.
type importSplitter func(content []byte) []importEntry
type importJoiner func(entries []importEntry) []byte

var importSplitters = map[string]importSplitter{
	"go":         splitGoImportBlock,
	"python":     splitPrefixedImportLines("import ", "from "),
	"rust":       splitPrefixedImportLines("use ", "pub use "),
	"javascript": splitImportStatements,
	"typescript": splitImportStatements,
}

var importJoiners = map[string]importJoiner{
	"go":         joinGoImportBlock,
	"python":     joinImportLines,
	"rust":       joinImportLines,
	"javascript": joinImportLines,
	"typescript": joinImportLines,
}

// MergeImports performs the commutative import-region merge spec §4.6
// describes. Unrecognized languages have no splitter/joiner registered and
// fall back to a plain line-level three-way merge of the raw region text.
func MergeImports(base, ours, theirs []byte, language string) ([]byte, bool) {
	split, splitOK := importSplitters[language]
	join, joinOK := importJoiners[language]
	if !splitOK || !joinOK {
		result := diff3.Merge(base, ours, theirs)
		return result.Merged, result.HasConflicts
	}
	merged := mergeImportEntries(split(base), split(ours), split(theirs))
	return join(merged), false
}

// mergeImportEntries implements spec §4.6 points 2-4: an entry present in
// base survives unless both sides dropped it; additions are appended
// ours-first in ours' order, then any theirs-only entry not already added
// by ours, in theirs' order. Base order is preserved for kept entries.
func mergeImportEntries(base, ours, theirs []importEntry) []importEntry {
	oursSet := importEntrySet(ours)
	theirsSet := importEntrySet(theirs)
	baseSet := importEntrySet(base)

	var result []importEntry
	seen := map[string]bool{}

	for _, e := range base {
		if !oursSet[e.key] && !theirsSet[e.key] {
			continue // dropped by both sides
		}
		if seen[e.key] {
			continue
		}
		seen[e.key] = true
		result = append(result, e)
	}
	for _, e := range ours {
		if baseSet[e.key] || seen[e.key] {
			continue
		}
		seen[e.key] = true
		result = append(result, e)
	}
	for _, e := range theirs {
		if baseSet[e.key] || seen[e.key] {
			continue
		}
		seen[e.key] = true
		result = append(result, e)
	}
	return result
}

func importEntrySet(entries []importEntry) map[string]bool {
	s := make(map[string]bool, len(entries))
	for _, e := range entries {
		s[e.key] = true
	}
	return s
}

// splitGoImportBlock parses both the single-line `import "fmt"` form and
// the parenthesized block form into one entry per import spec.
func splitGoImportBlock(content []byte) []importEntry {
	text := strings.TrimSpace(string(content))
	text = strings.TrimPrefix(text, "import")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "(")
	text = strings.TrimSuffix(text, ")")

	var entries []importEntry
	for _, line := range strings.Split(text, "\n") {
		spec := strings.TrimSpace(line)
		if spec == "" {
			continue
		}
		entries = append(entries, importEntry{key: normalizeImportKey(spec), line: spec})
	}
	return entries
}

func joinGoImportBlock(entries []importEntry) []byte {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) == 1 {
		return []byte("import " + entries[0].line)
	}
	var b strings.Builder
	b.WriteString("import (\n")
	for _, e := range entries {
		b.WriteString("\t")
		b.WriteString(e.line)
		b.WriteString("\n")
	}
	b.WriteString(")")
	return []byte(b.String())
}

// splitPrefixedImportLines returns a splitter that treats each line
// starting with one of prefixes as a single entry (Python's "import "/
// "from ", Rust's "use "/"pub use ").
func splitPrefixedImportLines(prefixes ...string) importSplitter {
	return func(content []byte) []importEntry {
		var entries []importEntry
		for _, raw := range strings.Split(string(content), "\n") {
			trimmed := strings.TrimSpace(raw)
			if trimmed == "" {
				continue
			}
			matched := false
			for _, p := range prefixes {
				if strings.HasPrefix(trimmed, p) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			entries = append(entries, importEntry{key: normalizeImportKey(trimmed), line: trimmed})
		}
		return entries
	}
}

// splitImportStatements treats each non-empty line of a JS/TS import
// region as one entry. Multi-line destructured import statements are rare
// enough in practice, and always reducible by a formatter back to this
// shape, that this engine does not attempt to join them before comparing.
func splitImportStatements(content []byte) []importEntry {
	var entries []importEntry
	for _, raw := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		entries = append(entries, importEntry{key: normalizeImportKey(trimmed), line: trimmed})
	}
	return entries
}

func joinImportLines(entries []importEntry) []byte {
	if len(entries) == 0 {
		return nil
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.line
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
