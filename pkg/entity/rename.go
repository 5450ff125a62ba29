package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// identPlaceholder replaces a declaration's own name in its body before
// hashing, so two declarations that differ only by name produce the same
// hash. The placeholder itself must never collide with a real identifier.
const identPlaceholder = "__weave_entity__"

// isIdentChar reports whether b is part of a C-family identifier. Matching
// is byte-oriented; multi-byte UTF-8 identifier characters (permitted by
// some grammars) are treated as non-identifier boundary bytes, which only
// widens the set of safe replacement points.
func isIdentChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// replaceAtWordBoundaries replaces every whole-word occurrence of old in src
// with replacement, leaving occurrences that are part of a longer
// identifier untouched. It operates byte-wise and is safe on UTF-8 input
// because continuation bytes (0x80-0xBF) are never identifier characters
// under isIdentChar, so a match can never start or end mid-rune.
func replaceAtWordBoundaries(src, old, replacement string) string {
	if old == "" {
		return src
	}
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	for i < len(src) {
		idx := strings.Index(src[i:], old)
		if idx < 0 {
			b.WriteString(src[i:])
			break
		}
		start := i + idx
		end := start + len(old)

		boundaryBefore := start == 0 || !isIdentChar(src[start-1])
		boundaryAfter := end == len(src) || !isIdentChar(src[end])

		b.WriteString(src[i:start])
		if boundaryBefore && boundaryAfter {
			b.WriteString(replacement)
		} else {
			b.WriteString(old)
		}
		i = end
	}
	return b.String()
}

// BodyHash computes a rename-insensitive content hash for e: its own name
// (if any) is stripped from Body at word boundaries before hashing, so
// renaming a function without touching its body yields the same hash.
func BodyHash(e *Entity) string {
	body := string(e.Body)
	if e.Name != "" {
		body = replaceAtWordBoundaries(body, e.Name, identPlaceholder)
	}
	normalized := strings.Join(strings.Fields(body), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// ComputeStructuralHash sets e.StructuralHash to a shape-only fingerprint:
// DeclKind plus Body with every run of identifier characters collapsed to a
// single placeholder token. Two declarations of the same kind with the same
// token skeleton (say, an identical guard-clause shape with different
// variable names throughout) hash equal here even when BodyHash misses
// because more than just the declaration's own name changed.
func (e *Entity) ComputeStructuralHash() {
	var skeleton strings.Builder
	skeleton.Grow(len(e.Body))
	skeleton.WriteString(e.DeclKind)
	skeleton.WriteByte(':')

	body := e.Body
	i := 0
	for i < len(body) {
		if isIdentChar(body[i]) {
			j := i
			for j < len(body) && isIdentChar(body[j]) {
				j++
			}
			skeleton.WriteString(identPlaceholder)
			i = j
			continue
		}
		if body[i] == ' ' || body[i] == '\t' || body[i] == '\n' || body[i] == '\r' {
			skeleton.WriteByte(' ')
			for i < len(body) && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n' || body[i] == '\r') {
				i++
			}
			continue
		}
		skeleton.WriteByte(body[i])
		i++
	}

	h := sha256.Sum256([]byte(skeleton.String()))
	e.StructuralHash = hex.EncodeToString(h[:])
}

// RenameMap maps a new-side identity key to the base identity key it was
// renamed from.
type RenameMap map[string]string

// BuildRenameMap matches declarations present in base against declarations
// newly appearing on one revision side (added relative to base) by content
// shape rather than identity key. Body hash (name-insensitive) is tried
// first; structural hash is the fallback when no body hash matches. The
// match is injective on the base side: once a base entity is claimed by one
// new-side key, it cannot be claimed again, so two independent renames
// never collapse onto a single base entity. Both passes walk keys in
// entity order, never map order, so hash-collision tie-breaks (which base
// entity a candidate claims first) are identical across runs.
func BuildRenameMap(base *EntityList, revision *EntityList) RenameMap {
	if base == nil || revision == nil {
		return nil
	}

	baseKeys := BuildEntityMap(base)
	revKeys := BuildEntityMap(revision)

	baseByBodyHash := map[string][]string{}   // bodyHash -> base keys in entity order
	baseByStructHash := map[string][]string{} // structHash -> base keys in entity order
	for _, key := range OrderedIdentityKeys(base) {
		e := baseKeys[key]
		if e.Kind != KindDeclaration {
			continue
		}
		if _, exists := revKeys[key]; exists {
			// Still present under the same identity; not a rename candidate.
			continue
		}
		bh := BodyHash(e)
		baseByBodyHash[bh] = append(baseByBodyHash[bh], key)
		if e.StructuralHash == "" {
			e.ComputeStructuralHash()
		}
		baseByStructHash[e.StructuralHash] = append(baseByStructHash[e.StructuralHash], key)
	}

	claimed := map[string]bool{}
	renames := RenameMap{}
	firstUnclaimed := func(keys []string) (string, bool) {
		for _, k := range keys {
			if !claimed[k] {
				return k, true
			}
		}
		return "", false
	}

	for _, key := range OrderedIdentityKeys(revision) {
		e := revKeys[key]
		if e.Kind != KindDeclaration {
			continue
		}
		if _, inBase := baseKeys[key]; inBase {
			continue
		}
		bh := BodyHash(e)
		if baseKey, ok := firstUnclaimed(baseByBodyHash[bh]); ok {
			renames[key] = baseKey
			claimed[baseKey] = true
			continue
		}
		if e.StructuralHash == "" {
			e.ComputeStructuralHash()
		}
		if baseKey, ok := firstUnclaimed(baseByStructHash[e.StructuralHash]); ok {
			renames[key] = baseKey
			claimed[baseKey] = true
		}
	}

	return renames
}
