package merge

import (
	"bytes"
	"strings"

	"github.com/odvcencio/weave/pkg/diff3"
)

// decoratorLinePrefixes recognizes the annotation/decorator/attribute
// syntaxes of the languages this engine supports: Python/Java (@Foo),
// Rust (#[derive(...)]), and C#-style attributes reuse the same "#[" form
// closely enough to share the prefix check.
var decoratorLinePrefixes = []string{"@", "#["}

// javadocTagPrefixes are @-prefixed lines that document a declaration
// rather than decorate it; they must not be treated as decorator lines or
// the commutative decorator merge would shuffle doc-comment tags.
var javadocTagPrefixes = []string{"@param", "@return", "@type", "@see"}

func isDecoratorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, tag := range javadocTagPrefixes {
		if strings.HasPrefix(trimmed, tag) {
			return false
		}
	}
	for _, p := range decoratorLinePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// splitDecorators separates a leading run of decorator lines from the rest
// of a declaration body. It returns the decorator lines (without trailing
// newline) and the remaining body bytes starting at the first non-decorator
// line.
func splitDecorators(body []byte) (decorators []string, rest []byte) {
	lines := bytes.SplitAfter(body, []byte("\n"))
	i := 0
	for i < len(lines) {
		line := string(bytes.TrimRight(lines[i], "\n"))
		if !isDecoratorLine(line) {
			break
		}
		decorators = append(decorators, line)
		i++
	}
	rest = bytes.Join(lines[i:], nil)
	return decorators, rest
}

// tryDecoratorAwareMerge is attempted when a whole-entity text 3-way merge
// conflicts. It splits each side's body into its leading decorator lines
// and the remaining declaration body, merges the decorator sets
// commutatively (a removal on either side wins, additions append
// ours-first), and merges the remaining body with diff3. It reports
// ok=false if the body itself still conflicts, letting the caller fall
// through to inner-entity or marker-conflict handling.
func tryDecoratorAwareMerge(base, ours, theirs []byte, opts cascadeOptions) (merged []byte, ok bool) {
	baseDecorators, baseBody := splitDecorators(base)
	oursDecorators, oursBody := splitDecorators(ours)
	theirsDecorators, theirsBody := splitDecorators(theirs)

	if len(baseDecorators) == 0 && len(oursDecorators) == 0 && len(theirsDecorators) == 0 {
		// Nothing decorator-like here; this strategy does not apply.
		return nil, false
	}

	mergedDecorators := mergeDecoratorSets(baseDecorators, oursDecorators, theirsDecorators, opts.excludeDecoratorTags)

	if bytes.Equal(oursBody, theirsBody) {
		return assembleDecorated(mergedDecorators, oursBody), true
	}

	result := diff3.Merge(baseBody, oursBody, theirsBody)
	if result.HasConflicts {
		return nil, false
	}
	return assembleDecorated(mergedDecorators, result.Merged), true
}

// mergeDecoratorSets performs a commutative set merge over decorator lines:
// base's sequence survives minus anything either side removed, then ours'
// additions are appended in ours' order, then theirs' additions not already
// appended, in theirs' order. Decorators whose tag name is in exclude are
// dropped from the result regardless of which side carries them.
func mergeDecoratorSets(base, ours, theirs []string, exclude map[string]bool) []string {
	baseSet := toStringSet(base)
	oursSet := toStringSet(ours)
	theirsSet := toStringSet(theirs)

	var out []string
	seen := map[string]bool{}
	keep := func(d string) {
		if seen[d] || exclude[decoratorTag(d)] {
			return
		}
		seen[d] = true
		out = append(out, d)
	}
	for _, d := range base {
		if !oursSet[d] || !theirsSet[d] {
			continue // removed on at least one side
		}
		keep(d)
	}
	for _, group := range [][]string{ours, theirs} {
		for _, d := range group {
			if baseSet[d] {
				continue
			}
			keep(d)
		}
	}
	return out
}

// decoratorTag extracts the bare annotation name from a decorator line:
// "@Generated(...)" -> "Generated", "#[derive(Debug)]" -> "derive".
func decoratorTag(line string) string {
	t := strings.TrimSpace(line)
	t = strings.TrimPrefix(t, "@")
	t = strings.TrimPrefix(t, "#[")
	end := 0
	for end < len(t) && isIdentRune(t[end]) {
		end++
	}
	return t[:end]
}

func toStringSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

func assembleDecorated(decorators []string, body []byte) []byte {
	if len(decorators) == 0 {
		return body
	}
	var buf bytes.Buffer
	for _, d := range decorators {
		buf.WriteString(d)
		buf.WriteByte('\n')
	}
	buf.Write(body)
	return buf.Bytes()
}
