package diff3

import (
	"bytes"
	"strings"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk was merged cleanly.
	HunkConflict                 // Hunk has a conflict that requires manual resolution.
)

// Hunk represents a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged       []byte // Full merged content (with conflict markers if conflicts exist).
	HasConflicts bool   // True if any hunk is a conflict.
	Hunks        []Hunk // Individual hunks in document order.
}

// DiffLine is a single line in the output of LineDiff.
type DiffLine struct {
	Type    DiffType
	Content string
}

// LineDiff computes a line-level diff between byte slices a and b.
func LineDiff(a, b []byte) []DiffLine {
	ops := MyersDiff(splitLines(string(a)), splitLines(string(b)))
	result := make([]DiffLine, len(ops))
	for i, op := range ops {
		result[i] = DiffLine{Type: op.Type, Content: op.Line}
	}
	return result
}

// splitLines splits s into lines. A trailing newline does not produce an
// extra empty element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// span is a contiguous run of base positions produced by diffing base
// against one side. An unchanged span covers exactly one base line and
// carries that same line; a changed span covers zero or more base lines
// (zero for a pure insertion) and carries the side's replacement lines.
type span struct {
	baseStart, baseEnd int
	lines              []string
	changed            bool
}

// diffSpans decodes an edit script from base to side into spans anchored
// to base positions.
func diffSpans(base, side []string) []span {
	ops := MyersDiff(base, side)

	var spans []span
	baseIdx, i := 0, 0
	for i < len(ops) {
		if ops[i].Type == Equal {
			spans = append(spans, span{baseStart: baseIdx, baseEnd: baseIdx + 1, lines: []string{ops[i].Line}})
			baseIdx++
			i++
			continue
		}
		start := baseIdx
		var lines []string
		for i < len(ops) && ops[i].Type != Equal {
			if ops[i].Type == Delete {
				baseIdx++
			} else {
				lines = append(lines, ops[i].Line)
			}
			i++
		}
		spans = append(spans, span{baseStart: start, baseEnd: baseIdx, lines: lines, changed: true})
	}
	return spans
}

// unchangedPositions marks, for each base index, whether side's spans
// pass that single base line through untouched.
func unchangedPositions(n int, spans []span) []bool {
	mask := make([]bool, n)
	for _, s := range spans {
		if !s.changed {
			mask[s.baseStart] = true
		}
	}
	return mask
}

// spanCursor walks a side's spans forward, accumulating the replacement
// lines for base positions up to (and including) a given boundary. It is
// only ever advanced, never rewound, so a full Merge pass visits each
// span exactly once.
type spanCursor struct {
	spans []span
	at    int
}

func (c *spanCursor) through(boundary int) (lines []string, changed bool) {
	for c.at < len(c.spans) && c.spans[c.at].baseEnd <= boundary {
		s := c.spans[c.at]
		lines = append(lines, s.lines...)
		changed = changed || s.changed
		c.at++
	}
	return lines, changed
}

// Merge performs a three-way merge of base, ours, and theirs.
//
// base is diffed against ours and against theirs independently, giving
// each side's changes as base-anchored spans. A base position is a true
// synchronization point only when BOTH sides pass it through unchanged;
// between consecutive synchronization points, whatever either side did
// (a single edit, or several smaller ones the other side split through)
// is resolved as one region: clean if only one side touched it or both
// made the same edit, a conflict otherwise.
func Merge(base, ours, theirs []byte) Result {
	baseLines := splitLines(string(base))
	oursSpans := diffSpans(baseLines, splitLines(string(ours)))
	theirsSpans := diffSpans(baseLines, splitLines(string(theirs)))

	n := len(baseLines)
	oursSynced := unchangedPositions(n, oursSpans)
	theirsSynced := unchangedPositions(n, theirsSpans)

	oursCursor := &spanCursor{spans: oursSpans}
	theirsCursor := &spanCursor{spans: theirsSpans}

	var merged bytes.Buffer
	var hunks []Hunk
	hasConflicts := false

	for pos := 0; ; {
		regionEnd := pos + 1
		if n == 0 {
			regionEnd = 0
		} else {
			for regionEnd < n && !(oursSynced[regionEnd] && theirsSynced[regionEnd]) {
				regionEnd++
			}
		}

		oursOut, oursChanged := oursCursor.through(regionEnd)
		theirsOut, theirsChanged := theirsCursor.through(regionEnd)
		baseRegion := baseLines[pos:regionEnd]

		hunk, conflict := resolveRegion(&merged, baseRegion, oursOut, oursChanged, theirsOut, theirsChanged)
		hunks = append(hunks, hunk)
		hasConflicts = hasConflicts || conflict

		pos = regionEnd
		if pos >= n {
			break
		}
	}

	return Result{Merged: merged.Bytes(), HasConflicts: hasConflicts, Hunks: hunks}
}

// resolveRegion decides how one region between synchronization points
// merges, writes the chosen output to merged, and returns the hunk
// describing the decision.
func resolveRegion(merged *bytes.Buffer, baseRegion, oursOut []string, oursChanged bool, theirsOut []string, theirsChanged bool) (Hunk, bool) {
	switch {
	case !oursChanged && !theirsChanged:
		writeLines(merged, baseRegion)
		return Hunk{Type: HunkClean, Base: joinLines(baseRegion), Merged: joinLines(baseRegion)}, false

	case oursChanged && !theirsChanged:
		writeLines(merged, oursOut)
		return Hunk{Type: HunkClean, Base: joinLines(baseRegion), Ours: joinLines(oursOut), Merged: joinLines(oursOut)}, false

	case !oursChanged && theirsChanged:
		writeLines(merged, theirsOut)
		return Hunk{Type: HunkClean, Base: joinLines(baseRegion), Theirs: joinLines(theirsOut), Merged: joinLines(theirsOut)}, false

	default:
		if linesEqual(oursOut, theirsOut) {
			writeLines(merged, oursOut)
			return Hunk{Type: HunkClean, Base: joinLines(baseRegion), Ours: joinLines(oursOut), Merged: joinLines(oursOut)}, false
		}
		writeConflict(merged, oursOut, theirsOut)
		return Hunk{Type: HunkConflict, Base: joinLines(baseRegion), Ours: joinLines(oursOut), Theirs: joinLines(theirsOut)}, true
	}
}

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
}

func writeConflict(buf *bytes.Buffer, oursLines, theirsLines []string) {
	buf.WriteString("<<<<<<< ours\n")
	writeLines(buf, oursLines)
	buf.WriteString("=======\n")
	writeLines(buf, theirsLines)
	buf.WriteString(">>>>>>> theirs\n")
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	writeLines(&buf, lines)
	return buf.Bytes()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
