package merge

import (
	"bytes"
	"strings"

	"github.com/odvcencio/weave/pkg/diff3"
)

// separatorChars are the structural punctuation characters the Sesame
// preprocessing pass isolates onto their own line before running a
// line-level diff3, so that "foo(); bar();" on one line and a rewritten
// "foo();\nbar();" on the other do not spuriously conflict over line
// boundaries that carry no real structure.
const separatorChars = "{};"

// expandSeparators rewrites src so every occurrence of a separator
// character outside a string or character literal is followed by a
// newline, using a three-state scanner (normal / in-string / escaped) that
// understands single, double, and backtick-quoted strings and backslash
// escaping within them.
func expandSeparators(src []byte) []byte {
	var out bytes.Buffer
	inString := byte(0)
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		out.WriteByte(c)

		if inString != 0 {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == inString {
				inString = 0
			}
			continue
		}

		switch c {
		case '"', '\'', '`':
			inString = c
		default:
			if strings.IndexByte(separatorChars, c) >= 0 {
				if i+1 >= len(src) || src[i+1] != '\n' {
					out.WriteByte('\n')
				}
			}
		}
	}
	return out.Bytes()
}

// collapseSeparators reverses expandSeparators' line-breaking: a line
// consisting solely of a separator character is joined onto the previous
// line with no intervening newline. It is not a byte-exact inverse of
// expandSeparators when the input already had separator-only lines
// (those collapse too), which is the desired behavior — collapse always
// produces the most compact form for the next merge to operate on.
func collapseSeparators(src []byte) []byte {
	lines := bytes.Split(src, []byte("\n"))
	var out bytes.Buffer
	for i, line := range lines {
		trimmed := bytes.TrimSpace(line)
		isBareSeparator := len(trimmed) == 1 && strings.IndexByte(separatorChars, trimmed[0]) >= 0
		if isBareSeparator && out.Len() > 0 {
			// Drop the newline written for the previous line and append the
			// separator directly.
			b := out.Bytes()
			if len(b) > 0 && b[len(b)-1] == '\n' {
				out.Truncate(out.Len() - 1)
			}
			out.Write(trimmed)
		} else {
			out.Write(line)
		}
		if i < len(lines)-1 {
			out.WriteByte('\n')
		}
	}
	return out.Bytes()
}

// sesameDiff3 is the engine's last resort when structural extraction fails
// entirely (unparseable source) or an entity is too large/ambiguous to
// merge structurally: Sesame-expand all three sides so brace/semicolon
// structure lines up across reformatted code, then run classic line diff3
// over the expanded text. Callers collapse clean hunks back to compact
// form themselves (see mergeTextFallback), since collapsing conflict
// marker lines would corrupt them.
func sesameDiff3(base, ours, theirs []byte) diff3.Result {
	return diff3.Merge(expandSeparators(base), expandSeparators(ours), expandSeparators(theirs))
}

// lineLevelFallback runs sesameDiff3 and collapses the entire result,
// including any conflict bodies, back to compact form. It is used by
// callers (the inner-entity and decorator mergers) that only care about a
// clean merge and discard the result on conflict, so collapsing marker
// text is harmless — they never render it.
func lineLevelFallback(base, ours, theirs []byte) ([]byte, bool) {
	result := sesameDiff3(base, ours, theirs)
	return collapseSeparators(result.Merged), result.HasConflicts
}
