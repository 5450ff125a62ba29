package entity

import "strings"

// lineCommentPrefixes covers the doc/line-comment styles used by the
// grammars this package extracts (Go, TS/JS, Python, Rust, C/C++/Java).
var lineCommentPrefixes = []string{"///", "//!", "//", "#"}

// bundleLeadingComments walks declarations and, for each one preceded by an
// interstitial, moves the trailing contiguous comment block of that
// interstitial into the declaration's own Body. This mirrors
// find_leading_comment_start's tolerance of exactly one blank line between
// a doc comment and the declaration it documents, so:
//
//	// Frobnicate does a thing.
//	func Frobnicate() {}
//
// and
//
//	// Frobnicate does a thing.
//
//	func Frobnicate() {}
//
// both attach the comment to Frobnicate, while two or more blank lines
// leave the comment as a free-floating interstitial.
func bundleLeadingComments(el *EntityList) {
	entities := el.Entities
	for i := 1; i < len(entities); i++ {
		if entities[i].Kind != KindDeclaration {
			continue
		}
		prev := &entities[i-1]
		if prev.Kind != KindInterstitial || len(prev.Body) == 0 {
			continue
		}

		splitAt := findLeadingCommentStart(prev.Body)
		if splitAt < 0 {
			continue
		}

		commentBlock := prev.Body[splitAt:]
		keep := prev.Body[:splitAt]

		decl := &entities[i]
		decl.Body = append(append([]byte{}, commentBlock...), decl.Body...)
		decl.StartByte -= uint32(len(commentBlock))
		decl.ComputeHash()

		prev.Body = keep
		prev.EndByte -= uint32(len(commentBlock))
		prev.ComputeHash()
	}
}

// findLeadingCommentStart scans backward from the end of interstitial body
// for a contiguous run of comment lines (allowing exactly one interior
// blank line) and returns the byte offset where that run begins, or -1 if
// the interstitial does not end in a comment block at all.
func findLeadingCommentStart(body []byte) int {
	lines := splitKeepingEnds(body)
	if len(lines) == 0 {
		return -1
	}

	end := len(lines)
	// Ignore a single fully-blank trailing line (the blank line directly
	// above the declaration); more than one means the comment, if any, is
	// not "leading" for this declaration.
	if end > 0 && isBlankLine(lines[end-1]) {
		end--
		if end > 0 && isBlankLine(lines[end-1]) {
			return -1
		}
	}
	if end == 0 {
		return -1
	}

	blanksSeen := 0
	start := end
	for idx := end - 1; idx >= 0; idx-- {
		line := lines[idx]
		if isBlankLine(line) {
			blanksSeen++
			if blanksSeen > 1 {
				break
			}
			continue
		}
		if !isCommentLineBytes(line) {
			break
		}
		blanksSeen = 0
		start = idx
	}

	if start == end {
		return -1
	}

	offset := 0
	for i := 0; i < start; i++ {
		offset += len(lines[i])
	}
	return offset
}

func splitKeepingEnds(body []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(body); i++ {
		if body[i] == '\n' {
			lines = append(lines, body[start:i+1])
			start = i + 1
		}
	}
	if start < len(body) {
		lines = append(lines, body[start:])
	}
	return lines
}

func isBlankLine(line []byte) bool {
	return len(strings.TrimSpace(string(line))) == 0
}

func isCommentLineBytes(line []byte) bool {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return false
	}
	for _, prefix := range lineCommentPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") || strings.HasSuffix(trimmed, "*/")
}
