package merge

import (
	"bytes"
	"strings"

	"github.com/odvcencio/weave/pkg/diff3"
)

// containerDeclKinds lists the DeclKind values whose body is itself a list
// of independently mergeable members (class/struct/interface/enum/impl
// bodies), mirroring is_container_entity_type.
var containerDeclKinds = map[string]bool{
	"class_definition":      true,
	"class_declaration":     true,
	"interface_declaration": true,
	"struct_declaration":    true,
	"struct_item":           true,
	"enum_declaration":      true,
	"enum_item":             true,
	"trait_declaration":     true,
	"trait_item":            true,
	"impl_item":             true,
	"object_declaration":    true,
	"record_declaration":    true,
	"protocol_declaration":  true,
}

// memberLeadingKeywords is stripped from the front of a member's first line
// before the remainder is used as the member's identity, matching
// extract_member_name's keyword list.
var memberLeadingKeywords = []string{
	"export", "public", "private", "protected", "static", "abstract",
	"async", "override", "readonly", "pub(crate)", "pub", "fn", "def",
	"get", "set",
}

// memberChunk is one independently-mergeable unit inside a container body.
type memberChunk struct {
	name string
	body string
}

// tryInnerEntityMerge is attempted when a whole-entity merge and a
// decorator-aware merge both fail for a container declaration. It splits
// each side's body into a header, a list of member chunks, and a footer,
// matches members by name across base/ours/theirs, and recursively merges
// each member the same way top-level declarations are merged (whitespace
// shortcut, diff3, decorator split, then descent into nested containers
// up to opts.maxInnerDepth levels). It reports ok=false if any member
// itself conflicts, or if the container shape could not be split reliably.
func tryInnerEntityMerge(declKind string, base, ours, theirs []byte, opts cascadeOptions) (merged []byte, ok bool) {
	return innerEntityMerge(declKind, base, ours, theirs, 1, opts)
}

func innerEntityMerge(declKind string, base, ours, theirs []byte, depth int, opts cascadeOptions) (merged []byte, ok bool) {
	if !containerDeclKinds[declKind] {
		return nil, false
	}
	if depth > opts.maxInnerDepth {
		return nil, false
	}

	_, baseMembers, _, baseOK := extractContainerWrapper(base)
	oursHeader, oursMembers, oursFooter, oursOK := extractContainerWrapper(ours)
	_, theirsMembers, _, theirsOK := extractContainerWrapper(theirs)
	if !baseOK || !oursOK || !theirsOK {
		return nil, false
	}

	baseByName := memberMapByName(baseMembers)
	oursByName := memberMapByName(oursMembers)
	theirsByName := memberMapByName(theirsMembers)

	order := orderedMemberNames(baseMembers, oursMembers, theirsMembers)

	var mergedMembers []string
	multiline := false
	for _, name := range order {
		b, inBase := baseByName[name]
		o, inOurs := oursByName[name]
		t, inTheirs := theirsByName[name]

		body, memberOK := resolveMember(b, inBase, o, inOurs, t, inTheirs, depth, opts)
		if !memberOK {
			return nil, false
		}
		if body == "" {
			continue // deleted by agreement or single-side deletion honored
		}
		if strings.Contains(strings.TrimRight(body, "\n"), "\n") {
			multiline = true
		}
		mergedMembers = append(mergedMembers, body)
	}

	sep := "\n"
	if multiline {
		sep = "\n\n"
	}

	var buf bytes.Buffer
	buf.WriteString(oursHeader)
	buf.WriteString(strings.Join(mergedMembers, sep))
	if len(mergedMembers) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString(oursFooter)
	return buf.Bytes(), true
}

// resolveMember applies the same three-way presence table used for
// top-level entities, but scoped to a single container member, recursing
// into diff3 — and, for members that are themselves containers, back into
// the inner-entity merge one level deeper — for bodies that changed on
// both sides.
func resolveMember(base string, inBase bool, ours string, inOurs bool, theirs string, inTheirs bool, depth int, opts cascadeOptions) (string, bool) {
	switch {
	case inBase && inOurs && inTheirs:
		if ours == theirs {
			return ours, true
		}
		if base == ours {
			return theirs, true
		}
		if base == theirs {
			return ours, true
		}
		oursWhitespaceOnly := isWhitespaceOnlyDiff([]byte(base), []byte(ours))
		theirsWhitespaceOnly := isWhitespaceOnlyDiff([]byte(base), []byte(theirs))
		switch {
		case oursWhitespaceOnly && !theirsWhitespaceOnly:
			return theirs, true
		case theirsWhitespaceOnly && !oursWhitespaceOnly:
			return ours, true
		}
		result := diff3.Merge([]byte(base), []byte(ours), []byte(theirs))
		if !result.HasConflicts {
			return string(result.Merged), true
		}
		if merged, ok := tryDecoratorAwareMerge([]byte(base), []byte(ours), []byte(theirs), opts); ok {
			return string(merged), true
		}
		if kind := memberContainerKind(ours); kind != "" {
			if merged, ok := innerEntityMerge(kind, []byte(base), []byte(ours), []byte(theirs), depth+1, opts); ok {
				return string(merged), true
			}
		}
		if merged, conflicted := lineLevelFallback([]byte(base), []byte(ours), []byte(theirs)); !conflicted {
			return string(merged), true
		}
		return "", false

	case inBase && inOurs && !inTheirs:
		if ours != base {
			return "", false // modified by ours, deleted by theirs: conflict
		}
		return "", true // agreed deletion

	case inBase && !inOurs && inTheirs:
		if theirs != base {
			return "", false
		}
		return "", true

	case inBase && !inOurs && !inTheirs:
		return "", true

	case !inBase && inOurs && !inTheirs:
		return ours, true

	case !inBase && !inOurs && inTheirs:
		return theirs, true

	case !inBase && inOurs && inTheirs:
		if ours == theirs {
			return ours, true
		}
		return "", false
	}
	return "", true
}

func memberMapByName(members []memberChunk) map[string]string {
	m := make(map[string]string, len(members))
	for _, mc := range members {
		m[mc.name] = mc.body
	}
	return m
}

// orderedMemberNames collects member names in a stable order: base members
// first (in base order), then new names from ours, then new names from
// theirs, so additions from either side land deterministically.
func orderedMemberNames(base, ours, theirs []memberChunk) []string {
	seen := map[string]bool{}
	var order []string
	for _, group := range [][]memberChunk{base, ours, theirs} {
		for _, mc := range group {
			if !seen[mc.name] {
				seen[mc.name] = true
				order = append(order, mc.name)
			}
		}
	}
	return order
}

// extractContainerWrapper splits a container declaration's body into a
// header (through the opening brace/colon), its member chunks, and a
// footer (the closing brace, or nothing for Python-style colon bodies).
func extractContainerWrapper(body []byte) (header string, members []memberChunk, footer string, ok bool) {
	text := string(body)
	if idx := strings.Index(text, "{"); idx >= 0 {
		hEnd := idx + 1
		if hEnd < len(text) && text[hEnd] == '\n' {
			hEnd++
		}
		header = text[:hEnd]
		closeIdx := strings.LastIndex(text, "}")
		if closeIdx < hEnd {
			return "", nil, "", false
		}
		inner := text[hEnd:closeIdx]
		footer = text[closeIdx:]
		members = extractMemberChunks(inner)
		return header, members, footer, true
	}
	if idx := strings.Index(text, ":"); idx >= 0 {
		// Python-style container: header ends at the colon/newline, body is
		// everything indented beneath it, no explicit footer.
		nl := strings.Index(text[idx:], "\n")
		if nl < 0 {
			return "", nil, "", false
		}
		header = text[:idx+nl+1]
		inner := text[idx+nl+1:]
		members = extractMemberChunks(inner)
		return header, members, "", true
	}
	return "", nil, "", false
}

// extractMemberChunks splits a container body interior into member chunks
// by detecting the indentation level of the first non-blank line and
// treating every subsequent line at that same (or lesser) indentation as
// the start of a new member.
func extractMemberChunks(inner string) []memberChunk {
	lines := strings.SplitAfter(inner, "\n")

	memberIndent := -1
	braceDepth := 0
	var chunks []memberChunk
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.Join(current, "")
		if strings.TrimSpace(body) == "" {
			current = nil
			return
		}
		chunks = append(chunks, memberChunk{name: extractMemberName(body), body: strings.TrimRight(body, "\n")})
		current = nil
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				current = append(current, line)
			}
			continue
		}
		indent := leadingWhitespace(line)
		if memberIndent == -1 {
			memberIndent = indent
		}
		// A member-indent line only starts a new member once the previous
		// member's braces have closed; otherwise a nested container's
		// closing brace would chunk as a member of its own.
		if braceDepth == 0 && indent <= memberIndent && len(current) > 0 {
			flush()
		}
		current = append(current, line)
		braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
		if braceDepth < 0 {
			braceDepth = 0
		}
	}
	flush()

	return attachMemberPreambles(chunks)
}

// memberContainerKind maps a member declaration's keyword to the container
// DeclKind the chunker understands, so a member that is itself a nested
// class/enum/etc. can recurse; "" for plain members.
func memberContainerKind(body string) string {
	firstLine := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isDecoratorLine(line) || isCommentLineText(trimmed) {
			continue
		}
		firstLine = trimmed
		break
	}
	for _, tok := range strings.Fields(firstLine) {
		switch tok {
		case "class":
			return "class_declaration"
		case "interface":
			return "interface_declaration"
		case "enum":
			return "enum_declaration"
		case "struct":
			return "struct_declaration"
		case "trait":
			return "trait_declaration"
		case "impl":
			return "impl_item"
		}
	}
	return ""
}

// attachMemberPreambles folds a chunk consisting solely of decorator and
// comment lines into the chunk after it, so annotations travel with the
// member they decorate instead of chunking as members of their own.
func attachMemberPreambles(chunks []memberChunk) []memberChunk {
	var out []memberChunk
	var pending string
	for _, c := range chunks {
		if isMemberPreamble(c.body) {
			pending += c.body + "\n"
			continue
		}
		if pending != "" {
			c.body = pending + c.body
			pending = ""
		}
		out = append(out, c)
	}
	if pending != "" {
		// Trailing decorators with no member to attach to; keep them as a
		// final chunk rather than dropping text.
		out = append(out, memberChunk{name: extractMemberName(pending), body: strings.TrimRight(pending, "\n")})
	}
	return out
}

func isMemberPreamble(body string) bool {
	any := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !isDecoratorLine(line) && !isCommentLineText(trimmed) {
			return false
		}
		any = true
	}
	return any
}


func leadingWhitespace(line string) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return n
}

// extractMemberName derives a stable member identity from the member's
// declaration line (the first line that is neither blank, comment, nor
// decorator). Leading modifier keywords are stripped; a call-shaped
// declaration names the identifier before the first '(', while field- and
// variable-shaped declarations name the last identifier before the
// initializer/type annotation ("int count = 1" is count, "x: number" is x).
func extractMemberName(body string) string {
	firstLine := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isDecoratorLine(line) || isCommentLineText(trimmed) {
			continue
		}
		firstLine = trimmed
		break
	}
	if firstLine == "" {
		return body
	}

	tokens := strings.Fields(firstLine)
	i := 0
	for i < len(tokens) {
		stripped := false
		for _, kw := range memberLeadingKeywords {
			if tokens[i] == kw {
				i++
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	if i >= len(tokens) {
		return firstLine
	}

	decl := strings.Join(tokens[i:], " ")
	if paren := strings.IndexByte(decl, '('); paren >= 0 {
		seg := decl[:paren]
		// Generic parameter lists sit between the name and the parens.
		if lt := strings.IndexByte(seg, '<'); lt >= 0 {
			seg = seg[:lt]
		}
		if name := lastIdentifierIn(seg); name != "" {
			return name
		}
	}
	if stop := strings.IndexAny(decl, "=:;{"); stop >= 0 {
		decl = decl[:stop]
	}
	if name := lastIdentifierIn(decl); name != "" {
		return name
	}
	return firstLine
}

// lastIdentifierIn returns the final run of identifier characters in s.
func lastIdentifierIn(s string) string {
	end := -1
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		isIdent := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if isIdent && end < 0 {
			end = i + 1
		}
		if !isIdent && end >= 0 {
			return s[i+1 : end]
		}
	}
	if end >= 0 {
		return s[:end]
	}
	return ""
}
