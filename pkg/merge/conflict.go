package merge

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/odvcencio/weave/pkg/entity"
)

// ConflictKind names what a conflict is about, independent of how hard it
// is to resolve.
type ConflictKind int

const (
	ConflictKindContentDiverged ConflictKind = iota
	ConflictKindDeleteVsModify
	ConflictKindRenameRename
	ConflictKindInterstitial
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictKindContentDiverged:
		return "content diverged"
	case ConflictKindDeleteVsModify:
		return "delete vs modify"
	case ConflictKindRenameRename:
		return "rename vs rename"
	case ConflictKindInterstitial:
		return "interstitial diverged"
	}
	return "unknown"
}

// ConflictComplexity is the T(ext)/S(yntax)/F(unctional) taxonomy: which
// dimensions of the declaration changed, on either side, in a conflict where
// both sides edited it. Dimensions combine (e.g. both the signature and the
// body changed -> S+F).
type ConflictComplexity int

const (
	ComplexityUnknown ConflictComplexity = iota
	ComplexityText                       // only comments/formatting differ
	ComplexitySyntax                     // signature changed
	ComplexityFunctional                 // body logic changed
	ComplexityTextSyntax
	ComplexityTextFunctional
	ComplexitySyntaxFunctional
	ComplexityTextSyntaxFunctional
)

func (c ConflictComplexity) String() string {
	switch c {
	case ComplexityText:
		return "T"
	case ComplexitySyntax:
		return "S"
	case ComplexityFunctional:
		return "F"
	case ComplexityTextSyntax:
		return "T+S"
	case ComplexityTextFunctional:
		return "T+F"
	case ComplexitySyntaxFunctional:
		return "S+F"
	case ComplexityTextSyntaxFunctional:
		return "T+S+F"
	}
	return "?"
}

// resolutionHint returns a fixed human-readable suggestion per complexity.
func (c ConflictComplexity) resolutionHint() string {
	switch c {
	case ComplexityText:
		return "likely safe to take either side; only formatting or comments differ"
	case ComplexitySyntax:
		return "review signature changes carefully; callers may need updates on both sides"
	case ComplexityFunctional:
		return "review both implementations; logic diverged and cannot be merged automatically"
	case ComplexityTextSyntax:
		return "signature changed alongside formatting; verify the merged signature is correct"
	case ComplexityTextFunctional:
		return "logic diverged; formatting differences are incidental"
	case ComplexitySyntaxFunctional:
		return "both the signature and the implementation diverged; manual reconciliation required"
	case ComplexityTextSyntaxFunctional:
		return "extensive divergence across signature, body, and formatting; review the whole declaration"
	}
	return "unable to classify this conflict; review both sides manually"
}

// confidence maps complexity to the coarse label carried in markers.
func (c ConflictComplexity) confidence() string {
	switch c {
	case ComplexityText:
		return "high"
	case ComplexitySyntax, ComplexityFunctional, ComplexityTextSyntax, ComplexityTextFunctional:
		return "medium"
	case ComplexitySyntaxFunctional, ComplexityTextSyntaxFunctional:
		return "low"
	default:
		return "unknown"
	}
}

// changeDimensions records, independently for ours and theirs, whether the
// declaration's signature and/or body-proper changed relative to base.
type changeDimensions struct {
	signatureChanged bool
	bodyChanged      bool
	commentOnly      bool
}

// classifyChange diffs a changed entity against base along the signature/
// body/comment axes. The signature is the first non-comment line of the
// entity text (leading doc comments are bundled into Body, so Signature on
// the entity itself is not enough); everything after it is the body proper.
func classifyChange(base, changed *entity.Entity) changeDimensions {
	if base == nil || changed == nil {
		return changeDimensions{bodyChanged: true}
	}
	baseSig, baseRest := splitSignatureLine(base.Body)
	chSig, chRest := splitSignatureLine(changed.Body)

	var dims changeDimensions
	dims.signatureChanged = normalizeSignatureText(baseSig) != normalizeSignatureText(chSig)

	baseBody := stripCommentLines(baseRest)
	changedBody := stripCommentLines(chRest)
	dims.bodyChanged = !bytes.Equal(baseBody, changedBody)
	dims.commentOnly = !dims.bodyChanged && !dims.signatureChanged && !bytes.Equal(base.Body, changed.Body)
	return dims
}

// splitSignatureLine returns the declaration header of body — the first
// non-comment non-blank line, truncated at the opening brace so a
// single-line function's body doesn't masquerade as its signature — and
// everything after the header as the body proper.
func splitSignatureLine(body []byte) (string, []byte) {
	lines := bytes.SplitAfter(body, []byte("\n"))
	for i, line := range lines {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || isCommentLineBytes(line) {
			continue
		}
		sig := string(bytes.TrimRight(line, "\n"))
		var tail []byte
		if idx := strings.IndexByte(sig, '{'); idx >= 0 {
			tail = []byte(sig[idx:] + "\n")
			sig = sig[:idx]
		}
		return sig, append(tail, bytes.Join(lines[i+1:], nil)...)
	}
	return "", nil
}

func normalizeSignatureText(s string) string {
	// Trailing line comments on the header don't make the signature differ.
	if idx := strings.Index(s, "//"); idx >= 0 {
		s = s[:idx]
	}
	return strings.Join(strings.Fields(s), " ")
}

// commentLinePrefixes is the comment-line set the classifier recognizes
// when deciding whether an edit touched anything beyond comments.
var commentLinePrefixes = []string{"//", "/*", "*", "#", `"""`, "'''"}

func isCommentLineBytes(line []byte) bool {
	return isCommentLineText(strings.TrimSpace(string(line)))
}

func isCommentLineText(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	for _, p := range commentLinePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// stripCommentLines removes whole-line comments so a comment-only edit does
// not register as a body change.
func stripCommentLines(body []byte) []byte {
	var out bytes.Buffer
	for _, line := range bytes.Split(body, []byte("\n")) {
		if isCommentLineBytes(line) {
			continue
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// classifyConflict determines the T/S/F complexity of a conflict between
// two divergent revisions of the same declaration relative to base. A
// dimension counts as changed when either side changed it.
func classifyConflict(base, ours, theirs *entity.Entity) ConflictComplexity {
	if base == nil {
		return ComplexityFunctional
	}
	oursDims := classifyChange(base, ours)
	theirsDims := classifyChange(base, theirs)

	textChanged := oursDims.commentOnly || theirsDims.commentOnly
	syntaxChanged := oursDims.signatureChanged || theirsDims.signatureChanged
	functionalChanged := oursDims.bodyChanged || theirsDims.bodyChanged

	switch {
	case syntaxChanged && functionalChanged && textChanged:
		return ComplexityTextSyntaxFunctional
	case syntaxChanged && functionalChanged:
		return ComplexitySyntaxFunctional
	case functionalChanged && textChanged:
		return ComplexityTextFunctional
	case syntaxChanged && textChanged:
		return ComplexityTextSyntax
	case functionalChanged:
		return ComplexityFunctional
	case syntaxChanged:
		return ComplexitySyntax
	case textChanged:
		return ComplexityText
	}
	return ComplexityUnknown
}

// EntityConflict is a single unresolved conflict produced by the merge
// engine, carrying enough information to render enhanced conflict markers
// and to be round-tripped back by ParseWeaveConflicts. BaseBody is the
// common-ancestor text when one existed; the three name fields are set
// only for rename/rename conflicts, and ModifiedInOurs only for
// delete-vs-modify (true when theirs deleted and ours kept editing).
type EntityConflict struct {
	EntityName string
	EntityType string
	Kind       ConflictKind
	Complexity ConflictComplexity
	BaseBody   []byte
	OursBody   []byte
	TheirsBody []byte

	ModifiedInOurs bool
	BaseName       string
	OursName       string
	TheirsName     string
}

// ToConflictMarkers renders c in weave's enhanced marker format: a header
// line naming the entity, its complexity, and a resolution hint, framing
// the usual <<<<<<< / ======= / >>>>>>> block. The hint line sits directly
// under the opening marker; the closing marker repeats the header metadata
// so either end of the block identifies the entity on its own.
func (c EntityConflict) ToConflictMarkers() []byte {
	label := fmt.Sprintf("%s `%s` (%s, confidence: %s)",
		c.EntityType, c.EntityName, c.Complexity, c.Complexity.confidence())
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<<<<<<< ours — %s\n", label)
	fmt.Fprintf(&buf, "// hint: %s\n", c.Complexity.resolutionHint())
	buf.Write(trimSingleTrailingNewline(c.OursBody))
	buf.WriteByte('\n')
	buf.WriteString("=======\n")
	buf.Write(trimSingleTrailingNewline(c.TheirsBody))
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, ">>>>>>> theirs — %s\n", label)
	return buf.Bytes()
}

func trimSingleTrailingNewline(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\n' {
		return b[:len(b)-1]
	}
	return b
}

// ParsedConflict is the result of parsing one enhanced conflict marker
// block back out of merged text.
type ParsedConflict struct {
	EntityType string
	EntityName string
	Complexity string
	Confidence string
	Hint       string
	Ours       string
	Theirs     string
}

// ParseWeaveConflicts scans merged for enhanced conflict marker blocks and
// returns one ParsedConflict per block found, in document order. Blocks
// that don't match the header format are still split on the body
// separators with empty metadata fields, so a plain <<<<<<< ours /
// >>>>>>> theirs block from the line-level fallback path still parses.
func ParseWeaveConflicts(merged []byte) []ParsedConflict {
	var out []ParsedConflict
	lines := strings.Split(string(merged), "\n")

	i := 0
	for i < len(lines) {
		if !strings.HasPrefix(lines[i], "<<<<<<< ours") {
			i++
			continue
		}
		header := lines[i]
		pc := parseConflictHeader(header)
		i++

		if i < len(lines) {
			if hint, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), "// hint:"); ok {
				pc.Hint = strings.TrimSpace(hint)
				i++
			}
		}

		var oursLines []string
		for i < len(lines) && lines[i] != "=======" {
			oursLines = append(oursLines, lines[i])
			i++
		}
		i++ // skip =======

		var theirsLines []string
		for i < len(lines) && !strings.HasPrefix(lines[i], ">>>>>>> theirs") {
			theirsLines = append(theirsLines, lines[i])
			i++
		}
		i++ // skip >>>>>>> theirs

		if pc.Confidence == "" {
			pc.Confidence = "unknown"
		}
		pc.Ours = strings.Join(oursLines, "\n")
		pc.Theirs = strings.Join(theirsLines, "\n")
		out = append(out, pc)
	}
	return out
}

// parseConflictHeader extracts entity type/name/complexity/confidence from
// a "<<<<<<< ours — type `name` (complexity, confidence: level)" header,
// trying the em-dash split first, then falling back progressively so a
// hand-edited or legacy-format header still yields partial metadata
// instead of an error. The backtick-quoted name is cut out before the
// parenthesized tail is parsed, since names (rename/rename labels in
// particular) may themselves contain parentheses.
func parseConflictHeader(header string) ParsedConflict {
	var pc ParsedConflict

	rest, ok := cutAfter(header, "—")
	if !ok {
		return pc
	}
	rest = strings.TrimSpace(rest)

	if tickStart := strings.IndexByte(rest, '`'); tickStart >= 0 {
		nameAndTail := rest[tickStart+1:]
		tickEnd := strings.IndexByte(nameAndTail, '`')
		if tickEnd < 0 {
			pc.EntityType = strings.TrimSpace(rest)
			return pc
		}
		pc.EntityType = strings.TrimSpace(rest[:tickStart])
		pc.EntityName = nameAndTail[:tickEnd]
		rest = nameAndTail[tickEnd+1:]
	} else {
		typeName, tail, hasParen := strings.Cut(rest, "(")
		pc.EntityType = strings.TrimSpace(typeName)
		if !hasParen {
			return pc
		}
		rest = "(" + tail
	}

	_, paren, hasParen := strings.Cut(rest, "(")
	if !hasParen {
		return pc
	}
	paren = strings.TrimSuffix(strings.TrimSpace(paren), ")")
	fields := strings.SplitN(paren, ",", 2)
	if len(fields) >= 1 {
		pc.Complexity = strings.TrimSpace(fields[0])
	}
	if len(fields) == 2 {
		if _, conf, ok := strings.Cut(fields[1], ":"); ok {
			pc.Confidence = strings.TrimSpace(conf)
		}
	}
	return pc
}

func cutAfter(s, sep string) (string, bool) {
	idx := strings.Index(s, sep)
	if idx < 0 {
		return "", false
	}
	return s[idx+len(sep):], true
}

// Confidence rolls a completed merge up into a single label: "conflict" if
// any conflict remains, "medium" if the inner-entity strategy or the
// line-level fallback had to be used anywhere, "high" if entity-level diff3
// did real merging work, and "very_high" when every entity resolved via the
// trivial paths.
func (s MergeStats) Confidence() string {
	switch {
	case s.Conflicts > 0:
		return "conflict"
	case s.ResolvedViaInnerMerge > 0 || s.UsedFallback:
		return "medium"
	case s.ResolvedViaText3Way > 0:
		return "high"
	}
	return "very_high"
}

func (s MergeStats) String() string {
	return fmt.Sprintf("entities=%d unchanged=%d merged=%d conflicts=%d confidence=%s",
		s.TotalEntities, s.Unchanged, s.BothModified, s.Conflicts, s.Confidence())
}
