package entity

import (
	"fmt"
	"sort"
	"strings"

	gotreesitter "github.com/odvcencio/gotreesitter"
	"github.com/odvcencio/gotreesitter/grammars"
	classify "github.com/odvcencio/gts-suite/pkg/lang/treesitter"
)

// Aliases for the shared node type classification maps.
var (
	importTypes         = classify.ImportNodeTypes
	declarationTypes    = classify.DeclarationNodeTypes
	preambleTypes       = classify.PreambleNodeTypes
	commentTypes        = classify.CommentNodeTypes
	nameIdentifierTypes = classify.NameIdentifierTypes
)

// classifiedNode is a root-level (or flattened-container-member) node
// queued for entity construction. node is nil for synthesized entries
// (the TypeScript bare-token class header, and flattened container
// headers) which carry their byte range and metadata directly instead.
type classifiedNode struct {
	node     *gotreesitter.Node
	kind     EntityKind
	start    uint32
	end      uint32
	declKind string
	name     string
	receiver string
}

func (cn classifiedNode) byteRange() (uint32, uint32) {
	if cn.node != nil {
		return cn.node.StartByte(), cn.node.EndByte()
	}
	if cn.end < cn.start {
		return cn.start, cn.start
	}
	return cn.start, cn.end
}

// extraction carries the parse state shared across the collect/assemble/
// finalize passes that turn a parsed tree into an EntityList.
type extraction struct {
	bt     *gotreesitter.BoundTree
	source []byte
	el     *EntityList
}

// Extract parses source using tree-sitter and returns an EntityList
// containing structural entities. The critical invariant is that
// concatenating all entity bodies reproduces the original source exactly.
func Extract(filename string, source []byte) (*EntityList, error) {
	entry := grammars.DetectLanguage(filename)
	if entry == nil {
		return nil, fmt.Errorf("unsupported file type: %s", filename)
	}

	el := &EntityList{Language: entry.Name, Path: filename, Source: source}
	if len(source) == 0 {
		return el, nil
	}

	bt, err := grammars.ParseFile(filename, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer bt.Release()

	root := bt.RootNode()
	if root.ChildCount() == 0 {
		el.Entities = append(el.Entities, makeEntity(KindInterstitial, source, 0, uint32(len(source)), 0, 0))
		return el, nil
	}

	ex := &extraction{bt: bt, source: source, el: el}
	nodes := ex.collectTopLevelNodes(root)
	ex.assembleEntities(nodes)
	ex.finalize()
	return el, nil
}

// collectTopLevelNodes walks root's immediate children, flattening
// container declarations (classes, impls, ...) into a header entry plus
// one entry per member, and sorts the result into source order.
func (ex *extraction) collectTopLevelNodes(root *gotreesitter.Node) []classifiedNode {
	bt := ex.bt
	childCount := root.ChildCount()

	var nodes []classifiedNode
	for i := 0; i < childCount; i++ {
		child := root.Child(i)
		childType := bt.NodeType(child)

		// Some TypeScript parses surface "class" as a bare token plus an
		// adjacent identifier instead of a single class_declaration node.
		// Synthesize a declaration entity so class-level identity still
		// resolves.
		if childType == "class" && i+1 < childCount {
			if next := root.Child(i + 1); next != nil && bt.NodeType(next) == "identifier" {
				nodes = append(nodes, classifiedNode{
					kind:     KindDeclaration,
					start:    child.StartByte(),
					end:      child.EndByte(),
					declKind: "class_declaration",
					name:     bt.NodeText(next),
				})
				continue
			}
		}

		kind := classifyNode(bt, child)
		if kind == KindDeclaration && isContainerDeclaration(childType) {
			if flattened := ex.flattenContainer(child); flattened != nil {
				nodes = append(nodes, flattened...)
				continue
			}
		}
		if kind == KindInterstitial {
			if nested := collectNestedDeclarationNodes(bt, child); len(nested) > 0 {
				for _, n := range nested {
					nodes = append(nodes, classifiedNode{node: n, kind: KindDeclaration})
				}
				continue
			}
		}
		nodes = append(nodes, classifiedNode{node: child, kind: kind})
	}

	sort.Slice(nodes, func(i, j int) bool {
		si, ei := nodes[i].byteRange()
		sj, ej := nodes[j].byteRange()
		if si == sj {
			return ei < ej
		}
		return si < sj
	})
	return nodes
}

// flattenContainer splits a class/impl/interface-like node into a header
// entry (covering the container up to its first member) plus one entry
// per nested member declaration, preserving container identity while
// still letting members be matched and merged independently. Returns nil
// when the container has no nested declarations to flatten.
func (ex *extraction) flattenContainer(container *gotreesitter.Node) []classifiedNode {
	bt := ex.bt
	nested := collectNestedDeclarationNodes(bt, container)
	if len(nested) == 0 {
		return nil
	}
	sort.Slice(nested, func(i, j int) bool { return nested[i].StartByte() < nested[j].StartByte() })

	headerEnd := nested[0].StartByte()
	if headerEnd < container.StartByte() {
		headerEnd = container.StartByte()
	}
	name, receiver := extractNameAndReceiver(bt, container)

	out := make([]classifiedNode, 0, len(nested)+1)
	out = append(out, classifiedNode{
		kind:     KindDeclaration,
		start:    container.StartByte(),
		end:      headerEnd,
		declKind: bt.NodeType(container),
		name:     name,
		receiver: receiver,
	})
	for _, n := range nested {
		out = append(out, classifiedNode{node: n, kind: KindDeclaration})
	}
	return out
}

// assembleEntities converts ordered classifiedNodes into entities,
// filling any byte range between them (and before/after all of them) as
// interstitial entities so byte coverage of source is exact.
func (ex *extraction) assembleEntities(nodes []classifiedNode) {
	bt := ex.bt
	var cursor uint32

	for _, cn := range nodes {
		start, end := cn.byteRange()

		if start > cursor {
			ex.el.Entities = append(ex.el.Entities, makeEntity(KindInterstitial, ex.source, cursor, start, 0, 0))
		}

		e := makeEntity(cn.kind, ex.source, start, end, 0, 0)
		if cn.node != nil {
			e.DeclKind = bt.NodeType(cn.node)
		} else {
			e.DeclKind = cn.declKind
		}

		if cn.kind == KindDeclaration {
			if cn.node != nil {
				e.Name, e.Receiver = extractNameAndReceiver(bt, cn.node)
			} else {
				e.Name, e.Receiver = cn.name, cn.receiver
			}
			e.Signature = declarationSignature(e.Body)
		}

		if cn.node != nil {
			e.StartLine = int(cn.node.StartPoint().Row) + 1
			e.EndLine = int(cn.node.EndPoint().Row) + 1
		} else {
			e.StartLine = lineNumberAtByte(ex.source, start)
			e.EndLine = lineNumberAtByte(ex.source, end)
		}

		ex.el.Entities = append(ex.el.Entities, e)
		cursor = end
	}

	if cursor < uint32(len(ex.source)) {
		ex.el.Entities = append(ex.el.Entities, makeEntity(KindInterstitial, ex.source, cursor, uint32(len(ex.source)), 0, 0))
	}
}

// finalize runs the passes that need the complete, ordered entity list:
// identity numbering, interstitial neighbor links, folding doc comments
// into the declaration they precede, and hashing declaration bodies for
// three-way comparison.
func (ex *extraction) finalize() {
	assignIdentityOrdinals(ex.el)
	setInterstitialNeighborKeys(ex.el)
	bundleLeadingComments(ex.el)
	for i := range ex.el.Entities {
		if ex.el.Entities[i].Kind == KindDeclaration {
			ex.el.Entities[i].ComputeStructuralHash()
		}
	}
}

// classifyNode determines the EntityKind for a root-level tree-sitter node.
func classifyNode(bt *gotreesitter.BoundTree, node *gotreesitter.Node) EntityKind {
	nodeType := bt.NodeType(node)
	switch {
	case preambleTypes[nodeType]:
		return KindPreamble
	case importTypes[nodeType]:
		return KindImportBlock
	case isDeclarationNode(bt, node):
		return KindDeclaration
	default:
		return KindInterstitial
	}
}

func isDeclarationNode(bt *gotreesitter.BoundTree, node *gotreesitter.Node) bool {
	nodeType := bt.NodeType(node)
	if declarationTypes[nodeType] {
		return true
	}
	if nodeType == "method_definition" {
		// Not covered by the shared declaration-type table.
		return true
	}
	if !node.IsNamed() || !looksLikeDeclarationNodeType(nodeType) {
		return false
	}
	return hasNameIdentifierDescendant(bt, node)
}

func looksLikeDeclarationNodeType(nodeType string) bool {
	return strings.Contains(nodeType, "declaration") || strings.Contains(nodeType, "definition")
}

func hasNameIdentifierDescendant(bt *gotreesitter.BoundTree, node *gotreesitter.Node) bool {
	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if nameIdentifierTypes[bt.NodeType(child)] {
			return true
		}
		if hasNameIdentifierDescendant(bt, child) {
			return true
		}
	}
	return false
}

var containerDeclarationNodeTypes = map[string]bool{
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

func isContainerDeclaration(nodeType string) bool {
	return containerDeclarationNodeTypes[nodeType]
}

// collectNestedDeclarationNodes returns the declaration children nested
// directly under node, descending through non-declaration wrapper nodes
// and flattening nested containers (e.g. a class inside a namespace)
// recursively.
func collectNestedDeclarationNodes(bt *gotreesitter.BoundTree, node *gotreesitter.Node) []*gotreesitter.Node {
	var out []*gotreesitter.Node
	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if !isDeclarationNode(bt, child) {
			out = append(out, collectNestedDeclarationNodes(bt, child)...)
			continue
		}
		if isContainerDeclaration(bt.NodeType(child)) {
			if nested := collectNestedDeclarationNodes(bt, child); len(nested) > 0 {
				out = append(out, nested...)
				continue
			}
		}
		out = append(out, child)
	}
	return out
}

// namedChildOfType returns node's first named child whose type is in
// types, or nil. Several name-extraction helpers below differ only in
// which node type they're looking for at a given depth, so they share
// this walk instead of each repeating the NamedChildCount loop.
func namedChildOfType(bt *gotreesitter.BoundTree, node *gotreesitter.Node, types map[string]bool) *gotreesitter.Node {
	for i := 0; i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if types[bt.NodeType(child)] {
			return child
		}
	}
	return nil
}

// extractNameAndReceiver extracts the declaration name and optional
// receiver from a tree-sitter node, dispatching on its grammar node type.
func extractNameAndReceiver(bt *gotreesitter.BoundTree, node *gotreesitter.Node) (name, receiver string) {
	switch bt.NodeType(node) {
	case "method_declaration":
		return extractGoMethodNameReceiver(bt, node)
	case "function_declaration", "function_definition", "function_item":
		// C/C++ function_definition nests the identifier inside a
		// function_declarator rather than as a direct child.
		if name = firstNamedIdentifier(bt, node); name == "" {
			name = extractDeclaratorName(bt, node)
		}
		return name, ""
	case "type_declaration":
		return extractGoTypeName(bt, node), ""
	case "var_declaration", "const_declaration":
		return extractGoVarConstName(bt, node), ""
	case "decorated_definition":
		return extractDecoratedName(bt, node), ""
	case "export_statement":
		return extractExportName(bt, node), ""
	default:
		return firstNamedIdentifier(bt, node), ""
	}
}

// extractDeclaratorName finds a function/init declarator child and pulls
// the identifier out of it; used where the grammar nests the name one
// level deeper than usual (C/C++ function declarators).
func extractDeclaratorName(bt *gotreesitter.BoundTree, node *gotreesitter.Node) string {
	declaratorTypes := map[string]bool{"function_declarator": true, "init_declarator": true}
	if child := namedChildOfType(bt, node, declaratorTypes); child != nil {
		return firstNamedIdentifier(bt, child)
	}
	return ""
}

// firstNamedIdentifier finds the first child (named or not) recognized
// as a name-identifier node type, searching depth-first.
func firstNamedIdentifier(bt *gotreesitter.BoundTree, node *gotreesitter.Node) string {
	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if nameIdentifierTypes[bt.NodeType(child)] {
			return bt.NodeText(child)
		}
		if name := firstNamedIdentifier(bt, child); name != "" {
			return name
		}
	}
	return ""
}

// extractGoMethodNameReceiver pulls the receiver and method name out of a
// Go method_declaration: func (receiver) name(params) [result] body —
// named children run [parameter_list(receiver), field_identifier(name), ...].
func extractGoMethodNameReceiver(bt *gotreesitter.BoundTree, node *gotreesitter.Node) (name, receiver string) {
	childCount := node.NamedChildCount()
	for i := 0; i < childCount; i++ {
		if bt.NodeType(node.NamedChild(i)) != "parameter_list" {
			continue
		}
		receiver = extractReceiverText(bt, node.NamedChild(i))
		for j := i + 1; j < childCount; j++ {
			nc := node.NamedChild(j)
			nt := bt.NodeType(nc)
			if nt == "field_identifier" || nameIdentifierTypes[nt] {
				return bt.NodeText(nc), receiver
			}
		}
		return "", receiver
	}
	return "", ""
}

// extractReceiverText pulls a clean receiver representation out of a
// parameter_list, e.g. "(t T)" -> "t T", "(t *T)" -> "t *T".
func extractReceiverText(bt *gotreesitter.BoundTree, paramList *gotreesitter.Node) string {
	if decl := namedChildOfType(bt, paramList, map[string]bool{"parameter_declaration": true}); decl != nil {
		return bt.NodeText(decl)
	}
	text := bt.NodeText(paramList)
	if len(text) >= 2 && text[0] == '(' && text[len(text)-1] == ')' {
		return text[1 : len(text)-1]
	}
	return text
}

// extractGoTypeName extracts the name from type_declaration -> type_spec
// -> type_identifier.
func extractGoTypeName(bt *gotreesitter.BoundTree, node *gotreesitter.Node) string {
	if spec := namedChildOfType(bt, node, map[string]bool{"type_spec": true}); spec != nil {
		if id := namedChildOfType(bt, spec, map[string]bool{"type_identifier": true}); id != nil {
			return bt.NodeText(id)
		}
	}
	return firstNamedIdentifier(bt, node)
}

// extractGoVarConstName extracts the name from var_declaration ->
// var_spec -> identifier, or the const_declaration/const_spec equivalent.
func extractGoVarConstName(bt *gotreesitter.BoundTree, node *gotreesitter.Node) string {
	specTypes := map[string]bool{"var_spec": true, "const_spec": true}
	if spec := namedChildOfType(bt, node, specTypes); spec != nil {
		return firstNamedIdentifier(bt, spec)
	}
	return firstNamedIdentifier(bt, node)
}

// extractDecoratedName unwraps a Python decorated_definition to the
// function_definition or class_definition it decorates.
func extractDecoratedName(bt *gotreesitter.BoundTree, node *gotreesitter.Node) string {
	innerTypes := map[string]bool{"function_definition": true, "class_definition": true}
	if inner := namedChildOfType(bt, node, innerTypes); inner != nil {
		return firstNamedIdentifier(bt, inner)
	}
	return firstNamedIdentifier(bt, node)
}

// extractExportName unwraps a TS/JS export_statement to the declaration
// (or bare identifier) it exports.
func extractExportName(bt *gotreesitter.BoundTree, node *gotreesitter.Node) string {
	for i := 0; i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		childType := bt.NodeType(child)
		if declarationTypes[childType] {
			name, _ := extractNameAndReceiver(bt, child)
			return name
		}
		if nameIdentifierTypes[childType] {
			return bt.NodeText(child)
		}
	}
	return firstNamedIdentifier(bt, node)
}

func declarationSignature(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	if idx := strings.Index(text, "{"); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	return strings.Join(strings.Fields(text), " ")
}

// assignIdentityOrdinals numbers same-key entities 0, 1, 2, ... in
// source order, so overloads/repeated declarations get distinct identity
// keys instead of colliding.
func assignIdentityOrdinals(el *EntityList) {
	counters := make(map[string]int)
	for i := range el.Entities {
		base := identityBaseKey(&el.Entities[i])
		if base == "" {
			continue
		}
		el.Entities[i].Ordinal = counters[base]
		counters[base]++
	}
}

func identityBaseKey(e *Entity) string {
	switch e.Kind {
	case KindPreamble:
		return "preamble"
	case KindImportBlock:
		return "import_block"
	case KindDeclaration:
		return fmt.Sprintf("decl:%s:%s:%s", e.DeclKind, e.Receiver, e.Name)
	default:
		return ""
	}
}

func lineNumberAtByte(source []byte, bytePos uint32) int {
	if bytePos == 0 {
		return 1
	}
	if int(bytePos) > len(source) {
		bytePos = uint32(len(source))
	}
	line := 1
	for i := uint32(0); i < bytePos; i++ {
		if source[i] == '\n' {
			line++
		}
	}
	return line
}

// makeEntity creates an Entity with body bytes, hash, and byte range.
func makeEntity(kind EntityKind, source []byte, startByte, endByte uint32, startLine, endLine int) Entity {
	e := Entity{
		Kind:      kind,
		Body:      source[startByte:endByte],
		StartByte: startByte,
		EndByte:   endByte,
		StartLine: startLine,
		EndLine:   endLine,
	}
	e.ComputeHash()
	return e
}

// setInterstitialNeighborKeys populates PrevEntityKey/NextEntityKey on
// interstitial entities from their nearest non-interstitial neighbors.
func setInterstitialNeighborKeys(el *EntityList) {
	entities := el.Entities
	for i := range entities {
		if entities[i].Kind != KindInterstitial {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if entities[j].Kind != KindInterstitial {
				entities[i].PrevEntityKey = entities[j].IdentityKey()
				break
			}
		}
		for j := i + 1; j < len(entities); j++ {
			if entities[j].Kind != KindInterstitial {
				entities[i].NextEntityKey = entities[j].IdentityKey()
				break
			}
		}
	}
}
