package pyscan

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/typja/typja/internal/typeexpr"
)

// extractFile pulls every class, enum, alias and module-level callable out of
// one parsed source tree. module is the dotted module path of the file.
func extractFile(root *sitter.Node, source []byte, module, file string) []*TypeDef {
	var defs []*TypeDef

	var walk func(node *sitter.Node, topLevel bool)
	walk = func(node *sitter.Node, topLevel bool) {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "class_definition":
				// extractClass appends nested classes through &defs, so it
				// must finish before this level's append.
				cls := extractClass(child, source, module, file, &defs)
				defs = append(defs, cls)
			case "decorated_definition":
				if def := child.ChildByFieldName("definition"); def != nil {
					switch def.Type() {
					case "class_definition":
						cls := extractClass(def, source, module, file, &defs)
						defs = append(defs, cls)
					case "function_definition":
						if topLevel {
							defs = append(defs, extractCallable(def, source, module, file))
						}
					}
				}
			case "function_definition":
				if topLevel {
					defs = append(defs, extractCallable(child, source, module, file))
				}
			case "expression_statement":
				if topLevel {
					if alias := extractAlias(child, source, module, file); alias != nil {
						defs = append(defs, alias)
					}
				}
			case "type_alias_statement":
				if alias := extractTypeStatement(child, source, module, file); alias != nil {
					defs = append(defs, alias)
				}
			case "if_statement", "try_statement", "with_statement":
				// Definitions guarded by TYPE_CHECKING blocks and the like.
				walk(child, topLevel)
			case "block":
				walk(child, topLevel)
			}
		}
	}
	walk(root, true)

	return defs
}

func extractClass(node *sitter.Node, source []byte, module, file string, defs *[]*TypeDef) *TypeDef {
	def := &TypeDef{
		Kind:    KindClass,
		Module:  module,
		Members: map[string]Member{},
		File:    file,
	}

	var body *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			if def.Name == "" {
				def.Name = nodeText(child, source)
			}
		case "argument_list":
			def.Bases = extractBases(child, source)
		case "block":
			body = child
		}
	}

	if isEnumBases(def.Bases) {
		def.Kind = KindEnum
	}
	if body != nil {
		extractClassBody(def, body, source, module, file, defs)
	}
	return def
}

func extractBases(args *sitter.Node, source []byte) []string {
	var bases []string
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		switch child.Type() {
		case "identifier", "attribute", "subscript":
			bases = append(bases, nodeText(child, source))
		}
	}
	return bases
}

func isEnumBases(bases []string) bool {
	for _, b := range bases {
		if strings.Contains(b, "Enum") || strings.Contains(b, "Flag") {
			return true
		}
	}
	return false
}

func extractClassBody(def *TypeDef, body *sitter.Node, source []byte, module, file string, defs *[]*TypeDef) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		switch stmt.Type() {
		case "expression_statement":
			extractClassField(def, stmt, source)
		case "function_definition":
			extractMethod(def, stmt, source)
		case "decorated_definition":
			if fn := stmt.ChildByFieldName("definition"); fn != nil && fn.Type() == "function_definition" {
				extractMethod(def, fn, source)
			}
		case "class_definition":
			// Nested classes register under the same module path.
			nested := extractClass(stmt, source, module, file, defs)
			*defs = append(*defs, nested)
		}
	}
}

// extractClassField handles annotated attributes (x: Type = ...) and, for
// enums, plain member assignments (RED = 1).
func extractClassField(def *TypeDef, stmt *sitter.Node, source []byte) {
	assign := stmt.NamedChild(0)
	if assign == nil || assign.Type() != "assignment" {
		return
	}

	var name string
	var annotation *sitter.Node
	for i := 0; i < int(assign.ChildCount()); i++ {
		child := assign.Child(i)
		switch child.Type() {
		case "identifier":
			if name == "" {
				name = nodeText(child, source)
			}
		case "type":
			annotation = child
		}
	}
	if name == "" {
		return
	}

	switch {
	case annotation != nil:
		def.Members[name] = Member{Type: parseAnnotation(nodeText(annotation, source))}
	case def.Kind == KindEnum && !strings.HasPrefix(name, "_"):
		// Enum members are typed as the enum itself; existence is what
		// attribute checking needs.
		def.Members[name] = Member{Type: &typeexpr.Descriptor{Kind: typeexpr.KindNamed, Name: def.Qualified()}}
	}
}

func extractMethod(def *TypeDef, fn *sitter.Node, source []byte) {
	var name string
	var params, returns *sitter.Node
	for i := 0; i < int(fn.ChildCount()); i++ {
		child := fn.Child(i)
		switch child.Type() {
		case "identifier":
			if name == "" {
				name = nodeText(child, source)
			}
		case "parameters":
			params = child
		case "type":
			returns = child
		}
	}
	if name == "" {
		return
	}

	ret := typeexpr.Unknown()
	if returns != nil {
		ret = parseAnnotation(nodeText(returns, source))
	}
	if !strings.HasPrefix(name, "__") {
		def.Members[name] = Member{Type: ret, Callable: true}
	}

	if name == "__init__" && params != nil {
		extractInitFields(def, fn, params, source)
	}
}

// extractInitFields records constructor parameters and self.x assignments as
// attributes, the way dataclass-free Python classes declare state.
func extractInitFields(def *TypeDef, fn, params *sitter.Node, source []byte) {
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		var pname string
		var annotation *sitter.Node

		switch p.Type() {
		case "identifier":
			pname = nodeText(p, source)
		case "typed_parameter", "typed_default_parameter", "default_parameter":
			for j := 0; j < int(p.ChildCount()); j++ {
				c := p.Child(j)
				switch c.Type() {
				case "identifier":
					if pname == "" {
						pname = nodeText(c, source)
					}
				case "type":
					annotation = c
				}
			}
		}
		if pname == "" || pname == "self" {
			continue
		}
		if _, exists := def.Members[pname]; exists {
			continue
		}
		if annotation != nil {
			def.Members[pname] = Member{Type: parseAnnotation(nodeText(annotation, source))}
		} else {
			def.Members[pname] = Member{Type: typeexpr.Any()}
		}
	}

	// self.x = ... anywhere in the constructor body.
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "assignment" {
				if target := c.NamedChild(0); target != nil && target.Type() == "attribute" {
					obj := target.ChildByFieldName("object")
					attr := target.ChildByFieldName("attribute")
					if obj != nil && attr != nil && nodeText(obj, source) == "self" {
						fname := nodeText(attr, source)
						if _, exists := def.Members[fname]; !exists {
							def.Members[fname] = Member{Type: typeexpr.Any()}
						}
					}
				}
			}
			walk(c)
		}
	}
	walk(fn)
}

func extractCallable(fn *sitter.Node, source []byte, module, file string) *TypeDef {
	def := &TypeDef{Kind: KindCallable, Module: module, File: file}
	for i := 0; i < int(fn.ChildCount()); i++ {
		child := fn.Child(i)
		if child.Type() == "identifier" {
			def.Name = nodeText(child, source)
			break
		}
	}
	return def
}

// extractAlias recognizes module-level assignments whose right side is shaped
// like a type expression (UserId = int, Rows = list[Row]). Value constants
// do not qualify.
func extractAlias(stmt *sitter.Node, source []byte, module, file string) *TypeDef {
	assign := stmt.NamedChild(0)
	if assign == nil || assign.Type() != "assignment" {
		return nil
	}

	left := assign.ChildByFieldName("left")
	right := assign.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return nil
	}
	switch right.Type() {
	case "identifier", "attribute", "subscript", "binary_operator":
	default:
		return nil
	}

	target, err := typeexpr.Parse(nodeText(right, source))
	if err != nil {
		return nil
	}
	return &TypeDef{
		Name:    nodeText(left, source),
		Module:  module,
		Kind:    KindAlias,
		Aliased: target,
		File:    file,
	}
}

// extractTypeStatement handles PEP 695 "type X = ..." aliases.
func extractTypeStatement(stmt *sitter.Node, source []byte, module, file string) *TypeDef {
	var name string
	var value *sitter.Node
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		if child.Type() == "identifier" && name == "" {
			name = nodeText(child, source)
		} else {
			value = child
		}
	}
	if name == "" || value == nil {
		return nil
	}
	target, err := typeexpr.Parse(nodeText(value, source))
	if err != nil {
		return nil
	}
	return &TypeDef{Name: name, Module: module, Kind: KindAlias, Aliased: target, File: file}
}

// parseAnnotation parses a member annotation, tolerating quoted forward
// references. Unparseable annotations degrade to Unknown instead of failing
// the scan.
func parseAnnotation(text string) *typeexpr.Descriptor {
	text = strings.TrimSpace(text)
	if len(text) >= 2 && (text[0] == '"' || text[0] == '\'') && text[len(text)-1] == text[0] {
		text = text[1 : len(text)-1]
	}
	d, err := typeexpr.Parse(text)
	if err != nil {
		return typeexpr.Unknown()
	}
	return d
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
