package template

import (
	"fmt"

	"github.com/typja/typja/internal/annot"
	"github.com/typja/typja/internal/diag"
)

// Template is the parsed form of one template file: the statement node stream
// plus every comment span, in document order.
type Template struct {
	Nodes    []Node
	Comments []annot.Comment
}

// Parse tokenizes a template. Syntax errors inside one span produce a
// TemplateSyntax diagnostic and skip that span; parsing continues so a single
// bad tag never hides the rest of the file.
func Parse(source []byte, file string) (*Template, diag.List) {
	p := &parser{
		ix:   newLineIndex(source),
		file: file,
		tmpl: &Template{},
	}

	items, lerr := lexTemplate(source)
	p.items = items
	if lerr != nil {
		p.diagAt(lerr.offset, lerr.msg)
	}

	nodes, stop, stopIt := p.parseBlock(nil)
	if stop != "" {
		p.diagAt(stopIt.offset, fmt.Sprintf("unexpected {%% %s %%}", stop))
	}
	p.tmpl.Nodes = nodes
	return p.tmpl, p.diags
}

type parser struct {
	items []item
	i     int
	ix    lineIndex
	file  string
	tmpl  *Template
	diags diag.List
}

func (p *parser) diagAt(offset int, msg string) {
	pos := p.ix.pos(offset)
	p.diags = append(p.diags, diag.Diagnostic{
		Severity: diag.Error,
		Code:     diag.TemplateSyntax,
		File:     p.file,
		Line:     pos.Line,
		Col:      pos.Col,
		Message:  msg,
	})
}

// parseBlock consumes items until EOF or a statement whose keyword is in
// stops. The stopping item is returned with its keyword stripped so callers
// can parse the remainder (an elif condition, for example).
func (p *parser) parseBlock(stops map[string]bool) ([]Node, string, item) {
	var nodes []Node

	for p.i < len(p.items) {
		it := p.items[p.i]
		p.i++

		switch it.kind {
		case itemComment:
			pos := p.ix.pos(it.offset)
			p.tmpl.Comments = append(p.tmpl.Comments, annot.Comment{
				Text: it.text, Line: pos.Line, Col: pos.Col,
			})

		case itemOutput:
			if expr := p.parseExprText(it.text, it.offset, true); expr != nil {
				nodes = append(nodes, &Output{Expr: expr, Pos: p.ix.pos(it.offset)})
			}

		case itemStmt:
			kw, rest, restOff := splitKeyword(it.text, it.offset)
			if stops[kw] {
				return nodes, kw, item{kind: itemStmt, text: rest, offset: restOff}
			}
			switch kw {
			case "if":
				if n := p.parseIf(rest, restOff, it.offset); n != nil {
					nodes = append(nodes, n)
				}
			case "for":
				if n := p.parseFor(rest, restOff, it.offset); n != nil {
					nodes = append(nodes, n)
				}
			case "set":
				if n := p.parseSet(rest, restOff, it.offset); n != nil {
					nodes = append(nodes, n)
				}
			case "elif", "else", "endif", "endfor", "endset", "endraw":
				p.diagAt(it.offset, fmt.Sprintf("unexpected {%% %s %%}", kw))
			case "raw":
				p.skipUntil("endraw")
			default:
				// Rendering-only tags (extends, include, block, macro, ...)
				// carry no type information for the declared scope.
			}
		}
	}
	return nodes, "", item{}
}

func (p *parser) skipUntil(end string) {
	for p.i < len(p.items) {
		it := p.items[p.i]
		p.i++
		if it.kind == itemStmt {
			if kw, _, _ := splitKeyword(it.text, it.offset); kw == end {
				return
			}
		}
	}
}

func (p *parser) parseIf(cond string, condOff, tagOff int) Node {
	n := &If{Pos: p.ix.pos(tagOff)}
	n.Cond = p.parseExprText(cond, condOff, true)

	var stop string
	var stopIt item
	n.Then, stop, stopIt = p.parseBlock(map[string]bool{"elif": true, "else": true, "endif": true})

	switch stop {
	case "elif":
		if inner := p.parseIf(stopIt.text, stopIt.offset, stopIt.offset); inner != nil {
			n.Else = []Node{inner}
		}
	case "else":
		var stop2 string
		n.Else, stop2, _ = p.parseBlock(map[string]bool{"endif": true})
		if stop2 == "" {
			p.diagAt(tagOff, "missing {% endif %}")
		}
	case "endif":
	default:
		p.diagAt(tagOff, "missing {% endif %}")
	}

	if n.Cond == nil {
		return nil
	}
	return n
}

// parseFor handles "for a[, b] in expr [if cond] [recursive]".
func (p *parser) parseFor(rest string, restOff, tagOff int) Node {
	toks, lerr := lexExpr(rest, restOff)
	if lerr != nil {
		p.diagAt(lerr.offset, lerr.msg)
		p.skipUntil("endfor")
		return nil
	}
	ep := &exprParser{toks: toks, ix: p.ix}

	n := &For{Pos: p.ix.pos(tagOff)}
	for {
		t := ep.next()
		if t.kind != tokName {
			p.diagAt(t.offset, "expected loop variable name")
			p.skipUntil("endfor")
			return nil
		}
		n.Vars = append(n.Vars, t.val)
		if !ep.acceptOp(",") {
			break
		}
	}
	if !ep.acceptName("in") {
		p.diagAt(ep.peek().offset, `expected "in"`)
		p.skipUntil("endfor")
		return nil
	}

	// The iterable is parsed below the inline-conditional level so a
	// trailing "if" reads as the loop filter, not a conditional expression.
	iter, err := ep.parseOr()
	if err != nil {
		p.diagAt(err.offset, err.msg)
		p.skipUntil("endfor")
		return nil
	}
	n.Iter = iter

	if ep.acceptName("if") {
		cond, err := ep.parseExpr()
		if err != nil {
			p.diagAt(err.offset, err.msg)
		} else {
			n.Cond = cond
		}
	}
	ep.acceptName("recursive")

	var stop string
	n.Body, stop, _ = p.parseBlock(map[string]bool{"else": true, "endfor": true})
	if stop == "else" {
		n.Else, stop, _ = p.parseBlock(map[string]bool{"endfor": true})
	}
	if stop != "endfor" {
		p.diagAt(tagOff, "missing {% endfor %}")
	}
	return n
}

// parseSet handles both "set name = expr" and the block form
// "{% set name %}...{% endset %}", which binds an untyped value.
func (p *parser) parseSet(rest string, restOff, tagOff int) Node {
	toks, lerr := lexExpr(rest, restOff)
	if lerr != nil {
		p.diagAt(lerr.offset, lerr.msg)
		return nil
	}
	ep := &exprParser{toks: toks, ix: p.ix}

	t := ep.next()
	if t.kind != tokName {
		p.diagAt(t.offset, "expected variable name after set")
		return nil
	}
	n := &Set{Name: t.val, Pos: p.ix.pos(tagOff)}

	if !ep.acceptOp("=") {
		p.skipUntil("endset")
		return n
	}
	value, err := ep.parseExpr()
	if err != nil {
		p.diagAt(err.offset, err.msg)
		return n
	}
	n.Value = value
	return n
}

// parseExprText parses a full expression span. strict requires the whole span
// to be consumed.
func (p *parser) parseExprText(text string, offset int, strict bool) Expr {
	toks, lerr := lexExpr(text, offset)
	if lerr != nil {
		p.diagAt(lerr.offset, lerr.msg)
		return nil
	}
	ep := &exprParser{toks: toks, ix: p.ix}
	e, err := ep.parseExpr()
	if err != nil {
		p.diagAt(err.offset, err.msg)
		return nil
	}
	if strict && ep.peek().kind != tokEOF {
		p.diagAt(ep.peek().offset, fmt.Sprintf("unexpected %q", ep.peek().val))
		return nil
	}
	return e
}

func splitKeyword(text string, offset int) (kw, rest string, restOff int) {
	i := 0
	for i < len(text) && isNameChar(text[i]) {
		i++
	}
	kw = text[:i]
	rest = text[i:]
	restOff = offset + i
	for len(rest) > 0 && (rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n') {
		rest, restOff = rest[1:], restOff+1
	}
	return kw, rest, restOff
}
