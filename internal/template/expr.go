package template

import (
	"fmt"
	"strings"
)

type parseErr struct {
	offset int
	msg    string
}

// exprParser is a recursive-descent parser over one span's token stream.
type exprParser struct {
	toks []token
	i    int
	ix   lineIndex
}

func (p *exprParser) peek() token { return p.toks[p.i] }

func (p *exprParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *exprParser) acceptOp(val string) bool {
	if t := p.peek(); t.kind == tokOp && t.val == val {
		p.i++
		return true
	}
	return false
}

func (p *exprParser) acceptName(val string) bool {
	if t := p.peek(); t.kind == tokName && t.val == val {
		p.i++
		return true
	}
	return false
}

func (p *exprParser) expectOp(val string) *parseErr {
	if p.acceptOp(val) {
		return nil
	}
	return p.errf(p.peek(), "expected %q", val)
}

func (p *exprParser) pos(t token) Pos { return p.ix.pos(t.offset) }

func (p *exprParser) errf(t token, format string, args ...any) *parseErr {
	return &parseErr{offset: t.offset, msg: fmt.Sprintf(format, args...)}
}

// parseExpr parses a full expression: the inline conditional has the lowest
// precedence, then or, and, not, comparisons and tests, arithmetic, and
// finally postfix access (attributes, subscripts, calls, filters).
func (p *exprParser) parseExpr() (Expr, *parseErr) {
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.acceptName("if") {
		cond := &CondExpr{True: e, Pos: e.Position()}
		if cond.Test, err = p.parseOr(); err != nil {
			return nil, err
		}
		if p.acceptName("else") {
			if cond.False, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		return cond, nil
	}
	return e, nil
}

func (p *exprParser) parseOr() (Expr, *parseErr) {
	e, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptName("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		e = &BinOp{Op: "or", Left: e, Right: right, Pos: e.Position()}
	}
	return e, nil
}

func (p *exprParser) parseAnd() (Expr, *parseErr) {
	e, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptName("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		e = &BinOp{Op: "and", Left: e, Right: right, Pos: e.Position()}
	}
	return e, nil
}

func (p *exprParser) parseNot() (Expr, *parseErr) {
	if t := p.peek(); t.kind == tokName && t.val == "not" {
		p.i++
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: inner, Pos: p.pos(t)}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (p *exprParser) parseComparison() (Expr, *parseErr) {
	e, err := p.parseAdd()
	if err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		switch {
		case t.kind == tokOp && compareOps[t.val]:
			p.i++
			right, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			e = &BinOp{Op: t.val, Left: e, Right: right, Pos: e.Position()}

		case t.kind == tokName && t.val == "in":
			p.i++
			right, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			e = &BinOp{Op: "in", Left: e, Right: right, Pos: e.Position()}

		case t.kind == tokName && t.val == "is":
			p.i++
			test, err := p.parseTest(e)
			if err != nil {
				return nil, err
			}
			e = test

		default:
			return e, nil
		}
	}
}

// parseTest parses the tail of "expr is [not] testname [args]".
func (p *exprParser) parseTest(target Expr) (Expr, *parseErr) {
	negated := p.acceptName("not")

	t := p.next()
	if t.kind != tokName {
		return nil, p.errf(t, "expected test name after \"is\"")
	}
	test := &Test{Target: target, Name: strings.ToLower(t.val), Negated: negated, Pos: target.Position()}

	if p.acceptOp("(") {
		for !p.acceptOp(")") {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			test.Args = append(test.Args, arg)
			if !p.acceptOp(",") && p.peek().val != ")" {
				return nil, p.errf(p.peek(), "expected \",\" or \")\" in test arguments")
			}
		}
	} else if nt := p.peek(); nt.kind == tokNumber || nt.kind == tokString {
		// Bare single argument form: "is divisibleby 3".
		arg, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		test.Args = append(test.Args, arg)
	}
	return test, nil
}

func (p *exprParser) parseAdd() (Expr, *parseErr) {
	e, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || t.val != "+" && t.val != "-" && t.val != "~" {
			return e, nil
		}
		p.i++
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		e = &BinOp{Op: t.val, Left: e, Right: right, Pos: e.Position()}
	}
}

func (p *exprParser) parseMul() (Expr, *parseErr) {
	e, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || t.val != "*" && t.val != "/" && t.val != "//" && t.val != "%" && t.val != "**" {
			return e, nil
		}
		p.i++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		e = &BinOp{Op: t.val, Left: e, Right: right, Pos: e.Position()}
	}
}

func (p *exprParser) parseUnary() (Expr, *parseErr) {
	if t := p.peek(); t.kind == tokOp && t.val == "-" {
		p.i++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinOp{Op: "neg", Left: inner, Pos: p.pos(t)}, nil
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (Expr, *parseErr) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		if t.kind != tokOp {
			return e, nil
		}
		switch t.val {
		case ".":
			p.i++
			attr := p.next()
			if attr.kind != tokName {
				return nil, p.errf(attr, "expected attribute name after \".\"")
			}
			e = &Getattr{Target: e, Attr: attr.val, Pos: p.pos(attr)}

		case "[":
			p.i++
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			e = &Subscript{Target: e, Index: index, Pos: p.pos(t)}

		case "(":
			p.i++
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = &Call{Target: e, Args: args, Pos: p.pos(t)}

		case "|":
			p.i++
			name := p.next()
			if name.kind != tokName {
				return nil, p.errf(name, "expected filter name after \"|\"")
			}
			f := &Filter{Target: e, Name: name.val, Pos: p.pos(name)}
			if p.acceptOp("(") {
				if f.Args, err = p.parseArgs(); err != nil {
					return nil, err
				}
			}
			e = f

		default:
			return e, nil
		}
	}
}

// parseArgs parses a comma-separated argument list after the opening paren.
// Keyword arguments (name=value) contribute their value expression.
func (p *exprParser) parseArgs() ([]Expr, *parseErr) {
	var args []Expr
	for {
		if p.acceptOp(")") {
			return args, nil
		}
		if t := p.peek(); t.kind == tokName && p.i+1 < len(p.toks) &&
			p.toks[p.i+1].kind == tokOp && p.toks[p.i+1].val == "=" {
			p.i += 2
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.acceptOp(",") && p.peek().val != ")" {
			return nil, p.errf(p.peek(), "expected \",\" or \")\" in arguments")
		}
	}
}

func (p *exprParser) parsePrimary() (Expr, *parseErr) {
	t := p.next()
	switch t.kind {
	case tokName:
		switch t.val {
		case "true", "True", "false", "False":
			return &Literal{Kind: LitBool, Pos: p.pos(t)}, nil
		case "none", "None", "null":
			return &Literal{Kind: LitNone, Pos: p.pos(t)}, nil
		}
		return &Name{Ident: t.val, Pos: p.pos(t)}, nil

	case tokNumber:
		kind := LitInt
		if strings.Contains(t.val, ".") {
			kind = LitFloat
		}
		return &Literal{Kind: kind, Pos: p.pos(t)}, nil

	case tokString:
		return &Literal{Kind: LitString, Pos: p.pos(t)}, nil

	case tokOp:
		switch t.val {
		case "(":
			return p.parseGroup(t)
		case "[":
			return p.parseList(t)
		case "{":
			return p.parseDict(t)
		}
	}
	if t.kind == tokEOF {
		return nil, p.errf(t, "unexpected end of expression")
	}
	return nil, p.errf(t, "unexpected %q", t.val)
}

// parseGroup parses a parenthesized expression or tuple literal.
func (p *exprParser) parseGroup(open token) (Expr, *parseErr) {
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.acceptOp(")") {
		return first, nil
	}

	seq := &Seq{Items: []Expr{first}, Pos: p.pos(open)}
	for p.acceptOp(",") {
		if p.peek().kind == tokOp && p.peek().val == ")" {
			break
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		seq.Items = append(seq.Items, item)
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return seq, nil
}

func (p *exprParser) parseList(open token) (Expr, *parseErr) {
	seq := &Seq{Pos: p.pos(open)}
	for !p.acceptOp("]") {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		seq.Items = append(seq.Items, item)
		if !p.acceptOp(",") && p.peek().val != "]" {
			return nil, p.errf(p.peek(), "expected \",\" or \"]\" in list literal")
		}
	}
	return seq, nil
}

func (p *exprParser) parseDict(open token) (Expr, *parseErr) {
	seq := &Seq{Pos: p.pos(open)}
	for !p.acceptOp("}") {
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		seq.Items = append(seq.Items, key, value)
		if !p.acceptOp(",") && p.peek().val != "}" {
			return nil, p.errf(p.peek(), "expected \",\" or \"}\" in dict literal")
		}
	}
	return seq, nil
}
