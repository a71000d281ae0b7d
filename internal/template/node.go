// Package template tokenizes a Jinja-style template into the node stream the
// analyzer walks: outputs, conditionals, loops, set statements and comment
// spans. It covers the expression subset that matters for type checking;
// rendering concerns (inheritance, includes, macros) are recognized and
// skipped, never evaluated.
package template

// Pos is a 1-based source location.
type Pos struct {
	Line int
	Col  int
}

// Node is a statement-level template node.
type Node interface {
	Position() Pos
}

// Expr is an expression node inside an output or a tag.
type Expr interface {
	Position() Pos
}

// Output is a {{ expr }} interpolation.
type Output struct {
	Expr Expr
	Pos  Pos
}

// If is a conditional chain. Elifs are folded into nested Else branches by
// the parser, so every If has exactly one condition.
type If struct {
	Cond Expr
	Then []Node
	Else []Node
	Pos  Pos
}

// For is a loop. Vars holds the target names ("for k, v in items"); Cond is
// the optional inline filter ("for x in xs if x.active").
type For struct {
	Vars []string
	Iter Expr
	Cond Expr
	Body []Node
	Else []Node
	Pos  Pos
}

// Set binds a template-local name to an expression value.
type Set struct {
	Name  string
	Value Expr
	Pos   Pos
}

func (n *Output) Position() Pos { return n.Pos }
func (n *If) Position() Pos     { return n.Pos }
func (n *For) Position() Pos    { return n.Pos }
func (n *Set) Position() Pos    { return n.Pos }

// Name is a bare variable read.
type Name struct {
	Ident string
	Pos   Pos
}

// Getattr is expr.attr access.
type Getattr struct {
	Target Expr
	Attr   string
	Pos    Pos
}

// Subscript is expr[index] access.
type Subscript struct {
	Target Expr
	Index  Expr
	Pos    Pos
}

// Call is expr(args).
type Call struct {
	Target Expr
	Args   []Expr
	Pos    Pos
}

// Filter is expr | name(args). Filters erase static type information.
type Filter struct {
	Target Expr
	Name   string
	Args   []Expr
	Pos    Pos
}

// Test is "expr is [not] name" (is none, is defined, ...).
type Test struct {
	Target  Expr
	Name    string
	Negated bool
	Args    []Expr
	Pos     Pos
}

// Not is a boolean negation.
type Not struct {
	Expr Expr
	Pos  Pos
}

// BinOp covers boolean, comparison and arithmetic operators.
type BinOp struct {
	Op    string
	Left  Expr
	Right Expr
	Pos   Pos
}

// CondExpr is the inline "a if cond else b" form.
type CondExpr struct {
	True  Expr
	Test  Expr
	False Expr
	Pos   Pos
}

// Seq is an inline list, tuple or dict literal. Items holds every nested
// expression (dict keys and values flattened) so reads inside literals are
// still visible to the analyzer.
type Seq struct {
	Items []Expr
	Pos   Pos
}

// LiteralKind classifies constant expressions.
type LiteralKind int

const (
	LitString LiteralKind = iota
	LitInt
	LitFloat
	LitBool
	LitNone
)

// Literal is a constant.
type Literal struct {
	Kind LiteralKind
	Pos  Pos
}

func (e *Name) Position() Pos      { return e.Pos }
func (e *Getattr) Position() Pos   { return e.Pos }
func (e *Subscript) Position() Pos { return e.Pos }
func (e *Call) Position() Pos      { return e.Pos }
func (e *Filter) Position() Pos    { return e.Pos }
func (e *Test) Position() Pos      { return e.Pos }
func (e *Not) Position() Pos       { return e.Pos }
func (e *BinOp) Position() Pos     { return e.Pos }
func (e *CondExpr) Position() Pos  { return e.Pos }
func (e *Seq) Position() Pos       { return e.Pos }
func (e *Literal) Position() Pos   { return e.Pos }
