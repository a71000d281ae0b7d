package typeexpr

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed type expression. Offset is the byte offset
// of the offending substring within the expression handed to Parse, so the
// caller can map it back to a template column.
type ParseError struct {
	Expr   string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed type expression %q: %s", e.Expr, e.Reason)
}

// Parse converts a type-expression string into a descriptor tree.
//
// Precedence, loosest to tightest: union (|), generic subscription
// (Name[...]), dotted qualified name. Bracket nesting must balance; commas
// inside brackets separate generic arguments. No name lookup happens here.
func Parse(expr string) (*Descriptor, error) {
	d, err := parse(expr, 0)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func parse(expr string, base int) (*Descriptor, error) {
	s, off := trim(expr, base)
	if s == "" {
		return nil, &ParseError{Expr: expr, Offset: base, Reason: "empty type"}
	}
	if err := checkBalance(s, off); err != nil {
		return nil, err
	}

	parts, offsets := splitTop(s, off, '|')
	if len(parts) > 1 {
		members := make([]*Descriptor, 0, len(parts))
		for i, p := range parts {
			m, err := parse(p, offsets[i])
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		return NewUnion(members), nil
	}

	return parseSingle(s, off)
}

func parseSingle(s string, off int) (*Descriptor, error) {
	// Anonymous bracketed group: the parameter list of Callable[[A, B], R].
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return nil, &ParseError{Expr: s, Offset: off, Reason: "unclosed bracket"}
		}
		args, err := parseArgs(s[1:len(s)-1], off+1)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindGeneric, Args: args}, nil
	}

	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return nil, &ParseError{Expr: s, Offset: off, Reason: "unclosed bracket"}
		}
		name := strings.TrimSpace(s[:i])
		if err := checkName(name, s[:i], off); err != nil {
			return nil, err
		}
		args, err := parseArgs(s[i+1:len(s)-1], off+i+1)
		if err != nil {
			return nil, err
		}
		return makeSubscript(name, args, s, off)
	}

	if err := checkName(s, s, off); err != nil {
		return nil, err
	}
	return makeBare(s), nil
}

func makeSubscript(name string, args []*Descriptor, raw string, off int) (*Descriptor, error) {
	switch name {
	case "Optional", "typing.Optional":
		if len(args) != 1 {
			return nil, &ParseError{Expr: raw, Offset: off, Reason: "Optional takes exactly one argument"}
		}
		return NewOptional(args[0]), nil
	case "Union", "typing.Union":
		if len(args) == 0 {
			return nil, &ParseError{Expr: raw, Offset: off, Reason: "Union takes at least one argument"}
		}
		return NewUnion(args), nil
	default:
		if len(args) == 0 {
			return nil, &ParseError{Expr: raw, Offset: off, Reason: "empty subscription"}
		}
		return &Descriptor{Kind: KindGeneric, Name: name, Args: args}, nil
	}
}

func makeBare(name string) *Descriptor {
	switch {
	case name == "None":
		return noneDesc
	case name == "Any" || name == "typing.Any":
		return anyDesc
	case primitives[name]:
		return &Descriptor{Kind: KindPrimitive, Name: name}
	case containers[name]:
		// Bare list/dict is deliberately untyped, not an unresolved name.
		return &Descriptor{Kind: KindUnknown, Name: name}
	default:
		return &Descriptor{Kind: KindNamed, Name: name}
	}
}

func parseArgs(inner string, off int) ([]*Descriptor, error) {
	parts, offsets := splitTop(inner, off, ',')
	args := make([]*Descriptor, 0, len(parts))
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, &ParseError{Expr: inner, Offset: offsets[i], Reason: "empty type argument"}
		}
		a, err := parse(p, offsets[i])
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

// checkName validates a bare or dotted identifier.
func checkName(name, raw string, off int) error {
	if name == "" {
		return &ParseError{Expr: raw, Offset: off, Reason: "missing type name"}
	}
	for _, seg := range strings.Split(name, ".") {
		if !isIdent(seg) {
			return &ParseError{Expr: name, Offset: off, Reason: fmt.Sprintf("invalid name segment %q", seg)}
		}
	}
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func checkBalance(s string, off int) error {
	depth := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return &ParseError{Expr: s, Offset: off + i, Reason: "unbalanced ']'"}
			}
		}
	}
	if depth != 0 {
		return &ParseError{Expr: s, Offset: off, Reason: "unclosed bracket"}
	}
	return nil
}

// splitTop splits s on sep at bracket depth zero, returning the pieces and
// the offset of each piece relative to the same base as off.
func splitTop(s string, off int, sep byte) ([]string, []int) {
	var parts []string
	var offsets []int
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				offsets = append(offsets, off+start)
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	offsets = append(offsets, off+start)
	return parts, offsets
}

func trim(s string, off int) (string, int) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	j := len(s)
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j], off + i
}
