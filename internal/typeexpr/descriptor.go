// Package typeexpr parses Python-style type expressions into structural
// descriptors. The parser is purely syntactic: names are recorded as written
// and resolved later by the registry.
package typeexpr

import "strings"

// Kind discriminates the descriptor variants.
type Kind int

const (
	KindPrimitive Kind = iota // builtin scalar: str, int, float, bool, bytes
	KindNamed                 // user-defined type, possibly dotted
	KindGeneric               // Base[Arg, ...]
	KindUnion                 // A | B, None-free after canonicalization
	KindOptional              // T | None
	KindNone                  // bare None
	KindUnknown               // untyped escape hatch: bare list, bare dict
	KindAny                   // typing.Any
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "Primitive"
	case KindNamed:
		return "Named"
	case KindGeneric:
		return "Generic"
	case KindUnion:
		return "Union"
	case KindOptional:
		return "Optional"
	case KindNone:
		return "None"
	case KindUnknown:
		return "Unknown"
	case KindAny:
		return "Any"
	default:
		return "Invalid"
	}
}

// Descriptor is the structural form of a type expression. Descriptors are
// immutable once constructed and compared structurally, never by identity.
type Descriptor struct {
	Kind Kind

	// Name is the primitive or (possibly dotted) declared name, or the
	// base name of a generic. Empty for unions, optionals and the
	// anonymous parameter lists inside Callable subscriptions.
	Name string

	// Args holds generic arguments or union members.
	Args []*Descriptor

	// Elem is the wrapped type of an Optional.
	Elem *Descriptor
}

var (
	// Shared leaves. Never mutated.
	anyDesc     = &Descriptor{Kind: KindAny, Name: "Any"}
	noneDesc    = &Descriptor{Kind: KindNone, Name: "None"}
	unknownDesc = &Descriptor{Kind: KindUnknown}
)

// Any returns the descriptor for typing.Any.
func Any() *Descriptor { return anyDesc }

// None returns the descriptor for the None type.
func None() *Descriptor { return noneDesc }

// Unknown returns the untyped escape-hatch descriptor.
func Unknown() *Descriptor { return unknownDesc }

// primitives are builtin scalar types whose members are never checked.
var primitives = map[string]bool{
	"str": true, "int": true, "float": true, "bool": true,
	"bytes": true, "complex": true, "object": true,
}

// containers are builtin generics. Written bare (no subscription) they are
// intentionally untyped and map to Unknown.
var containers = map[string]bool{
	"list": true, "dict": true, "set": true, "tuple": true,
	"frozenset": true,
	"List": true, "Dict": true, "Set": true, "Tuple": true,
	"Sequence": true, "Mapping": true, "Iterable": true, "Iterator": true,
}

// IsContainer reports whether name is a builtin generic container.
func IsContainer(name string) bool { return containers[name] }

// IsPrimitive reports whether name is a builtin scalar type.
func IsPrimitive(name string) bool { return primitives[name] }

// Equal reports structural equality of two descriptors.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.Kind != other.Kind || d.Name != other.Name {
		return false
	}
	if len(d.Args) != len(other.Args) {
		return false
	}
	for i := range d.Args {
		if !d.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	if (d.Elem == nil) != (other.Elem == nil) {
		return false
	}
	if d.Elem != nil && !d.Elem.Equal(other.Elem) {
		return false
	}
	return true
}

// String renders the canonical surface form. Optionals always use the
// operator form, so Optional[str] and str | None print identically.
func (d *Descriptor) String() string {
	if d == nil {
		return "<nil>"
	}
	switch d.Kind {
	case KindNone:
		return "None"
	case KindAny:
		return "Any"
	case KindUnknown:
		if d.Name != "" {
			return d.Name
		}
		return "Unknown"
	case KindPrimitive, KindNamed:
		return d.Name
	case KindGeneric:
		parts := make([]string, len(d.Args))
		for i, a := range d.Args {
			parts[i] = a.String()
		}
		if d.Name == "" {
			return "[" + strings.Join(parts, ", ") + "]"
		}
		return d.Name + "[" + strings.Join(parts, ", ") + "]"
	case KindUnion:
		parts := make([]string, len(d.Args))
		for i, a := range d.Args {
			parts[i] = a.String()
		}
		return strings.Join(parts, " | ")
	case KindOptional:
		return d.Elem.String() + " | None"
	default:
		return "<invalid>"
	}
}

// NewUnion builds the canonical descriptor for a set of union members:
// nested unions flatten, structural duplicates collapse, and a None member
// turns the result into an Optional.
func NewUnion(members []*Descriptor) *Descriptor {
	var flat []*Descriptor
	hasNone := false

	var add func(m *Descriptor)
	add = func(m *Descriptor) {
		switch m.Kind {
		case KindUnion:
			for _, a := range m.Args {
				add(a)
			}
		case KindOptional:
			hasNone = true
			add(m.Elem)
		case KindNone:
			hasNone = true
		default:
			for _, seen := range flat {
				if seen.Equal(m) {
					return
				}
			}
			flat = append(flat, m)
		}
	}
	for _, m := range members {
		add(m)
	}

	var core *Descriptor
	switch len(flat) {
	case 0:
		return noneDesc
	case 1:
		core = flat[0]
	default:
		core = &Descriptor{Kind: KindUnion, Args: flat}
	}
	if hasNone {
		return &Descriptor{Kind: KindOptional, Elem: core}
	}
	return core
}

// NewOptional wraps a descriptor in Optional, collapsing doubled wrapping.
func NewOptional(elem *Descriptor) *Descriptor {
	return NewUnion([]*Descriptor{elem, noneDesc})
}
