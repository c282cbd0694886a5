package parser

import (
	"errors"
	"sort"
	"strings"
)

// Node is a boolean query tree node: *Atomic, *And, *Or or *Not. Trees are
// immutable once built.
type Node interface {
	// Canonical renders the node deterministically; equal trees render
	// equally.
	Canonical() string
	String() string
	node()
}

var errNoChildren = errors.New("operator needs at least one operand")

// Atomic matches documents containing a single term.
type Atomic struct {
	term string
}

func NewAtomic(term string) *Atomic {
	return &Atomic{term: term}
}

func (a *Atomic) Term() string { return a.term }
func (a *Atomic) Canonical() string { return a.term }
func (a *Atomic) String() string { return a.term }
func (*Atomic) node() {}

// And matches documents matched by every child.
type And struct {
	children  []Node
	canonical string
}

// NewAnd deduplicates children by canonical form and orders them by it.
func NewAnd(children ...Node) (*And, error) {
	kids, err := normalizeChildren(children)
	if err != nil {
		return nil, err
	}
	return &And{children: kids, canonical: renderNary("AND", kids)}, nil
}

func (n *And) Children() []Node { return append([]Node(nil), n.children...) }
func (n *And) Canonical() string { return n.canonical }
func (n *And) String() string { return n.canonical }
func (*And) node() {}

// Or matches documents matched by any child.
type Or struct {
	children  []Node
	canonical string
}

// NewOr deduplicates children by canonical form and orders them by it.
func NewOr(children ...Node) (*Or, error) {
	kids, err := normalizeChildren(children)
	if err != nil {
		return nil, err
	}
	return &Or{children: kids, canonical: renderNary("OR", kids)}, nil
}

func (n *Or) Children() []Node { return append([]Node(nil), n.children...) }
func (n *Or) Canonical() string { return n.canonical }
func (n *Or) String() string { return n.canonical }
func (*Or) node() {}

// Not matches the documents of an index that its child does not match.
type Not struct {
	child     Node
	canonical string
}

func NewNot(child Node) (*Not, error) {
	if child == nil {
		return nil, errNoChildren
	}
	return &Not{child: child, canonical: "NOT([" + child.Canonical() + "])"}, nil
}

func (n *Not) Child() Node { return n.child }
func (n *Not) Canonical() string { return n.canonical }
func (n *Not) String() string { return n.canonical }
func (*Not) node() {}

func normalizeChildren(children []Node) ([]Node, error) {
	seen := make(map[string]Node, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		seen[c.Canonical()] = c
	}
	if len(seen) == 0 {
		return nil, errNoChildren
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Node, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out, nil
}

func renderNary(op string, children []Node) string {
	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('(')
	for i, c := range children {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		b.WriteString(c.Canonical())
		b.WriteByte(']')
	}
	b.WriteByte(')')
	return b.String()
}
