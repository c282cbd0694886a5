package parser

import "strings"

var prefixOperators = []string{"and", "or", "not"}

// ParsePrefix parses prefix notation. The input must already be lower case
// with whitespace removed.
//
// Grammar:
//
//	expr → "and(" list ")" | "or(" list ")" | "not(" expr ")" | term
//	list → expr ("," expr)*
//
// Duplicate and/or operands are merged, and an and/or left with a single
// operand is replaced by that operand.
func ParsePrefix(text string) (Node, error) {
	if text == "" {
		return nil, syntaxErrorf(text, -1, "empty expression")
	}
	p := &prefixParser{input: text}
	return p.parse(0, len(text))
}

type prefixParser struct {
	input string
}

func (p *prefixParser) parse(start, end int) (Node, error) {
	s := p.input[start:end]
	if s == "" {
		return nil, syntaxErrorf(p.input, start, "empty operand")
	}
	for _, op := range prefixOperators {
		if !strings.HasPrefix(s, op+"(") {
			continue
		}
		open := start + len(op)
		closing, err := p.matching(open, end)
		if err != nil {
			return nil, err
		}
		if closing != end-1 {
			return nil, syntaxErrorf(p.input, closing+1, "unexpected text after %s(...)", op)
		}
		return p.parseOperator(op, open+1, closing)
	}
	if i := strings.IndexAny(s, "(),"); i >= 0 {
		return nil, syntaxErrorf(p.input, start+i, "unexpected %q in term", s[i])
	}
	return NewAtomic(s), nil
}

func (p *prefixParser) parseOperator(op string, start, end int) (Node, error) {
	if op == "not" {
		child, err := p.parse(start, end)
		if err != nil {
			return nil, err
		}
		return NewNot(child)
	}

	if start == end {
		return nil, syntaxErrorf(p.input, start, "%s() needs at least one operand", op)
	}
	spans := p.split(start, end)
	children := make([]Node, 0, len(spans))
	for _, sp := range spans {
		child, err := p.parse(sp[0], sp[1])
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	var (
		node Node
		kids []Node
	)
	if op == "and" {
		n, err := NewAnd(children...)
		if err != nil {
			return nil, syntaxErrorf(p.input, start, "%v", err)
		}
		node, kids = n, n.children
	} else {
		n, err := NewOr(children...)
		if err != nil {
			return nil, syntaxErrorf(p.input, start, "%v", err)
		}
		node, kids = n, n.children
	}
	if len(kids) == 1 {
		return kids[0], nil
	}
	return node, nil
}

// matching returns the index of the ')' closing the '(' at open.
func (p *prefixParser) matching(open, end int) (int, error) {
	depth := 0
	for i := open; i < end; i++ {
		switch p.input[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, syntaxErrorf(p.input, open, "unclosed '('")
}

// split cuts [start,end) at commas outside any brackets. The range is
// known to be balanced.
func (p *prefixParser) split(start, end int) [][2]int {
	var spans [][2]int
	depth := 0
	from := start
	for i := start; i < end; i++ {
		switch p.input[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				spans = append(spans, [2]int{from, i})
				from = i + 1
			}
		}
	}
	return append(spans, [2]int{from, end})
}
