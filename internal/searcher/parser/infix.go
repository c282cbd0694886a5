package parser

import "strings"

// ToPrefix rewrites infix text into prefix text. The input should already
// be lower case.
//
// The leftmost operator outside brackets splits the text and both sides are
// rewritten recursively, so later operators nest to the right:
//
//	apple or banana and cat  →  or(apple,and(banana,cat))
//
// A leading "not" applies to the whole remainder. Operators are matched as
// whole words only; "orange" and "sandbox" are plain terms. An operator may
// touch the bracket that follows it, as in "apple and(pie or cake)". Text
// with no operator is returned as is, which lets prefix shapes such as
// and(a,b) pass through; any other text containing a comma is rejected.
func ToPrefix(text string) (string, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", syntaxErrorf(text, -1, "empty expression")
	}
	if pos, ok := unbalancedAt(text); !ok {
		return "", syntaxErrorf(text, pos, "unbalanced brackets")
	}
	c := &infixConverter{query: text}
	return c.convert(text)
}

type infixConverter struct {
	query string
}

func (c *infixConverter) convert(text string) (string, error) {
	text, err := c.stripEnclosing(text)
	if err != nil {
		return "", err
	}
	if isOperatorWord(text) {
		return "", syntaxErrorf(c.query, -1, "operator %q has no operands", text)
	}

	if rest, ok := cutNot(text); ok {
		inner, err := c.convert(rest)
		if err != nil {
			return "", err
		}
		return "not(" + inner + ")", nil
	}

	left, op, right, found, err := c.splitLeftmost(text)
	if err != nil {
		return "", err
	}
	if found {
		l, err := c.convert(left)
		if err != nil {
			return "", err
		}
		r, err := c.convert(right)
		if err != nil {
			return "", err
		}
		return op + "(" + l + "," + r + ")", nil
	}

	if i := topLevelSpace(text); i >= 0 {
		return "", syntaxErrorf(c.query, -1, "missing operator between %q and %q", text[:i], text[i+1:])
	}
	if strings.Contains(text, ",") && !isPrefixShape(text) {
		pos := -1
		if at := strings.Index(c.query, text); at >= 0 {
			pos = at + strings.IndexByte(text, ',')
		}
		return "", syntaxErrorf(c.query, pos, "unexpected ',' in term %q", text)
	}
	return text, nil
}

// isPrefixShape reports whether text is a whole and(...) or or(...) call.
// not(...) never gets here; cutNot has already taken it.
func isPrefixShape(text string) bool {
	for _, op := range []string{"and(", "or("} {
		if strings.HasPrefix(text, op) && closingIndex(text, len(op)-1) == len(text)-1 {
			return true
		}
	}
	return false
}

// stripEnclosing removes brackets that wrap the whole text, repeatedly.
func (c *infixConverter) stripEnclosing(text string) (string, error) {
	for len(text) >= 2 && text[0] == '(' && closingIndex(text, 0) == len(text)-1 {
		text = strings.TrimSpace(text[1 : len(text)-1])
		if text == "" {
			return "", syntaxErrorf(c.query, -1, "empty group")
		}
	}
	return text, nil
}

// splitLeftmost finds the first whole-word and/or outside brackets. The
// word may be followed by a space or, after a left operand, directly by an
// opening bracket: "apple and(pie or cake)".
func (c *infixConverter) splitLeftmost(text string) (left, op, right string, found bool, err error) {
	depth := 0
	wordStart := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) {
			switch text[i] {
			case '(':
				if word := text[wordStart:i]; depth == 0 && wordStart > 0 && (word == "and" || word == "or") {
					return c.split(text, wordStart, i, word)
				}
				depth++
				continue
			case ')':
				depth--
				continue
			case ' ':
				if depth != 0 {
					continue
				}
			default:
				continue
			}
		}
		word := text[wordStart:i]
		if word == "and" || word == "or" {
			return c.split(text, wordStart, min(i+1, len(text)), word)
		}
		wordStart = i + 1
	}
	return "", "", "", false, nil
}

// split cuts text around the operator word starting at wordStart; the
// right operand begins at rightStart.
func (c *infixConverter) split(text string, wordStart, rightStart int, word string) (string, string, string, bool, error) {
	left := strings.TrimSpace(text[:wordStart])
	right := strings.TrimSpace(text[rightStart:])
	if left == "" {
		return "", "", "", false, syntaxErrorf(c.query, -1, "operator %q has no left operand", word)
	}
	if right == "" {
		return "", "", "", false, syntaxErrorf(c.query, -1, "operator %q has no right operand", word)
	}
	return left, word, right, true, nil
}

func cutNot(text string) (string, bool) {
	if rest, ok := strings.CutPrefix(text, "not "); ok {
		return strings.TrimSpace(rest), true
	}
	if strings.HasPrefix(text, "not(") && closingIndex(text, 3) == len(text)-1 {
		return strings.TrimSpace(text[4 : len(text)-1]), true
	}
	return "", false
}

func isOperatorWord(s string) bool {
	return s == "and" || s == "or" || s == "not"
}

// closingIndex returns the index of the bracket closing text[open], or -1.
func closingIndex(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func topLevelSpace(text string) int {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ' ':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// unbalancedAt reports whether brackets in text balance, and if not, where
// the first problem is.
func unbalancedAt(text string) (int, bool) {
	depth := 0
	lastOpen := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			if depth == 0 {
				lastOpen = i
			}
			depth++
		case ')':
			depth--
			if depth < 0 {
				return i, false
			}
		}
	}
	if depth != 0 {
		return lastOpen, false
	}
	return -1, true
}
