// Package parser compiles boolean search queries into a Node tree.
//
// Two notations are accepted:
//   - prefix: and(a,b), or(a,not(b)), a
//   - infix:  a and (b or c), not a
//
// Infix text is rewritten into prefix text by splitting on the leftmost
// top-level operator, so "a or b and c" becomes or(a,and(b,c)). Both
// notations end up in the prefix parser. Terms are compared after lower
// casing; the words and, or, not are reserved.
package parser

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
)

// Mode selects the query notation.
type Mode int

const (
	ModeInfix Mode = iota
	ModePrefix
)

func (m Mode) String() string {
	switch m {
	case ModePrefix:
		return "prefix"
	default:
		return "infix"
	}
}

// ParseMode maps "prefix" or "infix" (any case) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prefix":
		return ModePrefix, nil
	case "infix":
		return ModeInfix, nil
	default:
		return 0, fmt.Errorf("%w: unknown query mode %q", apperrors.ErrInvalidInput, s)
	}
}

// SyntaxError reports a rejected query. Position is a byte offset into the
// text being parsed at the failing stage, or -1.
type SyntaxError struct {
	Query    string `json:"query"`
	Position int    `json:"position"`
	Message  string `json:"message"`
}

func (e *SyntaxError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("invalid query %q at position %d: %s", e.Query, e.Position, e.Message)
	}
	return fmt.Sprintf("invalid query %q: %s", e.Query, e.Message)
}

func (e *SyntaxError) Unwrap() error {
	return apperrors.ErrInvalidQuerySyntax
}

func syntaxErrorf(query string, pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Query:    query,
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Compile lower-cases text, validates it, converts infix text to prefix
// and parses the result. It never returns a partial tree.
func Compile(text string, mode Mode) (Node, error) {
	text = strings.ToLower(text)
	if err := Validate(text, mode); err != nil {
		return nil, err
	}
	if mode == ModeInfix {
		prefix, err := ToPrefix(text)
		if err != nil {
			return nil, err
		}
		text = prefix
	}
	return ParsePrefix(stripSpace(text))
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
