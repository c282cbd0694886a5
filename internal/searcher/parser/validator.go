package parser

import (
	"regexp"
	"strings"
)

// emptyGroup matches "((" directly followed by "))".
var emptyGroup = regexp.MustCompile(`\({2,}\){2,}`)

// IsValidPrefix is a cheap textual check run before ParsePrefix.
func IsValidPrefix(text string) bool {
	return validate(text, ModePrefix) == nil
}

// IsValidInfix is a cheap textual check run before ToPrefix.
func IsValidInfix(text string) bool {
	return validate(text, ModeInfix) == nil
}

// Validate rejects empty input, unbalanced brackets, empty bracket groups
// and directly adjacent conflicting operator words. Passing does not
// guarantee the query parses.
func Validate(text string, mode Mode) error {
	if err := validate(text, mode); err != nil {
		return err
	}
	return nil
}

func validate(text string, mode Mode) *SyntaxError {
	if strings.TrimSpace(text) == "" {
		return syntaxErrorf(text, -1, "empty query")
	}
	if pos, ok := unbalancedAt(text); !ok {
		return syntaxErrorf(text, pos, "unbalanced brackets")
	}
	if loc := emptyGroup.FindStringIndex(text); loc != nil {
		return syntaxErrorf(text, loc[0], "empty bracket group")
	}

	words := strings.Fields(strings.ToLower(text))
	for i := 1; i < len(words); i++ {
		if conflicts(words[i-1], words[i], mode) {
			return syntaxErrorf(text, -1, "operator %q directly followed by %q", words[i-1], words[i])
		}
	}
	return nil
}

func conflicts(prev, next string, mode Mode) bool {
	switch prev {
	case "and", "or":
		return next == "and" || next == "or"
	case "not":
		return mode == ModeInfix && isOperatorWord(next)
	}
	return false
}
