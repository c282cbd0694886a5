package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
)

func TestParsePrefixCanonical(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"apple", "apple"},
		{"and(apple,orange)", "AND([apple],[orange])"},
		{"or(apple,orange)", "OR([apple],[orange])"},
		{"not(apple)", "NOT([apple])"},
		{"or(orange,apple)", "OR([apple],[orange])"},
		{"and(or(a,b),c)", "AND([OR([a],[b])],[c])"},
		{"and(c,or(b,a))", "AND([OR([a],[b])],[c])"},
		{"not(and(a,b))", "NOT([AND([a],[b])])"},
		{"or(a,not(b),c)", "OR([NOT([b])],[a],[c])"},
		{"not(not(a))", "NOT([NOT([a])])"},
		{"android", "android"},
		{"orange", "orange"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := ParsePrefix(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, node.Canonical())
		})
	}
}

func TestParsePrefixDuplicateOperandsCollapse(t *testing.T) {
	node, err := ParsePrefix("and(a,a)")
	require.NoError(t, err)
	atomic, ok := node.(*Atomic)
	require.True(t, ok, "expected *Atomic, got %T", node)
	assert.Equal(t, "a", atomic.Term())

	node, err = ParsePrefix("or(and(a,b),and(b,a))")
	require.NoError(t, err)
	assert.Equal(t, "AND([a],[b])", node.Canonical())

	node, err = ParsePrefix("and(a,b,a,b)")
	require.NoError(t, err)
	and, ok := node.(*And)
	require.True(t, ok)
	assert.Len(t, and.Children(), 2)
}

func TestParsePrefixNotParsesCompoundChild(t *testing.T) {
	node, err := ParsePrefix("not(or(a,b))")
	require.NoError(t, err)
	not, ok := node.(*Not)
	require.True(t, ok)
	_, ok = not.Child().(*Or)
	assert.True(t, ok, "child of not should be an *Or, got %T", not.Child())
}

func TestParsePrefixRejects(t *testing.T) {
	tests := []string{
		"",
		"and()",
		"or()",
		"not()",
		"and(a,,b)",
		"and(a,)",
		"and(,a)",
		"and(a,b",
		"and(a,b))",
		"and(a,b)c",
		"not(a,b)",
		"a)",
		"(a)",
		"a,b",
		"xor(a,b)",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			node, err := ParsePrefix(input)
			require.Error(t, err)
			assert.Nil(t, node)

			var syn *SyntaxError
			assert.True(t, errors.As(err, &syn))
			assert.ErrorIs(t, err, apperrors.ErrInvalidQuerySyntax)
		})
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := ParsePrefix("and(a,b)c")
	var syn *SyntaxError
	require.True(t, errors.As(err, &syn))
	assert.Equal(t, 8, syn.Position)
	assert.Contains(t, syn.Error(), "position 8")
}

func TestNodeChildrenAreCopies(t *testing.T) {
	node, err := ParsePrefix("and(a,b)")
	require.NoError(t, err)
	and := node.(*And)

	kids := and.Children()
	kids[0] = NewAtomic("z")
	assert.Equal(t, "AND([a],[b])", and.Canonical())
	assert.Equal(t, "a", and.Children()[0].Canonical())
}

func TestConstructorsRequireOperands(t *testing.T) {
	_, err := NewAnd()
	assert.Error(t, err)
	_, err = NewOr(nil)
	assert.Error(t, err)
	_, err = NewNot(nil)
	assert.Error(t, err)

	single, err := NewAnd(NewAtomic("a"))
	require.NoError(t, err)
	assert.Equal(t, "AND([a])", single.Canonical())
}

func BenchmarkParsePrefix(b *testing.B) {
	q := "and(or(apple,banana),not(cherry),or(date,and(elder,fig)))"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParsePrefix(q); err != nil {
			b.Fatal(err)
		}
	}
}
