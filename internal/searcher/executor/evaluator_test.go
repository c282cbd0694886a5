package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/parser"
)

func pieIndex() *index.InvertedIndex {
	idx := index.NewInvertedIndex(index.WordClassBody)
	idx.Add("d1", []string{"apple", "pie"})
	idx.Add("d2", []string{"banana", "pie"})
	return idx
}

func evalPrefix(t *testing.T, idx *index.InvertedIndex, q string) []string {
	t.Helper()
	node, err := parser.ParsePrefix(q)
	require.NoError(t, err)
	return Evaluate(node, idx).Sorted()
}

func TestEvaluateTwoDocuments(t *testing.T) {
	idx := pieIndex()
	tests := []struct {
		query string
		want  []string
	}{
		{"and(apple,pie)", []string{"d1"}},
		{"or(apple,banana)", []string{"d1", "d2"}},
		{"not(apple)", []string{"d2"}},
		{"pie", []string{"d1", "d2"}},
		{"and(apple,banana)", []string{}},
		{"and(pie,not(banana))", []string{"d1"}},
		{"or(and(apple,pie),and(banana,pie))", []string{"d1", "d2"}},
		{"not(or(apple,banana))", []string{}},
		{"not(cherry)", []string{"d1", "d2"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, evalPrefix(t, idx, tt.query))
		})
	}
}

func TestEvaluateUnknownTermIsEmpty(t *testing.T) {
	idx := pieIndex()
	for _, term := range []string{"cherry", "and", "", "pies"} {
		got := Evaluate(parser.NewAtomic(term), idx)
		require.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestEvaluateMissingTermDoesNotPoisonOr(t *testing.T) {
	idx := pieIndex()
	assert.Equal(t, []string{"d1"}, evalPrefix(t, idx, "or(apple,cherry)"))
	assert.Equal(t, []string{}, evalPrefix(t, idx, "and(apple,cherry)"))
	assert.Equal(t, []string{"d1", "d2"}, evalPrefix(t, idx, "not(and(apple,cherry))"))
}

func TestEvaluateSingleChildAndIsIdentity(t *testing.T) {
	idx := pieIndex()
	a := parser.NewAtomic("pie")
	and, err := parser.NewAnd(a)
	require.NoError(t, err)
	assert.Equal(t, Evaluate(a, idx), Evaluate(and, idx))
}

func TestEvaluateDuplicateOrCollapses(t *testing.T) {
	idx := pieIndex()
	a := parser.NewAtomic("apple")
	or, err := parser.NewOr(a, a)
	require.NoError(t, err)
	assert.Len(t, or.Children(), 1)
	assert.Equal(t, Evaluate(a, idx), Evaluate(or, idx))
}

func TestEvaluateDoubleNegation(t *testing.T) {
	idx := pieIndex()
	// d3 has no words in this index, so it is outside the complement
	idx.Add("d3", nil)

	for _, q := range []string{"apple", "pie", "cherry", "or(apple,banana)"} {
		t.Run(q, func(t *testing.T) {
			a, err := parser.ParsePrefix(q)
			require.NoError(t, err)
			inner, err := parser.NewNot(a)
			require.NoError(t, err)
			outer, err := parser.NewNot(inner)
			require.NoError(t, err)

			want := Evaluate(a, idx).Intersect(idx.AllDocuments())
			assert.Equal(t, want.Sorted(), Evaluate(outer, idx).Sorted())
		})
	}
}

func TestEvaluateNegationIsPerIndex(t *testing.T) {
	head := index.NewInvertedIndex(index.WordClassHead)
	body := index.NewInvertedIndex(index.WordClassBody)
	head.Add("d1", []string{"recipes"})
	body.Add("d1", []string{"apple"})
	body.Add("d2", []string{"banana"})

	node, err := parser.ParsePrefix("not(apple)")
	require.NoError(t, err)

	assert.Equal(t, []string{"d1"}, Evaluate(node, head).Sorted())
	assert.Equal(t, []string{"d2"}, Evaluate(node, body).Sorted())
}

func TestEvaluateDoesNotMutateIndex(t *testing.T) {
	idx := pieIndex()
	node, err := parser.ParsePrefix("and(pie,not(apple))")
	require.NoError(t, err)

	_ = Evaluate(node, idx)
	docs, _ := idx.Matches("pie")
	assert.Equal(t, []string{"d1", "d2"}, docs.Sorted())
}
