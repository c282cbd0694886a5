package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/metrics"
)

func newTestExecutor(t *testing.T) (*Executor, *metrics.Metrics) {
	t.Helper()
	head := index.NewInvertedIndex(index.WordClassHead)
	body := index.NewInvertedIndex(index.WordClassBody)

	head.Add("https://a.example/pie", []string{"apple", "recipes"})
	body.Add("https://a.example/pie", []string{"apple", "pie", "oven"})
	head.Add("https://b.example/bread", []string{"banana", "recipes"})
	body.Add("https://b.example/bread", []string{"banana", "pie", "bread"})

	m := metrics.New(prometheus.NewRegistry())
	return New(head, body, m), m
}

func TestSearchBothIndexes(t *testing.T) {
	exec, m := newTestExecutor(t)

	res, err := exec.Search(context.Background(), "pie and not banana", parser.ModeInfix)
	require.NoError(t, err)

	assert.Equal(t, "infix", res.Mode)
	assert.Equal(t, "AND([NOT([banana])],[pie])", res.Canonical)
	// pie is a body-only word, so the head index has nothing for it
	assert.Empty(t, res.Head)
	assert.Equal(t, []string{"https://a.example/pie"}, res.Body)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("infix", "hit")))
}

func TestSearchPrefixMode(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Search(context.Background(), "or(apple,banana)", parser.ModePrefix)
	require.NoError(t, err)
	want := []string{"https://a.example/pie", "https://b.example/bread"}
	assert.Equal(t, want, res.Head)
	assert.Equal(t, want, res.Body)
}

func TestSearchZeroResult(t *testing.T) {
	exec, m := newTestExecutor(t)

	res, err := exec.Search(context.Background(), "cherry", parser.ModeInfix)
	require.NoError(t, err)
	assert.NotNil(t, res.Head)
	assert.NotNil(t, res.Body)
	assert.Empty(t, res.Head)
	assert.Empty(t, res.Body)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("infix", "zero_result")))
}

func TestSearchRejected(t *testing.T) {
	exec, m := newTestExecutor(t)

	res, err := exec.Search(context.Background(), "apple and and pie", parser.ModeInfix)
	assert.Nil(t, res)
	require.Error(t, err)

	var syn *parser.SyntaxError
	assert.True(t, errors.As(err, &syn))
	assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("infix", "rejected")))
}

func TestSearchCancelledContext(t *testing.T) {
	exec, _ := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Search(ctx, "apple", parser.ModeInfix)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchWithoutMetrics(t *testing.T) {
	idx := index.NewInvertedIndex(index.WordClassBody)
	idx.Add("d1", []string{"apple"})
	exec := New(idx, idx, nil)

	res, err := exec.Search(context.Background(), "apple", parser.ModeInfix)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, res.Body)
}

func BenchmarkSearch(b *testing.B) {
	head := index.NewInvertedIndex(index.WordClassHead)
	body := index.NewInvertedIndex(index.WordClassBody)
	terms := []string{"apple", "banana", "cherry", "pie", "bread", "oven", "recipes", "kafka"}
	for i := 0; i < 10000; i++ {
		id := fmt.Sprintf("https://bench.example/%d", i)
		head.Add(id, []string{terms[i%len(terms)]})
		body.Add(id, []string{terms[i%len(terms)], terms[(i+2)%len(terms)], terms[(i+3)%len(terms)]})
	}
	exec := New(head, body, nil)

	queries := []struct {
		text string
		mode parser.Mode
	}{
		{"apple", parser.ModeInfix},
		{"(apple or banana) and not pie", parser.ModeInfix},
		{"and(or(cherry,bread),not(oven))", parser.ModePrefix},
	}
	for _, q := range queries {
		b.Run(q.text, func(b *testing.B) {
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := exec.Search(context.Background(), q.text, q.mode); err != nil {
						b.Fatal(err)
					}
				}
			})
		})
	}
}
