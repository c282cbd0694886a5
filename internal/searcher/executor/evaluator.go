package executor

import (
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/parser"
)

// Evaluate computes the documents of r matched by node. The result is never
// nil and belongs to the caller.
//
// A term that was never indexed matches nothing. Negation is relative to
// the documents of r, so the same query may differ between the head and
// body indexes.
func Evaluate(node parser.Node, r index.Reader) index.DocSet {
	switch n := node.(type) {
	case *parser.Atomic:
		docs, ok := r.Matches(n.Term())
		if !ok {
			return index.NewDocSet()
		}
		return docs
	case *parser.And:
		return intersect(n.Children(), r)
	case *parser.Or:
		return union(n.Children(), r)
	case *parser.Not:
		return r.AllDocuments().Difference(Evaluate(n.Child(), r))
	default:
		return index.NewDocSet()
	}
}

// intersect evaluates children in canonical order and stops at the first
// empty intermediate result.
func intersect(children []parser.Node, r index.Reader) index.DocSet {
	var result index.DocSet
	for i, child := range children {
		docs := Evaluate(child, r)
		if i == 0 {
			result = docs
		} else {
			result.Intersect(docs)
		}
		if result.Len() == 0 {
			return index.NewDocSet()
		}
	}
	if result == nil {
		return index.NewDocSet()
	}
	return result
}

func union(children []parser.Node, r index.Reader) index.DocSet {
	result := index.NewDocSet()
	for _, child := range children {
		result.Union(Evaluate(child, r))
	}
	return result
}
