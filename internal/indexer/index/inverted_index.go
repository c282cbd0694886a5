// Package index holds the in-memory inverted index that maps a word to the
// set of documents containing it. One index exists per word class.
package index

import (
	"fmt"
	"sync"
)

// WordClass names which bag of page words an index covers.
type WordClass string

const (
	WordClassHead WordClass = "head"
	WordClassBody WordClass = "body"
)

// ParseWordClass maps "head" or "body" to a WordClass.
func ParseWordClass(s string) (WordClass, error) {
	switch WordClass(s) {
	case WordClassHead, WordClassBody:
		return WordClass(s), nil
	default:
		return "", fmt.Errorf("unknown word class %q", s)
	}
}

// Reader is a read-only view of an index. Every set it returns is a copy.
type Reader interface {
	Matches(term string) (DocSet, bool)
	AllDocuments() DocSet
}

// InvertedIndex maps terms to the documents that contain them. A term is a
// key only while at least one document holds it, and the index never
// shrinks.
type InvertedIndex struct {
	mu        sync.RWMutex
	class     WordClass
	postings  map[string]DocSet
	docCount  int
	termCount int
}

func NewInvertedIndex(class WordClass) *InvertedIndex {
	return &InvertedIndex{
		class:    class,
		postings: make(map[string]DocSet),
	}
}

func (x *InvertedIndex) Class() WordClass {
	return x.class
}

// Add records docID under every term. The document counter is bumped even
// when terms is empty or the document was added before.
func (x *InvertedIndex) Add(docID string, terms []string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, term := range terms {
		if term == "" {
			continue
		}
		docs, ok := x.postings[term]
		if !ok {
			docs = make(DocSet)
			x.postings[term] = docs
		}
		docs[docID] = struct{}{}
	}
	x.docCount++
	x.termCount = len(x.postings)
}

// Matches returns a copy of the documents holding term, or false when the
// term was never indexed.
func (x *InvertedIndex) Matches(term string) (DocSet, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return snapshot{x}.Matches(term)
}

// AllDocuments returns every document that contributed at least one term.
func (x *InvertedIndex) AllDocuments() DocSet {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return snapshot{x}.AllDocuments()
}

// View runs fn with a Reader that holds the read lock for its whole
// duration, so several lookups observe the same index state. fn must not
// call Add on the same index.
func (x *InvertedIndex) View(fn func(r Reader)) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	fn(snapshot{x})
}

func (x *InvertedIndex) DocCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.docCount
}

func (x *InvertedIndex) TermCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.termCount
}

// snapshot reads the index without locking; callers hold the read lock.
type snapshot struct {
	x *InvertedIndex
}

func (s snapshot) Matches(term string) (DocSet, bool) {
	docs, ok := s.x.postings[term]
	if !ok {
		return nil, false
	}
	return docs.Clone(), true
}

func (s snapshot) AllDocuments() DocSet {
	all := make(DocSet)
	for _, docs := range s.x.postings {
		all.Union(docs)
	}
	return all
}
