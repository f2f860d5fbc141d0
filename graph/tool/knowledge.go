package tool

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Embedder turns texts into vectors. The OpenAI model adapter implements it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Index is an in-memory KnowledgeBase. With an Embedder it ranks by cosine
// similarity; without one it ranks by query term overlap.
type Index struct {
	embedder Embedder

	mu      sync.RWMutex
	docs    []Document
	vectors [][]float64
}

// NewIndex creates an empty index. embedder may be nil.
func NewIndex(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Add appends documents to the index, embedding them when an Embedder is
// configured.
func (ix *Index) Add(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	var vectors [][]float64
	if ix.embedder != nil {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Title + "\n" + d.Content
		}
		var err error
		vectors, err = ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed documents: %w", err)
		}
		if len(vectors) != len(docs) {
			return fmt.Errorf("embed documents: got %d vectors for %d documents", len(vectors), len(docs))
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = append(ix.docs, docs...)
	if ix.embedder != nil {
		ix.vectors = append(ix.vectors, vectors...)
	}
	return nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// SearchDB returns at most topK documents ranked by relevance. Documents
// with zero score are omitted.
func (ix *Index) SearchDB(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	var qvec []float64
	if ix.embedder != nil {
		vecs, err := ix.embedder.Embed(ctx, []string{query})
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		if len(vecs) == 1 {
			qvec = vecs[0]
		}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	terms := tokens(query)
	scored := make([]Document, 0, len(ix.docs))
	for i, d := range ix.docs {
		var score float64
		if qvec != nil && i < len(ix.vectors) {
			score = cosine(qvec, ix.vectors[i])
		} else {
			score = overlap(terms, tokens(d.Title+" "+d.Content))
		}
		if score <= 0 {
			continue
		}
		d.Score = score
		scored = append(scored, d)
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func tokens(s string) map[string]int {
	out := make(map[string]int)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) > 2 {
			out[f]++
		}
	}
	return out
}

// overlap is the fraction of query terms present in the document, weighted
// lightly by term frequency.
func overlap(query, doc map[string]int) float64 {
	if len(query) == 0 {
		return 0
	}
	var score float64
	for term := range query {
		if n := doc[term]; n > 0 {
			score += 1 + math.Log(float64(n))
		}
	}
	return score / float64(len(query))
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
