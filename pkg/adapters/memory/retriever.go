package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// Retriever is a keyword-overlap ports.Retriever over documents held in memory.
type Retriever struct {
	mu   sync.RWMutex
	docs []domain.Document
}

// NewRetriever creates a retriever over docs.
func NewRetriever(docs ...domain.Document) *Retriever {
	return &Retriever{docs: docs}
}

// Add indexes more documents.
func (r *Retriever) Add(docs ...domain.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, docs...)
}

// Retrieve scores each document by the share of query terms it contains and
// returns the best limit matches. Documents with no shared term are skipped.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []domain.Document
	for _, d := range r.docs {
		if score := Score(terms, d.Content); score > 0 {
			d.Score = score
			hits = append(hits, d)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Terms lowercases query and keeps the distinct words longer than two letters.
func Terms(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		if len([]rune(f)) <= 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Score is the fraction of terms found in content, case-insensitively.
func Score(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lc := strings.ToLower(content)
	n := 0
	for _, t := range terms {
		if strings.Contains(lc, t) {
			n++
		}
	}
	return float64(n) / float64(len(terms))
}
