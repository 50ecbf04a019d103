package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"logicforge/internal/domain"
)

const collectionName = "proven_models"

var errNoEmbeddingFunc = errors.New("search index only accepts precomputed embeddings")

// Index is an in-memory cosine-similarity index over the embedded catalog.
// It is rebuilt whenever the catalog fingerprint moves.
type Index struct {
	mu          sync.RWMutex
	fingerprint string
	dims        int
	collection  *chromem.Collection
	models      map[string]domain.ProvenModel
	// themeCounts bounds nResults for filtered queries.
	themeCounts map[string]int
}

// NewIndex returns an empty index for vectors of dims dimensions.
func NewIndex(dims int) *Index {
	return &Index{dims: dims, models: map[string]domain.ProvenModel{}, themeCounts: map[string]int{}}
}

func themeKey(theme string) string {
	return "theme:" + theme
}

// refresh rebuilds the collection when fingerprint differs from the one the
// index was built from. load is only called when a rebuild is needed.
func (ix *Index) refresh(ctx context.Context, fingerprint string, load func(context.Context) ([]domain.ProvenModel, error)) error {
	ix.mu.RLock()
	current := ix.fingerprint == fingerprint && ix.collection != nil
	ix.mu.RUnlock()
	if current {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.fingerprint == fingerprint && ix.collection != nil {
		return nil
	}
	models, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load embedded catalog: %w", err)
	}
	col, err := chromem.NewDB().CreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	byID := make(map[string]domain.ProvenModel, len(models))
	counts := make(map[string]int)
	for _, m := range models {
		if len(m.Embedding) != ix.dims {
			continue
		}
		meta := make(map[string]string, len(m.Themes))
		for _, t := range m.Themes {
			meta[themeKey(t)] = "true"
			counts[t]++
		}
		if err := col.AddDocument(ctx, chromem.Document{
			ID:        m.ID,
			Content:   m.Name,
			Metadata:  meta,
			Embedding: m.Embedding,
		}); err != nil {
			return fmt.Errorf("index model %s: %w", m.ID, err)
		}
		byID[m.ID] = m
	}
	ix.collection = col
	ix.models = byID
	ix.themeCounts = counts
	ix.fingerprint = fingerprint
	return nil
}

// candidates is how many indexed models a query under theme can reach.
func (ix *Index) candidates(theme string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if theme == "" {
		return len(ix.models)
	}
	return ix.themeCounts[theme]
}

// query ranks indexed models by cosine distance to vec, ascending.
func (ix *Index) query(ctx context.Context, vec []float32, theme string, limit int) ([]Match, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := len(ix.models)
	var where map[string]string
	if theme != "" {
		n = ix.themeCounts[theme]
		where = map[string]string{themeKey(theme): "true"}
	}
	if limit < n {
		n = limit
	}
	if n == 0 {
		return []Match{}, nil
	}
	results, err := ix.collection.QueryEmbedding(ctx, vec, n, where, nil)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m, ok := ix.models[r.ID]
		if !ok {
			continue
		}
		d := float64(1 - r.Similarity)
		matches = append(matches, Match{Model: m, Distance: &d})
	}
	return matches, nil
}
