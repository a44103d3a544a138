package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

// scopedOverFetch widens the ranked pool before document filtering on
// scoped searches.
const scopedOverFetch = 3

type entry struct {
	chunk  domain.EvidenceChunk
	vector []float32
	norm   float64
	order  int
}

// Index is an in-memory cosine-similarity index over chunk embeddings.
// Vector norms are precomputed at ingest; similarity scores are clamped
// into [0,1]. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     int
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]*entry)}
}

func (idx *Index) Ingest(ctx context.Context, chunks []domain.EvidenceChunk, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, chunk := range chunks {
		if chunk.ChunkID == "" || len(vectors[i]) == 0 {
			continue
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		idx.entries[chunk.ChunkID] = &entry{
			chunk:  chunk,
			vector: vec,
			norm:   vectorNorm(vec),
			order:  idx.seq,
		}
		idx.seq++
	}
	return nil
}

func (idx *Index) Search(ctx context.Context, queryVector []float32, limit int, docIDs map[string]struct{}) ([]domain.ScoredCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || len(queryVector) == 0 {
		return nil, nil
	}
	queryNorm := vectorNorm(queryVector)
	if queryNorm == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		e     *entry
		score float64
	}
	ranked := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		if len(e.vector) != len(queryVector) || e.norm == 0 {
			continue
		}
		ranked = append(ranked, scored{e: e, score: cosine(queryVector, queryNorm, e)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].e.order < ranked[j].e.order
	})

	pool := limit
	if docIDs != nil {
		pool = limit * scopedOverFetch
	}
	if len(ranked) > pool {
		ranked = ranked[:pool]
	}

	out := make([]domain.ScoredCandidate, 0, limit)
	for _, s := range ranked {
		if docIDs != nil {
			if _, ok := docIDs[s.e.chunk.DocID]; !ok {
				continue
			}
		}
		out = append(out, domain.ScoredCandidate{
			Chunk:       s.e.chunk,
			Source:      domain.SourceVector,
			VectorScore: s.score,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (idx *Index) DeleteDocument(ctx context.Context, docID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := 0
	for chunkID, e := range idx.entries {
		if e.chunk.DocID != docID {
			continue
		}
		delete(idx.entries, chunkID)
		removed++
	}
	return removed, nil
}

func cosine(query []float32, queryNorm float64, e *entry) float64 {
	dot := 0.0
	for i, v := range query {
		dot += float64(v) * float64(e.vector[i])
	}
	score := dot / (queryNorm * e.norm)
	// Negative similarity carries no retrieval signal for fusion.
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func vectorNorm(vec []float32) float64 {
	sum := 0.0
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
