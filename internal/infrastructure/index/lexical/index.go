package lexical

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
	// scopedOverFetch widens the candidate pool before document filtering
	// so a scoped search does not starve on a popular term.
	scopedOverFetch = 3
)

type entry struct {
	chunk  domain.EvidenceChunk
	terms  map[string]int
	length int
	order  int
}

// Index is an in-memory BM25 inverted index over evidence chunks. All
// methods are safe for concurrent use; searches take a read lock and never
// block each other.
type Index struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	postings map[string]map[string]struct{}
	totalLen int
	seq      int
}

func NewIndex() *Index {
	return &Index{
		entries:  make(map[string]*entry),
		postings: make(map[string]map[string]struct{}),
	}
}

func (idx *Index) Ingest(ctx context.Context, chunks []domain.EvidenceChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, chunk := range chunks {
		if chunk.ChunkID == "" || chunk.Text == "" {
			continue
		}
		idx.removeLocked(chunk.ChunkID)

		terms := make(map[string]int)
		length := 0
		for _, term := range analyze(chunk.Text) {
			terms[term]++
			length++
		}
		e := &entry{chunk: chunk, terms: terms, length: length, order: idx.seq}
		idx.seq++
		idx.entries[chunk.ChunkID] = e
		idx.totalLen += length
		for term := range terms {
			posting, ok := idx.postings[term]
			if !ok {
				posting = make(map[string]struct{})
				idx.postings[term] = posting
			}
			posting[chunk.ChunkID] = struct{}{}
		}
	}
	return nil
}

func (idx *Index) Search(ctx context.Context, query string, limit int, docIDs map[string]struct{}) ([]domain.ScoredCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	queryTerms := analyze(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	total := len(idx.entries)
	if total == 0 {
		return nil, nil
	}
	avgLen := float64(idx.totalLen) / float64(total)
	if avgLen <= 0 {
		avgLen = 1
	}

	seen := make(map[string]struct{}, len(queryTerms))
	scores := make(map[string]float64)
	for _, term := range queryTerms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		posting := idx.postings[term]
		if len(posting) == 0 {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (float64(total)-df+0.5)/(df+0.5))
		for chunkID := range posting {
			e := idx.entries[chunkID]
			tf := float64(e.terms[term])
			norm := tf + bm25K1*(1-bm25B+bm25B*float64(e.length)/avgLen)
			scores[chunkID] += idf * tf * (bm25K1 + 1) / norm
		}
	}
	if len(scores) == 0 {
		return nil, nil
	}

	pool := limit
	if docIDs != nil {
		pool = limit * scopedOverFetch
	}
	ranked := make([]*entry, 0, len(scores))
	for chunkID := range scores {
		ranked = append(ranked, idx.entries[chunkID])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].chunk.ChunkID], scores[ranked[j].chunk.ChunkID]
		if si != sj {
			return si > sj
		}
		return ranked[i].order < ranked[j].order
	})
	if len(ranked) > pool {
		ranked = ranked[:pool]
	}

	out := make([]domain.ScoredCandidate, 0, limit)
	for _, e := range ranked {
		if docIDs != nil {
			if _, ok := docIDs[e.chunk.DocID]; !ok {
				continue
			}
		}
		out = append(out, domain.ScoredCandidate{
			Chunk:        e.chunk,
			Source:       domain.SourceLexical,
			LexicalScore: scores[e.chunk.ChunkID],
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
		idx.removeLocked(chunkID)
		removed++
	}
	return removed, nil
}

func (idx *Index) removeLocked(chunkID string) {
	e, ok := idx.entries[chunkID]
	if !ok {
		return
	}
	for term := range e.terms {
		posting := idx.postings[term]
		delete(posting, chunkID)
		if len(posting) == 0 {
			delete(idx.postings, term)
		}
	}
	idx.totalLen -= e.length
	delete(idx.entries, chunkID)
}
