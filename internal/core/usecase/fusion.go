package usecase

import (
	"sort"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

// FusionConfig parameterizes weighted Reciprocal Rank Fusion.
type FusionConfig struct {
	LexicalWeight float64
	VectorWeight  float64
	// K flattens the rank curve: candidate at 1-based rank r contributes
	// weight/(K+r).
	K int
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{LexicalWeight: 1.0, VectorWeight: 1.0, K: 60}
}

type fusedCandidate struct {
	candidate domain.ScoredCandidate
	score     float64
	order     int
}

// fuseRRF merges the two ranked lists with weighted Reciprocal Rank
// Fusion. A candidate present in only one list keeps that list's partial
// contribution; no candidate is ever dropped here. The chunk payload comes
// from whichever list returned it first; per-stage scores from both lists
// are preserved on the merged candidate. Pure and deterministic for fixed
// inputs.
func fuseRRF(lexical, vector []domain.ScoredCandidate, cfg FusionConfig) []domain.ScoredCandidate {
	if cfg.K <= 0 {
		cfg.K = 60
	}

	acc := make(map[string]fusedCandidate, len(lexical)+len(vector))
	order := 0
	addList := func(list []domain.ScoredCandidate, weight float64) {
		for rank, cand := range list {
			key := cand.Chunk.ChunkID
			entry, seen := acc[key]
			if !seen {
				entry.candidate = cand
				entry.order = order
				order++
			} else {
				entry.candidate = mergeScores(entry.candidate, cand)
			}
			entry.score += weight / float64(cfg.K+rank+1)
			acc[key] = entry
		}
	}

	addList(lexical, cfg.LexicalWeight)
	addList(vector, cfg.VectorWeight)

	entries := make([]fusedCandidate, 0, len(acc))
	for _, entry := range acc {
		entry.candidate.FusedScore = entry.score
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	out := make([]domain.ScoredCandidate, len(entries))
	for i, entry := range entries {
		out[i] = entry.candidate
	}
	return out
}

// mergeScores keeps the first-seen chunk payload and folds in the other
// list's per-stage score.
func mergeScores(current, other domain.ScoredCandidate) domain.ScoredCandidate {
	if other.LexicalScore > current.LexicalScore {
		current.LexicalScore = other.LexicalScore
	}
	if other.VectorScore > current.VectorScore {
		current.VectorScore = other.VectorScore
	}
	return current
}

func trimCandidates(candidates []domain.ScoredCandidate, limit int) []domain.ScoredCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
