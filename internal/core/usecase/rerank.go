package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
	"github.com/jungujeong/GovRAG-sub000/internal/core/ports"
)

// RerankConfig controls the optional cross-encoder blending stage.
type RerankConfig struct {
	// Weight of the cross-encoder score in the final ordering; the fused
	// score keeps the remainder.
	Weight float64
}

func DefaultRerankConfig() RerankConfig {
	return RerankConfig{Weight: 0.5}
}

// rerankCandidates rescales and reorders candidates through the external
// cross-encoder. On any failure, or with no reranker configured, it
// degrades to a pass-through truncation in the existing order; the
// pipeline never depends on reranking succeeding. The returned bool
// reports whether reranking was applied.
func rerankCandidates(
	ctx context.Context,
	reranker ports.Reranker,
	query string,
	candidates []domain.ScoredCandidate,
	topk int,
	cfg RerankConfig,
) ([]domain.ScoredCandidate, bool) {
	if topk <= 0 || topk > len(candidates) {
		topk = len(candidates)
	}
	if reranker == nil || len(candidates) == 0 {
		return trimCandidates(candidates, topk), false
	}

	passages := make([]string, len(candidates))
	for i, cand := range candidates {
		passages[i] = cand.Chunk.Text
	}

	scores, err := reranker.Score(ctx, query, passages)
	if err != nil || len(scores) != len(candidates) {
		if err != nil {
			slog.Warn("reranker_degraded", "error", err)
		}
		return trimCandidates(candidates, topk), false
	}

	out := make([]domain.ScoredCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		score := scores[i]
		out[i].RerankScore = &score
	}

	weight := cfg.Weight
	if weight < 0 || weight > 1 {
		weight = DefaultRerankConfig().Weight
	}
	sort.SliceStable(out, func(i, j int) bool {
		return blendRerank(out[i], weight) > blendRerank(out[j], weight)
	})
	return trimCandidates(out, topk), true
}

func blendRerank(c domain.ScoredCandidate, weight float64) float64 {
	if c.RerankScore == nil {
		return c.FusedScore
	}
	return c.FusedScore*(1-weight) + *c.RerankScore*weight
}
