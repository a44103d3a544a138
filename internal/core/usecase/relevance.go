package usecase

import (
	"sort"
	"strings"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

// RelevanceConfig exposes every tuned constant of the relevance filter.
// The defaults are deployment-tuned, not semantically load-bearing; the
// shape of the rule is what matters: both signals normally required, one
// very strong keyword signal suffices alone.
type RelevanceConfig struct {
	// HybridFloor: minimum fused score on the AND branch.
	HybridFloor float64
	// KeywordFloor: minimum keyword relevance on the AND branch.
	KeywordFloor float64
	// KeywordStrong: keyword relevance admitting a candidate alone.
	KeywordStrong float64

	// Per-signal weights inside keywordRelevance.
	ExactWeight   float64
	PartialWeight float64
	BigramWeight  float64

	// FallbackSize: candidates admitted by the emergency fallback.
	FallbackSize int
}

func DefaultRelevanceConfig() RelevanceConfig {
	return RelevanceConfig{
		HybridFloor:   0.016,
		KeywordFloor:  0.15,
		KeywordStrong: 0.65,
		ExactWeight:   0.6,
		PartialWeight: 0.25,
		BigramWeight:  0.15,
		FallbackSize:  2,
	}
}

const fallbackReasonNoAcceptance = "emergency_fallback_no_candidate_accepted"

// keywordRelevance scores how well candidate text covers the query
// keywords: exact substring hits, fuzzy partial hits (token containment in
// either direction), and character-bigram Jaccard overlap. Purely
// statistical; no term lists.
func keywordRelevance(text string, keywords []string, cfg RelevanceConfig) float64 {
	if len(keywords) == 0 || text == "" {
		return 0
	}
	total := 0.0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, kw) {
			total += cfg.ExactWeight + cfg.PartialWeight + cfg.BigramWeight
			continue
		}
		best := 0.0
		for _, token := range splitScriptTokens(text) {
			if strings.Contains(token, kw) || strings.Contains(kw, token) {
				if cfg.PartialWeight > best {
					best = cfg.PartialWeight
				}
				continue
			}
			if j := bigramJaccard(kw, token); j > 0 {
				if score := cfg.BigramWeight * j; score > best {
					best = score
				}
			}
		}
		total += best
	}
	return total / float64(len(keywords))
}

// filterByRelevance applies the dual-threshold acceptance rule, the
// emergency fallback and the per-document diversity pass, returning at
// most topk candidates sorted by blended score. Guaranteed non-empty for
// non-empty input.
func filterByRelevance(candidates []domain.ScoredCandidate, queryKeywords []string, topk int, cfg RelevanceConfig) []domain.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if topk <= 0 {
		topk = len(candidates)
	}

	scored := make([]domain.ScoredCandidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].KeywordRelevance = keywordRelevance(scored[i].Chunk.Text, queryKeywords, cfg)
	}

	admitted := make([]domain.ScoredCandidate, 0, len(scored))
	for _, cand := range scored {
		strongKeyword := cand.KeywordRelevance >= cfg.KeywordStrong
		bothSignals := cand.FusedScore >= cfg.HybridFloor && cand.KeywordRelevance >= cfg.KeywordFloor
		if bothSignals || strongKeyword {
			admitted = append(admitted, cand)
		}
	}

	if len(admitted) == 0 {
		// Never return hard-empty when anything was retrieved: surface the
		// top fused candidates tagged as fallback evidence instead.
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].FusedScore > scored[j].FusedScore
		})
		size := cfg.FallbackSize
		if size <= 0 {
			size = 2
		}
		if size > len(scored) {
			size = len(scored)
		}
		admitted = make([]domain.ScoredCandidate, size)
		copy(admitted, scored[:size])
		for i := range admitted {
			admitted[i].Source = domain.SourceFallback
			admitted[i].FallbackReason = fallbackReasonNoAcceptance
		}
	}

	return diversify(admitted, topk)
}

// diversify guarantees breadth across documents: the best candidate of
// each distinct document fills the first slots, remaining slots go to the
// next-best candidates overall. Output sorted by blended score.
func diversify(admitted []domain.ScoredCandidate, topk int) []domain.ScoredCandidate {
	byBlend := make([]domain.ScoredCandidate, len(admitted))
	copy(byBlend, admitted)
	sort.SliceStable(byBlend, func(i, j int) bool {
		return byBlend[i].BlendedScore() > byBlend[j].BlendedScore()
	})

	picked := make([]domain.ScoredCandidate, 0, topk)
	usedChunks := make(map[string]struct{}, topk)
	seenDocs := make(map[string]struct{})

	for _, cand := range byBlend {
		if len(picked) >= topk {
			break
		}
		if _, dup := seenDocs[cand.Chunk.DocID]; dup {
			continue
		}
		seenDocs[cand.Chunk.DocID] = struct{}{}
		usedChunks[cand.Chunk.ChunkID] = struct{}{}
		picked = append(picked, cand)
	}
	for _, cand := range byBlend {
		if len(picked) >= topk {
			break
		}
		if _, dup := usedChunks[cand.Chunk.ChunkID]; dup {
			continue
		}
		usedChunks[cand.Chunk.ChunkID] = struct{}{}
		picked = append(picked, cand)
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].BlendedScore() > picked[j].BlendedScore()
	})
	return picked
}
