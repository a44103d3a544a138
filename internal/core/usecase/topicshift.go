package usecase

import (
	"fmt"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

// TopicShiftConfig parameterizes the two-stage drift comparison.
type TopicShiftConfig struct {
	// ContextBonus is added to biased-pass scores of candidates inside the
	// context document set.
	ContextBonus float64
	// MarginThreshold: minimum lead of the best out-of-context candidate
	// over the best in-context candidate to call a topic change. Margins
	// are robust where absolute scores drift across queries.
	MarginThreshold float64
	// MaxSuggestedDocs bounds the replacement scope on a detected change.
	MaxSuggestedDocs int
}

func DefaultTopicShiftConfig() TopicShiftConfig {
	return TopicShiftConfig{
		ContextBonus:     0.1,
		MarginThreshold:  0.3,
		MaxSuggestedDocs: 2,
	}
}

const (
	topicReasonNoContext    = "no_context_documents"
	topicReasonNoCandidates = "no_out_of_context_candidates"
	topicReasonStayed       = "margin_below_threshold"
	topicReasonChanged      = "margin_exceeded"
)

// maxFused returns the largest fused score across the given lists. Raw
// RRF sums drift with list depth and weights, so the two passes are put on
// a shared [0,1] scale before margins are compared.
func maxFused(lists ...[]domain.ScoredCandidate) float64 {
	max := 0.0
	for _, list := range lists {
		for _, cand := range list {
			if cand.FusedScore > max {
				max = cand.FusedScore
			}
		}
	}
	return max
}

// scaleFused divides every fused score by max, on a copy.
func scaleFused(candidates []domain.ScoredCandidate, max float64) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, len(candidates))
	copy(out, candidates)
	if max <= 0 {
		return out
	}
	for i := range out {
		out[i].FusedScore /= max
	}
	return out
}

// applyContextBias returns a copy of the candidates with the context bonus
// added to the blended ordering score of in-context documents. Input
// per-stage scores are never overwritten; the bias lives in FusedScore of
// the copy only.
func applyContextBias(candidates []domain.ScoredCandidate, contextDocs map[string]struct{}, bonus float64) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, len(candidates))
	copy(out, candidates)
	if bonus == 0 || len(contextDocs) == 0 {
		return out
	}
	for i := range out {
		if _, ok := contextDocs[out[i].Chunk.DocID]; ok {
			out[i].FusedScore += bonus
		}
	}
	return out
}

// analyzeTopicShift compares the context-biased pass against the unbounded
// pass. bestContext is the best biased score among context documents;
// bestNew the best unbiased score among non-context documents. A change is
// flagged when bestNew leads by at least the margin threshold, and the
// documents of the leading out-of-context candidates become the suggested
// replacement scope.
func analyzeTopicShift(
	biased, unbounded []domain.ScoredCandidate,
	contextDocs map[string]struct{},
	cfg TopicShiftConfig,
) domain.TopicChangeAnalysis {
	if len(contextDocs) == 0 {
		return domain.TopicChangeAnalysis{Reason: topicReasonNoContext}
	}

	bestContext := 0.0
	haveContext := false
	for _, cand := range biased {
		if _, ok := contextDocs[cand.Chunk.DocID]; !ok {
			continue
		}
		if !haveContext || cand.FusedScore > bestContext {
			bestContext = cand.FusedScore
			haveContext = true
		}
	}

	bestNew := 0.0
	haveNew := false
	suggested := make([]string, 0, cfg.MaxSuggestedDocs)
	suggestedSet := make(map[string]struct{}, cfg.MaxSuggestedDocs)
	for _, cand := range unbounded {
		if _, ok := contextDocs[cand.Chunk.DocID]; ok {
			continue
		}
		if !haveNew || cand.FusedScore > bestNew {
			bestNew = cand.FusedScore
			haveNew = true
		}
		if len(suggested) < cfg.MaxSuggestedDocs {
			if _, dup := suggestedSet[cand.Chunk.DocID]; !dup {
				suggestedSet[cand.Chunk.DocID] = struct{}{}
				suggested = append(suggested, cand.Chunk.DocID)
			}
		}
	}

	if !haveNew {
		return domain.TopicChangeAnalysis{Reason: topicReasonNoCandidates}
	}

	margin := bestNew - bestContext
	if margin < cfg.MarginThreshold {
		return domain.TopicChangeAnalysis{
			Reason:      topicReasonStayed,
			ScoreMargin: margin,
		}
	}
	return domain.TopicChangeAnalysis{
		Changed:         true,
		Reason:          fmt.Sprintf("%s:%.3f", topicReasonChanged, margin),
		ScoreMargin:     margin,
		SuggestedDocIDs: suggested,
	}
}
