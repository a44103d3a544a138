package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
	"github.com/jungujeong/GovRAG-sub000/internal/core/ports"
)

// RetrievalConfig aggregates the tuning of every pipeline stage.
type RetrievalConfig struct {
	Fusion     FusionConfig
	Relevance  RelevanceConfig
	Rewrite    RewriteConfig
	TopicShift TopicShiftConfig
	Rerank     RerankConfig

	// HybridCandidates: raw candidates requested from each sub-index
	// before fusion.
	HybridCandidates int
	DefaultTopK      int
	// IndexTimeout bounds each sub-index call; a timeout degrades to an
	// empty list from that index, never a failed turn.
	IndexTimeout time.Duration
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Fusion:           DefaultFusionConfig(),
		Relevance:        DefaultRelevanceConfig(),
		Rewrite:          DefaultRewriteConfig(),
		TopicShift:       DefaultTopicShiftConfig(),
		Rerank:           DefaultRerankConfig(),
		HybridCandidates: 30,
		DefaultTopK:      5,
		IndexTimeout:     3 * time.Second,
	}
}

const (
	reasonRequestedScopeEmpty = "no evidence found inside the requested documents; pick different documents or widen the scope"
	reasonNothingRelevant     = "no relevant evidence found across the session documents; try rephrasing the question"
)

// ResolveTurnUseCase is the per-turn orchestrator: it decides which
// documents are in scope, drives the hybrid retrieval pipeline, and emits
// one ResolutionResult per turn. Indexes are read-only during a turn; the
// use case itself is stateless and safe for concurrent turns of different
// sessions.
type ResolveTurnUseCase struct {
	lexical  ports.LexicalIndex
	vector   ports.VectorIndex
	embedder ports.Embedder
	reranker ports.Reranker
	rewriter *Rewriter
	cfg      RetrievalConfig
}

func NewResolveTurnUseCase(
	lexical ports.LexicalIndex,
	vector ports.VectorIndex,
	embedder ports.Embedder,
	reranker ports.Reranker,
	cfg RetrievalConfig,
) *ResolveTurnUseCase {
	if cfg.HybridCandidates <= 0 {
		cfg.HybridCandidates = 30
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = 3 * time.Second
	}
	return &ResolveTurnUseCase{
		lexical:  lexical,
		vector:   vector,
		embedder: embedder,
		reranker: reranker,
		rewriter: NewRewriter(cfg.Rewrite),
		cfg:      cfg,
	}
}

// ResolveTurn is the single entry point used by the conversation layer.
// Every retrieval-side failure is recovered into the result's status and
// diagnostics; the returned error covers invalid input only.
func (uc *ResolveTurnUseCase) ResolveTurn(ctx context.Context, req ports.TurnRequest) (*domain.ResolutionResult, error) {
	if req.Query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve turn", errors.New("query is required"))
	}
	topk := req.TopK
	if topk <= 0 {
		topk = uc.cfg.DefaultTopK
	}

	scope := domain.ScopeContext{
		RequestedDocIDs: req.RequestedDocIDs,
		SessionDocIDs:   req.SessionDocIDs,
		PreviousDocIDs:  req.PreviousDocIDs,
	}.Normalize()

	rq := uc.rewriter.Rewrite(req.Query, req.RecentMessages, req.Summary, req.CarriedEntities)
	keywords := uc.queryKeywords(rq.RewrittenText)

	result := &domain.ResolutionResult{
		Query:  rq,
		Status: domain.StatusOK,
		Diagnostics: domain.Diagnostics{
			RewriteReason:   rq.RewriteReason,
			CarriedEntities: uc.rewriter.Entities(req.RecentMessages, req.Summary, req.CarriedEntities),
		},
	}

	switch {
	case len(scope.RequestedDocIDs) > 0:
		// The user pinned documents: final for the turn, no fallback
		// expansion to other documents under any circumstances.
		uc.resolveRequested(ctx, rq, keywords, scope, topk, result)
	case req.ShouldUsePrevious && len(scope.PreviousDocIDs) > 0:
		uc.resolveFollowup(ctx, rq, keywords, scope, topk, result)
	case len(scope.SessionDocIDs) > 0:
		uc.resolveScoped(ctx, rq, keywords, scope.SessionDocIDs, domain.ScopeSession, topk, result)
	default:
		uc.resolveScoped(ctx, rq, keywords, nil, domain.ScopeUnbounded, topk, result)
	}

	if result.Status == domain.StatusOK {
		evidence, applied := rerankCandidates(ctx, uc.reranker, rq.RewrittenText, result.Evidence, topk, uc.cfg.Rerank)
		if uc.reranker != nil && !applied {
			result.Diagnostics.Degradations = append(result.Diagnostics.Degradations, "reranker_unavailable")
		}
		result.Evidence = evidence
	}
	return result, nil
}

func (uc *ResolveTurnUseCase) resolveRequested(
	ctx context.Context,
	rq domain.RetrievalQuery,
	keywords []string,
	scope domain.ScopeContext,
	topk int,
	result *domain.ResolutionResult,
) {
	result.Mode = domain.ScopeRequested
	result.AllowedDocIDs = scope.RequestedDocIDs

	outcome := uc.retrieve(ctx, rq.SubQueries, domain.DocIDSet(scope.RequestedDocIDs))
	uc.recordOutcome(outcome, result)
	if len(outcome.fused) == 0 {
		result.Status = domain.StatusNoEvidence
		result.Diagnostics.NoEvidenceReason = reasonRequestedScopeEmpty
		return
	}
	result.Evidence = filterByRelevance(outcome.fused, keywords, topk, uc.cfg.Relevance)
	result.Diagnostics.FilteredCount = len(result.Evidence)
}

func (uc *ResolveTurnUseCase) resolveScoped(
	ctx context.Context,
	rq domain.RetrievalQuery,
	keywords []string,
	allowed []string,
	mode domain.ScopeMode,
	topk int,
	result *domain.ResolutionResult,
) {
	result.Mode = mode
	result.AllowedDocIDs = allowed

	outcome := uc.retrieve(ctx, rq.SubQueries, domain.DocIDSet(allowed))
	uc.recordOutcome(outcome, result)
	if len(outcome.fused) == 0 {
		result.Status = domain.StatusNoEvidence
		result.Diagnostics.NoEvidenceReason = reasonNothingRelevant
		return
	}
	result.Evidence = filterByRelevance(outcome.fused, keywords, topk, uc.cfg.Relevance)
	result.Diagnostics.FilteredCount = len(result.Evidence)
}

// resolveFollowup runs the two-stage retrieval: a context-biased pass with
// the enriched query and an unbounded pass with the user's raw words. The
// score margin between the best in-context and the best out-of-context
// candidate decides whether the conversation drifted to new documents.
func (uc *ResolveTurnUseCase) resolveFollowup(
	ctx context.Context,
	rq domain.RetrievalQuery,
	keywords []string,
	scope domain.ScopeContext,
	topk int,
	result *domain.ResolutionResult,
) {
	result.Mode = domain.ScopeFollowup
	contextDocs := domain.DocIDSet(scope.PreviousDocIDs)

	var biasedOutcome, openOutcome retrievalOutcome
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		biasedOutcome = uc.retrieve(groupCtx, rq.SubQueries, nil)
		return nil
	})
	group.Go(func() error {
		openOutcome = uc.retrieve(groupCtx, []string{rq.RawText}, nil)
		return nil
	})
	_ = group.Wait()

	// Both passes go on a shared [0,1] scale so the margin threshold and
	// the context bonus mean the same thing regardless of list depth.
	scale := maxFused(biasedOutcome.fused, openOutcome.fused)
	open := scaleFused(openOutcome.fused, scale)
	biased := applyContextBias(scaleFused(biasedOutcome.fused, scale), contextDocs, uc.cfg.TopicShift.ContextBonus)
	analysis := analyzeTopicShift(biased, open, contextDocs, uc.cfg.TopicShift)
	result.Diagnostics.TopicChange = analysis.Reason
	uc.recordOutcome(biasedOutcome, result)

	if analysis.Changed {
		// Scope is replaced by the newly discovered documents; frozen
		// citation maps from earlier turns must not be reused downstream.
		result.Mode = domain.ScopeExpanded
		result.AllowedDocIDs = domain.NormalizeDocIDs(analysis.SuggestedDocIDs)
		allowedSet := domain.DocIDSet(result.AllowedDocIDs)
		scoped := make([]domain.ScoredCandidate, 0, len(open))
		for _, cand := range open {
			if _, ok := allowedSet[cand.Chunk.DocID]; ok {
				scoped = append(scoped, cand)
			}
		}
		rawKeywords := uc.queryKeywords(rq.RawText)
		result.Evidence = filterByRelevance(scoped, rawKeywords, topk, uc.cfg.Relevance)
		result.Diagnostics.FilteredCount = len(result.Evidence)
		if len(result.Evidence) == 0 {
			result.Status = domain.StatusNoEvidence
			result.Diagnostics.NoEvidenceReason = reasonNothingRelevant
		}
		return
	}

	if len(biased) == 0 {
		result.Status = domain.StatusNoEvidence
		result.Diagnostics.NoEvidenceReason = reasonNothingRelevant
		return
	}
	result.Evidence = filterByRelevance(biased, keywords, topk, uc.cfg.Relevance)
	result.Diagnostics.FilteredCount = len(result.Evidence)
}

type retrievalOutcome struct {
	fused        []domain.ScoredCandidate
	lexicalCount int
	vectorCount  int
	degradations []string
}

// retrieve runs one hybrid pass: sub-queries in preference order, lexical
// and vector searches issued concurrently, results fused with weighted
// RRF. A sub-index error or timeout degrades to an empty list from that
// index; the turn proceeds with whatever responded.
func (uc *ResolveTurnUseCase) retrieve(ctx context.Context, subQueries []string, allowed map[string]struct{}) retrievalOutcome {
	outcome := retrievalOutcome{}
	for _, query := range subQueries {
		if query == "" {
			continue
		}
		attempt := uc.retrieveOnce(ctx, query, allowed)
		attempt.degradations = append(outcome.degradations, attempt.degradations...)
		if len(attempt.fused) > 0 {
			return attempt
		}
		outcome = attempt
	}
	return outcome
}

func (uc *ResolveTurnUseCase) retrieveOnce(ctx context.Context, query string, allowed map[string]struct{}) retrievalOutcome {
	outcome := retrievalOutcome{}

	var lexical, vector []domain.ScoredCandidate
	var lexicalErr, vectorErr error
	vectorStage := "vector"
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		callCtx, cancel := context.WithTimeout(groupCtx, uc.cfg.IndexTimeout)
		defer cancel()
		lexical, lexicalErr = uc.lexical.Search(callCtx, query, uc.cfg.HybridCandidates, allowed)
		return nil
	})

	group.Go(func() error {
		queryVector, err := uc.embedQuery(groupCtx, query)
		if err != nil {
			vectorStage, vectorErr = "embedding", err
			return nil
		}
		callCtx, cancel := context.WithTimeout(groupCtx, uc.cfg.IndexTimeout)
		defer cancel()
		vector, vectorErr = uc.vector.Search(callCtx, queryVector, uc.cfg.HybridCandidates, allowed)
		return nil
	})

	_ = group.Wait()

	if lexicalErr != nil {
		lexical = nil
		outcome.degradations = append(outcome.degradations, degradationTag("lexical", lexicalErr))
	}
	if vectorErr != nil {
		vector = nil
		outcome.degradations = append(outcome.degradations, degradationTag(vectorStage, vectorErr))
	}

	outcome.lexicalCount = len(lexical)
	outcome.vectorCount = len(vector)
	outcome.fused = fuseRRF(lexical, vector, uc.cfg.Fusion)
	return outcome
}

func (uc *ResolveTurnUseCase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if uc.embedder == nil {
		return nil, domain.WrapError(domain.ErrEmbeddingFailure, "embed query", errors.New("no embedder configured"))
	}
	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.IndexTimeout)
	defer cancel()
	vector, err := uc.embedder.EmbedQuery(callCtx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingFailure, "embed query", err)
	}
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingFailure, "embed query", errors.New("empty vector"))
	}
	return vector, nil
}

// queryKeywords extracts content words for keyword-relevance scoring,
// falling back to raw script tokens for queries with no content words.
func (uc *ResolveTurnUseCase) queryKeywords(query string) []string {
	words := extractContentWords(query, uc.cfg.Rewrite.ContentWords)
	if len(words) > 0 {
		return words
	}
	return splitScriptTokens(query)
}

func (uc *ResolveTurnUseCase) recordOutcome(outcome retrievalOutcome, result *domain.ResolutionResult) {
	result.Diagnostics.LexicalCount = outcome.lexicalCount
	result.Diagnostics.VectorCount = outcome.vectorCount
	result.Diagnostics.FusedCount = len(outcome.fused)
	result.Diagnostics.Degradations = append(result.Diagnostics.Degradations, outcome.degradations...)
}

func degradationTag(stage string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s_timeout", stage)
	case domain.IsKind(err, domain.ErrEmbeddingFailure):
		return "embedding_failure"
	default:
		return fmt.Sprintf("%s_unavailable", stage)
	}
}
