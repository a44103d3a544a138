package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
	"github.com/jungujeong/GovRAG-sub000/internal/core/ports"
)

type lexicalIndexFake struct {
	chunks []domain.EvidenceChunk
	err    error
}

func (f *lexicalIndexFake) Search(_ context.Context, query string, limit int, docIDs map[string]struct{}) ([]domain.ScoredCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	tokens := splitScriptTokens(query)
	var out []domain.ScoredCandidate
	for _, chunk := range f.chunks {
		if docIDs != nil {
			if _, ok := docIDs[chunk.DocID]; !ok {
				continue
			}
		}
		hits := 0
		for _, tok := range tokens {
			if strings.Contains(chunk.Text, tok) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, domain.ScoredCandidate{
			Chunk:        chunk,
			Source:       domain.SourceLexical,
			LexicalScore: float64(hits),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LexicalScore > out[j].LexicalScore })
	return trimCandidates(out, limit), nil
}

func (f *lexicalIndexFake) Ingest(context.Context, []domain.EvidenceChunk) error { return nil }

func (f *lexicalIndexFake) DeleteDocument(context.Context, string) (int, error) { return 0, nil }

type vectorIndexFake struct {
	results []domain.ScoredCandidate
	err     error
}

func (f *vectorIndexFake) Search(_ context.Context, _ []float32, limit int, docIDs map[string]struct{}) ([]domain.ScoredCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ScoredCandidate
	for _, cand := range f.results {
		if docIDs != nil {
			if _, ok := docIDs[cand.Chunk.DocID]; !ok {
				continue
			}
		}
		out = append(out, cand)
	}
	return trimCandidates(out, limit), nil
}

func (f *vectorIndexFake) Ingest(context.Context, []domain.EvidenceChunk, [][]float32) error {
	return nil
}

func (f *vectorIndexFake) DeleteDocument(context.Context, string) (int, error) { return 0, nil }

type embedderFake struct {
	err error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1}, nil
}

func chunkOf(chunkID, docID, text string) domain.EvidenceChunk {
	return domain.EvidenceChunk{ChunkID: chunkID, DocID: docID, Text: text, Type: domain.ChunkContent}
}

func vecHit(chunk domain.EvidenceChunk, score float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{Chunk: chunk, Source: domain.SourceVector, VectorScore: score}
}

func evidenceDocs(evidence []domain.ScoredCandidate) map[string]bool {
	docs := map[string]bool{}
	for _, cand := range evidence {
		docs[cand.Chunk.DocID] = true
	}
	return docs
}

func TestResolveTurnRejectsEmptyQuery(t *testing.T) {
	uc := NewResolveTurnUseCase(&lexicalIndexFake{}, &vectorIndexFake{}, &embedderFake{}, nil, DefaultRetrievalConfig())
	_, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}

func TestResolveTurnRequestedScopeRestrictsEvidence(t *testing.T) {
	planA := chunkOf("a1", "PlanA", "홍티예술촌 운영 계획 본문")
	planB := chunkOf("b1", "PlanB", "홍티예술촌 관련 다른 보고")
	lexical := &lexicalIndexFake{chunks: []domain.EvidenceChunk{planA, planB}}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(planA, 0.9), vecHit(planB, 0.8)}}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{}, nil, DefaultRetrievalConfig())

	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{
		Query:           "홍티예술촌 운영 계획 알려줘",
		RequestedDocIDs: []string{"PlanA.pdf"},
	})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	if result.Mode != domain.ScopeRequested {
		t.Fatalf("mode = %s, want requested", result.Mode)
	}
	if len(result.AllowedDocIDs) != 1 || result.AllowedDocIDs[0] != "PlanA" {
		t.Fatalf("allowed docs = %v, want [PlanA]", result.AllowedDocIDs)
	}
	if len(result.Evidence) == 0 {
		t.Fatalf("expected evidence from the requested document")
	}
	for _, cand := range result.Evidence {
		if cand.Chunk.DocID != "PlanA" {
			t.Fatalf("evidence leaked outside requested scope: %+v", cand.Chunk)
		}
	}
}

func TestResolveTurnRequestedScopeEmptyIsTerminal(t *testing.T) {
	planB := chunkOf("b1", "PlanB", "홍티예술촌 관련 다른 보고")
	lexical := &lexicalIndexFake{chunks: []domain.EvidenceChunk{planB}}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(planB, 0.9)}}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{}, nil, DefaultRetrievalConfig())

	// PlanB would match, but the user pinned a document with no evidence.
	// Requested scope is final: no fallback to other documents.
	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{
		Query:           "홍티예술촌 관련 보고",
		RequestedDocIDs: []string{"Empty.pdf"},
	})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	if result.Status != domain.StatusNoEvidence {
		t.Fatalf("status = %s, want no_evidence", result.Status)
	}
	if result.Diagnostics.NoEvidenceReason != reasonRequestedScopeEmpty {
		t.Fatalf("unexpected reason %q", result.Diagnostics.NoEvidenceReason)
	}
	if len(result.Evidence) != 0 {
		t.Fatalf("terminal no-evidence turn must carry no evidence, got %d", len(result.Evidence))
	}
}

func TestResolveTurnSessionScopeCoversMultipleDocuments(t *testing.T) {
	a1 := chunkOf("a1", "BudgetA", "예산 편성 지침 본문")
	a2 := chunkOf("a2", "BudgetA", "예산 편성 세부 항목")
	b1 := chunkOf("b1", "BudgetB", "예산 집행 실적 보고")
	lexical := &lexicalIndexFake{chunks: []domain.EvidenceChunk{a1, a2, b1}}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(a1, 0.9), vecHit(b1, 0.85), vecHit(a2, 0.8)}}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{}, nil, DefaultRetrievalConfig())

	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{
		Query:         "예산 편성 내역",
		SessionDocIDs: []string{"BudgetA", "BudgetB"},
		TopK:          3,
	})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	if result.Mode != domain.ScopeSession {
		t.Fatalf("mode = %s, want session", result.Mode)
	}
	docs := evidenceDocs(result.Evidence)
	if !docs["BudgetA"] || !docs["BudgetB"] {
		t.Fatalf("expected evidence from both session documents, got %v", docs)
	}
}

func TestResolveTurnUnboundedMode(t *testing.T) {
	a1 := chunkOf("a1", "BudgetA", "예산 편성 지침 본문")
	lexical := &lexicalIndexFake{chunks: []domain.EvidenceChunk{a1}}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(a1, 0.9)}}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{}, nil, DefaultRetrievalConfig())

	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{Query: "예산 편성 지침"})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	if result.Mode != domain.ScopeUnbounded {
		t.Fatalf("mode = %s, want unbounded", result.Mode)
	}
	if result.AllowedDocIDs != nil {
		t.Fatalf("unbounded mode must not pin documents, got %v", result.AllowedDocIDs)
	}
	if len(result.Evidence) == 0 {
		t.Fatalf("expected evidence")
	}
}

func TestResolveTurnFollowupStaysOnPreviousDocuments(t *testing.T) {
	art := chunkOf("art1", "ArtVillage", "홍티예술촌 운영 현황과 입주 작가 안내")
	lexical := &lexicalIndexFake{chunks: []domain.EvidenceChunk{art}}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(art, 0.8)}}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{}, nil, DefaultRetrievalConfig())

	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{
		Query:             "그 문서 내용이 뭐야",
		PreviousDocIDs:    []string{"ArtVillage"},
		ShouldUsePrevious: true,
		RecentMessages:    assistantSaid("홍티예술촌은 사하구에 위치한 예술 공간입니다."),
	})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	if result.Mode != domain.ScopeFollowup {
		t.Fatalf("mode = %s, want followup", result.Mode)
	}
	if result.Diagnostics.TopicChange != topicReasonNoCandidates {
		t.Fatalf("topic change reason = %q", result.Diagnostics.TopicChange)
	}
	if len(result.Evidence) == 0 || result.Evidence[0].Chunk.DocID != "ArtVillage" {
		t.Fatalf("expected evidence from previous documents, got %+v", result.Evidence)
	}
	if !strings.HasPrefix(result.Query.RewriteReason, domain.RewriteContextEnrichedTag) {
		t.Fatalf("expected enriched follow-up query, got %q", result.Query.RewriteReason)
	}
}

func TestResolveTurnFollowupTopicChangeExpandsScope(t *testing.T) {
	art := chunkOf("art1", "ArtVillage", "홍티예술촌 운영 현황과 입주 작가 안내")
	bridge := chunkOf("bridge1", "Bridge", "광안대교 통행량 통계 자료")
	lexical := &lexicalIndexFake{chunks: []domain.EvidenceChunk{art, bridge}}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(bridge, 0.9), vecHit(art, 0.2)}}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{}, nil, DefaultRetrievalConfig())

	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{
		Query:             "광안대교 통행량 알려줘",
		PreviousDocIDs:    []string{"ArtVillage"},
		ShouldUsePrevious: true,
		RecentMessages:    assistantSaid("홍티예술촌은 사하구에 위치한 예술 공간입니다."),
	})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	if result.Mode != domain.ScopeExpanded {
		t.Fatalf("mode = %s, want expanded", result.Mode)
	}
	if len(result.AllowedDocIDs) != 1 || result.AllowedDocIDs[0] != "Bridge" {
		t.Fatalf("expected scope replaced by Bridge, got %v", result.AllowedDocIDs)
	}
	if !strings.HasPrefix(result.Diagnostics.TopicChange, topicReasonChanged) {
		t.Fatalf("topic change reason = %q", result.Diagnostics.TopicChange)
	}
	for _, cand := range result.Evidence {
		if cand.Chunk.DocID != "Bridge" {
			t.Fatalf("evidence outside the expanded scope: %+v", cand.Chunk)
		}
	}
	if len(result.Evidence) == 0 {
		t.Fatalf("expected evidence from the new document")
	}
}

func TestResolveTurnLexicalFailureDegradesNotFails(t *testing.T) {
	a1 := chunkOf("a1", "BudgetA", "예산 편성 지침 본문")
	lexical := &lexicalIndexFake{err: errors.New("index down")}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(a1, 0.9)}}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{}, nil, DefaultRetrievalConfig())

	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{Query: "예산 편성 지침"})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	if result.Status != domain.StatusOK {
		t.Fatalf("status = %s, want ok with degradation", result.Status)
	}
	found := false
	for _, tag := range result.Diagnostics.Degradations {
		if tag == "lexical_unavailable" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected lexical degradation tag, got %v", result.Diagnostics.Degradations)
	}
	if len(result.Evidence) == 0 {
		t.Fatalf("expected vector-only evidence")
	}
}

func TestResolveTurnEmbeddingFailureDegradesToLexical(t *testing.T) {
	a1 := chunkOf("a1", "BudgetA", "예산 편성 지침 본문")
	lexical := &lexicalIndexFake{chunks: []domain.EvidenceChunk{a1}}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(a1, 0.9)}}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{err: errors.New("model offline")}, nil, DefaultRetrievalConfig())

	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{Query: "예산 편성 지침"})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	found := false
	for _, tag := range result.Diagnostics.Degradations {
		if tag == "embedding_failure" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected embedding degradation tag, got %v", result.Diagnostics.Degradations)
	}
	if len(result.Evidence) == 0 {
		t.Fatalf("expected lexical-only evidence")
	}
}

func TestResolveTurnRerankerFailureRecordsDegradation(t *testing.T) {
	a1 := chunkOf("a1", "BudgetA", "예산 편성 지침 본문")
	lexical := &lexicalIndexFake{chunks: []domain.EvidenceChunk{a1}}
	vector := &vectorIndexFake{results: []domain.ScoredCandidate{vecHit(a1, 0.9)}}
	reranker := &rerankerFake{err: errors.New("cross-encoder down")}
	uc := NewResolveTurnUseCase(lexical, vector, &embedderFake{}, reranker, DefaultRetrievalConfig())

	result, err := uc.ResolveTurn(context.Background(), ports.TurnRequest{Query: "예산 편성 지침"})
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	found := false
	for _, tag := range result.Diagnostics.Degradations {
		if tag == "reranker_unavailable" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected reranker degradation tag, got %v", result.Diagnostics.Degradations)
	}
	if len(result.Evidence) == 0 {
		t.Fatalf("degraded rerank must keep pre-rerank ordering, not drop evidence")
	}
}
