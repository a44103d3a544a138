package vector

import (
	"context"
	"testing"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex()
	chunks := []domain.EvidenceChunk{
		{ChunkID: "a1", DocID: "PlanA", Text: "홍티예술촌 운영 계획"},
		{ChunkID: "b1", DocID: "BudgetB", Text: "예산 편성 지침"},
		{ChunkID: "c1", DocID: "BridgeC", Text: "광안대교 통행량"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.7, 0.7, 0},
	}
	if err := idx.Ingest(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return idx
}

func TestSearchOrdersByCosine(t *testing.T) {
	idx := seedIndex(t)
	out, err := idx.Search(context.Background(), []float32{1, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].Chunk.ChunkID != "a1" || out[1].Chunk.ChunkID != "c1" {
		t.Fatalf("unexpected order: %s, %s", out[0].Chunk.ChunkID, out[1].Chunk.ChunkID)
	}
	for _, cand := range out {
		if cand.VectorScore < 0 || cand.VectorScore > 1 {
			t.Fatalf("score outside [0,1]: %f", cand.VectorScore)
		}
		if cand.Source != domain.SourceVector {
			t.Fatalf("source tag missing: %+v", cand)
		}
	}
}

func TestSearchNegativeSimilarityClampsToZero(t *testing.T) {
	idx := NewIndex()
	_ = idx.Ingest(context.Background(),
		[]domain.EvidenceChunk{{ChunkID: "a1", DocID: "A"}},
		[][]float32{{-1, 0}},
	)
	out, err := idx.Search(context.Background(), []float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out) != 1 || out[0].VectorScore != 0 {
		t.Fatalf("expected clamped zero score, got %+v", out)
	}
}

func TestSearchScopeFilter(t *testing.T) {
	idx := seedIndex(t)
	scope := map[string]struct{}{"BudgetB": {}}
	out, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2, scope)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out) != 1 || out[0].Chunk.DocID != "BudgetB" {
		t.Fatalf("scope filter failed: %+v", out)
	}
}

func TestSearchSkipsDimensionMismatch(t *testing.T) {
	idx := seedIndex(t)
	out, err := idx.Search(context.Background(), []float32{1, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("mismatched dimensions must not match, got %+v", out)
	}
}

func TestIngestMismatchRejected(t *testing.T) {
	idx := NewIndex()
	err := idx.Ingest(context.Background(),
		[]domain.EvidenceChunk{{ChunkID: "a1"}, {ChunkID: "a2"}},
		[][]float32{{1}},
	)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestDeleteDocument(t *testing.T) {
	idx := seedIndex(t)
	n, err := idx.DeleteDocument(context.Background(), "PlanA")
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	out, _ := idx.Search(context.Background(), []float32{1, 0, 0}, 3, nil)
	for _, cand := range out {
		if cand.Chunk.DocID == "PlanA" {
			t.Fatalf("deleted document still searchable")
		}
	}
}
