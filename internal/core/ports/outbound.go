package ports

import (
	"context"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

// LexicalIndex is the term-based (BM25) full-text index over chunk text.
// When docIDs is non-nil results are restricted to those documents; the
// implementation must over-fetch internally before filtering.
type LexicalIndex interface {
	Search(ctx context.Context, query string, limit int, docIDs map[string]struct{}) ([]domain.ScoredCandidate, error)
	Ingest(ctx context.Context, chunks []domain.EvidenceChunk) error
	DeleteDocument(ctx context.Context, docID string) (int, error)
}

// VectorIndex is the nearest-neighbour index over chunk embeddings.
// Scores are cosine similarities clamped into [0,1].
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, limit int, docIDs map[string]struct{}) ([]domain.ScoredCandidate, error)
	Ingest(ctx context.Context, chunks []domain.EvidenceChunk, vectors [][]float32) error
	DeleteDocument(ctx context.Context, docID string) (int, error)
}

// Embedder builds vectors for chunk text and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker is the optional cross-encoder scorer. Implementations return
// one score per passage, aligned by index.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// SessionStore persists per-session scope and carried conversational
// context. Concurrency discipline (single writer per session) is the
// caller's responsibility.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*domain.SessionState, error)
	Save(ctx context.Context, state *domain.SessionState) error
}

// DocumentRegistry persists document metadata rows.
type DocumentRegistry interface {
	Register(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMessage string) error
	Delete(ctx context.Context, id string) error
}

// MessageQueue publishes/consumes chunk-batch ingestion events.
// SubscribeChunkBatch shares one consumer group, so each batch reaches a
// single worker. SubscribeChunkBatchFanout delivers every batch to every
// subscriber; retrieval processes use it to keep their process-local index
// replicas in step with the stream.
type MessageQueue interface {
	PublishChunkBatch(ctx context.Context, batch domain.ChunkBatch) error
	SubscribeChunkBatch(ctx context.Context, handler func(context.Context, domain.ChunkBatch) error) error
	SubscribeChunkBatchFanout(ctx context.Context, handler func(context.Context, domain.ChunkBatch) error) error
}
