package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
	"github.com/jungujeong/GovRAG-sub000/internal/core/ports"
)

// IngestChunksUseCase writes pre-extracted evidence chunks into both
// indexes and keeps the document registry in step. Batches arrive from the
// external extraction pipeline; embeddings are computed here only when the
// batch does not carry them.
type IngestChunksUseCase struct {
	lexical  ports.LexicalIndex
	vector   ports.VectorIndex
	embedder ports.Embedder
	registry ports.DocumentRegistry
}

func NewIngestChunksUseCase(
	lexical ports.LexicalIndex,
	vector ports.VectorIndex,
	embedder ports.Embedder,
	registry ports.DocumentRegistry,
) *IngestChunksUseCase {
	return &IngestChunksUseCase{
		lexical:  lexical,
		vector:   vector,
		embedder: embedder,
		registry: registry,
	}
}

func (uc *IngestChunksUseCase) IngestBatch(ctx context.Context, batch domain.ChunkBatch) error {
	docID := domain.NormalizeDocID(batch.DocID)
	if docID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "ingest batch", errors.New("doc_id is required"))
	}
	if batch.Delete {
		// Deletion batches fan out to every index replica; the registry
		// row is already gone, removed synchronously by the publisher.
		_, err := uc.DeleteDocument(ctx, docID)
		return err
	}
	if len(batch.Chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "ingest batch", errors.New("batch has no chunks"))
	}
	if len(batch.Embeddings) > 0 && len(batch.Embeddings) != len(batch.Chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"ingest batch",
			fmt.Errorf("embeddings/chunks mismatch: %d/%d", len(batch.Embeddings), len(batch.Chunks)),
		)
	}

	chunks := make([]domain.EvidenceChunk, len(batch.Chunks))
	copy(chunks, batch.Chunks)
	for i := range chunks {
		chunks[i].DocID = docID
		if chunks[i].ChunkID == "" {
			chunks[i].ChunkID = uuid.NewString()
		}
		if chunks[i].Type == "" {
			chunks[i].Type = domain.ChunkContent
		}
	}

	if uc.registry != nil {
		if err := uc.registry.UpdateStatus(ctx, docID, domain.StatusIndexing, 0, ""); err != nil {
			return fmt.Errorf("mark indexing: %w", err)
		}
	}

	if err := uc.indexChunks(ctx, docID, chunks, batch.Embeddings); err != nil {
		if uc.registry != nil {
			if failErr := uc.registry.UpdateStatus(ctx, docID, domain.StatusFailed, 0, err.Error()); failErr != nil {
				return fmt.Errorf("%w; mark failed status: %v", err, failErr)
			}
		}
		return err
	}

	if uc.registry != nil {
		if err := uc.registry.UpdateStatus(ctx, docID, domain.StatusIndexed, len(chunks), ""); err != nil {
			return fmt.Errorf("mark indexed: %w", err)
		}
	}
	return nil
}

func (uc *IngestChunksUseCase) indexChunks(ctx context.Context, docID string, chunks []domain.EvidenceChunk, vectors [][]float32) error {
	if len(vectors) == 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		embedded, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return domain.WrapError(domain.ErrEmbeddingFailure, "embed chunks", err)
		}
		if len(embedded) != len(chunks) {
			return domain.WrapError(
				domain.ErrEmbeddingFailure,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(embedded), len(chunks)),
			)
		}
		vectors = embedded
	}

	if err := uc.lexical.Ingest(ctx, chunks); err != nil {
		return fmt.Errorf("index chunks lexically: %w", err)
	}
	if err := uc.vector.Ingest(ctx, chunks, vectors); err != nil {
		// Keep the two indexes consistent: a chunk visible to only one
		// side would skew fusion ranks.
		if _, rollbackErr := uc.lexical.DeleteDocument(ctx, docID); rollbackErr != nil {
			return fmt.Errorf("index chunks in vector index: %w; lexical rollback: %v", err, rollbackErr)
		}
		return fmt.Errorf("index chunks in vector index: %w", err)
	}
	return nil
}

// DeleteDocument removes a document's chunks from both indexes and
// reports how many chunks were dropped.
func (uc *IngestChunksUseCase) DeleteDocument(ctx context.Context, docID string) (int, error) {
	docID = domain.NormalizeDocID(docID)
	if docID == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "delete document", errors.New("doc_id is required"))
	}
	lexCount, err := uc.lexical.DeleteDocument(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("delete from lexical index: %w", err)
	}
	vecCount, err := uc.vector.DeleteDocument(ctx, docID)
	if err != nil {
		return lexCount, fmt.Errorf("delete from vector index: %w", err)
	}
	if vecCount > lexCount {
		return vecCount, nil
	}
	return lexCount, nil
}
