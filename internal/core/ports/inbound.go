package ports

import (
	"context"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

// TurnRequest is the single entry-point input used by the conversation
// layer. Doc-id fields may arrive un-normalized; the resolver canonicalizes
// them at the boundary.
type TurnRequest struct {
	Query             string
	RequestedDocIDs   []string
	SessionDocIDs     []string
	PreviousDocIDs    []string
	ShouldUsePrevious bool
	TopK              int

	RecentMessages  []domain.ConversationMessage
	Summary         string
	CarriedEntities []string
}

// TurnResolver resolves one conversational turn into grounded evidence.
type TurnResolver interface {
	ResolveTurn(ctx context.Context, req TurnRequest) (*domain.ResolutionResult, error)
}

// ChunkIngestor is the inbound contract for asynchronous chunk indexing.
type ChunkIngestor interface {
	IngestBatch(ctx context.Context, batch domain.ChunkBatch) error
	DeleteDocument(ctx context.Context, docID string) (int, error)
}
