package domain

import "time"

type DocumentStatus string

const (
	StatusRegistered DocumentStatus = "registered"
	StatusIndexing   DocumentStatus = "indexing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

// Document is a registry row describing one ingested source document.
// The registry is metadata only; chunk text lives in the indexes.
type Document struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	SourceName string         `json:"source_name"`
	Pages      int            `json:"pages"`
	ChunkCount int            `json:"chunk_count"`
	Status     DocumentStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
