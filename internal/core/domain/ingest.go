package domain

// ChunkBatch is one ingestion unit published by the external extraction
// pipeline. Embeddings are optional; when absent the worker computes them
// through the Embedder port before indexing. A batch with Delete set
// carries no chunks and tells every index replica to drop the document.
type ChunkBatch struct {
	DocID      string          `json:"doc_id"`
	Title      string          `json:"title,omitempty"`
	Delete     bool            `json:"delete,omitempty"`
	Chunks     []EvidenceChunk `json:"chunks,omitempty"`
	Embeddings [][]float32     `json:"embeddings,omitempty"`
}
