package domain

// ChunkType classifies the structural origin of an evidence chunk inside
// its source document.
type ChunkType string

const (
	ChunkContent   ChunkType = "content"
	ChunkTable     ChunkType = "table"
	ChunkFootnote  ChunkType = "footnote"
	ChunkDirective ChunkType = "directive"
)

// CandidateSource tags which retrieval path produced a candidate, so
// downstream stages can branch on the tag instead of probing fields.
type CandidateSource string

const (
	SourceLexical  CandidateSource = "lexical"
	SourceVector   CandidateSource = "vector"
	SourceFallback CandidateSource = "fallback"
)

// EvidenceChunk is a retrievable unit of document text with provenance.
// It is immutable once produced by an index; stages copy it into
// ScoredCandidate wrappers and annotate scores there.
type EvidenceChunk struct {
	ChunkID   string    `json:"chunk_id"`
	DocID     string    `json:"doc_id"`
	Page      int       `json:"page"`
	Text      string    `json:"text"`
	StartChar int       `json:"start_char"`
	EndChar   int       `json:"end_char"`
	Type      ChunkType `json:"chunk_type"`
}

// ScoredCandidate wraps an EvidenceChunk with the scores accumulated along
// the pipeline. Each stage adds its own field; earlier fields are never
// overwritten.
type ScoredCandidate struct {
	Chunk  EvidenceChunk   `json:"chunk"`
	Source CandidateSource `json:"source"`

	LexicalScore     float64  `json:"lexical_score"`
	VectorScore      float64  `json:"vector_score"`
	FusedScore       float64  `json:"fused_score"`
	KeywordRelevance float64  `json:"keyword_relevance"`
	RerankScore      *float64 `json:"rerank_score,omitempty"`

	// FallbackReason is set only on candidates admitted by the emergency
	// fallback in the relevance filter.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// BlendedScore orders relevance-filter output: fused score dominates,
// keyword relevance breaks near-ties.
func (c ScoredCandidate) BlendedScore() float64 {
	return 0.7*c.FusedScore + 0.3*c.KeywordRelevance
}
