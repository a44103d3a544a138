package domain

// ResolutionStatus is one of the two terminal statuses a turn can end in.
// Partial degradation (one index down, reranker down) never surfaces here,
// only in diagnostics.
type ResolutionStatus string

const (
	StatusOK         ResolutionStatus = "ok"
	StatusNoEvidence ResolutionStatus = "no_evidence"
)

// TopicChangeAnalysis is produced once per follow-up turn by the two-stage
// retrieval comparison and consumed immediately by the scope resolver.
type TopicChangeAnalysis struct {
	Changed         bool     `json:"changed"`
	Reason          string   `json:"reason"`
	ScoreMargin     float64  `json:"score_margin"`
	SuggestedDocIDs []string `json:"suggested_doc_ids,omitempty"`
}

// Diagnostics is the observability payload attached to every
// ResolutionResult; the logging collaborator consumes it as-is.
type Diagnostics struct {
	RewriteReason    string   `json:"rewrite_reason,omitempty"`
	LexicalCount     int      `json:"lexical_count"`
	VectorCount      int      `json:"vector_count"`
	FusedCount       int      `json:"fused_count"`
	FilteredCount    int      `json:"filtered_count"`
	TopicChange      string   `json:"topic_change,omitempty"`
	Degradations     []string `json:"degradations,omitempty"`
	NoEvidenceReason string   `json:"no_evidence_reason,omitempty"`
	CarriedEntities  []string `json:"carried_entities,omitempty"`
}

// ResolutionResult is the scope resolver's output for one turn. When
// AllowedDocIDs is non-nil every evidence chunk's doc id is a member.
type ResolutionResult struct {
	Evidence      []ScoredCandidate `json:"evidence"`
	AllowedDocIDs []string          `json:"allowed_doc_ids,omitempty"`
	Mode          ScopeMode         `json:"mode"`
	Status        ResolutionStatus  `json:"status"`
	Query         RetrievalQuery    `json:"query"`
	Diagnostics   Diagnostics       `json:"diagnostics"`
}
