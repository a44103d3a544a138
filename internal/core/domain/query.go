package domain

// Rewrite reason tags attached to a RetrievalQuery. The dynamic
// context_enriched tag carries the injected entity after the colon.
const (
	RewriteEntityPresent        = "entity_already_present"
	RewriteTopicChangeNoOverlap = "topic_change_no_overlap"
	RewriteContextEnrichedTag   = "context_enriched"
	RewriteMetaRedirect         = "meta_question_redirect"
	RewriteNone                 = "no_rewrite"
)

// RetrievalQuery is the per-turn query the retrieval pipeline runs.
// SubQueries are tried in preference order; the first is always the
// rewritten text, the raw text follows when they differ.
type RetrievalQuery struct {
	RawText       string   `json:"raw_text"`
	RewrittenText string   `json:"rewritten_text"`
	SubQueries    []string `json:"sub_queries"`
	RewriteReason string   `json:"rewrite_reason"`
}

// ConversationMessage is one prior turn handed to the query rewriter.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
