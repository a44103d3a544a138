package domain

import "time"

// SessionState is the only cross-turn state the pipeline reasons about:
// document scope, carried entities and a short textual summary. Evidence
// content is never cached across turns.
type SessionState struct {
	SessionID       string                `json:"session_id"`
	DocIDs          []string              `json:"doc_ids,omitempty"`
	PreviousDocIDs  []string              `json:"previous_doc_ids,omitempty"`
	CarriedEntities []string              `json:"carried_entities,omitempty"`
	Summary         string                `json:"summary,omitempty"`
	RecentMessages  []ConversationMessage `json:"recent_messages,omitempty"`

	// CitationEpoch increments whenever scope expands to new documents;
	// downstream citation numbering must not reuse maps frozen under an
	// earlier epoch.
	CitationEpoch int       `json:"citation_epoch"`
	UpdatedAt     time.Time `json:"updated_at"`
}
