package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ScopeMode names the state the scope resolver settled on for a turn.
type ScopeMode string

const (
	ScopeRequested ScopeMode = "requested"
	ScopeSession   ScopeMode = "session"
	ScopeFollowup  ScopeMode = "followup"
	ScopeExpanded  ScopeMode = "expanded"
	ScopeUnbounded ScopeMode = "unbounded"
)

// ScopeContext carries the document-id sets a turn may retrieve from.
// All sets are NFC-normalized, extension-stripped and deduplicated before
// any comparison.
type ScopeContext struct {
	RequestedDocIDs []string  `json:"requested_doc_ids,omitempty"`
	SessionDocIDs   []string  `json:"session_doc_ids,omitempty"`
	PreviousDocIDs  []string  `json:"previous_doc_ids,omitempty"`
	Mode            ScopeMode `json:"mode"`
}

var strippableExtensions = []string{".pdf", ".hwp", ".hwpx", ".txt"}

// NormalizeDocID canonicalizes a document identifier: Unicode NFC, trimmed,
// with known file extensions stripped so scope matching is
// extension-agnostic. Case is preserved; doc ids are case-sensitive.
func NormalizeDocID(id string) string {
	id = norm.NFC.String(strings.TrimSpace(id))
	lower := strings.ToLower(id)
	for _, ext := range strippableExtensions {
		if strings.HasSuffix(lower, ext) {
			return id[:len(id)-len(ext)]
		}
	}
	return id
}

// NormalizeDocIDs normalizes every id and deduplicates preserving
// first-seen order. Applying it twice is a no-op.
func NormalizeDocIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		canonical := NormalizeDocID(id)
		if canonical == "" {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DocIDSet builds a membership set from already-normalized ids.
func DocIDSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Normalize returns a copy of the context with every doc-id set
// canonicalized.
func (s ScopeContext) Normalize() ScopeContext {
	return ScopeContext{
		RequestedDocIDs: NormalizeDocIDs(s.RequestedDocIDs),
		SessionDocIDs:   NormalizeDocIDs(s.SessionDocIDs),
		PreviousDocIDs:  NormalizeDocIDs(s.PreviousDocIDs),
		Mode:            s.Mode,
	}
}
