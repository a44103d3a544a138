package httpadapter

import (
	"context"
	"sync"
	"time"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
	"github.com/jungujeong/GovRAG-sub000/internal/core/ports"
)

const defaultRecentMessages = 6

// sessionManager owns per-turn session state transitions. The store itself
// carries no concurrency discipline, so the manager serializes turns of
// the same session with one mutex per session id.
type sessionManager struct {
	store          ports.SessionStore
	recentMessages int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionManager(store ports.SessionStore, recentMessages int) *sessionManager {
	if recentMessages <= 0 {
		recentMessages = defaultRecentMessages
	}
	return &sessionManager{
		store:          store,
		recentMessages: recentMessages,
		locks:          make(map[string]*sync.Mutex),
	}
}

func (m *sessionManager) lock(sessionID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// load returns the stored state, or a fresh one for an unknown session.
func (m *sessionManager) load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	state, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if domain.IsKind(err, domain.ErrSessionNotFound) {
			return &domain.SessionState{SessionID: sessionID}, nil
		}
		return nil, err
	}
	return state, nil
}

// apply folds one resolved turn into the session state: the documents that
// produced evidence become the follow-up bias for the next turn, explicit
// and expanded scopes join the session document set, and a scope expansion
// bumps the citation epoch so stale citation maps are not reused.
func (m *sessionManager) apply(state *domain.SessionState, query string, result *domain.ResolutionResult) {
	switch result.Mode {
	case domain.ScopeRequested:
		state.DocIDs = mergeDocIDs(state.DocIDs, result.AllowedDocIDs)
	case domain.ScopeExpanded:
		state.DocIDs = mergeDocIDs(state.DocIDs, result.AllowedDocIDs)
		state.CitationEpoch++
	}

	evidenceDocs := make([]string, 0, len(result.Evidence))
	seen := make(map[string]struct{}, len(result.Evidence))
	for _, cand := range result.Evidence {
		if _, dup := seen[cand.Chunk.DocID]; dup {
			continue
		}
		seen[cand.Chunk.DocID] = struct{}{}
		evidenceDocs = append(evidenceDocs, cand.Chunk.DocID)
	}
	if len(evidenceDocs) > 0 {
		state.PreviousDocIDs = evidenceDocs
	}

	state.CarriedEntities = result.Diagnostics.CarriedEntities
	state.RecentMessages = append(state.RecentMessages, domain.ConversationMessage{
		Role:    "user",
		Content: query,
	})
	if len(state.RecentMessages) > m.recentMessages {
		state.RecentMessages = state.RecentMessages[len(state.RecentMessages)-m.recentMessages:]
	}
	state.UpdatedAt = time.Now().UTC()
}

func (m *sessionManager) save(ctx context.Context, state *domain.SessionState) error {
	return m.store.Save(ctx, state)
}

func mergeDocIDs(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range incoming {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
