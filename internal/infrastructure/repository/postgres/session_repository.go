package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT session_id, doc_ids, previous_doc_ids, carried_entities, summary, recent_messages, citation_epoch, updated_at
FROM sessions
WHERE session_id = $1
`, sessionID)

	var state domain.SessionState
	var docIDs, previousDocIDs, carriedEntities, recentMessages []byte
	err := row.Scan(
		&state.SessionID,
		&docIDs,
		&previousDocIDs,
		&carriedEntities,
		&state.Summary,
		&recentMessages,
		&state.CitationEpoch,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id %s", sessionID))
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal(docIDs, &state.DocIDs); err != nil {
		return nil, fmt.Errorf("unmarshal doc ids: %w", err)
	}
	if err := json.Unmarshal(previousDocIDs, &state.PreviousDocIDs); err != nil {
		return nil, fmt.Errorf("unmarshal previous doc ids: %w", err)
	}
	if err := json.Unmarshal(carriedEntities, &state.CarriedEntities); err != nil {
		return nil, fmt.Errorf("unmarshal carried entities: %w", err)
	}
	if err := json.Unmarshal(recentMessages, &state.RecentMessages); err != nil {
		return nil, fmt.Errorf("unmarshal recent messages: %w", err)
	}
	return &state, nil
}

func (r *SessionRepository) Save(ctx context.Context, state *domain.SessionState) error {
	if state.SessionID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save session", errors.New("session_id is required"))
	}
	docIDs, err := marshalList(state.DocIDs)
	if err != nil {
		return fmt.Errorf("marshal doc ids: %w", err)
	}
	previousDocIDs, err := marshalList(state.PreviousDocIDs)
	if err != nil {
		return fmt.Errorf("marshal previous doc ids: %w", err)
	}
	carriedEntities, err := marshalList(state.CarriedEntities)
	if err != nil {
		return fmt.Errorf("marshal carried entities: %w", err)
	}
	recentMessages, err := json.Marshal(messagesOrEmpty(state.RecentMessages))
	if err != nil {
		return fmt.Errorf("marshal recent messages: %w", err)
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO sessions (session_id, doc_ids, previous_doc_ids, carried_entities, summary, recent_messages, citation_epoch, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (session_id) DO UPDATE
SET doc_ids = EXCLUDED.doc_ids,
	previous_doc_ids = EXCLUDED.previous_doc_ids,
	carried_entities = EXCLUDED.carried_entities,
	summary = EXCLUDED.summary,
	recent_messages = EXCLUDED.recent_messages,
	citation_epoch = EXCLUDED.citation_epoch,
	updated_at = EXCLUDED.updated_at
`,
		state.SessionID, docIDs, previousDocIDs, carriedEntities, state.Summary, recentMessages, state.CitationEpoch, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func marshalList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func messagesOrEmpty(messages []domain.ConversationMessage) []domain.ConversationMessage {
	if messages == nil {
		return []domain.ConversationMessage{}
	}
	return messages
}
