package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

func newSessionRepoWithMock(t *testing.T) (*SessionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &SessionRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSessionGetReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT session_id, doc_ids").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionGetUnmarshalsJSONColumns(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"session_id", "doc_ids", "previous_doc_ids", "carried_entities", "summary", "recent_messages", "citation_epoch", "updated_at",
	}).AddRow(
		"s1",
		[]byte(`["PlanA","BudgetB"]`),
		[]byte(`["PlanA"]`),
		[]byte(`["홍티예술촌"]`),
		"요약",
		[]byte(`[{"role":"user","content":"질문"}]`),
		2,
		now,
	)
	mock.ExpectQuery("SELECT session_id, doc_ids").WithArgs("s1").WillReturnRows(rows)

	state, err := repo.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(state.DocIDs) != 2 || state.DocIDs[0] != "PlanA" {
		t.Fatalf("doc ids not decoded: %+v", state)
	}
	if len(state.CarriedEntities) != 1 || state.CarriedEntities[0] != "홍티예술촌" {
		t.Fatalf("carried entities not decoded: %+v", state)
	}
	if len(state.RecentMessages) != 1 || state.RecentMessages[0].Role != "user" {
		t.Fatalf("recent messages not decoded: %+v", state)
	}
	if state.CitationEpoch != 2 {
		t.Fatalf("citation epoch = %d", state.CitationEpoch)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionSaveUpsertsJSONColumns(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(
			"s1",
			[]byte(`["PlanA"]`),
			[]byte(`[]`),
			[]byte(`["홍티예술촌"]`),
			"요약",
			[]byte(`[]`),
			1,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.SessionState{
		SessionID:       "s1",
		DocIDs:          []string{"PlanA"},
		CarriedEntities: []string{"홍티예술촌"},
		Summary:         "요약",
		CitationEpoch:   1,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionSaveRequiresID(t *testing.T) {
	repo, _, done := newSessionRepoWithMock(t)
	defer done()

	err := repo.Save(context.Background(), &domain.SessionState{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
