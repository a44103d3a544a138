package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

func newRegistryWithMock(t *testing.T) (*DocumentRegistry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRegistry{db: db}, mock, func() { _ = db.Close() }
}

func TestRegistryGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title, source_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegistryUpdateStatusReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusIndexing), 0, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusIndexing, 0, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegistryRegisterUpserts(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			"PlanA", "홍티예술촌 운영 계획", "PlanA.pdf", 12, 0,
			string(domain.StatusRegistered), "", sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Register(context.Background(), &domain.Document{
		ID:         "PlanA",
		Title:      "홍티예술촌 운영 계획",
		SourceName: "PlanA.pdf",
		Pages:      12,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegistryListScansRows(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "title", "source_name", "pages", "chunk_count", "status", "error_message", "created_at", "updated_at",
	}).AddRow("PlanA", "운영 계획", "PlanA.pdf", 12, 40, "indexed", "", now, now)
	mock.ExpectQuery("SELECT id, title, source_name").WillReturnRows(rows)

	docs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 || docs[0].Status != domain.StatusIndexed || docs[0].ChunkCount != 40 {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegistryDeleteReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegistryDeleteRemovesRow(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("PlanA").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "PlanA"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
