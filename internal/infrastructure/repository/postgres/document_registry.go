package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

type DocumentRegistry struct {
	db *sql.DB
}

func NewDocumentRegistry(db *sql.DB) *DocumentRegistry {
	return &DocumentRegistry{db: db}
}

func (r *DocumentRegistry) Register(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = domain.StatusRegistered
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, title, source_name, pages, chunk_count, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title, source_name = EXCLUDED.source_name, pages = EXCLUDED.pages, updated_at = EXCLUDED.updated_at
`,
		doc.ID, doc.Title, doc.SourceName, doc.Pages, doc.ChunkCount, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("register document: %w", err)
	}
	return nil
}

func (r *DocumentRegistry) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, source_name, pages, chunk_count, status, COALESCE(error_message, ''), created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.SourceName, &doc.Pages, &doc.ChunkCount, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRegistry) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, source_name, pages, chunk_count, status, COALESCE(error_message, ''), created_at, updated_at
FROM documents
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		var doc domain.Document
		var status string
		if err := rows.Scan(
			&doc.ID, &doc.Title, &doc.SourceName, &doc.Pages, &doc.ChunkCount, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		doc.Status = domain.DocumentStatus(status)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRegistry) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *DocumentRegistry) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, chunk_count = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), chunkCount, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document status rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", fmt.Errorf("id %s", id))
	}
	return nil
}
