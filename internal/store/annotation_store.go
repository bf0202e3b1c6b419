package store

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/nhle/dealroom/internal/model"
)

// SaveAnnotation inserts or replaces an annotation. An annotation without
// an ID gets a new UUID.
func (s *SQLiteStore) SaveAnnotation(ctx context.Context, a model.Annotation) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO annotations (
			id, document_id, deal_id, page, text, created_at, synced
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DocumentID, a.DealID, a.Page, a.Text,
		a.CreatedAt.UTC(), boolToInt(a.Synced),
	)
	if err != nil {
		return fmt.Errorf("saving annotation %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) selectAnnotations(ctx context.Context, where squirrel.Sqlizer) ([]model.Annotation, error) {
	query, args, err := builder.Select("*").From("annotations").
		Where(where).
		OrderBy("page ASC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building annotation query: %w", err)
	}

	var out []model.Annotation
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("querying annotations: %w", err)
	}
	return out, nil
}

// GetAnnotations returns every annotation on a document by page.
func (s *SQLiteStore) GetAnnotations(ctx context.Context, documentID string) ([]model.Annotation, error) {
	return s.selectAnnotations(ctx, squirrel.Eq{"document_id": documentID})
}

// PendingAnnotations returns annotations not yet accepted by the backend.
func (s *SQLiteStore) PendingAnnotations(ctx context.Context) ([]model.Annotation, error) {
	return s.selectAnnotations(ctx, squirrel.Eq{"synced": 0})
}

// MarkAnnotationSynced flags an annotation as uploaded.
func (s *SQLiteStore) MarkAnnotationSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE annotations SET synced = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking annotation %s synced: %w", id, err)
	}
	return affectedOrNotFound(res, "marking annotation "+id+" synced")
}

// DiscardAnnotation deletes a pending annotation. Synced annotations
// belong to the backend and are not removed.
func (s *SQLiteStore) DiscardAnnotation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM annotations WHERE id = ? AND synced = 0", id,
	)
	if err != nil {
		return fmt.Errorf("discarding annotation %s: %w", id, err)
	}
	return affectedOrNotFound(res, "discarding annotation "+id)
}
