package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/nhle/dealroom/internal/model"
)

// UpsertDocuments inserts or refreshes a batch of document records. A
// cached copy is kept only while the backend's updated_at is unchanged.
func (s *SQLiteStore) UpsertDocuments(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO documents (
			id, deal_id, name, folder, mime_type,
			size_bytes, page_count, remote_url, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			deal_id = excluded.deal_id,
			name = excluded.name,
			folder = excluded.folder,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			page_count = excluded.page_count,
			remote_url = excluded.remote_url,
			local_path = CASE
				WHEN documents.updated_at = excluded.updated_at THEN documents.local_path
				ELSE NULL
			END,
			updated_at = excluded.updated_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		_, err := stmt.ExecContext(ctx,
			d.ID, d.DealID, d.Name, model.CleanFolder(d.Folder), d.MimeType,
			d.SizeBytes, d.PageCount, d.RemoteURL, d.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting document %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// GetDocuments retrieves documents matching f ordered by name.
func (s *SQLiteStore) GetDocuments(ctx context.Context, f DocumentFilter) ([]model.Document, error) {
	q := builder.Select("*").From("documents").OrderBy("name COLLATE NOCASE ASC")
	if f.DealID != "" {
		q = q.Where(squirrel.Eq{"deal_id": f.DealID})
	}
	if f.Folder != "" {
		q = q.Where(squirrel.Eq{"folder": model.CleanFolder(f.Folder)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building document query: %w", err)
	}

	var docs []model.Document
	if err := s.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	return docs, nil
}

// GetDocument retrieves a single document by its ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	err := s.db.GetContext(ctx, &d, "SELECT * FROM documents WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return &d, nil
}

// SetDocumentLocalPath records where the document is cached on disk.
func (s *SQLiteStore) SetDocumentLocalPath(ctx context.Context, id, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET local_path = ? WHERE id = ?", path, id,
	)
	if err != nil {
		return fmt.Errorf("caching document %s: %w", id, err)
	}
	return affectedOrNotFound(res, "caching document "+id)
}

// UpsertFolders merges folders into a deal's tree.
func (s *SQLiteStore) UpsertFolders(ctx context.Context, dealID string, folders []model.Folder) error {
	if len(folders) == 0 {
		return nil
	}

	q := builder.Insert("folders").Columns("deal_id", "path", "name").
		Suffix("ON CONFLICT (deal_id, path) DO UPDATE SET name = excluded.name")
	for _, f := range folders {
		q = q.Values(dealID, model.CleanFolder(f.Path), f.Name)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building folder upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting folders of deal %s: %w", dealID, err)
	}
	return nil
}

// GetFolders returns a deal's folders ordered by path.
func (s *SQLiteStore) GetFolders(ctx context.Context, dealID string) ([]model.Folder, error) {
	var folders []model.Folder
	err := s.db.SelectContext(ctx, &folders,
		"SELECT path, name, deal_id FROM folders WHERE deal_id = ? ORDER BY path", dealID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying folders of deal %s: %w", dealID, err)
	}
	return folders, nil
}
