package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/nhle/dealroom/internal/model"
)

// dealRow is the flattened table form of model.Deal.
type dealRow struct {
	ID                string    `db:"id"`
	Name              string    `db:"name"`
	Stage             string    `db:"stage"`
	ValueJSON         string    `db:"value_json"`
	OwnerJSON         string    `db:"owner_json"`
	DocumentsJSON     string    `db:"documents_json"`
	TimelineJSON      string    `db:"timeline_json"`
	UpdatedAt         time.Time `db:"updated_at"`
	HasOfflineChanges bool      `db:"has_offline_changes"`
}

func toDealRow(d model.Deal) (dealRow, error) {
	r := dealRow{
		ID:                d.ID,
		Name:              d.Name,
		Stage:             string(d.Stage),
		UpdatedAt:         d.UpdatedAt.UTC(),
		HasOfflineChanges: d.HasOfflineChanges,
	}
	fields := []struct {
		dst *string
		val any
	}{
		{&r.ValueJSON, d.Value},
		{&r.OwnerJSON, d.Owner},
		{&r.DocumentsJSON, nonNil(d.Documents)},
		{&r.TimelineJSON, nonNil(d.Timeline)},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.val)
		if err != nil {
			return dealRow{}, fmt.Errorf("marshaling deal %s: %w", d.ID, err)
		}
		*f.dst = string(data)
	}
	return r, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (r dealRow) deal() (model.Deal, error) {
	d := model.Deal{
		ID:                r.ID,
		Name:              r.Name,
		Stage:             model.DealStage(r.Stage),
		UpdatedAt:         r.UpdatedAt,
		HasOfflineChanges: r.HasOfflineChanges,
	}
	fields := []struct {
		src string
		dst any
	}{
		{r.ValueJSON, &d.Value},
		{r.OwnerJSON, &d.Owner},
		{r.DocumentsJSON, &d.Documents},
		{r.TimelineJSON, &d.Timeline},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return model.Deal{}, fmt.Errorf("unmarshaling deal %s: %w", r.ID, err)
		}
	}
	return d, nil
}

// UpsertDeals inserts or refreshes a batch of deals fetched from the
// backend. Deals holding unreconciled local edits are left untouched.
func (s *SQLiteStore) UpsertDeals(ctx context.Context, deals []model.Deal) error {
	if len(deals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO deals (
			id, name, stage, value_json, owner_json,
			documents_json, timeline_json, updated_at, has_offline_changes
		) VALUES (
			:id, :name, :stage, :value_json, :owner_json,
			:documents_json, :timeline_json, :updated_at, 0
		)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			stage = excluded.stage,
			value_json = excluded.value_json,
			owner_json = excluded.owner_json,
			documents_json = excluded.documents_json,
			timeline_json = excluded.timeline_json,
			updated_at = excluded.updated_at
		WHERE deals.has_offline_changes = 0`

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range deals {
		row, err := toDealRow(d)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("upserting deal %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// GetDeals retrieves deals matching f, most recently updated first.
func (s *SQLiteStore) GetDeals(ctx context.Context, f DealFilter) ([]model.Deal, error) {
	q := builder.Select("*").From("deals").OrderBy("updated_at DESC", "name ASC")
	if f.Stage != nil {
		q = q.Where(squirrel.Eq{"stage": string(*f.Stage)})
	}
	if f.Query != "" {
		q = q.Where(squirrel.Like{"name": "%" + f.Query + "%"})
	}
	if f.OfflineOnly {
		q = q.Where(squirrel.Eq{"has_offline_changes": 1})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building deal query: %w", err)
	}

	var rows []dealRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying deals: %w", err)
	}

	deals := make([]model.Deal, 0, len(rows))
	for _, r := range rows {
		d, err := r.deal()
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, nil
}

// GetDeal retrieves a single deal by its ID.
func (s *SQLiteStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	var r dealRow
	err := s.db.GetContext(ctx, &r, "SELECT * FROM deals WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting deal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting deal %s: %w", id, err)
	}

	d, err := r.deal()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SetDealStageOffline records a local stage change to be pushed later.
func (s *SQLiteStore) SetDealStageOffline(ctx context.Context, id string, stage model.DealStage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE deals SET stage = ?, has_offline_changes = 1, updated_at = ?
		WHERE id = ?`,
		string(stage), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating deal %s: %w", id, err)
	}
	return affectedOrNotFound(res, "updating deal "+id)
}

// MarkDealSynced replaces the local deal with the server's accepted copy
// and clears its offline flag.
func (s *SQLiteStore) MarkDealSynced(ctx context.Context, d model.Deal) error {
	d.HasOfflineChanges = false
	row, err := toDealRow(d)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO deals (
			id, name, stage, value_json, owner_json,
			documents_json, timeline_json, updated_at, has_offline_changes
		) VALUES (
			:id, :name, :stage, :value_json, :owner_json,
			:documents_json, :timeline_json, :updated_at, 0
		)`, row)
	if err != nil {
		return fmt.Errorf("marking deal %s synced: %w", d.ID, err)
	}
	return nil
}
