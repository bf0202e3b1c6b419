package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/store"
	"github.com/nhle/dealroom/tests/testutil"
)

var t0 = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func TestMigrationsApplied(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestDeals_UpsertAndFilter(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	deals := []model.Deal{
		{
			ID: "d1", Name: "Acme acquisition", Stage: model.StageNegotiation,
			Value:     model.Money{Amount: 500000, Currency: "EUR"},
			Owner:     model.Owner{ID: "u1", Name: "Ada"},
			Documents: []model.DealDocument{{DocumentID: "doc1", Name: "NDA.pdf", Folder: "/legal"}},
			Timeline:  []model.TimelineEvent{{At: t0, Kind: "created", Description: "Deal opened"}},
			UpdatedAt: t0,
		},
		{ID: "d2", Name: "Globex merger", Stage: model.StageProspect, UpdatedAt: t0.Add(time.Hour)},
	}
	require.NoError(t, s.UpsertDeals(ctx, deals))

	all, err := s.GetDeals(ctx, store.DealFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "d2", all[0].ID, "most recently updated first")

	stage := model.StageNegotiation
	byStage, err := s.GetDeals(ctx, store.DealFilter{Stage: &stage})
	require.NoError(t, err)
	require.Len(t, byStage, 1)
	assert.Equal(t, "EUR", byStage[0].Value.Currency)
	assert.Equal(t, "Ada", byStage[0].Owner.Name)
	require.Len(t, byStage[0].Documents, 1)
	assert.Equal(t, "/legal", byStage[0].Documents[0].Folder)
	require.Len(t, byStage[0].Timeline, 1)
	assert.True(t, t0.Equal(byStage[0].Timeline[0].At))

	byName, err := s.GetDeals(ctx, store.DealFilter{Query: "glob"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "d2", byName[0].ID)

	_, err = s.GetDeal(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeals_OfflineEditSurvivesRefresh(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	d := model.Deal{ID: "d1", Name: "Acme", Stage: model.StageProspect, UpdatedAt: t0}
	require.NoError(t, s.UpsertDeals(ctx, []model.Deal{d}))

	require.NoError(t, s.SetDealStageOffline(ctx, "d1", model.StageClosing))

	// A server refresh must not clobber the local edit.
	require.NoError(t, s.UpsertDeals(ctx, []model.Deal{d}))
	got, err := s.GetDeal(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.StageClosing, got.Stage)
	assert.True(t, got.HasOfflineChanges)

	pending, err := s.GetDeals(ctx, store.DealFilter{OfflineOnly: true})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	accepted := *got
	require.NoError(t, s.MarkDealSynced(ctx, accepted))
	got, err = s.GetDeal(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, got.HasOfflineChanges)
	assert.Equal(t, model.StageClosing, got.Stage)

	err = s.SetDealStageOffline(ctx, "missing", model.StageClosing)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestDocuments_CacheInvalidatedOnChange(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	doc := model.Document{ID: "doc1", DealID: "d1", Name: "NDA.txt", Folder: "legal", UpdatedAt: t0}
	require.NoError(t, s.UpsertDocuments(ctx, []model.Document{
		doc,
		{ID: "doc2", DealID: "d1", Name: "appendix.txt", Folder: "/", UpdatedAt: t0},
		{ID: "doc3", DealID: "d2", Name: "Other.txt", Folder: "/legal", UpdatedAt: t0},
	}))

	require.NoError(t, s.SetDocumentLocalPath(ctx, "doc1", "/cache/doc1"))

	require.NoError(t, s.UpsertDocuments(ctx, []model.Document{doc}))
	got, err := s.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	require.True(t, got.IsCached())
	assert.Equal(t, "/cache/doc1", *got.LocalPath)
	assert.Equal(t, "/legal", got.Folder)

	doc.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, s.UpsertDocuments(ctx, []model.Document{doc}))
	got, err = s.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.False(t, got.IsCached())

	legal, err := s.GetDocuments(ctx, store.DocumentFilter{DealID: "d1", Folder: "/legal"})
	require.NoError(t, err)
	require.Len(t, legal, 1)

	dealDocs, err := s.GetDocuments(ctx, store.DocumentFilter{DealID: "d1"})
	require.NoError(t, err)
	require.Len(t, dealDocs, 2)
	assert.Equal(t, "appendix.txt", dealDocs[0].Name)

	assert.ErrorIs(t, s.SetDocumentLocalPath(ctx, "missing", "/x"), store.ErrNotFound)
}

func TestFolders(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFolders(ctx, "d1", []model.Folder{
		{Path: "/legal", Name: "legal"},
		{Path: "/finance", Name: "finance"},
	}))
	require.NoError(t, s.UpsertFolders(ctx, "d1", []model.Folder{{Path: "/legal/", Name: "Legal"}}))

	folders, err := s.GetFolders(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "/finance", folders[0].Path)
	assert.Equal(t, "Legal", folders[1].Name)
	assert.Equal(t, "d1", folders[1].DealID)

	other, err := s.GetFolders(ctx, "d2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAnnotations_PendingLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAnnotation(ctx, model.Annotation{
		ID: "a1", DocumentID: "doc1", DealID: "d1", Page: 3, Text: "Reviewed page 3", CreatedAt: t0,
	}))
	require.NoError(t, s.SaveAnnotation(ctx, model.Annotation{
		ID: "a2", DocumentID: "doc1", DealID: "d1", Page: 1, Text: "Cover ok", CreatedAt: t0, Synced: true,
	}))

	all, err := s.GetAnnotations(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Page)
	assert.True(t, all[0].Synced)

	pending, err := s.PendingAnnotations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a1", pending[0].ID)

	require.NoError(t, s.MarkAnnotationSynced(ctx, "a1"))
	pending, err = s.PendingAnnotations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, s.DiscardAnnotation(ctx, "a1"), store.ErrNotFound, "synced annotations are kept")

	require.NoError(t, s.SaveAnnotation(ctx, model.Annotation{DocumentID: "doc1", DealID: "d1", Page: 2, Text: "draft", CreatedAt: t0}))
	pending, err = s.PendingAnnotations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].ID)
	require.NoError(t, s.DiscardAnnotation(ctx, pending[0].ID))
}

func TestNotificationSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	items, token, err := s.LoadNotificationSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, token)

	snap := []model.NotificationItem{
		{ID: "n2", Title: "Newer", ReceivedAt: t0.Add(time.Minute), Payload: map[string]any{"deal_id": "d1"}},
		{ID: "n1", Title: "Older", ReceivedAt: t0, Read: true},
	}
	require.NoError(t, s.SaveNotificationSnapshot(ctx, snap, "abc123"))
	require.NoError(t, s.SaveNotificationSnapshot(ctx, snap, "abc123"))

	items, token, err = s.LoadNotificationSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "n2", items[0].ID)
	assert.Equal(t, "d1", items[0].PayloadString("deal_id"))
	assert.True(t, items[1].Read)
	assert.Equal(t, "abc123", token)
}

func TestInstallIDIsStable(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first, err := s.InstallID(ctx)
	require.NoError(t, err)
	second, err := s.InstallID(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)

	_, err = s.GetMeta(ctx, "nothing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
