package sync_test

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dealroom/internal/api"
	"github.com/nhle/dealroom/internal/logging"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/store"
	dsync "github.com/nhle/dealroom/internal/sync"
	"github.com/nhle/dealroom/tests/testutil"
)

var t0 = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	backend *testutil.Backend
	client  *api.Client
	store   *store.SQLiteStore
	worker  *dsync.Worker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	b := testutil.NewBackend(t)
	c := api.NewClient(b.URL(), 5*time.Second)
	c.SetAccessToken(b.Token)
	s := testutil.NewTestStore(t)
	w := dsync.New(c, s, logging.Discard(), time.Hour, time.Hour)
	return fixture{backend: b, client: c, store: s, worker: w}
}

func TestRunOnce_UploadsPendingAnnotations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveAnnotation(ctx, model.Annotation{
		ID: "a1", DocumentID: "doc1", DealID: "d1", Page: 3, Text: "Reviewed page 3", CreatedAt: t0,
	}))

	f.backend.Set(func(b *testutil.Backend) { b.FailAnnotations = true })
	res := f.worker.RunOnce(ctx)
	assert.Error(t, res.Err)
	assert.Equal(t, 1, res.AnnotationsPending)
	pending, err := f.store.PendingAnnotations(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	f.backend.Set(func(b *testutil.Backend) { b.FailAnnotations = false })
	res = f.worker.RunOnce(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.AnnotationsSynced)
	pending, err = f.store.PendingAnnotations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	f.backend.Mu.Lock()
	defer f.backend.Mu.Unlock()
	require.Len(t, f.backend.Annotations, 1)
	assert.Equal(t, "Reviewed page 3", f.backend.Annotations[0].Text)
}

func TestRunOnce_PushesOfflineDealsAndRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deal := model.Deal{ID: "d1", Name: "Acme", Stage: model.StageProspect, UpdatedAt: t0}
	f.backend.Set(func(b *testutil.Backend) {
		b.Deals["d1"] = deal
		b.Deals["d2"] = model.Deal{ID: "d2", Name: "Globex", Stage: model.StageClosing, UpdatedAt: t0}
	})
	require.NoError(t, f.store.UpsertDeals(ctx, []model.Deal{deal}))
	require.NoError(t, f.store.SetDealStageOffline(ctx, "d1", model.StageDueDiligence))

	res := f.worker.RunOnce(ctx)

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.DealsPushed)
	assert.Len(t, res.Deals, 2)

	f.backend.Mu.Lock()
	assert.Equal(t, model.StageDueDiligence, f.backend.Deals["d1"].Stage)
	f.backend.Mu.Unlock()

	local, err := f.store.GetDeal(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, local.HasOfflineChanges)
	assert.Equal(t, model.StageDueDiligence, local.Stage)
}

func TestRunOnce_PollsFeedFromCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.Set(func(b *testutil.Backend) {
		b.Notifications["tok"] = []model.NotificationItem{
			{ID: "n1", Title: "Deal moved", ReceivedAt: t0},
		}
	})

	res := f.worker.RunOnce(ctx)
	assert.Empty(t, res.Notifications, "no token registered yet")

	f.worker.SetDeviceToken("tok")
	res = f.worker.RunOnce(ctx)
	require.NoError(t, res.Err)
	require.Len(t, res.Notifications, 1)

	res = f.worker.RunOnce(ctx)
	require.NoError(t, res.Err)
	assert.Empty(t, res.Notifications, "cursor advanced past n1")

	f.backend.Set(func(b *testutil.Backend) {
		b.Notifications["tok"] = append(b.Notifications["tok"],
			model.NotificationItem{ID: "n2", Title: "New document", ReceivedAt: t0.Add(time.Minute)})
	})
	res = f.worker.RunOnce(ctx)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "n2", res.Notifications[0].ID)
}

func TestRunOnce_StopsOnAuthError(t *testing.T) {
	f := newFixture(t)
	f.client.SetAccessToken("expired")

	res := f.worker.RunOnce(context.Background())

	require.Error(t, res.AuthErr)
	assert.True(t, api.IsAuthError(res.AuthErr))
	assert.Nil(t, res.Deals)
}

func TestProbe_ReportsChangesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, changed := f.worker.Probe(ctx)
	assert.False(t, changed, "starts online")

	f.backend.Set(func(b *testutil.Backend) { b.Down = true })
	msg, changed := f.worker.Probe(ctx)
	assert.True(t, changed)
	assert.False(t, msg.Online)
	assert.ErrorIs(t, msg.Err, api.ErrUnavailable)

	_, changed = f.worker.Probe(ctx)
	assert.False(t, changed)

	f.backend.Set(func(b *testutil.Backend) { b.Down = false })
	msg, changed = f.worker.Probe(ctx)
	assert.True(t, changed)
	assert.True(t, msg.Online)
}

func TestStart_DeliversFirstPass(t *testing.T) {
	f := newFixture(t)

	cmd := f.worker.Start()
	require.NotNil(t, cmd)
	defer f.worker.Stop()
	assert.Nil(t, f.worker.Start(), "already running")

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	select {
	case msg := <-done:
		res, ok := msg.(dsync.ResultMsg)
		require.True(t, ok, "got %T", msg)
		assert.NoError(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("no sync result")
	}

	f.worker.Stop()
	assert.False(t, f.worker.Running())
}

func TestRunOnce_LeavesFreshAnnotationToItsSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveAnnotation(ctx, model.Annotation{
		ID: "a1", DocumentID: "doc1", DealID: "d1", Page: 1, Text: "just saved", CreatedAt: time.Now().UTC(),
	}))

	res := f.worker.RunOnce(ctx)

	require.NoError(t, res.Err)
	assert.Zero(t, res.AnnotationsSynced)
	assert.Equal(t, 1, res.AnnotationsPending)
	f.backend.Mu.Lock()
	defer f.backend.Mu.Unlock()
	assert.Empty(t, f.backend.Annotations)
}

func TestStart_KeepsFeedItemsWhileReaderIsBehind(t *testing.T) {
	f := newFixture(t)
	w := dsync.New(f.client, f.store, logging.Discard(), 5*time.Millisecond, time.Hour)

	cmd := w.Start()
	require.NotNil(t, cmd)
	defer w.Stop()

	// Let the passes fill the result channel before any feed item exists.
	time.Sleep(200 * time.Millisecond)
	f.backend.Set(func(b *testutil.Backend) {
		b.Notifications["tok"] = []model.NotificationItem{
			{ID: "n1", Title: "Deal moved", ReceivedAt: t0},
		}
	})
	w.SetDeviceToken("tok")
	time.Sleep(100 * time.Millisecond)

	deadline := time.After(5 * time.Second)
	for {
		done := make(chan tea.Msg, 1)
		go func() { done <- cmd() }()
		select {
		case msg := <-done:
			res, ok := msg.(dsync.ResultMsg)
			require.True(t, ok, "got %T", msg)
			if len(res.Notifications) > 0 {
				assert.Equal(t, "n1", res.Notifications[0].ID)
				return
			}
			cmd = w.WaitForNext()
		case <-deadline:
			t.Fatal("feed item never delivered")
		}
	}
}
