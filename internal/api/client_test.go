package api_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dealroom/internal/api"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/tests/testutil"
)

func newClient(t *testing.T) (*api.Client, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	c := api.NewClient(b.URL()+"/", 5*time.Second)
	c.SetAccessToken(b.Token)
	return c, b
}

func TestSignIn(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	s, err := c.SignIn(ctx, "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "test-token", s.AccessToken)
	assert.Equal(t, "refresh-token", s.RefreshToken)
	assert.Equal(t, "ada@example.com", s.Profile.Email)
	assert.False(t, s.Expired(time.Now()))
	assert.Empty(t, s.BiometricKey)

	_, err = c.SignIn(ctx, "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestRefresh_KeepsRefreshToken(t *testing.T) {
	c, _ := newClient(t)

	s, err := c.Refresh(context.Background(), "refresh-token")
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", s.RefreshToken)

	_, err = c.Refresh(context.Background(), "revoked")
	assert.True(t, api.IsAuthError(err))
}

func TestUnauthorizedToken(t *testing.T) {
	c, _ := newClient(t)
	c.SetAccessToken("stale")

	_, err := c.ListDeals(context.Background())

	assert.True(t, api.IsAuthError(err))
}

func TestDeals(t *testing.T) {
	c, b := newClient(t)
	b.Set(func(b *testutil.Backend) {
		b.Deals["d1"] = model.Deal{
			ID:    "d1",
			Name:  "Acme acquisition",
			Stage: model.StageNegotiation,
			Value: model.Money{Amount: 125000000, Currency: "USD"},
			Timeline: []model.TimelineEvent{
				{Kind: "stage", Description: "moved to negotiation"},
			},
		}
	})
	ctx := context.Background()

	deals, err := c.ListDeals(ctx)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "Acme acquisition", deals[0].Name)

	d, err := c.GetDeal(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, d.Timeline, 1)
	assert.Equal(t, int64(125000000), d.Value.Amount)

	d, err = c.UpdateDealStage(ctx, "d1", model.StageClosing)
	require.NoError(t, err)
	assert.Equal(t, model.StageClosing, d.Stage)

	_, err = c.GetDeal(ctx, "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
	var se *api.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.Code)
}

func TestFoldersAndDocuments(t *testing.T) {
	c, b := newClient(t)
	b.Set(func(b *testutil.Backend) {
		b.Documents = []model.Document{
			{ID: "doc1", DealID: "d1", Name: "NDA.txt", Folder: "/legal"},
			{ID: "doc2", DealID: "d1", Name: "Model.txt", Folder: "/finance"},
			{ID: "doc3", DealID: "d2", Name: "Other.txt", Folder: "/legal"},
		}
	})
	ctx := context.Background()

	f, err := c.CreateFolder(ctx, "d1", "/", "legal")
	require.NoError(t, err)
	assert.Equal(t, "/legal", f.Path)

	_, err = c.CreateFolder(ctx, "d1", "", "legal")
	var se *api.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 409, se.Code)

	folders, err := c.ListFolders(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, folders, 1)

	docs, err := c.ListDocuments(ctx, "d1", "legal")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc1", docs[0].ID)

	all, err := c.ListDocuments(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUploadAndDownload(t *testing.T) {
	c, b := newClient(t)
	ctx := context.Background()

	doc, err := c.UploadDocument(ctx, api.Upload{
		DealID:   "d1",
		Folder:   "legal/",
		FileName: "/tmp/notes/term-sheet.txt",
		Content:  strings.NewReader("page one\fpage two"),
	})
	require.NoError(t, err)
	assert.Equal(t, "term-sheet.txt", doc.Name)

	b.Mu.Lock()
	require.Len(t, b.Uploads, 1)
	up := b.Uploads[0]
	b.Mu.Unlock()
	assert.Equal(t, "d1", up.DealID)
	assert.Equal(t, "/legal", up.Folder)

	var buf bytes.Buffer
	n, err := c.DownloadDocument(ctx, doc.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("page one\fpage two")), n)
	assert.Equal(t, "page one\fpage two", buf.String())
}

func TestCreateAnnotation(t *testing.T) {
	c, b := newClient(t)
	ctx := context.Background()
	a := model.Annotation{ID: "a1", DocumentID: "doc1", DealID: "d1", Page: 3, Text: "Reviewed page 3"}

	require.NoError(t, c.CreateAnnotation(ctx, a))

	b.Mu.Lock()
	require.Len(t, b.Annotations, 1)
	got := b.Annotations[0]
	b.Mu.Unlock()
	assert.Equal(t, "doc1", got.DocumentID)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, "Reviewed page 3", got.Text)

	b.Set(func(b *testutil.Backend) { b.FailAnnotations = true })
	err := c.CreateAnnotation(ctx, a)
	assert.Error(t, err)
	assert.False(t, api.IsAuthError(err))
}

func TestDevicesAndFeed(t *testing.T) {
	c, b := newClient(t)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	b.Set(func(b *testutil.Backend) {
		b.Notifications["tok"] = []model.NotificationItem{
			{ID: "n1", Title: "Deal moved", ReceivedAt: base},
			{ID: "n2", Title: "New document", ReceivedAt: base.Add(time.Minute)},
		}
	})
	ctx := context.Background()

	require.NoError(t, c.RegisterDeviceToken(ctx, "tok"))

	items, err := c.FetchNotifications(ctx, "tok", time.Time{})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = c.FetchNotifications(ctx, "tok", base)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n2", items[0].ID)

	b.Set(func(b *testutil.Backend) { b.RejectDevices = true })
	assert.Error(t, c.RegisterDeviceToken(ctx, "xyz"))
}

func TestRetryOnRateLimit(t *testing.T) {
	c, b := newClient(t)
	b.Set(func(b *testutil.Backend) { b.RateLimitOnce = true })

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 2, b.Count("GET /v1/health"))
}

func TestUnavailable(t *testing.T) {
	c, b := newClient(t)
	b.Set(func(b *testutil.Backend) { b.Down = true })

	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, api.ErrUnavailable)

	dead := api.NewClient("http://127.0.0.1:1", time.Second)
	assert.ErrorIs(t, dead.Ping(context.Background()), api.ErrUnavailable)
}
