package store

import (
	"context"
	"errors"

	"github.com/nhle/dealroom/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DealFilter controls filtering for deal queries.
type DealFilter struct {
	Stage       *model.DealStage
	Query       string // matched against the deal name
	OfflineOnly bool   // only deals with unreconciled local edits
}

// DocumentFilter scopes document queries. Empty fields match everything.
type DocumentFilter struct {
	DealID string
	Folder string
}

// Store defines the local persistence for the client: a cache of backend
// records plus the data that only lives on this device.
type Store interface {
	// === Deals ===

	UpsertDeals(ctx context.Context, deals []model.Deal) error
	GetDeals(ctx context.Context, f DealFilter) ([]model.Deal, error)
	GetDeal(ctx context.Context, id string) (*model.Deal, error)
	SetDealStageOffline(ctx context.Context, id string, stage model.DealStage) error
	MarkDealSynced(ctx context.Context, d model.Deal) error

	// === Documents and folders ===

	UpsertDocuments(ctx context.Context, docs []model.Document) error
	GetDocuments(ctx context.Context, f DocumentFilter) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	SetDocumentLocalPath(ctx context.Context, id, path string) error
	UpsertFolders(ctx context.Context, dealID string, folders []model.Folder) error
	GetFolders(ctx context.Context, dealID string) ([]model.Folder, error)

	// === Annotations ===

	SaveAnnotation(ctx context.Context, a model.Annotation) error
	GetAnnotations(ctx context.Context, documentID string) ([]model.Annotation, error)
	PendingAnnotations(ctx context.Context) ([]model.Annotation, error)
	MarkAnnotationSynced(ctx context.Context, id string) error
	DiscardAnnotation(ctx context.Context, id string) error

	// === Notifications and device metadata ===

	SaveNotificationSnapshot(ctx context.Context, items []model.NotificationItem, token string) error
	LoadNotificationSnapshot(ctx context.Context) ([]model.NotificationItem, string, error)
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	InstallID(ctx context.Context) (string, error)

	Close() error
}
