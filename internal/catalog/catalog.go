// Package catalog reads and writes deal-room data through the local cache.
// Reads go to the backend first and are written through to the store; when
// the backend is unreachable the cached copy is served instead. Writes that
// must survive a dropped connection (stage edits, annotations) land in the
// store first and are pushed by the sync worker when the upload fails.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/dealroom/internal/api"
	"github.com/nhle/dealroom/internal/logging"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/store"
)

// Backend is the part of the API client the catalog reads through.
type Backend interface {
	ListDeals(ctx context.Context) ([]model.Deal, error)
	GetDeal(ctx context.Context, id string) (model.Deal, error)
	UpdateDealStage(ctx context.Context, id string, stage model.DealStage) (model.Deal, error)
	ListFolders(ctx context.Context, dealID string) ([]model.Folder, error)
	CreateFolder(ctx context.Context, dealID, parent, name string) (model.Folder, error)
	ListDocuments(ctx context.Context, dealID, folder string) ([]model.Document, error)
	UploadDocument(ctx context.Context, u api.Upload) (model.Document, error)
	DownloadDocument(ctx context.Context, id string, dst io.Writer) (int64, error)
	CreateAnnotation(ctx context.Context, a model.Annotation) error
}

// ErrNotCached is returned when a document is requested offline and no
// local copy exists.
var ErrNotCached = errors.New("document not available offline")

// Catalog is the cache-through data source used by the screens.
type Catalog struct {
	backend  Backend
	store    store.Store
	cacheDir string
	log      logging.Logger
	now      func() time.Time
}

// New creates a Catalog. Downloaded documents are kept under cacheDir.
func New(b Backend, s store.Store, cacheDir string, log logging.Logger) *Catalog {
	return &Catalog{
		backend:  b,
		store:    s,
		cacheDir: cacheDir,
		log:      log.With("component", "catalog"),
		now:      time.Now,
	}
}

// offline reports whether err means the cached copy should be served.
func offline(err error) bool {
	return errors.Is(err, api.ErrUnavailable)
}

// Deals refreshes the deal cache and returns the deals matching f. Locally
// edited deals keep their offline changes.
func (c *Catalog) Deals(ctx context.Context, f store.DealFilter) ([]model.Deal, error) {
	deals, err := c.backend.ListDeals(ctx)
	switch {
	case err == nil:
		if err := c.store.UpsertDeals(ctx, deals); err != nil {
			return nil, fmt.Errorf("caching deals: %w", err)
		}
	case offline(err):
		c.log.Debug(ctx, "serving cached deals", "error", err)
	default:
		return nil, fmt.Errorf("fetching deals: %w", err)
	}
	return c.store.GetDeals(ctx, f)
}

// Deal returns one deal, refreshed from the backend when reachable.
func (c *Catalog) Deal(ctx context.Context, id string) (model.Deal, error) {
	d, err := c.backend.GetDeal(ctx, id)
	switch {
	case err == nil:
		if err := c.store.UpsertDeals(ctx, []model.Deal{d}); err != nil {
			return model.Deal{}, fmt.Errorf("caching deal %s: %w", id, err)
		}
	case offline(err):
	default:
		return model.Deal{}, fmt.Errorf("fetching deal %s: %w", id, err)
	}

	cached, err := c.store.GetDeal(ctx, id)
	if err != nil {
		return model.Deal{}, fmt.Errorf("loading deal %s: %w", id, err)
	}
	return *cached, nil
}

// SetStage records a stage change locally, then tries to push it. The
// returned deal still has HasOfflineChanges set when the push failed for
// any reason other than an auth rejection, which is returned as an error.
func (c *Catalog) SetStage(ctx context.Context, id string, stage model.DealStage) (model.Deal, error) {
	if err := c.store.SetDealStageOffline(ctx, id, stage); err != nil {
		return model.Deal{}, fmt.Errorf("saving stage for deal %s: %w", id, err)
	}

	accepted, err := c.backend.UpdateDealStage(ctx, id, stage)
	if err != nil {
		if api.IsAuthError(err) {
			return model.Deal{}, err
		}
		c.log.Info(ctx, "stage change queued", "deal_id", id, "stage", stage, "error", err)
	} else if err := c.store.MarkDealSynced(ctx, accepted); err != nil {
		return model.Deal{}, fmt.Errorf("saving deal %s: %w", id, err)
	}

	d, err := c.store.GetDeal(ctx, id)
	if err != nil {
		return model.Deal{}, fmt.Errorf("loading deal %s: %w", id, err)
	}
	return *d, nil
}

// Folders returns a deal's folder tree.
func (c *Catalog) Folders(ctx context.Context, dealID string) ([]model.Folder, error) {
	folders, err := c.backend.ListFolders(ctx, dealID)
	switch {
	case err == nil:
		if err := c.store.UpsertFolders(ctx, dealID, folders); err != nil {
			return nil, fmt.Errorf("caching folders: %w", err)
		}
	case offline(err):
	default:
		return nil, fmt.Errorf("fetching folders: %w", err)
	}
	return c.store.GetFolders(ctx, dealID)
}

// CreateFolder creates a folder on the backend. It needs a connection.
func (c *Catalog) CreateFolder(ctx context.Context, dealID, parent, name string) (model.Folder, error) {
	f, err := c.backend.CreateFolder(ctx, dealID, parent, name)
	if err != nil {
		return model.Folder{}, fmt.Errorf("creating folder %q: %w", name, err)
	}
	if err := c.store.UpsertFolders(ctx, dealID, []model.Folder{f}); err != nil {
		c.log.Warn(ctx, "caching new folder failed", "path", f.Path, "error", err)
	}
	return f, nil
}

// Documents returns the documents of a deal folder. dealID and folder may
// be empty to widen the listing.
func (c *Catalog) Documents(ctx context.Context, dealID, folder string) ([]model.Document, error) {
	docs, err := c.backend.ListDocuments(ctx, dealID, folder)
	switch {
	case err == nil:
		if err := c.store.UpsertDocuments(ctx, docs); err != nil {
			return nil, fmt.Errorf("caching documents: %w", err)
		}
	case offline(err):
	default:
		return nil, fmt.Errorf("fetching documents: %w", err)
	}
	return c.store.GetDocuments(ctx, store.DocumentFilter{DealID: dealID, Folder: folder})
}

// Upload sends the file at path to the backend into a deal folder.
func (c *Catalog) Upload(ctx context.Context, dealID, folder, path string) (model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	doc, err := c.backend.UploadDocument(ctx, api.Upload{
		DealID:   dealID,
		Folder:   folder,
		FileName: filepath.Base(path),
		Content:  f,
	})
	if err != nil {
		return model.Document{}, fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}
	if err := c.store.UpsertDocuments(ctx, []model.Document{doc}); err != nil {
		c.log.Warn(ctx, "caching uploaded document failed", "document_id", doc.ID, "error", err)
	}
	c.log.Info(ctx, "document uploaded", "document_id", doc.ID, "deal_id", dealID, "folder", folder)
	return doc, nil
}

// Open returns a document and its content, downloading it into the cache
// when no local copy exists.
func (c *Catalog) Open(ctx context.Context, docID string) (model.Document, []byte, error) {
	doc, err := c.store.GetDocument(ctx, docID)
	if err != nil {
		return model.Document{}, nil, fmt.Errorf("loading document %s: %w", docID, err)
	}

	if doc.IsCached() {
		data, err := os.ReadFile(*doc.LocalPath)
		if err == nil {
			return *doc, data, nil
		}
		c.log.Warn(ctx, "cached copy unreadable, downloading again", "path", *doc.LocalPath, "error", err)
	}

	path, err := c.download(ctx, *doc)
	if err != nil {
		if offline(err) {
			return *doc, nil, ErrNotCached
		}
		return *doc, nil, err
	}
	if err := c.store.SetDocumentLocalPath(ctx, doc.ID, path); err != nil {
		return *doc, nil, fmt.Errorf("recording cached copy: %w", err)
	}
	doc.LocalPath = &path

	data, err := os.ReadFile(path)
	if err != nil {
		return *doc, nil, fmt.Errorf("reading cached copy: %w", err)
	}
	return *doc, data, nil
}

// download writes the document content to the cache and returns its path.
func (c *Catalog) download(ctx context.Context, doc model.Document) (string, error) {
	dir := filepath.Join(c.cacheDir, "documents", doc.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "download-*")
	if err != nil {
		return "", fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := c.backend.DownloadDocument(ctx, doc.ID, tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("downloading %s: %w", doc.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing cache file: %w", err)
	}

	name := doc.Name
	if name == "" {
		name = doc.ID
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("storing cache file: %w", err)
	}
	return path, nil
}

// Annotations returns the locally known annotations of a document.
func (c *Catalog) Annotations(ctx context.Context, docID string) ([]model.Annotation, error) {
	return c.store.GetAnnotations(ctx, docID)
}

// SaveAnnotation persists a new annotation unsynced, then tries to upload
// it. Only a local persist failure is returned; a failed upload leaves the
// annotation pending for the sync worker.
func (c *Catalog) SaveAnnotation(ctx context.Context, a model.Annotation) (model.Annotation, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = c.now().UTC()
	}
	a.Synced = false

	if err := c.store.SaveAnnotation(ctx, a); err != nil {
		return model.Annotation{}, fmt.Errorf("saving annotation: %w", err)
	}

	if err := c.backend.CreateAnnotation(ctx, a); err != nil {
		c.log.Info(ctx, "annotation queued for sync", "annotation_id", a.ID, "error", err)
		return a, nil
	}
	if err := c.store.MarkAnnotationSynced(ctx, a.ID); err != nil {
		c.log.Warn(ctx, "marking annotation synced failed", "annotation_id", a.ID, "error", err)
		return a, nil
	}
	a.Synced = true
	return a, nil
}

// DiscardAnnotation deletes an annotation that never reached the backend.
func (c *Catalog) DiscardAnnotation(ctx context.Context, id string) error {
	if err := c.store.DiscardAnnotation(ctx, id); err != nil {
		return fmt.Errorf("discarding annotation %s: %w", id, err)
	}
	return nil
}
