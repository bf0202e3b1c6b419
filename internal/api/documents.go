package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/nhle/dealroom/internal/model"
)

type foldersResponse struct {
	Folders []model.Folder `json:"folders"`
}

// ListFolders returns the folder tree of a deal.
func (c *Client) ListFolders(ctx context.Context, dealID string) ([]model.Folder, error) {
	var resp foldersResponse
	if err := c.getJSON(ctx, "/v1/deals/"+url.PathEscape(dealID)+"/folders", &resp); err != nil {
		return nil, fmt.Errorf("listing folders of deal %s: %w", dealID, err)
	}
	return resp.Folders, nil
}

type createFolderRequest struct {
	Parent string `json:"parent"`
	Name   string `json:"name"`
}

// CreateFolder creates name under parent in a deal's tree.
func (c *Client) CreateFolder(ctx context.Context, dealID, parent, name string) (model.Folder, error) {
	var f model.Folder
	err := c.sendJSON(ctx, http.MethodPost, "/v1/deals/"+url.PathEscape(dealID)+"/folders",
		createFolderRequest{Parent: model.CleanFolder(parent), Name: name}, &f)
	if err != nil {
		return model.Folder{}, fmt.Errorf("creating folder %q: %w", name, err)
	}
	return f, nil
}

type documentsResponse struct {
	Documents []model.Document `json:"documents"`
}

// ListDocuments returns documents in folder, scoped to dealID when set.
func (c *Client) ListDocuments(ctx context.Context, dealID, folder string) ([]model.Document, error) {
	q := url.Values{}
	if dealID != "" {
		q.Set("deal_id", dealID)
	}
	if folder != "" {
		q.Set("folder", model.CleanFolder(folder))
	}
	path := "/v1/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp documentsResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return resp.Documents, nil
}

// Upload is one file sent to UploadDocument.
type Upload struct {
	DealID   string
	Folder   string
	FileName string
	Content  io.Reader
}

// UploadDocument sends a file as multipart/form-data and returns the
// created document.
func (c *Client) UploadDocument(ctx context.Context, u Upload) (model.Document, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("deal_id", u.DealID); err != nil {
		return model.Document{}, fmt.Errorf("encoding upload: %w", err)
	}
	if err := w.WriteField("folder", model.CleanFolder(u.Folder)); err != nil {
		return model.Document{}, fmt.Errorf("encoding upload: %w", err)
	}
	part, err := w.CreateFormFile("file", filepath.Base(u.FileName))
	if err != nil {
		return model.Document{}, fmt.Errorf("encoding upload: %w", err)
	}
	if _, err := io.Copy(part, u.Content); err != nil {
		return model.Document{}, fmt.Errorf("reading %s: %w", u.FileName, err)
	}
	if err := w.Close(); err != nil {
		return model.Document{}, fmt.Errorf("encoding upload: %w", err)
	}

	var doc model.Document
	_, err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/v1/documents",
		raw:         buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, &doc)
	if err != nil {
		return model.Document{}, fmt.Errorf("uploading %s: %w", u.FileName, err)
	}
	return doc, nil
}

// DownloadDocument writes the content of a document to dst.
func (c *Client) DownloadDocument(ctx context.Context, id string, dst io.Writer) (int64, error) {
	body, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/documents/" + url.PathEscape(id) + "/content",
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("downloading document %s: %w", id, err)
	}
	n, err := io.Copy(dst, bytes.NewReader(body))
	if err != nil {
		return n, fmt.Errorf("writing document %s: %w", id, err)
	}
	return n, nil
}

type createAnnotationRequest struct {
	ID     string `json:"id"`
	DealID string `json:"deal_id"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

// CreateAnnotation uploads an annotation. The client-generated ID makes
// repeated uploads of the same annotation idempotent on the server.
func (c *Client) CreateAnnotation(ctx context.Context, a model.Annotation) error {
	err := c.sendJSON(ctx, http.MethodPost,
		"/v1/documents/"+url.PathEscape(a.DocumentID)+"/annotations",
		createAnnotationRequest{ID: a.ID, DealID: a.DealID, Page: a.Page, Text: a.Text}, nil)
	if err != nil {
		return fmt.Errorf("saving annotation: %w", err)
	}
	return nil
}
