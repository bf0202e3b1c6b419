package model

import (
	"path"
	"strings"
	"time"
)

// RootFolder is the top of every deal's folder tree.
const RootFolder = "/"

// Document is a viewable file stored by the backend.
type Document struct {
	ID        string    `json:"id" db:"id"`
	DealID    string    `json:"deal_id" db:"deal_id"`
	Name      string    `json:"name" db:"name"`
	Folder    string    `json:"folder" db:"folder"`
	MimeType  string    `json:"mime_type" db:"mime_type"`
	SizeBytes int64     `json:"size_bytes" db:"size_bytes"`
	PageCount int       `json:"page_count" db:"page_count"`
	RemoteURL string    `json:"remote_url" db:"remote_url"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// LocalPath is the cached copy on disk, set after a successful download.
	LocalPath *string `json:"-" db:"local_path"`
}

// IsCached reports whether the document has a local copy.
func (d Document) IsCached() bool {
	return d.LocalPath != nil && *d.LocalPath != ""
}

// IsText reports whether the document content can be shown as text.
func (d Document) IsText() bool {
	return strings.HasPrefix(d.MimeType, "text/") ||
		d.MimeType == "application/json" ||
		d.MimeType == "application/xml"
}

// Folder is a node in a deal's document tree.
type Folder struct {
	Path   string `json:"path" db:"path"`
	Name   string `json:"name" db:"name"`
	DealID string `json:"deal_id" db:"deal_id"`
}

// Parent returns the path of the enclosing folder. The root is its own parent.
func (f Folder) Parent() string {
	return ParentFolder(f.Path)
}

// Depth returns how many levels below the root the folder sits.
func (f Folder) Depth() int {
	p := CleanFolder(f.Path)
	if p == RootFolder {
		return 0
	}
	return strings.Count(p, "/")
}

// CleanFolder normalizes a folder path so it always starts with "/"
// and never ends with one (except the root).
func CleanFolder(p string) string {
	if p == "" {
		return RootFolder
	}
	return path.Clean("/" + p)
}

// ParentFolder returns the parent path of p.
func ParentFolder(p string) string {
	return path.Dir(CleanFolder(p))
}

// JoinFolder builds a child path under parent.
func JoinFolder(parent, name string) string {
	return CleanFolder(path.Join(CleanFolder(parent), name))
}

// Annotation is a page-level note on a document.
type Annotation struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	DealID     string    `json:"deal_id" db:"deal_id"`
	Page       int       `json:"page" db:"page"`
	Text       string    `json:"text" db:"text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	// Synced flips to true once the backend confirms the upload.
	Synced bool `json:"-" db:"synced"`
}
