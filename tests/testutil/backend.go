package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/nhle/dealroom/internal/model"
)

// Backend is an in-memory deal-room backend served over httptest.
// Tests seed it through the exported fields and inspect what the client
// sent. All fields are guarded by Mu.
type Backend struct {
	Server *httptest.Server
	Router *mux.Router

	Mu            sync.Mutex
	Token         string
	Password      string
	Deals         map[string]model.Deal
	Folders       map[string][]model.Folder
	Documents     []model.Document
	Content       map[string][]byte
	Annotations   []model.Annotation
	Devices       []string
	Notifications map[string][]model.NotificationItem
	Uploads       []UploadedFile

	// Down makes every request fail with 503.
	Down bool
	// FailAnnotations makes annotation uploads fail with 500.
	FailAnnotations bool
	// RateLimitOnce answers the next request with 429 and Retry-After: 0.
	RateLimitOnce bool
	// RejectDevices makes device registration fail with 400.
	RejectDevices bool

	Requests []string
}

// UploadedFile is one multipart upload received by the backend.
type UploadedFile struct {
	DealID   string
	Folder   string
	FileName string
	Content  []byte
}

// NewBackend starts a fake backend that accepts the bearer token "test-token"
// and the password "secret". It is closed when the test completes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		Token:         "test-token",
		Password:      "secret",
		Deals:         map[string]model.Deal{},
		Folders:       map[string][]model.Folder{},
		Content:       map[string][]byte{},
		Notifications: map[string][]model.NotificationItem{},
	}

	r := mux.NewRouter()
	r.Use(b.middleware)
	r.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods("GET")
	r.HandleFunc("/v1/auth/sign-in", b.signIn).Methods("POST")
	r.HandleFunc("/v1/auth/refresh", b.refresh).Methods("POST")

	authed := r.NewRoute().Subrouter()
	authed.Use(b.requireToken)
	authed.HandleFunc("/v1/deals", b.listDeals).Methods("GET")
	authed.HandleFunc("/v1/deals/{id}", b.getDeal).Methods("GET")
	authed.HandleFunc("/v1/deals/{id}", b.patchDeal).Methods("PATCH")
	authed.HandleFunc("/v1/deals/{id}/folders", b.listFolders).Methods("GET")
	authed.HandleFunc("/v1/deals/{id}/folders", b.createFolder).Methods("POST")
	authed.HandleFunc("/v1/documents", b.listDocuments).Methods("GET")
	authed.HandleFunc("/v1/documents", b.upload).Methods("POST")
	authed.HandleFunc("/v1/documents/{id}/content", b.content).Methods("GET")
	authed.HandleFunc("/v1/documents/{id}/annotations", b.annotate).Methods("POST")
	authed.HandleFunc("/v1/devices", b.registerDevice).Methods("POST")
	authed.HandleFunc("/v1/devices/{token}/notifications", b.feed).Methods("GET")

	b.Router = r
	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)

	return b
}

// URL returns the backend base URL.
func (b *Backend) URL() string { return b.Server.URL }

// Set runs fn with the backend locked.
func (b *Backend) Set(fn func(b *Backend)) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	fn(b)
}

// Count returns how many requests matched "METHOD /path" (path without query).
func (b *Backend) Count(methodPath string) int {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	n := 0
	for _, r := range b.Requests {
		if r == methodPath {
			n++
		}
	}
	return n
}

func (b *Backend) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.Mu.Lock()
		b.Requests = append(b.Requests, r.Method+" "+r.URL.Path)
		down := b.Down
		limited := b.RateLimitOnce
		b.RateLimitOnce = false
		b.Mu.Unlock()

		if down {
			writeError(w, http.StatusServiceUnavailable, "maintenance")
			return
		}
		if limited {
			w.Header().Set("Retry-After", "0")
			writeError(w, http.StatusTooManyRequests, "slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.Mu.Lock()
		want := "Bearer " + b.Token
		b.Mu.Unlock()
		if r.Header.Get("Authorization") != want {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()
	if req.Password != b.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  b.Token,
		"refresh_token": "refresh-token",
		"expires_at":    time.Now().Add(time.Hour).UTC(),
		"profile":       model.Profile{ID: "u1", Name: "Test User", Email: req.Email},
	})
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken != "refresh-token" {
		writeError(w, http.StatusUnauthorized, "refresh token revoked")
		return
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": b.Token,
		"expires_at":   time.Now().Add(time.Hour).UTC(),
		"profile":      model.Profile{ID: "u1", Name: "Test User"},
	})
}

func (b *Backend) listDeals(w http.ResponseWriter, r *http.Request) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	deals := make([]model.Deal, 0, len(b.Deals))
	for _, d := range b.Deals {
		deals = append(deals, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deals": deals})
}

func (b *Backend) getDeal(w http.ResponseWriter, r *http.Request) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	d, ok := b.Deals[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "deal not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (b *Backend) patchDeal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage model.DealStage `json:"stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := model.ParseDealStage(string(req.Stage)); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()
	id := mux.Vars(r)["id"]
	d, ok := b.Deals[id]
	if !ok {
		writeError(w, http.StatusNotFound, "deal not found")
		return
	}
	d.Stage = req.Stage
	d.UpdatedAt = time.Now().UTC()
	b.Deals[id] = d
	writeJSON(w, http.StatusOK, d)
}

func (b *Backend) listFolders(w http.ResponseWriter, r *http.Request) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"folders": b.Folders[mux.Vars(r)["id"]]})
}

func (b *Backend) createFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent string `json:"parent"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.Contains(req.Name, "/") {
		writeError(w, http.StatusUnprocessableEntity, "invalid folder name")
		return
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()
	dealID := mux.Vars(r)["id"]
	f := model.Folder{Path: model.JoinFolder(req.Parent, req.Name), Name: req.Name, DealID: dealID}
	for _, existing := range b.Folders[dealID] {
		if existing.Path == f.Path {
			writeError(w, http.StatusConflict, "folder exists")
			return
		}
	}
	b.Folders[dealID] = append(b.Folders[dealID], f)
	writeJSON(w, http.StatusCreated, f)
}

func (b *Backend) listDocuments(w http.ResponseWriter, r *http.Request) {
	dealID := r.URL.Query().Get("deal_id")
	folder := r.URL.Query().Get("folder")

	b.Mu.Lock()
	defer b.Mu.Unlock()
	docs := []model.Document{}
	for _, d := range b.Documents {
		if dealID != "" && d.DealID != dealID {
			continue
		}
		if folder != "" && d.Folder != folder {
			continue
		}
		docs = append(docs, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	up := UploadedFile{
		DealID:   r.FormValue("deal_id"),
		Folder:   r.FormValue("folder"),
		FileName: header.Filename,
		Content:  data,
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()
	b.Uploads = append(b.Uploads, up)
	doc := model.Document{
		ID:        "doc-" + header.Filename,
		DealID:    up.DealID,
		Name:      header.Filename,
		Folder:    up.Folder,
		MimeType:  "text/plain",
		SizeBytes: int64(len(data)),
		PageCount: 1,
		UpdatedAt: time.Now().UTC(),
	}
	b.Documents = append(b.Documents, doc)
	b.Content[doc.ID] = data
	writeJSON(w, http.StatusCreated, doc)
}

func (b *Backend) content(w http.ResponseWriter, r *http.Request) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	data, ok := b.Content[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (b *Backend) annotate(w http.ResponseWriter, r *http.Request) {
	var a model.Annotation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.DocumentID = mux.Vars(r)["id"]

	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.FailAnnotations {
		writeError(w, http.StatusInternalServerError, "annotation store offline")
		return
	}
	b.Annotations = append(b.Annotations, a)
	w.WriteHeader(http.StatusCreated)
}

func (b *Backend) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.RejectDevices {
		writeError(w, http.StatusBadRequest, "device rejected")
		return
	}
	b.Devices = append(b.Devices, req.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) feed(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		since = t
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()
	out := []model.NotificationItem{}
	for _, n := range b.Notifications[mux.Vars(r)["token"]] {
		if n.ReceivedAt.After(since) {
			out = append(out, n)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
