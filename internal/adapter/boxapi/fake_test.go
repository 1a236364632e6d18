package boxapi

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/cloudbox/internal/domain"
)

const testToken = "test-token"

type fakeVersion struct {
	id        string
	content   []byte
	sha1      string
	createdAt time.Time
	trashedAt *time.Time
}

type fakeFile struct {
	id          string
	name        string
	description string
	parentID    string
	versions    []*fakeVersion // oldest first, last is current
}

func (f *fakeFile) current() *fakeVersion {
	return f.versions[len(f.versions)-1]
}

// fakeBox is an in-memory content API
type fakeBox struct {
	mu       sync.Mutex
	srv      *httptest.Server
	nextID   int
	folders  map[string]string
	files    map[string]*fakeFile
	failures []int
	hits     map[string]int

	// pageCap caps the page size of folder listings when non-zero
	pageCap int

	// lastContentType is the Content-Type of the last uploaded file part
	lastContentType string
}

func newFakeBox(t *testing.T) *fakeBox {
	t.Helper()

	fb := &fakeBox{
		nextID:  1000,
		folders: map[string]string{RootFolderID: "All Files", "200": "Destination"},
		files:   make(map[string]*fakeFile),
		hits:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /2.0/users/me", fb.handleMe)
	mux.HandleFunc("GET /2.0/folders/{id}", fb.handleGetFolder)
	mux.HandleFunc("GET /2.0/folders/{id}/items", fb.handleListItems)
	mux.HandleFunc("POST /api/2.0/files/content", fb.handleUpload)
	mux.HandleFunc("POST /api/2.0/files/{id}/content", fb.handleUploadVersion)
	mux.HandleFunc("GET /2.0/files/{id}", fb.handleGetFile)
	mux.HandleFunc("PUT /2.0/files/{id}", fb.handleUpdateFile)
	mux.HandleFunc("DELETE /2.0/files/{id}", fb.handleDeleteFile)
	mux.HandleFunc("GET /2.0/files/{id}/content", fb.handleContent)
	mux.HandleFunc("GET /dl/{id}/{vid}", fb.handleDownload)
	mux.HandleFunc("GET /2.0/files/{id}/versions", fb.handleListVersions)
	mux.HandleFunc("DELETE /2.0/files/{id}/versions/{vid}", fb.handleDeleteVersion)
	mux.HandleFunc("POST /2.0/files/{id}/versions/current", fb.handlePromote)
	mux.HandleFunc("POST /2.0/files/{id}/copy", fb.handleCopy)

	fb.srv = httptest.NewServer(fb.middleware(mux))
	t.Cleanup(fb.srv.Close)
	return fb
}

// newTestClient returns a client wired to a fresh fake server
func newTestClient(t *testing.T) (*Client, *fakeBox) {
	t.Helper()

	fb := newFakeBox(t)
	c, err := NewClient(Config{
		BaseURL:        fb.srv.URL + "/2.0",
		UploadURL:      fb.srv.URL + "/api/2.0",
		AccessToken:    testToken,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		ChunkSize:      4,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c, fb
}

// failNext makes the next n API requests fail with status
func (fb *fakeBox) failNext(status, n int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := 0; i < n; i++ {
		fb.failures = append(fb.failures, status)
	}
}

func (fb *fakeBox) hitCount(key string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hits[key]
}

func (fb *fakeBox) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.hits[r.Method+" "+r.URL.Path]++
		var fail int
		if len(fb.failures) > 0 {
			fail, fb.failures = fb.failures[0], fb.failures[1:]
		}
		fb.mu.Unlock()

		// Download links are pre-signed and carry no token
		if !strings.HasPrefix(r.URL.Path, "/dl/") && r.Header.Get("Authorization") != "Bearer "+testToken {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
			return
		}
		if fail != 0 {
			w.Header().Set("Retry-After", "0")
			writeError(w, fail, "injected", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Box-Request-Id", "req-"+strconv.Itoa(status))
	writeJSON(w, status, APIError{
		Type:      "error",
		Status:    status,
		Code:      code,
		Message:   msg,
		RequestID: "req-" + strconv.Itoa(status),
	})
}

func (fb *fakeBox) newID() string {
	fb.nextID++
	return strconv.Itoa(fb.nextID)
}

func (fb *fakeBox) newVersion(content []byte) *fakeVersion {
	sum := sha1.Sum(content)
	return &fakeVersion{
		id:        fb.newID(),
		content:   content,
		sha1:      hex.EncodeToString(sum[:]),
		createdAt: time.Now().UTC().Truncate(time.Second),
	}
}

// nameTaken must be called with mu held
func (fb *fakeBox) nameTaken(parentID, name, exceptID string) bool {
	for _, f := range fb.files {
		if f.parentID == parentID && f.name == name && f.id != exceptID {
			return true
		}
	}
	return false
}

// fileInfo must be called with mu held
func (fb *fakeBox) fileInfo(f *fakeFile) domain.File {
	cur := f.current()
	return domain.File{
		Type:        domain.ItemTypeFile,
		ID:          f.id,
		ETag:        strconv.Itoa(len(f.versions) - 1),
		SequenceID:  strconv.Itoa(len(f.versions) - 1),
		Name:        f.name,
		Description: f.description,
		Size:        int64(len(cur.content)),
		SHA1:        cur.sha1,
		Parent:      &domain.MiniFolder{Type: domain.ItemTypeFolder, ID: f.parentID, Name: fb.folders[f.parentID]},
		FileVersion: &domain.MiniVersion{Type: domain.ItemTypeFileVersion, ID: cur.id, SHA1: cur.sha1},
		CreatedAt:   &f.versions[0].createdAt,
		ModifiedAt:  &cur.createdAt,
	}
}

func versionInfo(f *fakeFile, v *fakeVersion) domain.FileVersion {
	return domain.FileVersion{
		Type:       domain.ItemTypeFileVersion,
		ID:         v.id,
		SHA1:       v.sha1,
		Name:       f.name,
		Size:       int64(len(v.content)),
		CreatedAt:  &v.createdAt,
		ModifiedAt: &v.createdAt,
		TrashedAt:  v.trashedAt,
	}
}

// lookupFile must be called with mu held
func (fb *fakeBox) lookupFile(w http.ResponseWriter, r *http.Request) *fakeFile {
	f, ok := fb.files[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not Found")
		return nil
	}
	return f
}

func (fb *fakeBox) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.User{Type: "user", ID: "11", Name: "Test User", Login: "test@example.com"})
}

func (fb *fakeBox) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := r.PathValue("id")
	name, ok := fb.folders[id]
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not Found")
		return
	}
	items := fb.folderItems(id)
	writeJSON(w, http.StatusOK, domain.Folder{
		Type: domain.ItemTypeFolder,
		ID:   id,
		Name: name,
		ItemCollection: &domain.ItemCollection{
			TotalCount: len(items),
			Limit:      defaultPageSize,
		},
	})
}

// folderItems must be called with mu held
func (fb *fakeBox) folderItems(folderID string) []domain.Item {
	var items []domain.Item
	for _, f := range fb.files {
		if f.parentID != folderID {
			continue
		}
		items = append(items, domain.Item{Type: domain.ItemTypeFile, ID: f.id, Name: f.name})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (fb *fakeBox) handleListItems(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := r.PathValue("id")
	if _, ok := fb.folders[id]; !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not Found")
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if fb.pageCap > 0 && limit > fb.pageCap {
		limit = fb.pageCap
	}

	items := fb.folderItems(id)
	page := []domain.Item{}
	if offset < len(items) {
		end := offset + limit
		if end > len(items) {
			end = len(items)
		}
		page = items[offset:end]
	}

	writeJSON(w, http.StatusOK, domain.ItemCollection{
		TotalCount: len(items),
		Offset:     offset,
		Limit:      limit,
		Entries:    page,
	})
}

// readUpload parses a multipart upload, requiring attributes before file
func (fb *fakeBox) readUpload(r *http.Request) (uploadAttributes, []byte, string, error) {
	var attrs uploadAttributes

	mr, err := r.MultipartReader()
	if err != nil {
		return attrs, nil, "", err
	}

	part, err := mr.NextPart()
	if err != nil {
		return attrs, nil, "", err
	}
	if part.FormName() != "attributes" {
		return attrs, nil, "", fmt.Errorf("first part is %q, want attributes", part.FormName())
	}
	if err := json.NewDecoder(part).Decode(&attrs); err != nil {
		return attrs, nil, "", err
	}

	part, err = mr.NextPart()
	if err != nil {
		return attrs, nil, "", err
	}
	if part.FormName() != "file" {
		return attrs, nil, "", fmt.Errorf("second part is %q, want file", part.FormName())
	}
	content, err := io.ReadAll(part)
	if err != nil {
		return attrs, nil, "", err
	}
	return attrs, content, part.Header.Get("Content-Type"), nil
}

func (fb *fakeBox) handleUpload(w http.ResponseWriter, r *http.Request) {
	attrs, content, contentType, err := fb.readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if attrs.Parent == nil || attrs.Name == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "missing name or parent")
		return
	}
	if _, ok := fb.folders[attrs.Parent.ID]; !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "parent not found")
		return
	}
	if fb.nameTaken(attrs.Parent.ID, attrs.Name, "") {
		writeError(w, http.StatusConflict, CodeItemNameInUse, "Item with the same name already exists")
		return
	}

	f := &fakeFile{
		id:       fb.newID(),
		name:     attrs.Name,
		parentID: attrs.Parent.ID,
	}
	f.versions = append(f.versions, fb.newVersion(content))
	fb.files[f.id] = f
	fb.lastContentType = contentType

	writeJSON(w, http.StatusCreated, fileCollection{TotalCount: 1, Entries: []domain.File{fb.fileInfo(f)}})
}

func (fb *fakeBox) handleUploadVersion(w http.ResponseWriter, r *http.Request) {
	_, content, contentType, err := fb.readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}
	f.versions = append(f.versions, fb.newVersion(content))
	fb.lastContentType = contentType

	writeJSON(w, http.StatusCreated, fileCollection{TotalCount: 1, Entries: []domain.File{fb.fileInfo(f)}})
}

func (fb *fakeBox) handleGetFile(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}

	fields := r.URL.Query().Get("fields")
	if fields == "" {
		writeJSON(w, http.StatusOK, fb.fileInfo(f))
		return
	}

	// Field selection returns only the requested fields plus the mini
	// representation
	raw, _ := json.Marshal(fb.fileInfo(f))
	var full map[string]any
	_ = json.Unmarshal(raw, &full)

	keep := map[string]bool{"type": true, "id": true, "etag": true}
	for _, name := range strings.Split(fields, ",") {
		keep[name] = true
	}
	for k := range full {
		if !keep[k] {
			delete(full, k)
		}
	}
	writeJSON(w, http.StatusOK, full)
}

func (fb *fakeBox) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	var update struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}
	if update.Name != nil {
		if fb.nameTaken(f.parentID, *update.Name, f.id) {
			writeError(w, http.StatusConflict, CodeItemNameInUse, "Item with the same name already exists")
			return
		}
		f.name = *update.Name
	}
	if update.Description != nil {
		f.description = *update.Description
	}
	writeJSON(w, http.StatusOK, fb.fileInfo(f))
}

func (fb *fakeBox) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}
	delete(fb.files, f.id)
	w.WriteHeader(http.StatusNoContent)
}

func (fb *fakeBox) handleContent(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}

	v := f.current()
	if vid := r.URL.Query().Get("version"); vid != "" {
		v = nil
		for _, candidate := range f.versions {
			if candidate.id == vid && candidate.trashedAt == nil {
				v = candidate
			}
		}
		if v == nil {
			writeError(w, http.StatusNotFound, CodeNotFound, "version not found")
			return
		}
	}

	http.Redirect(w, r, fb.srv.URL+"/dl/"+f.id+"/"+v.id, http.StatusFound)
}

func (fb *fakeBox) handleDownload(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	var content []byte
	if f, ok := fb.files[r.PathValue("id")]; ok {
		for _, v := range f.versions {
			if v.id == r.PathValue("vid") {
				content = v.content
			}
		}
	}
	fb.mu.Unlock()

	if content == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (fb *fakeBox) handleListVersions(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}

	prior := f.versions[:len(f.versions)-1]
	entries := make([]domain.FileVersion, 0, len(prior))
	for i := len(prior) - 1; i >= 0; i-- {
		entries = append(entries, versionInfo(f, prior[i]))
	}
	writeJSON(w, http.StatusOK, versionCollection{
		TotalCount: len(entries),
		Limit:      maxPageSize,
		Entries:    entries,
	})
}

func (fb *fakeBox) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}

	vid := r.PathValue("vid")
	if vid == f.current().id {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "cannot delete the current version")
		return
	}
	for _, v := range f.versions {
		if v.id == vid && v.trashedAt == nil {
			now := time.Now().UTC().Truncate(time.Second)
			v.trashedAt = &now
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, CodeNotFound, "version not found")
}

func (fb *fakeBox) handlePromote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type != domain.ItemTypeFileVersion {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid promote request")
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}
	for _, v := range f.versions[:len(f.versions)-1] {
		if v.id == req.ID && v.trashedAt == nil {
			promoted := fb.newVersion(v.content)
			f.versions = append(f.versions, promoted)
			writeJSON(w, http.StatusCreated, versionInfo(f, promoted))
			return
		}
	}
	writeError(w, http.StatusNotFound, CodeNotFound, "version not found")
}

func (fb *fakeBox) handleCopy(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	f := fb.lookupFile(w, r)
	if f == nil {
		return
	}
	if _, ok := fb.folders[req.Parent.ID]; !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "parent not found")
		return
	}
	name := req.Name
	if name == "" {
		name = f.name
	}
	if fb.nameTaken(req.Parent.ID, name, "") {
		writeError(w, http.StatusConflict, CodeItemNameInUse, "Item with the same name already exists")
		return
	}

	cp := &fakeFile{
		id:          fb.newID(),
		name:        name,
		description: f.description,
		parentID:    req.Parent.ID,
	}
	cp.versions = append(cp.versions, fb.newVersion(f.current().content))
	fb.files[cp.id] = cp

	writeJSON(w, http.StatusCreated, fb.fileInfo(cp))
}
