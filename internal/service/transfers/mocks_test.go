package transfers

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/port"
	"github.com/vertextoedge/cloudbox/internal/transfer"
)

// testExecutor moves 4 bytes per chunk so observers see several calls
var testExecutor = transfer.New(4)

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

type mockFile struct {
	name     string
	versions [][]byte // oldest first, last is current
}

func versionID(fileID string, index int) string {
	return fileID + "-v" + strconv.Itoa(index)
}

// mockContentClient implements port.ContentClient for testing
type mockContentClient struct {
	mu     sync.Mutex
	files  map[string]*mockFile
	nextID int

	// uploadSHA1 overrides the digest reported for uploads when set
	uploadSHA1 string
	// infoSHA1 overrides the digest reported by GetFileInfo when set
	infoSHA1 string
	// downloadErr fails downloads after half the content is written
	downloadErr error
}

func newMockContentClient() *mockContentClient {
	return &mockContentClient{files: make(map[string]*mockFile), nextID: 100}
}

func (m *mockContentClient) addFile(name string, versions ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := strconv.Itoa(m.nextID)
	f := &mockFile{name: name}
	for _, v := range versions {
		f.versions = append(f.versions, []byte(v))
	}
	m.files[id] = f
	return id
}

func (m *mockContentClient) fileInfo(id string) *domain.File {
	f := m.files[id]
	cur := f.versions[len(f.versions)-1]
	sum := sha1Hex(cur)
	return &domain.File{
		Type:        domain.ItemTypeFile,
		ID:          id,
		Name:        f.name,
		Size:        int64(len(cur)),
		SHA1:        sum,
		FileVersion: &domain.MiniVersion{ID: versionID(id, len(f.versions)-1), SHA1: sum},
	}
}

func (m *mockContentClient) receive(r io.Reader, opts *port.UploadOptions) ([]byte, error) {
	total := transfer.UnknownTotal
	var progress transfer.ProgressFunc
	if opts != nil {
		if opts.Size > 0 {
			total = opts.Size
		}
		progress = opts.Progress
	}

	var buf bytes.Buffer
	if _, err := testExecutor.Copy(&buf, r, total, progress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *mockContentClient) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	return &domain.User{ID: "1", Login: "test@example.com"}, nil
}

func (m *mockContentClient) GetFolderInfo(ctx context.Context, folderID string, fields ...string) (*domain.Folder, error) {
	return &domain.Folder{ID: folderID}, nil
}

func (m *mockContentClient) ListAllFolderItems(ctx context.Context, folderID string, fields ...string) ([]domain.Item, error) {
	return nil, nil
}

func (m *mockContentClient) FolderContains(ctx context.Context, folderID, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[itemID]
	return ok, nil
}

func (m *mockContentClient) UploadFile(ctx context.Context, folderID, name string, r io.Reader, opts *port.UploadOptions) (*domain.File, error) {
	content, err := m.receive(r, opts)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	id := m.addFile(name, string(content))

	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.fileInfo(id)
	if m.uploadSHA1 != "" {
		info.SHA1 = m.uploadSHA1
	}
	return info, nil
}

func (m *mockContentClient) GetFileInfo(ctx context.Context, fileID string, fields ...string) (*domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[fileID]; !ok {
		return nil, fmt.Errorf("get file %s: %w", fileID, domain.ErrNotFound)
	}
	info := m.fileInfo(fileID)
	if m.infoSHA1 != "" {
		info.SHA1 = m.infoSHA1
	}
	return info, nil
}

func (m *mockContentClient) UpdateFileInfo(ctx context.Context, fileID string, update *port.FileUpdate) (*domain.File, error) {
	return nil, nil
}

func (m *mockContentClient) download(w io.Writer, content []byte, progress transfer.ProgressFunc) (int64, error) {
	if m.downloadErr != nil {
		n, _ := testExecutor.Copy(w, bytes.NewReader(content[:len(content)/2]), int64(len(content)), progress)
		return n, m.downloadErr
	}
	return testExecutor.Copy(w, bytes.NewReader(content), int64(len(content)), progress)
}

func (m *mockContentClient) DownloadFile(ctx context.Context, fileID string, w io.Writer, progress transfer.ProgressFunc) (int64, error) {
	m.mu.Lock()
	f, ok := m.files[fileID]
	m.mu.Unlock()
	if !ok {
		return 0, domain.ErrNotFound
	}
	return m.download(w, f.versions[len(f.versions)-1], progress)
}

func (m *mockContentClient) UploadFileVersion(ctx context.Context, fileID string, r io.Reader, opts *port.UploadOptions) (*domain.File, error) {
	content, err := m.receive(r, opts)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	f.versions = append(f.versions, content)
	info := m.fileInfo(fileID)
	if m.uploadSHA1 != "" {
		info.SHA1 = m.uploadSHA1
	}
	return info, nil
}

func (m *mockContentClient) CopyFile(ctx context.Context, fileID, destFolderID, newName string) (*domain.File, error) {
	return nil, nil
}

func (m *mockContentClient) DeleteFile(ctx context.Context, fileID string) error {
	return nil
}

func (m *mockContentClient) ListFileVersions(ctx context.Context, fileID string) ([]domain.FileVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	var versions []domain.FileVersion
	for i := len(f.versions) - 2; i >= 0; i-- {
		versions = append(versions, domain.FileVersion{
			Type: domain.ItemTypeFileVersion,
			ID:   versionID(fileID, i),
			SHA1: sha1Hex(f.versions[i]),
			Name: f.name,
			Size: int64(len(f.versions[i])),
		})
	}
	return versions, nil
}

func (m *mockContentClient) DownloadFileVersion(ctx context.Context, fileID, vid string, w io.Writer, progress transfer.ProgressFunc) (int64, error) {
	m.mu.Lock()
	f, ok := m.files[fileID]
	m.mu.Unlock()
	if !ok {
		return 0, domain.ErrNotFound
	}
	for i, content := range f.versions {
		if versionID(fileID, i) == vid {
			return m.download(w, content, progress)
		}
	}
	return 0, domain.ErrNotFound
}

func (m *mockContentClient) DeleteFileVersion(ctx context.Context, fileID, versionID string) error {
	return nil
}

func (m *mockContentClient) PromoteFileVersion(ctx context.Context, fileID, versionID string) (*domain.FileVersion, error) {
	return nil, nil
}

// mockJournal implements port.TransferRepository for testing
type mockJournal struct {
	mu        sync.Mutex
	records   map[string]*domain.TransferRecord
	order     []string
	createErr error
}

func newMockJournal() *mockJournal {
	return &mockJournal{records: make(map[string]*domain.TransferRecord)}
}

func (m *mockJournal) CreateTransfer(ctx context.Context, rec *domain.TransferRecord) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = "t" + strconv.Itoa(len(m.order)+1)
	rec.Status = domain.TransferStatusInProgress
	rec.StartedAt = time.Now().Add(time.Duration(len(m.order)) * time.Millisecond)
	stored := *rec
	m.records[rec.ID] = &stored
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *mockJournal) SetTransferFileID(ctx context.Context, id, fileID, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return domain.ErrTransferNotFound
	}
	rec.FileID = fileID
	rec.VersionID = versionID
	return nil
}

func (m *mockJournal) FinishTransfer(ctx context.Context, id string, bytes int64, sum string, transferErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return domain.ErrTransferNotFound
	}
	if transferErr != nil {
		rec.Fail(bytes, transferErr)
	} else {
		rec.Complete(bytes, sum)
	}
	return nil
}

func (m *mockJournal) GetTransfer(ctx context.Context, id string) (*domain.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return rec, nil
}

func (m *mockJournal) ListTransfers(ctx context.Context, limit int) ([]*domain.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]*domain.TransferRecord, 0, len(m.order))
	for _, id := range m.order {
		records = append(records, m.records[id])
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartedAt.After(records[j].StartedAt) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *mockJournal) GetTransferStats(ctx context.Context) (*domain.TransferStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &domain.TransferStats{}
	for _, rec := range m.records {
		switch rec.Status {
		case domain.TransferStatusCompleted:
			stats.Completed++
			if rec.Direction == domain.DirectionUpload {
				stats.BytesUploaded += rec.BytesTransferred
			} else {
				stats.BytesDownloaded += rec.BytesTransferred
			}
		case domain.TransferStatusFailed:
			stats.Failed++
		default:
			stats.InProgress++
		}
	}
	return stats, nil
}

func (m *mockJournal) CleanupTransfers(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func (m *mockJournal) only(t testing.TB) *domain.TransferRecord {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.order) != 1 {
		t.Fatalf("journal has %d records, want 1", len(m.order))
	}
	return m.records[m.order[0]]
}
