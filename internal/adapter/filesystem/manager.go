package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/port"
)

// PartialSuffix is appended to the destination path while a download runs
const PartialSuffix = ".partial"

// Manager handles local filesystem operations
type Manager struct{}

// Ensure Manager implements port.LocalFiles
var _ port.LocalFiles = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager() *Manager {
	return &Manager{}
}

// Open opens a regular file for reading
func (m *Manager) Open(path string) (io.ReadCloser, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrNotAFile, path)
	}

	return f, info, nil
}

// IsDir reports whether path is an existing directory
func (m *Manager) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CreatePartial creates path+PartialSuffix, truncating any leftover from
// an earlier attempt
func (m *Manager) CreatePartial(path string) (io.WriteCloser, string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is a directory", domain.ErrNotAFile, path)
	}

	if err := m.EnsureDir(path); err != nil {
		return nil, "", fmt.Errorf("failed to create parent dir: %w", err)
	}

	partialPath := path + PartialSuffix
	f, err := os.Create(partialPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create partial file: %w", err)
	}
	return f, partialPath, nil
}

// Commit renames a partial file to its final path
func (m *Manager) Commit(partialPath, path string) error {
	if err := os.Rename(partialPath, path); err != nil {
		return fmt.Errorf("failed to rename partial file: %w", err)
	}
	return nil
}

// Discard removes a partial file
func (m *Manager) Discard(partialPath string) error {
	if err := os.Remove(partialPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete partial file: %w", err)
	}
	return nil
}

// EnsureDir ensures the directory for a file path exists
func (m *Manager) EnsureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return os.MkdirAll(dir, 0755)
}

// CleanPartialFiles removes partial files older than the specified duration
func (m *Manager) CleanPartialFiles(dir string, olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, PartialSuffix) {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}
