package port

import (
	"io"
	"os"
	"time"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// LocalFiles defines the interface for local filesystem operations
type LocalFiles interface {
	// Open opens a regular file for reading
	// Returns: reader, file info, error
	Open(path string) (io.ReadCloser, os.FileInfo, error)

	// IsDir reports whether path is an existing directory
	IsDir(path string) bool

	// CreatePartial creates the temporary file a download is written to
	// Returns: writer, partial path, error
	CreatePartial(path string) (io.WriteCloser, string, error)

	// Commit moves a finished partial file into place
	Commit(partialPath, path string) error

	// Discard removes a partial file
	Discard(partialPath string) error

	// GetDiskUsage returns disk usage statistics for the volume holding dir
	GetDiskUsage(dir string) (*DiskUsage, error)

	// CleanPartialFiles removes partial files under dir older than the given age
	// Returns the number of files deleted
	CleanPartialFiles(dir string, olderThan time.Duration) (int, error)
}
