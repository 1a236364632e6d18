package port

import (
	"context"
	"io"
	"time"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/transfer"
)

// UploadOptions controls a streaming upload
type UploadOptions struct {
	// Size is the payload length reported to the progress observer. Zero
	// means unknown.
	Size int64

	// Progress is called after each chunk is sent
	Progress transfer.ProgressFunc

	// ContentModifiedAt is recorded as the content modification time
	ContentModifiedAt *time.Time
}

// FileUpdate holds the mutable file fields. Nil fields are left unchanged.
type FileUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ContentClient defines the interface for the cloud content API
type ContentClient interface {
	// GetCurrentUser returns the user that owns the credentials
	GetCurrentUser(ctx context.Context) (*domain.User, error)

	// GetFolderInfo returns a folder's information
	GetFolderInfo(ctx context.Context, folderID string, fields ...string) (*domain.Folder, error)

	// ListAllFolderItems returns every item directly inside a folder
	ListAllFolderItems(ctx context.Context, folderID string, fields ...string) ([]domain.Item, error)

	// FolderContains reports whether a folder directly contains an item
	FolderContains(ctx context.Context, folderID, itemID string) (bool, error)

	// UploadFile uploads a new file into a folder
	UploadFile(ctx context.Context, folderID, name string, r io.Reader, opts *UploadOptions) (*domain.File, error)

	// GetFileInfo returns a file's information, optionally limited to fields
	GetFileInfo(ctx context.Context, fileID string, fields ...string) (*domain.File, error)

	// UpdateFileInfo changes a file's name or description
	UpdateFileInfo(ctx context.Context, fileID string, update *FileUpdate) (*domain.File, error)

	// DownloadFile streams the current content of a file into w
	// Returns: bytes written, error
	DownloadFile(ctx context.Context, fileID string, w io.Writer, progress transfer.ProgressFunc) (int64, error)

	// UploadFileVersion uploads new content for an existing file
	UploadFileVersion(ctx context.Context, fileID string, r io.Reader, opts *UploadOptions) (*domain.File, error)

	// CopyFile copies a file into another folder
	CopyFile(ctx context.Context, fileID, destFolderID, newName string) (*domain.File, error)

	// DeleteFile deletes a file
	DeleteFile(ctx context.Context, fileID string) error

	// ListFileVersions returns the prior versions of a file, newest first
	ListFileVersions(ctx context.Context, fileID string) ([]domain.FileVersion, error)

	// DownloadFileVersion streams a prior version of a file into w
	DownloadFileVersion(ctx context.Context, fileID, versionID string, w io.Writer, progress transfer.ProgressFunc) (int64, error)

	// DeleteFileVersion deletes a prior version
	DeleteFileVersion(ctx context.Context, fileID, versionID string) error

	// PromoteFileVersion makes a prior version current again
	PromoteFileVersion(ctx context.Context, fileID, versionID string) (*domain.FileVersion, error)
}
