package boxapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/port"
	"github.com/vertextoedge/cloudbox/internal/transfer"
)

// GetFileInfo returns a file's information. When fields are given only
// those fields (plus type, id and etag) are returned.
func (c *Client) GetFileInfo(ctx context.Context, fileID string, fields ...string) (*domain.File, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}

	var file domain.File
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL(fieldsQuery(fields), "files", fileID), nil, &file); err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}
	return &file, nil
}

// UpdateFileInfo updates the set fields of update and returns the new info
func (c *Client) UpdateFileInfo(ctx context.Context, fileID string, update *port.FileUpdate) (*domain.File, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}
	if update == nil || (update.Name == nil && update.Description == nil) {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	if update.Name != nil && *update.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
	}

	var file domain.File
	if err := c.doJSON(ctx, http.MethodPut, c.apiURL(nil, "files", fileID), update, &file); err != nil {
		return nil, fmt.Errorf("update file %s: %w", fileID, err)
	}
	return &file, nil
}

// DownloadFile streams the current version of a file into w
func (c *Client) DownloadFile(ctx context.Context, fileID string, w io.Writer, progress transfer.ProgressFunc) (int64, error) {
	if fileID == "" {
		return 0, fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}

	n, err := c.download(ctx, c.apiURL(nil, "files", fileID, "content"), w, progress)
	if err != nil {
		return n, fmt.Errorf("download file %s: %w", fileID, err)
	}
	return n, nil
}

// UploadFileVersion uploads r as a new version of an existing file
func (c *Client) UploadFileVersion(ctx context.Context, fileID string, r io.Reader, opts *port.UploadOptions) (*domain.File, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}

	attrs := uploadAttributes{ContentModifiedAt: modifiedAt(opts)}

	file, err := c.upload(ctx, c.uploadEndpoint("files", fileID, "content"), attrs, "file", r, opts)
	if err != nil {
		return nil, fmt.Errorf("upload version of file %s: %w", fileID, err)
	}
	return file, nil
}

// CopyFile copies a file into destFolderID. An empty newName keeps the
// original name.
func (c *Client) CopyFile(ctx context.Context, fileID, destFolderID, newName string) (*domain.File, error) {
	if fileID == "" || destFolderID == "" {
		return nil, fmt.Errorf("%w: file id and destination folder are required", domain.ErrInvalidInput)
	}

	body := copyRequest{Parent: parentRef{ID: destFolderID}, Name: newName}

	var file domain.File
	if err := c.doJSON(ctx, http.MethodPost, c.apiURL(nil, "files", fileID, "copy"), body, &file); err != nil {
		return nil, fmt.Errorf("copy file %s: %w", fileID, err)
	}
	return &file, nil
}

// DeleteFile moves a file to the trash
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}

	if err := c.doJSON(ctx, http.MethodDelete, c.apiURL(nil, "files", fileID), nil, nil); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}
