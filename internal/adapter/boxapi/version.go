package boxapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/transfer"
)

// ListFileVersions returns the prior versions of a file, newest first.
// The current version is not included.
func (c *Client) ListFileVersions(ctx context.Context, fileID string) ([]domain.FileVersion, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}

	var versions []domain.FileVersion
	offset := 0

	for {
		params := url.Values{
			"limit":  {strconv.Itoa(maxPageSize)},
			"fields": {"sha1,name,size,created_at,modified_at,trashed_at"},
		}
		if offset > 0 {
			params.Set("offset", strconv.Itoa(offset))
		}

		var page versionCollection
		if err := c.doJSON(ctx, http.MethodGet, c.apiURL(params, "files", fileID, "versions"), nil, &page); err != nil {
			return nil, fmt.Errorf("list versions of file %s: %w", fileID, err)
		}

		versions = append(versions, page.Entries...)
		offset += len(page.Entries)

		if len(page.Entries) == 0 || offset >= page.TotalCount {
			return versions, nil
		}
	}
}

// DownloadFileVersion streams a specific version of a file into w
func (c *Client) DownloadFileVersion(ctx context.Context, fileID, versionID string, w io.Writer, progress transfer.ProgressFunc) (int64, error) {
	if fileID == "" || versionID == "" {
		return 0, fmt.Errorf("%w: file id and version id are required", domain.ErrInvalidInput)
	}

	urlStr := c.apiURL(url.Values{"version": {versionID}}, "files", fileID, "content")
	n, err := c.download(ctx, urlStr, w, progress)
	if err != nil {
		return n, fmt.Errorf("download version %s of file %s: %w", versionID, fileID, err)
	}
	return n, nil
}

// DeleteFileVersion moves a prior version to the trash
func (c *Client) DeleteFileVersion(ctx context.Context, fileID, versionID string) error {
	if fileID == "" || versionID == "" {
		return fmt.Errorf("%w: file id and version id are required", domain.ErrInvalidInput)
	}

	if err := c.doJSON(ctx, http.MethodDelete, c.apiURL(nil, "files", fileID, "versions", versionID), nil, nil); err != nil {
		return fmt.Errorf("delete version %s of file %s: %w", versionID, fileID, err)
	}
	return nil
}

// PromoteFileVersion makes a copy of a prior version the current version
// and returns the newly created version
func (c *Client) PromoteFileVersion(ctx context.Context, fileID, versionID string) (*domain.FileVersion, error) {
	if fileID == "" || versionID == "" {
		return nil, fmt.Errorf("%w: file id and version id are required", domain.ErrInvalidInput)
	}

	body := promoteRequest{Type: domain.ItemTypeFileVersion, ID: versionID}

	var version domain.FileVersion
	if err := c.doJSON(ctx, http.MethodPost, c.apiURL(nil, "files", fileID, "versions", "current"), body, &version); err != nil {
		return nil, fmt.Errorf("promote version %s of file %s: %w", versionID, fileID, err)
	}
	return &version, nil
}
