package boxapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/port"
)

// ListItemsOptions contains options for listing folder items
type ListItemsOptions struct {
	Offset int
	Limit  int      // page size, capped at 1000
	Fields []string // fields to return for each item
}

// GetFolderInfo returns a folder's information
func (c *Client) GetFolderInfo(ctx context.Context, folderID string, fields ...string) (*domain.Folder, error) {
	if folderID == "" {
		return nil, fmt.Errorf("%w: folder id is required", domain.ErrInvalidInput)
	}

	var folder domain.Folder
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL(fieldsQuery(fields), "folders", folderID), nil, &folder); err != nil {
		return nil, fmt.Errorf("get folder %s: %w", folderID, err)
	}
	return &folder, nil
}

// ListFolderItems returns one page of a folder's items
func (c *Client) ListFolderItems(ctx context.Context, folderID string, opts *ListItemsOptions) (*domain.ItemCollection, error) {
	if folderID == "" {
		return nil, fmt.Errorf("%w: folder id is required", domain.ErrInvalidInput)
	}

	params := url.Values{}
	limit := defaultPageSize
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
		if len(opts.Fields) > 0 {
			params.Set("fields", fieldsQuery(opts.Fields).Get("fields"))
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	params.Set("limit", strconv.Itoa(limit))

	var items domain.ItemCollection
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL(params, "folders", folderID, "items"), nil, &items); err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}
	return &items, nil
}

// ListAllFolderItems pages through every item in a folder
func (c *Client) ListAllFolderItems(ctx context.Context, folderID string, fields ...string) ([]domain.Item, error) {
	var all []domain.Item
	offset := 0

	for {
		page, err := c.ListFolderItems(ctx, folderID, &ListItemsOptions{
			Offset: offset,
			Limit:  maxPageSize,
			Fields: fields,
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page.Entries...)
		offset += len(page.Entries)

		if len(page.Entries) == 0 || offset >= page.TotalCount {
			return all, nil
		}
	}
}

// FolderContains reports whether the folder directly contains the item
func (c *Client) FolderContains(ctx context.Context, folderID, itemID string) (bool, error) {
	items, err := c.ListAllFolderItems(ctx, folderID)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.ID == itemID {
			return true, nil
		}
	}
	return false, nil
}

// UploadFile uploads r as a new file named name in the folder
func (c *Client) UploadFile(ctx context.Context, folderID, name string, r io.Reader, opts *port.UploadOptions) (*domain.File, error) {
	if folderID == "" || name == "" {
		return nil, fmt.Errorf("%w: folder id and name are required", domain.ErrInvalidInput)
	}

	attrs := uploadAttributes{
		Name:              name,
		Parent:            &parentRef{ID: folderID},
		ContentModifiedAt: modifiedAt(opts),
	}

	file, err := c.upload(ctx, c.uploadEndpoint("files", "content"), attrs, name, r, opts)
	if err != nil {
		return nil, fmt.Errorf("upload %q to folder %s: %w", name, folderID, err)
	}
	return file, nil
}
