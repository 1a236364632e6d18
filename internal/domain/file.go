package domain

import (
	"time"
)

// Item types returned in folder listings
const (
	ItemTypeFile        = "file"
	ItemTypeFolder      = "folder"
	ItemTypeWebLink     = "web_link"
	ItemTypeFileVersion = "file_version"
)

// MiniFolder is the abbreviated folder representation embedded in other resources
type MiniFolder struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	ETag string `json:"etag,omitempty"`
}

// MiniVersion is the abbreviated version representation attached to a file
type MiniVersion struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id"`
	SHA1 string `json:"sha1,omitempty"`
}

// File represents a file resource. Only the fields requested from (and
// returned by) the server are populated.
type File struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	ETag        string       `json:"etag,omitempty"`
	SequenceID  string       `json:"sequence_id,omitempty"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	Size        int64        `json:"size,omitempty"`
	SHA1        string       `json:"sha1,omitempty"`
	Parent      *MiniFolder  `json:"parent,omitempty"`
	FileVersion *MiniVersion `json:"file_version,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	ModifiedAt  *time.Time   `json:"modified_at,omitempty"`
}

// CurrentVersionID returns the ID of the current version, if known
func (f *File) CurrentVersionID() string {
	if f.FileVersion == nil {
		return ""
	}
	return f.FileVersion.ID
}

// FileVersion is an immutable snapshot of a file's content, identified by
// its SHA-1 digest
type FileVersion struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	SHA1       string     `json:"sha1"`
	Name       string     `json:"name,omitempty"`
	Size       int64      `json:"size"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	TrashedAt  *time.Time `json:"trashed_at,omitempty"`
}

// IsTrashed returns true if the version has been deleted
func (v *FileVersion) IsTrashed() bool {
	return v.TrashedAt != nil
}

// Folder represents a folder resource
type Folder struct {
	Type           string          `json:"type"`
	ID             string          `json:"id"`
	ETag           string          `json:"etag,omitempty"`
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Size           int64           `json:"size,omitempty"`
	Parent         *MiniFolder     `json:"parent,omitempty"`
	ItemCollection *ItemCollection `json:"item_collection,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
	ModifiedAt     *time.Time      `json:"modified_at,omitempty"`
}

// Item is a single entry in a folder listing
type Item struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	ETag string `json:"etag,omitempty"`
	Size int64  `json:"size,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
}

// IsFile returns true if the item is a file
func (i *Item) IsFile() bool {
	return i.Type == ItemTypeFile
}

// IsFolder returns true if the item is a folder
func (i *Item) IsFolder() bool {
	return i.Type == ItemTypeFolder
}

// ItemCollection is one page of folder items
type ItemCollection struct {
	TotalCount int    `json:"total_count"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
	Entries    []Item `json:"entries"`
}

// User represents the account that owns an access token
type User struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
}
