package domain

import "time"

// Direction is the direction of a transfer
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// TransferStatus represents the state of a journaled transfer
type TransferStatus string

const (
	TransferStatusInProgress TransferStatus = "in_progress"
	TransferStatusCompleted  TransferStatus = "completed"
	TransferStatusFailed     TransferStatus = "failed"
)

// TransferRecord is the journal entry for a single upload or download
type TransferRecord struct {
	ID               string
	Direction        Direction
	FileID           string
	VersionID        string
	Name             string
	LocalPath        string
	BytesTransferred int64
	TotalBytes       int64
	SHA1             string
	Status           TransferStatus
	LastError        string
	StartedAt        time.Time
	FinishedAt       *time.Time
}

// Complete marks the transfer as completed
func (r *TransferRecord) Complete(bytes int64, sha1 string) {
	now := time.Now()
	r.Status = TransferStatusCompleted
	r.BytesTransferred = bytes
	r.SHA1 = sha1
	r.LastError = ""
	r.FinishedAt = &now
}

// Fail marks the transfer as failed with the given error
func (r *TransferRecord) Fail(bytes int64, err error) {
	now := time.Now()
	r.Status = TransferStatusFailed
	r.BytesTransferred = bytes
	if err != nil {
		r.LastError = err.Error()
	}
	r.FinishedAt = &now
}

// IsFinished returns true if the transfer completed or failed
func (r *TransferRecord) IsFinished() bool {
	return r.Status == TransferStatusCompleted || r.Status == TransferStatusFailed
}

// Duration returns how long the transfer took, or zero if still running
func (r *TransferRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TransferStats summarizes the journal
type TransferStats struct {
	Completed       int64
	Failed          int64
	InProgress      int64
	BytesUploaded   int64
	BytesDownloaded int64
}
