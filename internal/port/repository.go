package port

import (
	"context"
	"time"

	"github.com/vertextoedge/cloudbox/internal/domain"
)

// TransferRepository defines the interface for the transfer journal
type TransferRepository interface {
	// CreateTransfer records a new in-progress transfer and assigns its ID
	CreateTransfer(ctx context.Context, rec *domain.TransferRecord) error

	// SetTransferFileID records the remote file and version of a transfer
	SetTransferFileID(ctx context.Context, id, fileID, versionID string) error

	// FinishTransfer stores the outcome of a transfer
	// A nil transferErr marks it completed
	FinishTransfer(ctx context.Context, id string, bytes int64, sha1 string, transferErr error) error

	// GetTransfer returns a transfer by ID
	GetTransfer(ctx context.Context, id string) (*domain.TransferRecord, error)

	// ListTransfers returns the most recent transfers, newest first
	ListTransfers(ctx context.Context, limit int) ([]*domain.TransferRecord, error)

	// GetTransferStats returns aggregate counters over all transfers
	GetTransferStats(ctx context.Context) (*domain.TransferStats, error)

	// CleanupTransfers removes finished transfers older than the given age
	// Returns the number of records deleted
	CleanupTransfers(ctx context.Context, olderThan time.Duration) (int64, error)
}
