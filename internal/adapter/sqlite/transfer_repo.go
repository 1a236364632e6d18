package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vertextoedge/cloudbox/internal/domain"
)

const transferColumns = `id, direction, file_id, version_id, name, local_path,
	bytes_transferred, total_bytes, sha1, status, last_error, started_at, finished_at`

// CreateTransfer records a new in-progress transfer and assigns its ID
func (s *Store) CreateTransfer(ctx context.Context, rec *domain.TransferRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	rec.Status = domain.TransferStatusInProgress

	query := `
		INSERT INTO transfers (
			id, direction, file_id, version_id, name, local_path,
			total_bytes, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, string(rec.Direction), rec.FileID, rec.VersionID, rec.Name, rec.LocalPath,
		rec.TotalBytes, string(rec.Status), rec.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// FinishTransfer stores the outcome of a transfer. A nil transferErr marks
// it completed, anything else marks it failed with the error text.
func (s *Store) FinishTransfer(ctx context.Context, id string, bytes int64, sha1 string, transferErr error) error {
	status := domain.TransferStatusCompleted
	var lastError sql.NullString
	if transferErr != nil {
		status = domain.TransferStatusFailed
		lastError = sql.NullString{String: transferErr.Error(), Valid: true}
	}

	query := `
		UPDATE transfers
		SET status = ?,
			bytes_transferred = ?,
			sha1 = ?,
			last_error = ?,
			finished_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(status), bytes, sha1, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finish transfer: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
	}
	return nil
}

// SetTransferFileID records the remote file once an upload has created it
func (s *Store) SetTransferFileID(ctx context.Context, id, fileID, versionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transfers SET file_id = ?, version_id = ? WHERE id = ?`,
		fileID, versionID, id)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	return nil
}

// GetTransfer retrieves a transfer by ID
func (s *Store) GetTransfer(ctx context.Context, id string) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = ?`

	rec, err := scanTransfer(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTransfers returns up to limit transfers, most recent first
func (s *Store) ListTransfers(ctx context.Context, limit int) ([]*domain.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + transferColumns + `
		FROM transfers
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetTransferStats returns aggregate counters over the journal
func (s *Store) GetTransferStats(ctx context.Context) (*domain.TransferStats, error) {
	query := `
		SELECT direction, status, COUNT(*), COALESCE(SUM(bytes_transferred), 0)
		FROM transfers
		GROUP BY direction, status
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.TransferStats{}
	for rows.Next() {
		var direction, status string
		var count, bytes int64
		if err := rows.Scan(&direction, &status, &count, &bytes); err != nil {
			return nil, err
		}

		switch domain.TransferStatus(status) {
		case domain.TransferStatusCompleted:
			stats.Completed += count
			if domain.Direction(direction) == domain.DirectionUpload {
				stats.BytesUploaded += bytes
			} else {
				stats.BytesDownloaded += bytes
			}
		case domain.TransferStatusFailed:
			stats.Failed += count
		case domain.TransferStatusInProgress:
			stats.InProgress += count
		}
	}

	return stats, rows.Err()
}

// CleanupTransfers deletes finished transfers older than the given age
// Returns the number of records deleted
func (s *Store) CleanupTransfers(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM transfers
		WHERE status != 'in_progress'
		  AND finished_at IS NOT NULL
		  AND finished_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up transfers: %w", err)
	}

	return result.RowsAffected()
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row scanner) (*domain.TransferRecord, error) {
	rec := &domain.TransferRecord{}
	var direction, status string
	var lastError sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &direction, &rec.FileID, &rec.VersionID, &rec.Name, &rec.LocalPath,
		&rec.BytesTransferred, &rec.TotalBytes, &rec.SHA1, &status, &lastError,
		&rec.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Direction = domain.Direction(direction)
	rec.Status = domain.TransferStatus(status)
	if lastError.Valid {
		rec.LastError = lastError.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}

	return rec, nil
}
