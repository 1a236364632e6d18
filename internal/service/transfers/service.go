package transfers

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/port"
	"github.com/vertextoedge/cloudbox/internal/transfer"
	"github.com/vertextoedge/cloudbox/internal/util/ratelimiter"
)

// Config contains transfer service configuration
type Config struct {
	// VerifyChecksum compares the local SHA-1 with the server's after
	// every transfer
	VerifyChecksum bool

	// ProgressInterval is the minimum spacing between progress log entries
	ProgressInterval time.Duration
}

// Result describes a finished transfer
type Result struct {
	Transfer *domain.TransferRecord

	// File is the stored file, set for uploads
	File *domain.File
}

// Service moves files between the local filesystem and the content API,
// verifying checksums and journaling every transfer
type Service struct {
	client  port.ContentClient
	journal port.TransferRepository
	files   port.LocalFiles
	config  Config
	logger  *zap.Logger
}

// NewService creates a new transfer Service
func NewService(
	client port.ContentClient,
	journal port.TransferRepository,
	files port.LocalFiles,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:  client,
		journal: journal,
		files:   files,
		config:  cfg,
		logger:  logger,
	}
}

// Upload uploads the file at localPath into folderID. An empty name uses
// the local file name.
func (s *Service) Upload(ctx context.Context, folderID, localPath, name string, progress transfer.ProgressFunc) (*Result, error) {
	if name == "" {
		name = filepath.Base(localPath)
	}

	rec := &domain.TransferRecord{
		Direction: domain.DirectionUpload,
		Name:      name,
		LocalPath: localPath,
	}

	return s.upload(ctx, rec, progress, func(r io.Reader, opts *port.UploadOptions) (*domain.File, error) {
		return s.client.UploadFile(ctx, folderID, name, r, opts)
	})
}

// UploadVersion uploads the file at localPath as a new version of fileID
func (s *Service) UploadVersion(ctx context.Context, fileID, localPath string, progress transfer.ProgressFunc) (*Result, error) {
	rec := &domain.TransferRecord{
		Direction: domain.DirectionUpload,
		FileID:    fileID,
		Name:      filepath.Base(localPath),
		LocalPath: localPath,
	}

	return s.upload(ctx, rec, progress, func(r io.Reader, opts *port.UploadOptions) (*domain.File, error) {
		return s.client.UploadFileVersion(ctx, fileID, r, opts)
	})
}

type uploadFunc func(r io.Reader, opts *port.UploadOptions) (*domain.File, error)

func (s *Service) upload(ctx context.Context, rec *domain.TransferRecord, progress transfer.ProgressFunc, send uploadFunc) (*Result, error) {
	src, info, err := s.files.Open(rec.LocalPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	rec.TotalBytes = info.Size()
	if err := s.journal.CreateTransfer(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to journal transfer: %w", err)
	}

	s.logger.Info("upload started",
		zap.String("transfer_id", rec.ID),
		zap.String("path", rec.LocalPath),
		zap.String("name", rec.Name),
		zap.String("size", humanize.Bytes(uint64(info.Size()))))

	h := sha1.New()
	obs := s.newObserver(rec, progress)
	modTime := info.ModTime()

	file, err := send(io.TeeReader(src, h), &port.UploadOptions{
		Size:              info.Size(),
		Progress:          obs.observe,
		ContentModifiedAt: &modTime,
	})
	sent := obs.transferred.Load()
	if err != nil {
		s.finish(ctx, rec, sent, "", err)
		return nil, err
	}

	// Empty files never reach the observer
	if sent == 0 {
		sent = info.Size()
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if rec.FileID == "" {
		rec.FileID = file.ID
	}
	rec.VersionID = file.CurrentVersionID()
	if err := s.journal.SetTransferFileID(ctx, rec.ID, rec.FileID, rec.VersionID); err != nil {
		s.logger.Warn("failed to journal remote file id",
			zap.String("transfer_id", rec.ID),
			zap.Error(err))
	}

	if err := s.verify(sum, file.SHA1); err != nil {
		s.logger.Warn("uploaded content does not match local file",
			zap.String("transfer_id", rec.ID),
			zap.String("file_id", file.ID),
			zap.String("local_sha1", sum),
			zap.String("remote_sha1", file.SHA1))
		s.finish(ctx, rec, sent, sum, err)
		return nil, err
	}

	s.finish(ctx, rec, sent, sum, nil)
	return &Result{Transfer: rec, File: file}, nil
}

// Download downloads fileID into localPath. An empty versionID downloads
// the current version. When localPath is a directory the remote name is
// used inside it.
func (s *Service) Download(ctx context.Context, fileID, versionID, localPath string, progress transfer.ProgressFunc) (*Result, error) {
	rec := &domain.TransferRecord{
		Direction: domain.DirectionDownload,
		FileID:    fileID,
		VersionID: versionID,
		LocalPath: localPath,
	}

	expected, err := s.resolveDownload(ctx, rec)
	if err != nil {
		return nil, err
	}

	if s.files.IsDir(rec.LocalPath) {
		rec.LocalPath = filepath.Join(rec.LocalPath, rec.Name)
	}

	dst, partialPath, err := s.files.CreatePartial(rec.LocalPath)
	if err != nil {
		return nil, err
	}

	if err := s.checkSpace(partialPath, rec.TotalBytes); err != nil {
		dst.Close()
		s.discard(partialPath)
		return nil, err
	}

	if err := s.journal.CreateTransfer(ctx, rec); err != nil {
		dst.Close()
		s.discard(partialPath)
		return nil, fmt.Errorf("failed to journal transfer: %w", err)
	}

	s.logger.Info("download started",
		zap.String("transfer_id", rec.ID),
		zap.String("file_id", rec.FileID),
		zap.String("version_id", rec.VersionID),
		zap.String("path", rec.LocalPath))

	h := sha1.New()
	obs := s.newObserver(rec, progress)
	n, err := s.fetch(ctx, rec, versionID, io.MultiWriter(dst, h), obs.observe)
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close partial file: %w", closeErr)
	}
	if err != nil {
		s.discard(partialPath)
		s.finish(ctx, rec, n, "", err)
		return nil, err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if err := s.verify(expected, sum); err != nil {
		s.discard(partialPath)
		s.finish(ctx, rec, n, sum, err)
		return nil, err
	}

	if err := s.files.Commit(partialPath, rec.LocalPath); err != nil {
		s.discard(partialPath)
		s.finish(ctx, rec, n, sum, err)
		return nil, err
	}

	s.finish(ctx, rec, n, sum, nil)
	return &Result{Transfer: rec}, nil
}

// resolveDownload fills in name, size and version of rec and returns the
// expected SHA-1
func (s *Service) resolveDownload(ctx context.Context, rec *domain.TransferRecord) (string, error) {
	if rec.VersionID == "" {
		info, err := s.client.GetFileInfo(ctx, rec.FileID, "name", "size", "sha1", "file_version")
		if err != nil {
			return "", err
		}
		rec.Name = info.Name
		rec.TotalBytes = info.Size
		rec.VersionID = info.CurrentVersionID()
		return info.SHA1, nil
	}

	versions, err := s.client.ListFileVersions(ctx, rec.FileID)
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		if v.ID != rec.VersionID {
			continue
		}
		if v.IsTrashed() {
			return "", fmt.Errorf("%w: version %s of file %s is deleted", domain.ErrNotFound, v.ID, rec.FileID)
		}
		rec.Name = v.Name
		rec.TotalBytes = v.Size
		return v.SHA1, nil
	}

	// The version list holds prior versions only
	info, err := s.client.GetFileInfo(ctx, rec.FileID, "name", "size", "sha1", "file_version")
	if err != nil {
		return "", err
	}
	if info.CurrentVersionID() != rec.VersionID {
		return "", fmt.Errorf("%w: version %s of file %s", domain.ErrNotFound, rec.VersionID, rec.FileID)
	}
	rec.Name = info.Name
	rec.TotalBytes = info.Size
	return info.SHA1, nil
}

func (s *Service) fetch(ctx context.Context, rec *domain.TransferRecord, versionID string, w io.Writer, progress transfer.ProgressFunc) (int64, error) {
	if versionID == "" {
		return s.client.DownloadFile(ctx, rec.FileID, w, progress)
	}
	return s.client.DownloadFileVersion(ctx, rec.FileID, versionID, w, progress)
}

// checkSpace fails when the volume holding path cannot fit size bytes
func (s *Service) checkSpace(path string, size int64) error {
	if size <= 0 {
		return nil
	}

	usage, err := s.files.GetDiskUsage(filepath.Dir(path))
	if err != nil {
		s.logger.Warn("failed to check free space", zap.String("path", path), zap.Error(err))
		return nil
	}
	if usage.Free < uint64(size) {
		return fmt.Errorf("%w: need %s, %s free", domain.ErrInsufficientSpace,
			humanize.Bytes(uint64(size)), humanize.Bytes(usage.Free))
	}
	return nil
}

// verify compares digests when verification is on and both are known
func (s *Service) verify(expected, actual string) error {
	if !s.config.VerifyChecksum || expected == "" || actual == "" {
		return nil
	}
	if expected != actual {
		return &domain.ChecksumError{Expected: expected, Actual: actual}
	}
	return nil
}

func (s *Service) discard(partialPath string) {
	if err := s.files.Discard(partialPath); err != nil {
		s.logger.Warn("failed to remove partial file",
			zap.String("path", partialPath),
			zap.Error(err))
	}
}

// finish journals the outcome and logs it
func (s *Service) finish(ctx context.Context, rec *domain.TransferRecord, bytes int64, sum string, transferErr error) {
	if transferErr != nil {
		rec.Fail(bytes, transferErr)
	} else {
		rec.Complete(bytes, sum)
	}

	// The journal must record the outcome even when ctx was cancelled
	if err := s.journal.FinishTransfer(context.WithoutCancel(ctx), rec.ID, bytes, sum, transferErr); err != nil {
		s.logger.Warn("failed to journal transfer outcome",
			zap.String("transfer_id", rec.ID),
			zap.Error(err))
	}

	if transferErr != nil {
		s.logger.Error("transfer failed",
			zap.String("transfer_id", rec.ID),
			zap.String("direction", string(rec.Direction)),
			zap.Int64("bytes", bytes),
			zap.Error(transferErr))
		return
	}

	s.logger.Info("transfer complete",
		zap.String("transfer_id", rec.ID),
		zap.String("direction", string(rec.Direction)),
		zap.String("file_id", rec.FileID),
		zap.String("size", humanize.Bytes(uint64(bytes))),
		zap.String("sha1", sum),
		zap.Duration("elapsed", rec.Duration()))
}

// History returns the most recent transfers
func (s *Service) History(ctx context.Context, limit int) ([]*domain.TransferRecord, error) {
	return s.journal.ListTransfers(ctx, limit)
}

// Stats returns aggregate transfer counters
func (s *Service) Stats(ctx context.Context) (*domain.TransferStats, error) {
	return s.journal.GetTransferStats(ctx)
}

// progressObserver tracks progress for one transfer, throttles progress
// logs and forwards every update to the caller
type progressObserver struct {
	rec         *domain.TransferRecord
	caller      transfer.ProgressFunc
	limiter     *ratelimiter.Limiter
	logger      *zap.Logger
	transferred atomic.Int64
}

func (s *Service) newObserver(rec *domain.TransferRecord, caller transfer.ProgressFunc) *progressObserver {
	return &progressObserver{
		rec:     rec,
		caller:  caller,
		limiter: ratelimiter.New(s.config.ProgressInterval),
		logger:  s.logger,
	}
}

func (o *progressObserver) observe(transferred, total int64) {
	o.transferred.Store(transferred)

	if ok, _ := o.limiter.Allow(); ok {
		fields := []zap.Field{
			zap.String("transfer_id", o.rec.ID),
			zap.String("transferred", humanize.Bytes(uint64(transferred))),
		}
		if total > 0 {
			fields = append(fields,
				zap.String("total", humanize.Bytes(uint64(total))),
				zap.String("percent", fmt.Sprintf("%.1f", float64(transferred)/float64(total)*100)))
		}
		o.logger.Debug("transfer progress", fields...)
	}

	if o.caller != nil {
		o.caller(transferred, total)
	}
}
