package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/cloudbox/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// Interval is how often Start prunes
	Interval time.Duration

	// HistoryRetention is how long finished transfers stay in the journal
	HistoryRetention time.Duration

	// PartialMaxAge is the age after which abandoned partial downloads are removed
	PartialMaxAge time.Duration

	// PartialDirs are the directories scanned for partial downloads
	PartialDirs []string
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:         time.Hour,
		HistoryRetention: 30 * 24 * time.Hour,
		PartialMaxAge:    24 * time.Hour,
	}
}

// Report summarizes one prune pass
type Report struct {
	TransfersRemoved int64
	PartialsRemoved  int
}

// Service prunes the transfer journal and abandoned partial downloads
type Service struct {
	config  *Config
	journal port.TransferRepository
	files   port.LocalFiles
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, journal port.TransferRepository, files port.LocalFiles, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.HistoryRetention == 0 {
		cfg.HistoryRetention = 30 * 24 * time.Hour
	}
	if cfg.PartialMaxAge == 0 {
		cfg.PartialMaxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:  cfg,
		journal: journal,
		files:   files,
		logger:  logger,
	}
}

// Prune runs a single pass. Errors from individual steps are joined
// after every step has run.
func (s *Service) Prune(ctx context.Context) (*Report, error) {
	report := &Report{}
	var errs []error

	removed, err := s.journal.CleanupTransfers(ctx, s.config.HistoryRetention)
	if err != nil {
		s.logger.Error("failed to prune transfer history", zap.Error(err))
		errs = append(errs, fmt.Errorf("prune history: %w", err))
	} else {
		report.TransfersRemoved = removed
		if removed > 0 {
			s.logger.Info("pruned transfer history",
				zap.Int64("count", removed),
				zap.Duration("retention", s.config.HistoryRetention))
		}
	}

	for _, dir := range s.config.PartialDirs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		count, err := s.files.CleanPartialFiles(dir, s.config.PartialMaxAge)
		report.PartialsRemoved += count
		if err != nil {
			s.logger.Error("failed to clean partial files", zap.String("dir", dir), zap.Error(err))
			errs = append(errs, fmt.Errorf("clean partial files in %s: %w", dir, err))
			continue
		}
		if count > 0 {
			s.logger.Info("removed abandoned partial files",
				zap.String("dir", dir),
				zap.Int("count", count))
		}
	}

	return report, errors.Join(errs...)
}

// Start prunes every Interval until ctx is cancelled or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("history_retention", s.config.HistoryRetention))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are logged by Prune
			_, _ = s.Prune(ctx)
		}
	}
}
