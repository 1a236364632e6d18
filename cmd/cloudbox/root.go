package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/cloudbox/internal/adapter/boxapi"
	"github.com/vertextoedge/cloudbox/internal/adapter/filesystem"
	"github.com/vertextoedge/cloudbox/internal/adapter/sqlite"
	"github.com/vertextoedge/cloudbox/internal/config"
	"github.com/vertextoedge/cloudbox/internal/logger"
	"github.com/vertextoedge/cloudbox/internal/service/transfers"
)

var (
	cfgFile string
	envFile string
	quiet   bool

	// set by the root PersistentPreRunE
	cfg *config.Config
	app *application
)

// application holds the wired components shared by every command
type application struct {
	log       *zap.Logger
	client    *boxapi.Client
	store     *sqlite.Store
	files     *filesystem.Manager
	transfers *transfers.Service
}

var rootCmd = &cobra.Command{
	Use:     "cloudbox",
	Short:   "Transfer files to and from a Box-style content API",
	Version: version,
	Long: `cloudbox uploads, downloads and manages files and file versions on a
Box-style content API. Every upload and download is checksummed and recorded
in a local transfer journal.

Configuration is read from --config and CLOUDBOX_* environment variables,
for example CLOUDBOX_API_ACCESS_TOKEN. Variables may also come from a .env
file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		app, err = newApplication(cfg, logger.GetZapLogger())
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file with CLOUDBOX_* variables (default: ./.env if present)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "hide progress bars")
}

func newApplication(cfg *config.Config, log *zap.Logger) (*application, error) {
	client, err := boxapi.NewClient(boxapi.Config{
		BaseURL:            cfg.API.BaseURL,
		UploadURL:          cfg.API.UploadURL,
		AccessToken:        cfg.API.AccessToken,
		Timeout:            cfg.API.GetTimeout(),
		MaxRetries:         cfg.API.MaxRetries,
		RetryBaseDelay:     cfg.API.GetRetryBaseDelay(),
		MinRequestInterval: cfg.API.GetMinRequestInterval(),
		ChunkSize:          cfg.Transfer.GetChunkSize(),
		UserAgent:          cfg.API.UserAgent,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transfer journal %s: %w", cfg.Database.Path, err)
	}

	files := filesystem.NewManager()

	svc := transfers.NewService(client, store, files, transfers.Config{
		VerifyChecksum:   cfg.Transfer.VerifyChecksum,
		ProgressInterval: cfg.Transfer.GetProgressInterval(),
	}, log)

	log.Debug("cloudbox ready",
		zap.String("version", version),
		zap.String("api", cfg.API.BaseURL),
		zap.String("journal", cfg.Database.Path))

	return &application{
		log:       log,
		client:    client,
		store:     store,
		files:     files,
		transfers: svc,
	}, nil
}

func (a *application) close() {
	if a == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close transfer journal", zap.Error(err))
	}
	_ = logger.Sync()
}

// commandContext returns a context cancelled on SIGINT or SIGTERM
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
