package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/cloudbox/internal/service/maintenance"
)

type pruneFlags struct {
	Dirs          []string
	PartialMaxAge time.Duration
	Every         time.Duration
}

var prFlags pruneFlags

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old journal entries and abandoned partial downloads",
	Long: `Remove finished transfers older than transfer.history_retention from the
journal, and *.partial files older than --partial-age from the given
directories. With --every the prune repeats until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		svc := maintenance.New(&maintenance.Config{
			Interval:         prFlags.Every,
			HistoryRetention: cfg.Transfer.GetHistoryRetention(),
			PartialMaxAge:    prFlags.PartialMaxAge,
			PartialDirs:      prFlags.Dirs,
		}, app.store, app.files, app.log)

		report, err := svc.Prune(ctx)
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "Removed %d journal entries and %d partial files",
			report.TransfersRemoved, report.PartialsRemoved)

		if prFlags.Every <= 0 {
			return nil
		}

		app.log.Info("pruning periodically", zap.Duration("every", prFlags.Every))
		return svc.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringSliceVarP(&prFlags.Dirs, "dir", "d", nil, "directory to scan for partial downloads (repeatable)")
	pruneCmd.Flags().DurationVar(&prFlags.PartialMaxAge, "partial-age", 24*time.Hour, "minimum age of partial files to remove")
	pruneCmd.Flags().DurationVar(&prFlags.Every, "every", 0, "repeat the prune at this interval")
}
