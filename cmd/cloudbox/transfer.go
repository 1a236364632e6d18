package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/service/transfers"
)

type uploadFlags struct {
	Folder string
	Name   string
}

var upFlags uploadFlags

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a local file into a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		path := args[0]
		name := upFlags.Name
		if name == "" {
			name = filepath.Base(path)
		}

		bar := newProgressBar("Uploading "+name, localSize(path))
		result, err := app.transfers.Upload(ctx, upFlags.Folder, path, name, bar.Observer())
		if err != nil {
			bar.Abort()
			return err
		}
		bar.Done()

		printTransfer(cmd, result)
		return nil
	},
}

var uploadVersionCmd = &cobra.Command{
	Use:   "upload-version <file-id> <path>",
	Short: "Upload a local file as a new version of an existing file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		fileID, path := args[0], args[1]

		bar := newProgressBar("Uploading "+filepath.Base(path), localSize(path))
		result, err := app.transfers.UploadVersion(ctx, fileID, path, bar.Observer())
		if err != nil {
			bar.Abort()
			return err
		}
		bar.Done()

		printTransfer(cmd, result)
		return nil
	},
}

var downloadVersion string

var downloadCmd = &cobra.Command{
	Use:   "download <file-id> [path]",
	Short: "Download a file, or one of its versions",
	Long: `Download a file into path. When path is a directory (the default is the
current directory) the remote file name is used. Content is written to
<path>.partial and moved into place only after its SHA-1 checks out.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		dest := "."
		if len(args) == 2 {
			dest = args[1]
		}

		bar := newProgressBar("Downloading "+args[0], 0)
		result, err := app.transfers.Download(ctx, args[0], downloadVersion, dest, bar.Observer())
		if err != nil {
			bar.Abort()
			return err
		}
		bar.Done()

		printTransfer(cmd, result)
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transfers from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		records, err := app.transfers.History(ctx, historyLimit)
		if err != nil {
			return err
		}
		stats, err := app.transfers.Stats(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := newTable(out)
		fmt.Fprintln(tw, "STARTED\tDIRECTION\tSTATUS\tSIZE\tFILE\tPATH")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				humanize.Time(rec.StartedAt),
				rec.Direction,
				statusLabel(rec),
				formatSize(rec.BytesTransferred),
				rec.FileID,
				rec.LocalPath)
		}
		tw.Flush()

		fmt.Fprintf(out, "\n%s completed, %s failed, %s in progress; %s up, %s down\n",
			humanize.Comma(stats.Completed),
			humanize.Comma(stats.Failed),
			humanize.Comma(stats.InProgress),
			humanize.Bytes(uint64(stats.BytesUploaded)),
			humanize.Bytes(uint64(stats.BytesDownloaded)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd, uploadVersionCmd, downloadCmd, historyCmd)

	uploadCmd.Flags().StringVarP(&upFlags.Folder, "folder", "f", "0", "destination folder id")
	uploadCmd.Flags().StringVarP(&upFlags.Name, "name", "n", "", "remote file name (default: local name)")

	downloadCmd.Flags().StringVar(&downloadVersion, "version", "", "version id to download (prior or current)")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of transfers to show")
}

func localSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func statusLabel(rec *domain.TransferRecord) string {
	switch rec.Status {
	case domain.TransferStatusCompleted:
		return okColor.Sprint(rec.Status)
	case domain.TransferStatusFailed:
		return errColor.Sprint(rec.Status)
	default:
		return warnColor.Sprint(rec.Status)
	}
}

func printTransfer(cmd *cobra.Command, result *transfers.Result) {
	rec := result.Transfer
	verb := "Uploaded"
	if rec.Direction == domain.DirectionDownload {
		verb = "Downloaded"
	}

	printOK(cmd.OutOrStdout(), "%s %s (%s in %s)", verb, rec.Name,
		formatSize(rec.BytesTransferred), rec.Duration().Round(time.Millisecond))

	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintf(tw, "  File\t%s\n", rec.FileID)
	if rec.VersionID != "" {
		fmt.Fprintf(tw, "  Version\t%s\n", rec.VersionID)
	}
	fmt.Fprintf(tw, "  Local\t%s\n", rec.LocalPath)
	fmt.Fprintf(tw, "  SHA-1\t%s\n", rec.SHA1)
	tw.Flush()
}
