package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/vertextoedge/cloudbox/internal/domain"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	faintColor = color.New(color.Faint)
	dirColor   = color.New(color.FgBlue, color.Bold)
)

// printOK writes a success line to w
func printOK(w io.Writer, format string, args ...any) {
	okColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// printError writes err to stderr with a hint for common failures
func printError(err error) {
	errColor.Fprint(os.Stderr, "error: ")
	fmt.Fprintln(os.Stderr, err)

	var hint string
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		hint = "check api.access_token or CLOUDBOX_API_ACCESS_TOKEN"
	case errors.Is(err, domain.ErrChecksumMismatch):
		hint = "the transfer was not kept; retry it"
	case errors.Is(err, domain.ErrConflict):
		hint = "an item with that name already exists in the folder"
	case errors.Is(err, domain.ErrRateLimited):
		hint = "the API is throttling requests; raise api.min_request_interval"
	}
	if hint != "" {
		warnColor.Fprintf(os.Stderr, "hint: %s\n", hint)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return humanize.Time(*t)
}

func formatSize(size int64) string {
	if size < 0 {
		return "?"
	}
	return humanize.Bytes(uint64(size))
}

func printFile(w io.Writer, f *domain.File) {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID\t%s\n", f.ID)
	if f.Name != "" {
		fmt.Fprintf(tw, "Name\t%s\n", f.Name)
	}
	if f.Description != "" {
		fmt.Fprintf(tw, "Description\t%s\n", f.Description)
	}
	if f.Size > 0 {
		fmt.Fprintf(tw, "Size\t%s (%s bytes)\n", humanize.Bytes(uint64(f.Size)), humanize.Comma(f.Size))
	}
	if f.SHA1 != "" {
		fmt.Fprintf(tw, "SHA-1\t%s\n", f.SHA1)
	}
	if v := f.CurrentVersionID(); v != "" {
		fmt.Fprintf(tw, "Version\t%s\n", v)
	}
	if f.Parent != nil {
		fmt.Fprintf(tw, "Folder\t%s %s\n", f.Parent.ID, faintColor.Sprint(f.Parent.Name))
	}
	if f.ModifiedAt != nil {
		fmt.Fprintf(tw, "Modified\t%s\n", formatTime(f.ModifiedAt))
	}
	tw.Flush()
}
