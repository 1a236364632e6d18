package main

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/vertextoedge/cloudbox/internal/transfer"
)

// progressBar renders transfer progress on stderr
type progressBar struct {
	bar *progressbar.ProgressBar
}

// newProgressBar returns a bar for one transfer, or nil when progress is hidden
func newProgressBar(description string, total int64) *progressBar {
	if quiet {
		return nil
	}
	if total <= 0 {
		total = -1
	}

	return &progressBar{
		bar: progressbar.NewOptions64(total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() {
				os.Stderr.WriteString("\n")
			}),
		),
	}
}

// observe is a transfer.ProgressFunc
func (p *progressBar) observe(transferred, total int64) {
	if total != transfer.UnknownTotal && total != p.bar.GetMax64() {
		p.bar.ChangeMax64(total)
	}
	_ = p.bar.Set64(transferred)
}

// Observer returns the progress callback, nil when progress is hidden
func (p *progressBar) Observer() transfer.ProgressFunc {
	if p == nil {
		return nil
	}
	return p.observe
}

// Done finishes the bar after a successful transfer
func (p *progressBar) Done() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}

// Abort leaves the bar where it stopped
func (p *progressBar) Abort() {
	if p == nil {
		return
	}
	_ = p.bar.Exit()
	os.Stderr.WriteString("\n")
}
