package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressUI renders transfer progress as a terminal progress bar. It
// implements the client's progress reporter interface.
type ProgressUI struct {
	bar       *progressbar.ProgressBar
	operation string // "Uploading" or "Downloading"
}

// NewProgressUI creates a new progress UI
func NewProgressUI() *ProgressUI {
	return &ProgressUI{}
}

// Start initializes the progress bar for a file transfer
func (p *ProgressUI) Start(action, filename string, totalBytes int64) {
	switch action {
	case "upload":
		p.operation = "Uploading"
	case "download":
		p.operation = "Downloading"
	default:
		p.operation = action
	}

	p.bar = progressbar.NewOptions64(totalBytes,
		progressbar.OptionSetDescription(fmt.Sprintf("%s %s", p.operation, filename)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}

// Update moves the progress bar to the cumulative byte count
func (p *ProgressUI) Update(bytesDone int64) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Set64(bytesDone)
}

// Done finishes the progress bar; an aborted transfer leaves the bar where
// the stream stopped
func (p *ProgressUI) Done(err error) {
	if p.bar == nil {
		return
	}
	if err == nil {
		_ = p.bar.Finish()
	}
	fmt.Fprintln(os.Stderr)
}
