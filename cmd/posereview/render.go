// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ManuGH/posereview/internal/apperr"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/model"
	"github.com/ManuGH/posereview/internal/processing"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// renderer presents machine transitions: a progress bar on a terminal,
// throttled log lines otherwise.
type renderer struct {
	mu        sync.Mutex
	out       io.Writer
	bar       *progressbar.ProgressBar
	logger    zerolog.Logger
	sometimes rate.Sometimes
	last      processing.Status
	lines     int
}

func newRenderer(out io.Writer, tty bool, fileName string) *renderer {
	r := &renderer{
		out:       out,
		logger:    xglog.WithComponent("cli"),
		sometimes: rate.Sometimes{First: 1, Interval: time.Second},
		last:      processing.StatusIdle,
	}
	if tty {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("uploading "+fileName),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

// observe is a processing.Listener.
func (r *renderer) observe(s processing.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch s.Status {
	case processing.StatusUploading:
		if r.bar != nil {
			_ = r.bar.Set(s.Progress)
			return
		}
		progress := s.Progress
		r.sometimes.Do(func() {
			r.lines++
			r.logger.Info().
				Str(xglog.FieldEvent, "cli.progress").
				Int(xglog.FieldProgress, progress).
				Msg("uploading")
		})
		if progress == 100 && r.last == processing.StatusUploading {
			r.logger.Info().
				Str(xglog.FieldEvent, "cli.uploaded").
				Msg("upload finished, waiting for pose estimation")
		}
	case processing.StatusCompleted, processing.StatusError, processing.StatusIdle:
		r.finishLocked()
	}
	r.last = s.Status
}

func (r *renderer) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked()
}

func (r *renderer) finishLocked() {
	if r.bar != nil && !r.bar.IsFinished() {
		_ = r.bar.Finish()
	}
}

func printResult(w io.Writer, res model.ProcessResult) {
	m := res.VideoMeta
	fmt.Fprintf(w, "Pose estimation completed\n")
	fmt.Fprintf(w, "  Result URL:      %s\n", res.SignedURL)
	fmt.Fprintf(w, "  Resolution:      %dx%d @ %.2f fps\n", m.Width, m.Height, m.FPS)
	fmt.Fprintf(w, "  Duration:        %.1fs\n", m.DurationSec)
	fmt.Fprintf(w, "  Audio:           %t\n", m.HasAudio)
	fmt.Fprintf(w, "  Poses detected:  %d\n", res.TotalPoses)
	fmt.Fprintf(w, "  Processing time: %.1fs\n", res.ProcessingTimeSec)
}

func printError(w io.Writer, locale string, e *apperr.AppError) {
	msg := apperr.LocalizedUserMessage(apperr.ParseLocale(locale), e.Code)
	fmt.Fprintf(w, "%s\n", msg)
	fmt.Fprintf(w, "  code: %s", e.Code)
	if e.Status != 0 {
		fmt.Fprintf(w, " (HTTP %d)", e.Status)
	}
	fmt.Fprintln(w)
	if e.Message != "" && e.Message != msg {
		fmt.Fprintf(w, "  detail: %s\n", e.Message)
	}
}
