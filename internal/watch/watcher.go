// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watch feeds settled video files from a directory to a handler, one
// at a time.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/metrics"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultSettle is how long a file must go without write events before it is
// handed over.
const DefaultSettle = 2 * time.Second

// ErrNoHandler is returned by New when Options.Handler is nil.
var ErrNoHandler = errors.New("watch: handler is required")

// Handler processes one settled file. Errors are logged and do not stop the
// watcher.
type Handler func(ctx context.Context, path string) error

// Options configures a Watcher. Settle defaults to DefaultSettle.
type Options struct {
	Dir        string
	Extensions []string // lowercase with leading dot; empty accepts every file
	Settle     time.Duration
	// Existing queues files already present in Dir at start.
	Existing bool
	Handler  Handler
}

// Watcher hands settled files in one directory to a Handler, one at a time.
type Watcher struct {
	dir        string
	extensions []string
	settle     time.Duration
	existing   bool
	handler    Handler
	logger     zerolog.Logger

	// seen holds the size and mtime a path had when it was last handed over.
	seen map[string]fileStamp
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

func New(opts Options) (*Watcher, error) {
	if opts.Handler == nil {
		return nil, ErrNoHandler
	}
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", opts.Dir)
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	exts := make([]string, 0, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts = append(exts, strings.ToLower(e))
	}
	return &Watcher{
		dir:        filepath.Clean(opts.Dir),
		extensions: exts,
		settle:     settle,
		existing:   opts.Existing,
		handler:    opts.Handler,
		logger:     xglog.WithComponent("watch"),
		seen:       make(map[string]fileStamp),
	}, nil
}

// Run watches until ctx is done. Handler calls never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", w.dir, err)
	}

	w.logger.Info().
		Str(xglog.FieldEvent, "watch.started").
		Str(xglog.FieldPath, w.dir).
		Dur("settle", w.settle).
		Msg("watching directory for new videos")

	work := make(chan string)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.loop(ctx, fw, work)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case path := <-work:
				w.handle(ctx, path)
			}
		}
	})
	err = g.Wait()
	metrics.SetWatchQueueDepth(0)
	w.logger.Info().Str(xglog.FieldEvent, "watch.stopped").Msg("directory watcher stopped")
	return err
}

// loop owns pending and queue; work is only offered while the queue is non-empty.
func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, work chan<- string) error {
	pending := make(map[string]time.Time)
	var queue []string

	if w.existing {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("read directory %s: %w", w.dir, err)
		}
		now := time.Now()
		for _, e := range entries {
			path := filepath.Join(w.dir, e.Name())
			if e.Type().IsRegular() && w.accepts(path) {
				pending[path] = now.Add(-w.settle)
			}
		}
	}

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		var out chan<- string
		var next string
		if len(queue) > 0 {
			out = work
			next = queue[0]
		}

		select {
		case <-ctx.Done():
			return nil

		case out <- next:
			queue = queue[1:]
			metrics.SetWatchQueueDepth(len(queue))

		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					delete(pending, event.Name)
				}
				continue
			}
			if !w.accepts(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			w.logger.Warn().Err(err).Msg("fsnotify watcher error")

		case now := <-ticker.C:
			for _, path := range w.settled(pending, now) {
				delete(pending, path)
				if slices.Contains(queue, path) {
					continue
				}
				queue = append(queue, path)
				w.logger.Debug().
					Str(xglog.FieldEvent, "watch.queued").
					Str(xglog.FieldPath, path).
					Int("queue", len(queue)).
					Msg("file settled")
			}
			metrics.SetWatchQueueDepth(len(queue))
		}
	}
}

// settled returns pending paths, in name order, that are quiet, non-empty
// regular files not yet handed over in their current form.
func (w *Watcher) settled(pending map[string]time.Time, now time.Time) []string {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) < w.settle {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			delete(pending, path)
			continue
		}
		if info.Size() == 0 {
			continue
		}
		stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}
		if prev, ok := w.seen[path]; ok && prev == stamp {
			delete(pending, path)
			metrics.RecordWatchFile("skipped")
			continue
		}
		w.seen[path] = stamp
		ready = append(ready, path)
	}
	slices.Sort(ready)
	return ready
}

func (w *Watcher) handle(ctx context.Context, path string) {
	start := time.Now()
	err := w.handler(ctx, path)
	if err != nil {
		metrics.RecordWatchFile("failed")
		w.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "watch.failed").
			Str(xglog.FieldPath, path).
			Dur(xglog.FieldDuration, time.Since(start)).
			Msg("processing watched file failed")
		return
	}
	metrics.RecordWatchFile("processed")
	w.logger.Info().
		Str(xglog.FieldEvent, "watch.processed").
		Str(xglog.FieldPath, path).
		Dur(xglog.FieldDuration, time.Since(start)).
		Msg("watched file processed")
}

func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(base)))
}

func (w *Watcher) tick() time.Duration {
	t := w.settle / 4
	if t < 10*time.Millisecond {
		t = 10 * time.Millisecond
	}
	return t
}
