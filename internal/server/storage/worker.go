package storage

import (
	"context"
	"log/slog"
)

// ThumbnailWorker generates image derivatives in the background so upload
// responses never wait on decoding. Jobs are best-effort: a failed or
// dropped job is logged and skipped, never surfaced to the uploader.
type ThumbnailWorker struct {
	store  Store
	maxDim int
	jobs   chan string // storage filenames
	done   chan struct{}
}

// NewThumbnailWorker creates a worker with a bounded job queue.
func NewThumbnailWorker(store Store, queueSize, maxDim int) *ThumbnailWorker {
	if queueSize < 1 {
		queueSize = 1
	}
	return &ThumbnailWorker{
		store:  store,
		maxDim: maxDim,
		jobs:   make(chan string, queueSize),
		done:   make(chan struct{}),
	}
}

// Start begins consuming jobs in a background goroutine.
func (w *ThumbnailWorker) Start(ctx context.Context) {
	slog.Info("thumbnail worker started", "queue", cap(w.jobs), "max_dim", w.maxDim)

	go func() {
		for {
			select {
			case filename := <-w.jobs:
				w.process(filename)
			case <-ctx.Done():
				slog.Info("thumbnail worker stopping", "pending", len(w.jobs))
				close(w.done)
				return
			}
		}
	}()
}

// Enqueue schedules derivative generation for a stored object. Never
// blocks: when the queue is saturated the job is dropped and logged.
func (w *ThumbnailWorker) Enqueue(filename string) {
	select {
	case w.jobs <- filename:
	default:
		slog.Warn("thumbnail queue full, dropping job", "filename", filename)
	}
}

// Wait blocks until the worker has fully stopped.
func (w *ThumbnailWorker) Wait() {
	<-w.done
}

func (w *ThumbnailWorker) process(filename string) {
	src, err := w.store.Path(filename)
	if err != nil {
		slog.Warn("thumbnail job skipped, object missing", "filename", filename, "error", err)
		return
	}

	dst := w.store.ThumbTarget(filename)
	if err := GenerateThumbnail(src, dst, w.maxDim); err != nil {
		slog.Warn("thumbnail generation failed", "filename", filename, "error", err)
		return
	}

	slog.Info("thumbnail generated", "filename", filename)
}
