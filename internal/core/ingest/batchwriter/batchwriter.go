// Package batchwriter implements the bounded, size-and-time-triggered flush
// buffer described in spec §4.4: posts accepted by the stream consumer are
// staged here and committed to storage in batches.
package batchwriter

import (
	"context"
	"log"
	"sync"
	"time"

	"urlfeed/internal/core/feed"
)

// Defaults mirror spec §4.4.
const (
	DefaultCapacity      = 10_000
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
)

// Sink commits a drained batch to storage. It is called with the queue
// mutex already released; a sink failure drops the batch (at-most-once
// delivery — the firehose has no replay contract this writer can lean on).
type Sink func(ctx context.Context, batch []feed.NewPost) error

// Config controls queue capacity and flush cadence.
type Config struct {
	Capacity      int
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns spec §4.4's defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:      DefaultCapacity,
		BatchSize:     DefaultBatchSize,
		FlushInterval: DefaultFlushInterval,
	}
}

// Writer is a bounded in-memory queue with two independent flush triggers:
// a size trigger on the Enqueue path, and a time trigger on a background
// ticker. Both funnel through flush, which is serialized by flushMu so a
// size-triggered flush overlapping a time-triggered one never races.
type Writer struct {
	cfg  Config
	sink Sink

	// OnFlush, if set, is called after every successful sink call with the
	// number of posts committed — the hook the stream consumer uses to
	// maintain its "batches flushed"/"posts flushed" observability counters
	// (spec §4.5) without this package depending on firehose.Stats.
	OnFlush func(n int)

	mu      sync.Mutex
	queue   []feed.NewPost
	started bool

	flushMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Writer. Call Start to begin the time-triggered flush loop.
func New(cfg Config, sink Sink) *Writer {
	return &Writer{
		cfg:    cfg,
		sink:   sink,
		queue:  make([]feed.NewPost, 0, cfg.BatchSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the time-triggered flush loop until the context is canceled or
// Stop is called. It returns once the loop has exited.
func (w *Writer) Start(ctx context.Context) {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			return
		case <-w.stopCh:
			w.flush(context.Background())
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// Enqueue appends post to the queue. If the append brings the queue to the
// configured batch size, it triggers an immediate flush. Enqueues beyond the
// configured capacity are dropped with a log line and no error is returned —
// this is the writer's only backpressure against the firehose.
func (w *Writer) Enqueue(ctx context.Context, post feed.NewPost) {
	w.mu.Lock()
	if len(w.queue) >= w.cfg.Capacity {
		w.mu.Unlock()
		log.Printf("batchwriter: queue at capacity (%d), dropping post %s", w.cfg.Capacity, post.URI)
		return
	}
	w.queue = append(w.queue, post)
	shouldFlush := len(w.queue) >= w.cfg.BatchSize
	w.mu.Unlock()

	if shouldFlush {
		w.flush(ctx)
	}
}

// Stop cancels the flush timer, performs one final flush, and waits for the
// background loop to exit. If Start was never called, Stop performs the
// final flush itself.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		w.flush(context.Background())
		return
	}
	<-w.doneCh
}

// flush drains the queue under the lock, releases it, then commits the
// drained slice to storage. On failure the batch is dropped and logged; the
// writer never re-enqueues.
func (w *Writer) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	if len(w.queue) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.queue
	w.queue = make([]feed.NewPost, 0, w.cfg.BatchSize)
	w.mu.Unlock()

	if err := w.sink(ctx, batch); err != nil {
		log.Printf("batchwriter: flush of %d posts failed, dropping batch: %v", len(batch), err)
		return
	}
	if w.OnFlush != nil {
		w.OnFlush(len(batch))
	}
}

// Len reports the current queue depth, for observability (§4.5's "queue
// depth" throughput field).
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}
