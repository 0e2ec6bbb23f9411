// Package batcher coalesces per-post view increments into bounded batch writes.
package batcher

import (
	"context"
	"sync"
	"time"

	"github.com/relnotes/widget-tracker/internal/logger"
	"github.com/relnotes/widget-tracker/internal/retry"
)

// Default batching policy values.
const (
	// DefaultFlushThreshold is the distinct-post count that triggers an immediate flush.
	DefaultFlushThreshold = 10
	// DefaultFlushDelay is the inactivity debounce before a pending batch flushes.
	DefaultFlushDelay = 2 * time.Second
	// DefaultChunkSize is the number of concurrent writes issued per chunk.
	DefaultChunkSize = 5
	// DefaultChunkPause is the pause between write chunks.
	DefaultChunkPause = 100 * time.Millisecond
	// DefaultFlushTimeout bounds each flush cycle, retries included.
	DefaultFlushTimeout = 30 * time.Second
)

// Sink receives the coalesced increment for one post. Implementations are
// expected to classify their failures for the retry layer (see retry.Error).
type Sink interface {
	IncrementViews(ctx context.Context, postID string, by int) error
}

// Config configures the batching policy.
type Config struct {
	// FlushThreshold is the number of distinct pending posts that triggers
	// an immediate flush instead of waiting out the debounce.
	FlushThreshold int `yaml:"flush_threshold"`
	// FlushDelay is the debounce delay; it resets on every Queue call.
	FlushDelay time.Duration `yaml:"flush_delay"`
	// ChunkSize caps how many writes are in flight at once during a flush.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkPause is the pause between chunks so a large batch does not
	// saturate the store.
	ChunkPause time.Duration `yaml:"chunk_pause"`
	// FlushTimeout bounds one full flush cycle.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
	// Retry is the policy applied to each per-post write.
	Retry retry.Config `yaml:"-"`
}

// SetDefaults applies default values to the config where values are not set.
func (c *Config) SetDefaults() {
	if c.FlushThreshold <= 0 {
		c.FlushThreshold = DefaultFlushThreshold
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = DefaultFlushDelay
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkPause < 0 {
		c.ChunkPause = DefaultChunkPause
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	if c.Retry.MaxRetries == 0 && c.Retry.BaseDelay == 0 {
		c.Retry = retry.DefaultConfig()
	}
}

// Batcher accumulates view increments per post and flushes them as chunked
// batch writes. Increments for the same post coalesce by summing; delivery is
// at-most-once best effort, so a failed write is logged and dropped rather
// than re-queued.
type Batcher struct {
	cfg  Config
	sink Sink
	log  logger.Logger

	mu      sync.Mutex
	pending map[string]int
	timer   *time.Timer
	closed  bool

	flushes sync.WaitGroup
}

// New creates a Batcher writing through sink.
func New(sink Sink, log logger.Logger, cfg Config) *Batcher {
	cfg.SetDefaults()
	return &Batcher{
		cfg:     cfg,
		sink:    sink,
		log:     log,
		pending: make(map[string]int),
	}
}

// Queue adds by to the pending increment for postID. Empty IDs and
// non-positive amounts are dropped. Reaching the flush threshold starts an
// asynchronous flush; otherwise the debounce timer restarts. Queue never
// blocks on the store.
func (b *Batcher) Queue(postID string, by int) {
	if postID == "" || by <= 0 {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	b.pending[postID] += by

	if len(b.pending) >= b.cfg.FlushThreshold {
		snapshot := b.drainLocked()
		b.flushes.Add(1)
		b.mu.Unlock()

		go func() {
			defer b.flushes.Done()
			ctx, cancel := context.WithTimeout(context.Background(), b.cfg.FlushTimeout)
			defer cancel()
			b.send(ctx, snapshot)
		}()
		return
	}

	// Debounce: restart the delay on every queue until something flushes.
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.cfg.FlushDelay, b.flushOnTimer)
	b.mu.Unlock()
}

// Pending returns the number of distinct posts with pending increments.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush drains all pending increments and writes them out, blocking until the
// batch completes. It is a no-op when nothing is pending.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	snapshot := b.drainLocked()
	b.mu.Unlock()

	b.send(ctx, snapshot)
}

// Close stops accepting increments, drains what is pending, and waits for any
// in-flight flushes. Best effort: ctx bounds how long the drain may take.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	snapshot := b.drainLocked()
	b.mu.Unlock()

	b.send(ctx, snapshot)

	done := make(chan struct{})
	go func() {
		b.flushes.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flushOnTimer runs when the debounce delay elapses with no new queues.
func (b *Batcher) flushOnTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.FlushTimeout)
	defer cancel()
	b.Flush(ctx)
}

// drainLocked snapshots and clears the pending map and cancels the timer.
// New Queue calls start a fresh batch while the snapshot is written out;
// the two batches may land at the store in either order, which is fine for
// commutative adds. Caller must hold b.mu.
func (b *Batcher) drainLocked() map[string]int {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return nil
	}
	snapshot := b.pending
	b.pending = make(map[string]int)
	return snapshot
}

// send writes one increment per post in chunks of ChunkSize concurrent calls,
// pausing ChunkPause between chunks. A failed post is logged and dropped; it
// never aborts the rest of the batch.
func (b *Batcher) send(ctx context.Context, snapshot map[string]int) {
	if len(snapshot) == 0 {
		return
	}

	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}

	for start := 0; start < len(ids); start += b.cfg.ChunkSize {
		end := start + b.cfg.ChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(postID string, by int) {
				defer wg.Done()
				b.write(ctx, postID, by)
			}(id, snapshot[id])
		}
		wg.Wait()

		if end < len(ids) {
			select {
			case <-ctx.Done():
				b.log.Warn("Flush cancelled mid-batch",
					logger.Int("remaining", len(ids)-end),
				)
				return
			case <-time.After(b.cfg.ChunkPause):
			}
		}
	}

	b.log.Debug("Flushed view increments",
		logger.Int("posts", len(ids)),
	)
}

// write issues the retried store call for one post.
func (b *Batcher) write(ctx context.Context, postID string, by int) {
	err := retry.Do(ctx, b.cfg.Retry, func(ctx context.Context) error {
		return b.sink.IncrementViews(ctx, postID, by)
	})
	if err != nil {
		b.log.Error("Dropping view increment after failed write",
			logger.String("post_id", postID),
			logger.Int("increment_by", by),
			logger.String("kind", retry.Classify(err).String()),
			logger.Error(err),
		)
	}
}
