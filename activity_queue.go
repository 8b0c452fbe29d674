package claims

import (
	"context"
	"sync"
	"time"
)

// ActivitySpool is durable overflow storage for audit events that could not
// be delivered before shutdown. Drained back into the queue on the next
// start, so records survive restarts.
type ActivitySpool interface {
	Append(ctx context.Context, event ActivityEvent) error
	Drain(ctx context.Context, limit int) ([]ActivityEvent, error)
}

// QueuedSink decouples audit emission from the primary operation: Record
// only appends to an in-memory buffer, a background flusher delivers batches
// to the delegate sink. A slow or failing delegate therefore never blocks a
// login, a claim transition, or a passcode send.
//
// Delivery is at-least-once. Events that cannot be delivered stay buffered
// and are retried on the next flush; whatever is still pending at Close is
// handed to the spool when one is configured.
type QueuedSink struct {
	delegate ActivitySink
	spool    ActivitySpool
	logger   Logger
	interval time.Duration
	capacity int

	mu      sync.Mutex
	pending []ActivityEvent

	done chan struct{}
	wg   sync.WaitGroup
}

// QueuedSinkOption customizes queue construction.
type QueuedSinkOption func(*QueuedSink)

// WithQueueLogger overrides the queue's logger.
func WithQueueLogger(logger Logger) QueuedSinkOption {
	return func(q *QueuedSink) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithQueueSpool attaches durable overflow storage. Spooled events from a
// previous run are drained back into the buffer before the flusher starts.
func WithQueueSpool(spool ActivitySpool) QueuedSinkOption {
	return func(q *QueuedSink) {
		q.spool = spool
	}
}

// WithQueueFlushInterval sets how often pending events are delivered.
func WithQueueFlushInterval(interval time.Duration) QueuedSinkOption {
	return func(q *QueuedSink) {
		if interval > 0 {
			q.interval = interval
		}
	}
}

// WithQueueCapacity bounds the in-memory buffer. When full, the oldest
// events spill to the spool (or are dropped with a warning when no spool is
// configured).
func WithQueueCapacity(capacity int) QueuedSinkOption {
	return func(q *QueuedSink) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// NewQueuedSink wraps delegate in a buffering queue and starts the flusher.
func NewQueuedSink(delegate ActivitySink, opts ...QueuedSinkOption) *QueuedSink {
	q := &QueuedSink{
		delegate: normalizeActivitySink(delegate),
		logger:   defLogger{},
		interval: 5 * time.Second,
		capacity: 256,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}

	q.replaySpool()

	q.wg.Add(1)
	go q.run()

	return q
}

var _ ActivitySink = (*QueuedSink)(nil)

// Record buffers the event for asynchronous delivery. Never blocks on the
// delegate and never returns a delivery error.
func (q *QueuedSink) Record(ctx context.Context, event ActivityEvent) error {
	fillEventDefaults(&event, time.Now)

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.capacity {
		q.spillLocked(1)
	}
	q.pending = append(q.pending, event)
	return nil
}

// Flush synchronously delivers everything currently buffered. Events the
// delegate rejects stay pending.
func (q *QueuedSink) Flush(ctx context.Context) {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	var failed []ActivityEvent
	for _, event := range batch {
		if err := q.delegate.Record(ctx, event); err != nil {
			q.logger.Warn("activity delivery failed, will retry: %v", err)
			failed = append(failed, event)
		}
	}

	if len(failed) == 0 {
		return
	}

	q.mu.Lock()
	q.pending = append(failed, q.pending...)
	q.mu.Unlock()
}

// Close stops the flusher, attempts a final delivery, and spools whatever
// is still undelivered.
func (q *QueuedSink) Close(ctx context.Context) error {
	close(q.done)
	q.wg.Wait()

	q.Flush(ctx)

	q.mu.Lock()
	remaining := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(remaining) == 0 {
		return nil
	}

	if q.spool == nil {
		q.logger.Warn("dropping %d undelivered activity events on close", len(remaining))
		return nil
	}

	var firstErr error
	for _, event := range remaining {
		if err := q.spool.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (q *QueuedSink) run() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.Flush(context.Background())
		}
	}
}

// replaySpool pulls previously spooled events back into the buffer.
func (q *QueuedSink) replaySpool() {
	if q.spool == nil {
		return
	}

	events, err := q.spool.Drain(context.Background(), q.capacity)
	if err != nil {
		q.logger.Warn("failed to drain activity spool: %v", err)
		return
	}

	if len(events) > 0 {
		q.pending = append(q.pending, events...)
	}
}

// spillLocked moves the n oldest pending events out of the buffer. Caller
// holds q.mu.
func (q *QueuedSink) spillLocked(n int) {
	if n > len(q.pending) {
		n = len(q.pending)
	}

	overflow := q.pending[:n]
	q.pending = q.pending[n:]

	if q.spool == nil {
		q.logger.Warn("activity buffer full, dropping %d oldest events", n)
		return
	}

	for _, event := range overflow {
		if err := q.spool.Append(context.Background(), event); err != nil {
			q.logger.Warn("failed to spool activity event: %v", err)
		}
	}
}
