package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"flowbit.dev/internal/obs"
)

const (
	defaultQueueSize    = 1024
	defaultWorkers      = 2
	defaultWriteTimeout = 5 * time.Second
)

var _ Sink = (*Recorder)(nil)

// Recorder persists audit events asynchronously through a bounded queue.
// Callers never wait for storage; writes run on a context detached from the
// request so a client disconnect does not cancel them.
type Recorder struct {
	store        Store
	queue        chan Event
	writeTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	group  errgroup.Group
}

// RecorderOption configures Recorder.
type RecorderOption func(*Recorder)

// WithQueueSize sets the number of events buffered ahead of the workers.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Event, n)
		}
	}
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithRecorderClock overrides the timestamp source.
func WithRecorderClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder starts workers writing to store.
func NewRecorder(store Store, workers int, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:        store,
		queue:        make(chan Event, defaultQueueSize),
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	for i := 0; i < workers; i++ {
		r.group.Go(r.work)
	}
	return r
}

// Record validates and enqueues e. A full queue or a closed recorder drops
// the event after logging it.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if e.RequestID == "" {
		e.RequestID = RequestIDFromContext(ctx)
	}
	if err := e.normalize(r.now()); err != nil {
		obs.AuditEvents.WithLabelValues("invalid").Inc()
		LogEvent(e, "invalid", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		obs.AuditEvents.WithLabelValues("dropped").Inc()
		LogEvent(e, "dropped", errors.New("recorder closed"))
		return
	}
	select {
	case r.queue <- e:
		obs.AuditQueueDepth.Set(float64(len(r.queue)))
	default:
		obs.AuditEvents.WithLabelValues("dropped").Inc()
		LogEvent(e, "dropped", errors.New("audit queue full"))
	}
}

// QueueDepth reports events waiting for a worker.
func (r *Recorder) QueueDepth() int { return len(r.queue) }

// Close stops accepting events and waits for queued events to be written or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) work() error {
	for e := range r.queue {
		obs.AuditQueueDepth.Set(float64(len(r.queue)))
		r.write(e)
	}
	return nil
}

func (r *Recorder) write(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if err := r.store.Append(ctx, &e); err != nil {
		obs.AuditEvents.WithLabelValues("failed").Inc()
		LogEvent(e, "failed", err)
		return
	}
	obs.AuditEvents.WithLabelValues("recorded").Inc()
}
