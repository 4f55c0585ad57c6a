package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue/v2"
	"github.com/teilomillet/mdconvert/errors"
	"github.com/teilomillet/mdconvert/server/metrics"
)

// QueueMiddleware bounds the number of conversions in flight. Each admitted
// request holds a slot in a FIFO queue until it completes; once MaxSize
// slots are taken new requests are turned away with 503.
type QueueMiddleware struct {
	queue      *queue.Queue[chan struct{}]
	maxSize    atomic.Int64
	mu         sync.RWMutex
	processing int32
	metrics    *metrics.Metrics
}

// QueueConfig defines the operational parameters for the queue middleware.
type QueueConfig struct {
	MaxSize int64
	Metrics *metrics.Metrics
}

// NewQueueMiddleware initializes a new queue middleware with the given configuration.
func NewQueueMiddleware(cfg QueueConfig) *QueueMiddleware {
	qm := &QueueMiddleware{
		queue:   queue.New[chan struct{}](),
		metrics: cfg.Metrics,
	}
	qm.maxSize.Store(cfg.MaxSize)
	return qm
}

// SetMaxSize updates the maximum number of requests allowed in the queue.
// It takes effect for the next admitted request.
func (qm *QueueMiddleware) SetMaxSize(size int64) {
	qm.maxSize.Store(size)
}

// GetQueueSize returns the current queue length.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.queue.Length()
}

// GetMaxSize returns the current maximum queue size.
func (qm *QueueMiddleware) GetMaxSize() int64 {
	return qm.maxSize.Load()
}

// GetProcessing returns the number of requests currently being processed.
func (qm *QueueMiddleware) GetProcessing() int32 {
	return atomic.LoadInt32(&qm.processing)
}

// Shutdown waits for admitted requests to finish or ctx to end.
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if qm.GetQueueSize() == 0 && qm.GetProcessing() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Handler manages the request lifecycle through the queue.
// Preflight requests bypass the queue.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		qm.mu.Lock()
		currentSize := qm.queue.Length()

		if int64(currentSize) >= qm.maxSize.Load() {
			qm.mu.Unlock()
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_full").Inc()
			}
			errors.WriteError(w, errors.NewQueueFullError(GetRequestID(r.Context())))
			return
		}

		done := make(chan struct{})
		qm.queue.Add(done)
		if qm.metrics != nil {
			qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(qm.queue.Length()))
		}
		qm.mu.Unlock()

		atomic.AddInt32(&qm.processing, 1)
		if qm.metrics != nil {
			qm.metrics.ActiveRequests.WithLabelValues("processing").Inc()
		}

		defer func() {
			atomic.AddInt32(&qm.processing, -1)
			if qm.metrics != nil {
				qm.metrics.ActiveRequests.WithLabelValues("processing").Dec()
			}
			close(done)

			qm.mu.Lock()
			qm.queue.Remove()
			if qm.metrics != nil {
				qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(qm.queue.Length()))
			}
			qm.mu.Unlock()

			if qm.metrics != nil {
				qm.metrics.RequestDuration.WithLabelValues("queue_wait").Observe(time.Since(start).Seconds())
			}
		}()

		next.ServeHTTP(w, r)
	})
}
