package usage

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// defaultQueueSize bounds the pending-event buffer. A slow or broken
	// ingestion endpoint fills the queue and further events are dropped
	// with a log line; they never delay the chat reply.
	defaultQueueSize = 64

	// recordTimeout bounds a single delivery attempt.
	recordTimeout = 10 * time.Second
)

// AsyncRecorder decouples usage recording from the reply path. Record
// enqueues without blocking; a single background worker delivers events
// to the wrapped Recorder and logs failures.
type AsyncRecorder struct {
	inner Recorder
	queue chan Event

	mu        sync.RWMutex // guards closed and the queue close
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncRecorder wraps inner with a bounded background queue.
func NewAsyncRecorder(inner Recorder) *AsyncRecorder {
	a := &AsyncRecorder{
		inner: inner,
		queue: make(chan Event, defaultQueueSize),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Record implements Recorder. It never blocks and never returns an error:
// the event is enqueued, or dropped with a log line if the queue is full
// or the recorder is closed.
func (a *AsyncRecorder) Record(ctx context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		log.Printf("usage: recorder closed, dropping event for bot %s", event.BotID)
		return nil
	}
	select {
	case a.queue <- event:
	default:
		log.Printf("usage: queue full, dropping event for bot %s", event.BotID)
	}
	return nil
}

// Close stops the worker after draining queued events. Record calls that
// arrive afterwards drop their event instead of panicking on the closed
// queue.
func (a *AsyncRecorder) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
		<-a.done
	})
}

func (a *AsyncRecorder) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := a.inner.Record(ctx, event); err != nil {
			log.Printf("usage: record event for bot %s: %v", event.BotID, err)
		}
		cancel()
	}
}
