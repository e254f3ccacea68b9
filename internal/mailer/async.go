package mailer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/auth_service/internal/metrics"
)

var (
	ErrQueueFull = errors.New("mail queue full")
	ErrClosed    = errors.New("mail queue closed")
)

const sendTimeout = 10 * time.Second

// Async queues messages and delivers them from a fixed set of workers so
// callers never wait on the underlying Dispatcher.
type Async struct {
	next    Dispatcher
	log     *slog.Logger
	metrics metrics.Recorder

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

func NewAsync(next Dispatcher, size, workers int, log *slog.Logger, rec metrics.Recorder) *Async {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = metrics.Noop{}
	}
	a := &Async{
		next:    next,
		log:     log,
		metrics: rec,
		queue:   make(chan Message, size),
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.work()
	}
	return a
}

// Send enqueues msg. It does not block; a full queue is reported as
// ErrQueueFull.
func (a *Async) Send(_ context.Context, msg Message) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) work() {
	defer a.wg.Done()
	for msg := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := a.next.Send(ctx, msg); err != nil {
			a.metrics.RecordMailFailure()
			a.log.Error("mail_dispatch_failed", "to", msg.To, "subject", msg.Subject, "error", err)
		}
		cancel()
	}
}

// Close stops accepting messages and waits until the queue drains or ctx
// ends.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
