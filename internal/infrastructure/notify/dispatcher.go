package notify

import (
	"context"
	"errors"
	"log"
	"sync"

	"trainingreg/internal/ports/output"
)

var (
	errQueueFull = errors.New("notification queue full")
	errClosed    = errors.New("dispatcher closed")
)

var _ output.Notifier = (*Dispatcher)(nil)

type job struct {
	ctx context.Context
	msg output.Message
}

// Dispatcher delivers messages asynchronously through a pool of workers.
// Send never blocks the caller; each failure is logged once and not retried.
type Dispatcher struct {
	next  output.Notifier
	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines delivering through next.
func NewDispatcher(next output.Notifier, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		next:  next,
		queue: make(chan job, queueSize),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Send enqueues msg. It fails with a *output.DeliveryError when the queue is
// full or the dispatcher is closed; logging that failure is left to the caller.
func (d *Dispatcher) Send(ctx context.Context, msg output.Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return &output.DeliveryError{To: msg.To, Err: errClosed}
	}
	select {
	case d.queue <- job{ctx: ctx, msg: msg}:
		return nil
	default:
		return &output.DeliveryError{To: msg.To, Err: errQueueFull}
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		if err := d.next.Send(j.ctx, j.msg); err != nil {
			log.Printf("❌ Notification to %s failed: %v", j.msg.To, err)
			continue
		}
		log.Printf("✅ Notification sent to %s (%s)", j.msg.To, j.msg.Subject)
	}
}
