package usage

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Committer commits one charge.
type Committer interface {
	Commit(ctx context.Context, ch Charge)
}

// Dispatcher runs ledger commits detached from the request that produced
// them. Charges are never dropped: when the queue is full the charge gets
// its own goroutine.
type Dispatcher struct {
	committer Committer
	workers   int
	timeout   time.Duration

	mu     sync.RWMutex
	jobs   chan Charge
	closed bool

	wg        sync.WaitGroup
	startOnce sync.Once
}

// NewDispatcher constructs a Dispatcher. Start must be called before Submit
// to get queued processing.
func NewDispatcher(committer Committer, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Dispatcher{
		committer: committer,
		workers:   workers,
		timeout:   timeout,
		jobs:      make(chan Charge, queueSize),
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
		log.Infof("ledger dispatcher started (workers=%d queue=%d)", d.workers, cap(d.jobs))
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ch := range d.jobs {
		d.run(ch)
	}
}

// Submit schedules ch and returns immediately. After Drain it commits ch
// on the caller's goroutine instead.
func (d *Dispatcher) Submit(ch Charge) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		log.WithFields(log.Fields{
			"user_id":    ch.UserID,
			"request_id": ch.RequestID,
		}).Warn("ledger dispatcher: submit after drain, committing inline")
		d.run(ch)
		return
	}
	defer d.mu.RUnlock()
	select {
	case d.jobs <- ch:
		return
	default:
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ch)
	}()
}

func (d *Dispatcher) run(ch Charge) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"user_id":    ch.UserID,
				"request_id": ch.RequestID,
			}).Errorf("ledger dispatcher: commit panicked: %v\n%s", r, debug.Stack())
		}
	}()
	ctx, cancel := commitContext(d.timeout)
	defer cancel()
	d.committer.Commit(ctx, ch)
}

// Drain stops accepting queued work and waits for pending commits or ctx.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	// Workers that never started still have to consume the queue.
	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
