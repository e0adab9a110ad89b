package broadcast

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/config"
)

// IBroadcaster queues an event for delivery without waiting for it.
type IBroadcaster interface {
	Dispatch(evt Event) bool
}

// Dispatcher is a fixed pool of workers draining a bounded queue of events
// into a Publisher. Queueing never blocks: when the queue is full the event
// is dropped and logged.
type Dispatcher struct {
	publisher Publisher
	jobs      chan Event
	workers   int
	timeout   time.Duration
	log       *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(publisher Publisher, cfg *config.BroadcastConfig, log *zap.Logger) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	timeout := time.Duration(cfg.PublishTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Dispatcher{
		publisher: publisher,
		jobs:      make(chan Event, queueSize),
		workers:   workers,
		timeout:   timeout,
		log:       log,
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			for evt := range d.jobs {
				d.publish(workerID, evt)
			}
		}(i)
	}
	d.log.Info("broadcast dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.jobs)))
}

// Dispatch reports whether evt was queued.
func (d *Dispatcher) Dispatch(evt Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.log.Warn("broadcast dispatcher stopped, dropping event",
			zap.String("event", evt.Name), zap.String("channel", evt.Channel))
		return false
	}
	select {
	case d.jobs <- evt:
		return true
	default:
		d.log.Warn("broadcast queue full, dropping event",
			zap.String("event", evt.Name), zap.String("channel", evt.Channel))
		return false
	}
}

// Stop refuses new events, lets the workers drain the queue and waits for them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	if err := d.publisher.Close(); err != nil {
		d.log.Warn("failed to close publisher", zap.Error(err))
	}
}

func (d *Dispatcher) publish(workerID int, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("broadcast worker panic", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, evt); err != nil {
		d.log.Warn("failed to publish event",
			zap.String("event", evt.Name),
			zap.String("channel", evt.Channel),
			zap.Error(err),
		)
	}
}
