package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull        = errors.New("notification queue is full")
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	SendTimeout time.Duration
}

// Dispatcher is a Mailer that queues messages and delivers them from a fixed
// pool of workers, retrying failed sends with linear backoff.
type Dispatcher struct {
	mailer Mailer
	cfg    DispatcherConfig
	logger *slog.Logger

	jobs   chan Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewDispatcher(mailer Mailer, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
		jobs:   make(chan Message, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	logger.Info("notification dispatcher started",
		"workers", cfg.Workers,
		"queue_size", cfg.QueueSize)
	return d
}

// Send enqueues msg without waiting for delivery.
func (d *Dispatcher) Send(_ context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- msg:
		return nil
	default:
		d.logger.Warn("notification dropped, queue full", "tag", msg.Tag, "to", msg.To)
		return ErrQueueFull
	}
}

// Shutdown stops accepting messages and waits for the queue to drain or ctx
// to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		d.logger.Warn("notification dispatcher shutdown timed out", "pending", len(d.jobs))
		return ctx.Err()
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for msg := range d.jobs {
		d.deliver(id, msg)
	}
}

func (d *Dispatcher) deliver(workerID int, msg Message) {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := d.mailer.Send(ctx, msg)
		cancel()
		if err == nil {
			d.logger.Debug("notification sent", "worker_id", workerID, "tag", msg.Tag, "attempt", attempt)
			return
		}
		if attempt >= d.cfg.MaxAttempts {
			d.logger.Error("notification delivery failed",
				"worker_id", workerID,
				"tag", msg.Tag,
				"to", msg.To,
				"attempts", attempt,
				"error", err)
			return
		}
		d.logger.Warn("notification send failed, retrying",
			"worker_id", workerID,
			"tag", msg.Tag,
			"attempt", attempt,
			"error", err)
		time.Sleep(d.cfg.Backoff * time.Duration(attempt))
	}
}
