package leads

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"gulfsolar/backend/libs/metrics"
	"gulfsolar/backend/services/calculator-service/internal/models"
)

var (
	// ErrQueueFull is returned when the delivery queue has no room.
	ErrQueueFull = errors.New("lead delivery queue is full")
	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("lead dispatcher is closed")
)

const statusUpdateTimeout = 5 * time.Second

// StatusStore records delivery outcomes.
type StatusStore interface {
	UpdateStatus(ctx context.Context, id string, status models.LeadStatus, at time.Time) error
}

// DispatcherConfig sizes the background delivery pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Dispatcher delivers leads on worker goroutines so capture never waits on sinks.
type Dispatcher struct {
	sink    Sink
	store   StatusStore
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan models.Lead
	wg     sync.WaitGroup
}

// NewDispatcher starts the workers.
func NewDispatcher(sink Sink, store StatusStore, logger *zap.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	d := &Dispatcher{
		sink:    sink,
		store:   store,
		logger:  logger,
		timeout: cfg.Timeout,
		now:     time.Now,
		queue:   make(chan models.Lead, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue schedules a lead for delivery without blocking.
func (d *Dispatcher) Enqueue(lead models.Lead) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- lead:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting leads and waits for queued ones to be delivered or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

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

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for lead := range d.queue {
		d.deliver(lead)
	}
}

func (d *Dispatcher) deliver(lead models.Lead) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	err := d.sink.Deliver(ctx, lead)
	cancel()

	status := models.LeadSent
	if err != nil {
		status = models.LeadFailed
		metrics.ObserveLeadDelivery(d.sink.Name(), metrics.ResultError)
		d.logger.Error("lead delivery failed", zap.String("lead_id", lead.ID), zap.Error(err))
	} else {
		metrics.ObserveLeadDelivery(d.sink.Name(), metrics.ResultSuccess)
		d.logger.Info("lead delivered", zap.String("lead_id", lead.ID))
	}

	ctx, cancel = context.WithTimeout(context.Background(), statusUpdateTimeout)
	defer cancel()
	if err := d.store.UpdateStatus(ctx, lead.ID, status, d.now().UTC()); err != nil {
		d.logger.Error("failed to record lead delivery", zap.String("lead_id", lead.ID),
			zap.String("status", string(status)), zap.Error(err))
	}
}
