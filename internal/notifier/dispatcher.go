package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/ibeloyar/payrelay/pgk/retryablehttp"
	"go.uber.org/zap"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256

	deliveryTimeout     = 10 * time.Second
	maxDeliveryAttempts = 3
	maxRateLimitedPause = 5 * time.Minute
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrStopped   = errors.New("dispatcher stopped")
)

type FailureRecorder interface {
	NotificationFailed()
}

// Dispatcher delivers confirmations to a slow backend from a bounded queue,
// so callers never wait on the network. A rate limited backend pauses all
// workers for the Retry-After period.
type Dispatcher struct {
	target   Publisher
	failures FailureRecorder
	lg       *zap.SugaredLogger

	jobsQueue  chan model.PaymentConfirmed
	numWorkers int
	wg         sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	stateMu sync.RWMutex
	stopped bool

	pauseMu   sync.Mutex
	pauseCond *sync.Cond
	paused    bool
}

func NewDispatcher(target Publisher, workers, queueSize int, failures FailureRecorder, lg *zap.SugaredLogger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		target:     target,
		failures:   failures,
		lg:         lg,
		jobsQueue:  make(chan model.PaymentConfirmed, queueSize),
		numWorkers: workers,
		ctx:        ctx,
		cancel:     cancel,
	}
	d.pauseCond = sync.NewCond(&d.pauseMu)

	return d
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for event := range d.jobsQueue {
				d.waitIfPaused()
				d.deliver(event)
			}
		}()
	}
}

// Publish enqueues the event and returns immediately.
func (d *Dispatcher) Publish(_ context.Context, event model.PaymentConfirmed) error {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()

	if d.stopped {
		return fmt.Errorf("%w: %w", model.ErrNotificationFailed, ErrStopped)
	}

	select {
	case d.jobsQueue <- event:
		return nil
	default:
		return fmt.Errorf("%w: %w", model.ErrNotificationFailed, ErrQueueFull)
	}
}

func (d *Dispatcher) deliver(event model.PaymentConfirmed) {
	var err error
	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		if d.ctx.Err() != nil {
			err = d.ctx.Err()
			break
		}

		ctx, cancel := context.WithTimeout(d.ctx, deliveryTimeout)
		err = d.target.Publish(ctx, event)
		cancel()
		if err == nil {
			return
		}

		var rateErr *retryablehttp.RateLimitedError
		if !errors.As(err, &rateErr) {
			break
		}

		pause := rateErr.RetryAfter
		if pause > maxRateLimitedPause {
			pause = maxRateLimitedPause
		}
		d.lg.Warnf("notification backend rate limited, pausing workers for %s", pause)
		d.pausePoolWithTimer(pause)
		d.waitIfPaused()
	}

	if d.failures != nil {
		d.failures.NotificationFailed()
	}
	d.lg.Warnw("payment notification not delivered",
		"order", event.OrderCode,
		"event_id", event.EventID,
		"error", err,
	)
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
// When ctx expires first, in-flight deliveries are canceled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stateMu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobsQueue)
	}
	d.stateMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		d.resumePool()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) waitIfPaused() {
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()

	for d.paused && d.ctx.Err() == nil {
		d.pauseCond.Wait()
	}
}

func (d *Dispatcher) pausePoolWithTimer(duration time.Duration) {
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()

	if d.paused {
		return
	}

	d.paused = true

	d.pauseCond.Broadcast()

	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-d.ctx.Done():
		}
		d.resumePool()
	}()
}

func (d *Dispatcher) resumePool() {
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()

	if !d.paused {
		return
	}

	d.paused = false

	d.pauseCond.Broadcast()
}
