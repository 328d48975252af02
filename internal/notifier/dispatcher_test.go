package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/ibeloyar/payrelay/pgk/retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []model.PaymentConfirmed
	calls  atomic.Int32
	errs   []error
}

func (p *fakePublisher) Publish(_ context.Context, event model.PaymentConfirmed) error {
	n := int(p.calls.Add(1))

	p.mu.Lock()
	defer p.mu.Unlock()

	if n <= len(p.errs) && p.errs[n-1] != nil {
		return p.errs[n-1]
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Delivered() []model.PaymentConfirmed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PaymentConfirmed(nil), p.events...)
}

type countingFailures struct {
	n atomic.Int32
}

func (c *countingFailures) NotificationFailed() {
	c.n.Add(1)
}

func TestDispatcher_DeliversQueuedEvents(t *testing.T) {
	target := &fakePublisher{}
	d := NewDispatcher(target, 2, 8, nil, nil)
	d.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Publish(context.Background(), model.PaymentConfirmed{OrderCode: "MEOSTORE-1"}))
	}

	require.NoError(t, d.Shutdown(context.Background()))
	assert.Len(t, target.Delivered(), 5)
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := NewDispatcher(&fakePublisher{}, 1, 1, nil, nil)

	require.NoError(t, d.Publish(context.Background(), model.PaymentConfirmed{}))
	err := d.Publish(context.Background(), model.PaymentConfirmed{})

	assert.ErrorIs(t, err, ErrQueueFull)
	assert.ErrorIs(t, err, model.ErrNotificationFailed)
}

func TestDispatcher_PublishAfterShutdown(t *testing.T) {
	d := NewDispatcher(&fakePublisher{}, 1, 1, nil, nil)
	d.Start()
	require.NoError(t, d.Shutdown(context.Background()))

	err := d.Publish(context.Background(), model.PaymentConfirmed{})

	assert.ErrorIs(t, err, ErrStopped)
	assert.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_PausesOnRateLimit(t *testing.T) {
	target := &fakePublisher{errs: []error{&retryablehttp.RateLimitedError{RetryAfter: 50 * time.Millisecond}}}
	failures := &countingFailures{}
	d := NewDispatcher(target, 1, 4, failures, nil)
	d.Start()

	start := time.Now()
	require.NoError(t, d.Publish(context.Background(), model.PaymentConfirmed{OrderCode: "MEOSTORE-2"}))
	require.NoError(t, d.Shutdown(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Len(t, target.Delivered(), 1)
	assert.Equal(t, int32(2), target.calls.Load())
	assert.Equal(t, int32(0), failures.n.Load())
}

func TestDispatcher_RecordsPermanentFailure(t *testing.T) {
	target := &fakePublisher{errs: []error{errors.New("broker down")}}
	failures := &countingFailures{}
	d := NewDispatcher(target, 1, 4, failures, nil)
	d.Start()

	require.NoError(t, d.Publish(context.Background(), model.PaymentConfirmed{}))
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Empty(t, target.Delivered())
	assert.Equal(t, int32(1), target.calls.Load())
	assert.Equal(t, int32(1), failures.n.Load())
}

func TestDispatcher_ShutdownTimeoutCancelsPause(t *testing.T) {
	target := &fakePublisher{errs: []error{&retryablehttp.RateLimitedError{RetryAfter: time.Hour}}}
	failures := &countingFailures{}
	d := NewDispatcher(target, 1, 4, failures, nil)
	d.Start()

	require.NoError(t, d.Publish(context.Background(), model.PaymentConfirmed{}))

	require.Eventually(t, func() bool { return target.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := d.Shutdown(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), failures.n.Load())
}
