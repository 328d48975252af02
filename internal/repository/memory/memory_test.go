package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(code int64) model.Order {
	return model.Order{
		Code:           code,
		UID:            "u1",
		Amount:         decimal.NewFromInt(50000),
		CreatedAt:      time.Now(),
		DeliveryStatus: model.DeliveryStatusPending,
		PaymentStatus:  model.PaymentStatusAwaiting,
	}
}

func TestRepository_AllocateNextCode(t *testing.T) {
	ctx := context.Background()
	repo := New()

	code, err := repo.AllocateNextCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), code)

	require.NoError(t, repo.InsertOrder(ctx, newOrder(1)))
	require.NoError(t, repo.InsertOrder(ctx, newOrder(5)))

	code, err = repo.AllocateNextCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), code)
}

func TestRepository_InsertOrder_CodeTaken(t *testing.T) {
	ctx := context.Background()
	repo := New()

	require.NoError(t, repo.InsertOrder(ctx, newOrder(1)))
	assert.ErrorIs(t, repo.InsertOrder(ctx, newOrder(1)), model.ErrCodeTaken)
}

func TestRepository_FindByCode(t *testing.T) {
	ctx := context.Background()
	repo := New()

	_, err := repo.FindByCode(ctx, 1)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	require.NoError(t, repo.InsertOrder(ctx, newOrder(1)))

	order, err := repo.FindByCode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusAwaiting, order.PaymentStatus)
	assert.Equal(t, "u1", order.UID)
}

func TestRepository_MarkPaid(t *testing.T) {
	ctx := context.Background()
	repo := New()
	require.NoError(t, repo.InsertOrder(ctx, newOrder(1)))

	payment := model.Payment{Amount: decimal.NewFromInt(50000), TransactionRef: "TX1", PaidAt: time.Now()}
	require.NoError(t, repo.MarkPaid(ctx, 1, payment))

	order, err := repo.FindByCode(ctx, 1)
	require.NoError(t, err)
	assert.True(t, order.IsPaid())
	assert.Equal(t, "TX1", order.TransactionRef)
	assert.True(t, order.PaidAmount.Valid)
	require.NotNil(t, order.PaidAt)

	err = repo.MarkPaid(ctx, 1, model.Payment{Amount: decimal.NewFromInt(1), TransactionRef: "TX2", PaidAt: time.Now()})
	assert.ErrorIs(t, err, model.ErrAlreadyReconciled)

	order, err = repo.FindByCode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "TX1", order.TransactionRef)

	assert.ErrorIs(t, repo.MarkPaid(ctx, 2, payment), model.ErrOrderNotFound)
}

func TestRepository_MarkPaid_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := New()
	require.NoError(t, repo.InsertOrder(ctx, newOrder(1)))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.MarkPaid(ctx, 1, model.Payment{TransactionRef: "TX", PaidAt: time.Now()})
			if err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, model.ErrAlreadyReconciled)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := New()

	_, err := repo.AllocateNextCode(ctx)
	assert.ErrorIs(t, err, model.ErrLedgerUnavailable)
	assert.ErrorIs(t, repo.InsertOrder(ctx, newOrder(1)), model.ErrLedgerUnavailable)
	_, err = repo.FindByCode(ctx, 1)
	assert.ErrorIs(t, err, model.ErrLedgerUnavailable)
	assert.ErrorIs(t, repo.MarkPaid(ctx, 1, model.Payment{}), model.ErrLedgerUnavailable)
	assert.Error(t, repo.Ping(ctx))
}
