// Package memory keeps the order ledger in process memory. It is meant for
// development and tests and loses everything on restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ibeloyar/payrelay/internal/model"
)

type Repository struct {
	mu     sync.RWMutex
	orders map[int64]model.Order
}

func New() *Repository {
	return &Repository{orders: make(map[int64]model.Order)}
}

func (r *Repository) AllocateNextCode(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrLedgerUnavailable, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var highest int64
	for code := range r.orders {
		if code > highest {
			highest = code
		}
	}

	return highest + 1, nil
}

func (r *Repository) InsertOrder(ctx context.Context, order model.Order) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrLedgerUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.Code]; ok {
		return model.ErrCodeTaken
	}
	r.orders[order.Code] = order

	return nil
}

func (r *Repository) FindByCode(ctx context.Context, code int64) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrLedgerUnavailable, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[code]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	if order.PaidAt != nil {
		paidAt := *order.PaidAt
		order.PaidAt = &paidAt
	}

	return &order, nil
}

func (r *Repository) MarkPaid(ctx context.Context, code int64, payment model.Payment) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrLedgerUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[code]
	if !ok {
		return model.ErrOrderNotFound
	}
	if order.IsPaid() {
		return model.ErrAlreadyReconciled
	}

	paidAt := payment.PaidAt
	order.PaymentStatus = model.PaymentStatusPaid
	order.PaidAmount.Decimal = payment.Amount
	order.PaidAmount.Valid = true
	order.TransactionRef = payment.TransactionRef
	order.PaidAt = &paidAt
	r.orders[code] = order

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *Repository) Shutdown() error {
	return nil
}
