package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ibeloyar/payrelay/internal/model"
)

const selectOrderColumns = `code, uid, amount, created_at, created_at_display, delivery_status,
	payment_status, paid_amount, transaction_ref, paid_at`

func (r *Repository) AllocateNextCode(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var next int64
	err := r.executeWithRetryConnection(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT COALESCE(MAX(code), 0) + 1 FROM orders`).Scan(&next)
	})
	if err != nil {
		return 0, unavailable("allocate next code", err)
	}

	return next, nil
}

// InsertOrder is a compare-and-swap on the order code: it fails with
// model.ErrCodeTaken when the code already exists.
func (r *Repository) InsertOrder(ctx context.Context, order model.Order) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var affected int64
	err := r.executeWithRetryConnection(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `INSERT INTO orders
			(code, uid, amount, created_at, created_at_display, delivery_status, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (code) DO NOTHING`,
			order.Code,
			order.UID,
			order.Amount,
			order.CreatedAt,
			order.CreatedAtDisplay,
			order.DeliveryStatus,
			order.PaymentStatus,
		)
		if err != nil {
			return err
		}

		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return model.ErrCodeTaken
		}
		return unavailable("insert order", err)
	}

	if affected == 0 {
		return model.ErrCodeTaken
	}

	return nil
}

func (r *Repository) FindByCode(ctx context.Context, code int64) (*model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var order model.Order
	err := r.executeWithRetryConnection(ctx, func(db *sql.DB) error {
		var (
			txRef  sql.NullString
			paidAt sql.NullTime
		)

		err := db.QueryRowContext(ctx, `SELECT `+selectOrderColumns+` FROM orders WHERE code = $1`, code).Scan(
			&order.Code,
			&order.UID,
			&order.Amount,
			&order.CreatedAt,
			&order.CreatedAtDisplay,
			&order.DeliveryStatus,
			&order.PaymentStatus,
			&order.PaidAmount,
			&txRef,
			&paidAt,
		)
		if err != nil {
			return err
		}

		order.TransactionRef = txRef.String
		if paidAt.Valid {
			t := paidAt.Time
			order.PaidAt = &t
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, unavailable("find order", err)
	}

	return &order, nil
}

// MarkPaid moves an AWAITING_PAYMENT order to PAID. The update is
// conditional, so of two concurrent callers only one succeeds and the other
// gets model.ErrAlreadyReconciled.
func (r *Repository) MarkPaid(ctx context.Context, code int64, payment model.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var affected int64
	err := r.executeWithRetryConnection(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `UPDATE orders
			SET payment_status = $1, paid_amount = $2, transaction_ref = $3, paid_at = $4
			WHERE code = $5 AND payment_status = $6`,
			model.PaymentStatusPaid,
			payment.Amount,
			payment.TransactionRef,
			payment.PaidAt,
			code,
			model.PaymentStatusAwaiting,
		)
		if err != nil {
			return err
		}

		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return unavailable("mark paid", err)
	}

	if affected == 1 {
		return nil
	}

	var status model.PaymentStatus
	err = r.executeWithRetryConnection(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT payment_status FROM orders WHERE code = $1`, code).Scan(&status)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrOrderNotFound
		}
		return unavailable("mark paid", err)
	}

	return model.ErrAlreadyReconciled
}
