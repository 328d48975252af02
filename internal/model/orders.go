package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusAwaiting PaymentStatus = "AWAITING_PAYMENT"
	PaymentStatusPaid     PaymentStatus = "PAID"
)

const DeliveryStatusPending = "PENDING"

// Order is one ledger row. Code is assigned as max existing code + 1.
type Order struct {
	Code             int64               `json:"code"`
	UID              string              `json:"uid"`
	Amount           decimal.Decimal     `json:"amount"`
	CreatedAt        time.Time           `json:"created_at"`
	CreatedAtDisplay string              `json:"created_at_display"`
	DeliveryStatus   string              `json:"delivery_status"`
	PaymentStatus    PaymentStatus       `json:"payment_status"`
	PaidAmount       decimal.NullDecimal `json:"paid_amount"`
	TransactionRef   string              `json:"transaction_ref,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
}

func (o Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// Payment is written to an order on the AWAITING_PAYMENT -> PAID transition.
type Payment struct {
	Amount         decimal.Decimal
	TransactionRef string
	PaidAt         time.Time
}

// FormatOrderCode renders the human-facing code, e.g. MEOSTORE-12.
func FormatOrderCode(prefix string, code int64) string {
	return prefix + "-" + strconv.FormatInt(code, 10)
}

type CreateOrderDTO struct {
	UID    string          `json:"uid"`
	Amount decimal.Decimal `json:"amount"`
}

type CreateOrderResponse struct {
	OrderCode   string          `json:"orderCode"`
	Amount      decimal.Decimal `json:"amount"`
	QRURL       string          `json:"qrUrl"`
	StreamToken string          `json:"streamToken,omitempty"`
}

type OrderStatusResponse struct {
	Code    string        `json:"code"`
	Status  string        `json:"status"`
	Payment PaymentStatus `json:"payment"`
}
