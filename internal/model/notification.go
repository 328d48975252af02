package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventPaymentConfirmed = "payment.confirmed"

type PaymentConfirmed struct {
	EventID        string          `json:"event_id"`
	Type           string          `json:"type"`
	OrderCode      string          `json:"orderCode"`
	Code           int64           `json:"code"`
	UID            string          `json:"uid"`
	TransactionRef string          `json:"transactionRef"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	PaidAt         time.Time       `json:"paidAt"`
}

// StreamTokenInfo is carried inside realtime stream tokens.
type StreamTokenInfo struct {
	UID string `json:"uid"`
}
