package model

import "errors"

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	ErrInternalServerMessage     = "internal server error"
	ErrUIDRequiredMessage        = "uid is required"
	ErrAmountInvalidMessage      = "amount must be a positive number"
	ErrOrderNotFoundMessage      = "order not found"
	ErrOrderCodeInvalidMessage   = "invalid order code"
	ErrTooManyRequestsMessage    = "too many requests"
	ErrLedgerUnavailableMessage  = "ledger unavailable"
	ErrStreamUnsupportedMessage  = "streaming unsupported"
	ErrInvalidRequestBodyMessage = "invalid request body"
)

// Webhook path taxonomy. All of these are absorbed into a success
// acknowledgment towards the aggregator.
var (
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMalformedPayload   = errors.New("malformed webhook payload")
	ErrNoOrderReference   = errors.New("no order reference in description")
	ErrUnknownOrder       = errors.New("unknown order")
	ErrAlreadyReconciled  = errors.New("order already reconciled")
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrNotificationFailed = errors.New("notification failed")
)

// Ledger level errors.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrCodeTaken     = errors.New("order code already taken")
)
