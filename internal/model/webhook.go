package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ibeloyar/payrelay/pgk/webhooksig"
	"github.com/shopspring/decimal"
)

// WebhookEvent is one inbound delivery. Payload is the unmodified request body.
type WebhookEvent struct {
	Payload   []byte
	Signature string
}

type WebhookBody struct {
	Error int                 `json:"error"`
	Data  *WebhookTransaction `json:"data"`
}

// UnmarshalJSON reads fields by their exact key so Data is always the object
// the signature covers.
func (b *WebhookBody) UnmarshalJSON(raw []byte) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}

	envelope, err := webhooksig.Envelope(raw)
	if err != nil {
		return err
	}

	*b = WebhookBody{}

	if field, ok := envelope["error"]; ok {
		if err := json.Unmarshal(field, &b.Error); err != nil {
			return fmt.Errorf("error field: %w", err)
		}
	}

	field, ok := envelope[webhooksig.DataField]
	if !ok || bytes.Equal(bytes.TrimSpace(field), []byte("null")) {
		return nil
	}

	var tx WebhookTransaction
	if err := json.Unmarshal(field, &tx); err != nil {
		return fmt.Errorf("data field: %w", err)
	}
	b.Data = &tx

	return nil
}

type WebhookTransaction struct {
	ID          TransactionID   `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// TransactionID accepts both JSON strings and numbers, aggregators send either.
type TransactionID string

func (id *TransactionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TransactionID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	*id = TransactionID(n.String())
	return nil
}

type WebhookAck struct {
	Success bool `json:"success"`
}

type OutcomeKind string

const (
	OutcomeApplied  OutcomeKind = "applied"
	OutcomeIgnored  OutcomeKind = "ignored"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeFailed   OutcomeKind = "failed"
)

type OutcomeReason string

const (
	ReasonNone              OutcomeReason = ""
	ReasonBadSignature      OutcomeReason = "badSignature"
	ReasonMalformedPayload  OutcomeReason = "malformedPayload"
	ReasonNotASuccessEvent  OutcomeReason = "notASuccessEvent"
	ReasonNoCodeFound       OutcomeReason = "noCodeFound"
	ReasonUnknownOrder      OutcomeReason = "unknownOrder"
	ReasonAlreadyPaid       OutcomeReason = "alreadyPaid"
	ReasonLedgerUnavailable OutcomeReason = "ledgerUnavailable"
)

// Outcome is the result of reconciling one webhook event.
type Outcome struct {
	Kind   OutcomeKind
	Reason OutcomeReason
	Code   int64
	Err    error

	AmountMismatch bool
	Notified       bool
}

func (o Outcome) String() string {
	if o.Reason == ReasonNone {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
}
