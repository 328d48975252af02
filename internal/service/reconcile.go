package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/ibeloyar/payrelay/pgk/keylock"
	"github.com/ibeloyar/payrelay/pgk/webhooksig"
	"go.uber.org/zap"
)

// Reconciler matches verified bank transfer webhooks to ledger orders and
// moves them to PAID.
type Reconciler struct {
	verifier  SignatureVerifier
	ledger    Ledger
	publisher Publisher
	recorder  Recorder
	parser    *ReferenceParser
	locks     *keylock.Locker[int64]
	prefix    string
	lg        *zap.SugaredLogger

	now func() time.Time
}

func NewReconciler(
	verifier SignatureVerifier,
	ledger Ledger,
	publisher Publisher,
	recorder Recorder,
	prefix string,
	lg *zap.SugaredLogger,
) *Reconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}

	return &Reconciler{
		verifier:  verifier,
		ledger:    ledger,
		publisher: publisher,
		recorder:  recorder,
		parser:    NewReferenceParser(prefix),
		locks:     keylock.New[int64](),
		prefix:    prefix,
		lg:        lg,
		now:       time.Now,
	}
}

// Reconcile never fails towards the caller: every problem is folded into the
// returned outcome, which is also logged and recorded.
func (r *Reconciler) Reconcile(ctx context.Context, event model.WebhookEvent) model.Outcome {
	outcome, confirmed := r.reconcile(ctx, event)

	if confirmed != nil {
		outcome.Notified = r.notify(ctx, *confirmed)
	}

	r.report(event, outcome)

	return outcome
}

func (r *Reconciler) reconcile(ctx context.Context, event model.WebhookEvent) (model.Outcome, *model.PaymentConfirmed) {
	if result := r.verifier.Check(event.Payload, event.Signature); !result.OK() {
		return model.Outcome{
			Kind:   model.OutcomeRejected,
			Reason: model.ReasonBadSignature,
			Err:    fmt.Errorf("%w: %s", model.ErrInvalidSignature, result),
		}, nil
	}

	var body model.WebhookBody
	if err := json.Unmarshal(event.Payload, &body); err != nil {
		return ignored(model.ReasonMalformedPayload, fmt.Errorf("%w: %v", model.ErrMalformedPayload, err)), nil
	}

	if body.Error != 0 || body.Data == nil {
		return ignored(model.ReasonNotASuccessEvent, nil), nil
	}

	tx := body.Data
	if tx.ID == "" {
		return ignored(model.ReasonMalformedPayload, fmt.Errorf("%w: missing transaction id", model.ErrMalformedPayload)), nil
	}

	code, ok := r.parser.ExtractOrderCode(tx.Description)
	if !ok {
		return ignored(model.ReasonNoCodeFound, model.ErrNoOrderReference), nil
	}

	unlock := r.locks.Lock(code)
	defer unlock()

	order, err := r.ledger.FindByCode(ctx, code)
	if err != nil {
		outcome := r.ledgerOutcome(err)
		outcome.Code = code
		return outcome, nil
	}

	if order.IsPaid() {
		outcome := ignored(model.ReasonAlreadyPaid, model.ErrAlreadyReconciled)
		outcome.Code = code
		return outcome, nil
	}

	payment := model.Payment{
		Amount:         tx.Amount,
		TransactionRef: string(tx.ID),
		PaidAt:         r.now().UTC(),
	}

	if err := r.ledger.MarkPaid(ctx, code, payment); err != nil {
		outcome := r.ledgerOutcome(err)
		outcome.Code = code
		return outcome, nil
	}

	outcome := model.Outcome{
		Kind:           model.OutcomeApplied,
		Code:           code,
		AmountMismatch: !tx.Amount.Equal(order.Amount),
	}
	if outcome.AmountMismatch {
		r.lg.Warnw("paid amount differs from order amount",
			"order", model.FormatOrderCode(r.prefix, code),
			"expected", order.Amount.String(),
			"paid", tx.Amount.String(),
		)
	}

	return outcome, &model.PaymentConfirmed{
		EventID:        uuid.NewString(),
		Type:           model.EventPaymentConfirmed,
		OrderCode:      model.FormatOrderCode(r.prefix, code),
		Code:           code,
		UID:            order.UID,
		TransactionRef: payment.TransactionRef,
		Amount:         payment.Amount,
		Description:    tx.Description,
		PaidAt:         payment.PaidAt,
	}
}

func (r *Reconciler) ledgerOutcome(err error) model.Outcome {
	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		return ignored(model.ReasonUnknownOrder, model.ErrUnknownOrder)
	case errors.Is(err, model.ErrAlreadyReconciled):
		return ignored(model.ReasonAlreadyPaid, model.ErrAlreadyReconciled)
	}

	if !errors.Is(err, model.ErrLedgerUnavailable) {
		err = fmt.Errorf("%w: %w", model.ErrLedgerUnavailable, err)
	}

	return model.Outcome{
		Kind:   model.OutcomeFailed,
		Reason: model.ReasonLedgerUnavailable,
		Err:    err,
	}
}

func (r *Reconciler) notify(ctx context.Context, event model.PaymentConfirmed) bool {
	if r.publisher == nil {
		return false
	}

	if err := r.publisher.Publish(ctx, event); err != nil {
		r.recorder.NotificationFailed()
		r.lg.Warnw("payment notification failed",
			"order", event.OrderCode,
			"event_id", event.EventID,
			"error", fmt.Errorf("%w: %w", model.ErrNotificationFailed, err),
		)
		return false
	}

	return true
}

func (r *Reconciler) report(event model.WebhookEvent, outcome model.Outcome) {
	r.recorder.ObserveOutcome(outcome)

	fields := []any{
		"outcome", outcome.String(),
		"signature_ts", webhooksig.ParseHeader(event.Signature).Timestamp,
	}
	if outcome.Code != 0 {
		fields = append(fields, "order", model.FormatOrderCode(r.prefix, outcome.Code))
	}
	if outcome.Err != nil {
		fields = append(fields, "error", outcome.Err)
	}

	switch outcome.Kind {
	case model.OutcomeApplied:
		r.lg.Infow("webhook applied", append(fields, "notified", outcome.Notified)...)
	case model.OutcomeRejected:
		r.lg.Warnw("webhook rejected", fields...)
	case model.OutcomeFailed:
		r.lg.Errorw("webhook not reconciled", append(fields, "alert", true)...)
	default:
		r.lg.Infow("webhook ignored", fields...)
	}
}

func ignored(reason model.OutcomeReason, err error) model.Outcome {
	return model.Outcome{
		Kind:   model.OutcomeIgnored,
		Reason: reason,
		Err:    err,
	}
}
