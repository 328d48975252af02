package service

import (
	"context"
	"time"

	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/ibeloyar/payrelay/pgk/webhooksig"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks github.com/ibeloyar/payrelay/internal/service Ledger,Publisher,Recorder,SignatureVerifier

// Ledger is the order store. Implementations wrap storage failures in
// model.ErrLedgerUnavailable so they never look like a missing order.
type Ledger interface {
	AllocateNextCode(ctx context.Context) (int64, error)
	InsertOrder(ctx context.Context, order model.Order) error
	FindByCode(ctx context.Context, code int64) (*model.Order, error)
	MarkPaid(ctx context.Context, code int64, payment model.Payment) error
	Ping(ctx context.Context) error
}

type Publisher interface {
	Publish(ctx context.Context, event model.PaymentConfirmed) error
}

type Recorder interface {
	ObserveOutcome(outcome model.Outcome)
	NotificationFailed()
}

type SignatureVerifier interface {
	Check(rawPayload []byte, signatureHeader string) webhooksig.Result
}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(model.Outcome) {}
func (nopRecorder) NotificationFailed()          {}

type QRConfig struct {
	BankID      string
	AccountNo   string
	AccountName string
	Template    string
}

type Options struct {
	OrderPrefix    string
	Location       *time.Location
	QR             QRConfig
	StreamSecret   string
	StreamLifetime time.Duration
}

// Service serves the order API.
type Service struct {
	ledger Ledger
	opts   Options

	now func() time.Time
}

func New(ledger Ledger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Service{
		ledger: ledger,
		opts:   opts,
		now:    time.Now,
	}
}
