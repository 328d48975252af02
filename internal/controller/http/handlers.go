package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ibeloyar/payrelay/internal/model"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_http.go -package=mocks github.com/ibeloyar/payrelay/internal/controller/http OrderService,Reconciler,EventSource

const (
	DefaultSignatureHeader = "X-Signature"

	maxWebhookBodyBytes = 1 << 20
)

type OrderService interface {
	CreateOrder(ctx context.Context, input model.CreateOrderDTO) (*model.CreateOrderResponse, *model.APIError)
	GetOrder(ctx context.Context, rawCode string) (*model.OrderStatusResponse, *model.APIError)
	Ping(ctx context.Context) error
}

type Reconciler interface {
	Reconcile(ctx context.Context, event model.WebhookEvent) model.Outcome
}

type EventSource interface {
	Subscribe(uid string) (<-chan model.PaymentConfirmed, func())
}

type Options struct {
	SignatureHeader string
	StreamSecret    string
}

type Controller struct {
	service    OrderService
	reconciler Reconciler
	events     EventSource
	opts       Options
	lg         *zap.SugaredLogger
}

func New(s OrderService, rec Reconciler, events EventSource, opts Options, lg *zap.SugaredLogger) *Controller {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = DefaultSignatureHeader
	}
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}

	return &Controller{
		service:    s,
		reconciler: rec,
		events:     events,
		opts:       opts,
		lg:         lg,
	}
}

// Webhook acknowledges every delivery it could read, whatever the
// reconciliation outcome, so the aggregator does not retry.
func (c *Controller) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := readRawBody(w, r, maxWebhookBodyBytes)
	if err != nil {
		c.lg.Warnf("failed to read webhook body: %v", err)
		http.Error(w, model.ErrInvalidRequestBodyMessage, http.StatusBadRequest)
		return
	}

	// The aggregator hanging up must not abort a ledger write half way.
	ctx := context.WithoutCancel(r.Context())

	c.reconciler.Reconcile(ctx, model.WebhookEvent{
		Payload:   payload,
		Signature: r.Header.Get(c.opts.SignatureHeader),
	})

	writeJSON(w, c.lg, model.WebhookAck{Success: true}, http.StatusOK)
}

func (c *Controller) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := readBody[model.CreateOrderDTO](r)
	if err != nil {
		c.lg.Infof("failed to parse request body: %v", err)
		http.Error(w, model.ErrInvalidRequestBodyMessage, http.StatusBadRequest)
		return
	}

	resp, apiErr := c.service.CreateOrder(r.Context(), body)
	if apiErr != nil {
		c.logAPIError(r, apiErr)
		http.Error(w, apiErr.Message, apiErr.Code)
		return
	}

	writeJSON(w, c.lg, resp, http.StatusOK)
}

func (c *Controller) GetOrder(w http.ResponseWriter, r *http.Request) {
	resp, apiErr := c.service.GetOrder(r.Context(), chi.URLParam(r, "code"))
	if apiErr != nil {
		c.logAPIError(r, apiErr)
		http.Error(w, apiErr.Message, apiErr.Code)
		return
	}

	writeJSON(w, c.lg, resp, http.StatusOK)
}

func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Ping(r.Context()); err != nil {
		c.lg.Errorf("ledger ping failed: %v", err)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (c *Controller) logAPIError(r *http.Request, apiErr *model.APIError) {
	if apiErr.Code >= http.StatusInternalServerError {
		c.lg.Errorw("request failed", "uri", r.URL.Path, "status", apiErr.Code, "message", apiErr.Message)
	}
}
