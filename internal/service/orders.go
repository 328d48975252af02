package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/ibeloyar/payrelay/pgk/auth"
)

const (
	maxAllocateAttempts = 16

	displayLayout = "15:04:05 02/01/2006"
)

func (s *Service) CreateOrder(ctx context.Context, input model.CreateOrderDTO) (*model.CreateOrderResponse, *model.APIError) {
	if err := validateCreateOrderDTO(input); err != nil {
		return nil, err
	}

	createdAt := s.now()
	order := model.Order{
		UID:              strings.TrimSpace(input.UID),
		Amount:           input.Amount,
		CreatedAt:        createdAt.UTC(),
		CreatedAtDisplay: createdAt.In(s.opts.Location).Format(displayLayout),
		DeliveryStatus:   model.DeliveryStatusPending,
		PaymentStatus:    model.PaymentStatusAwaiting,
	}

	code, err := s.insertWithNextCode(ctx, order)
	if err != nil {
		return nil, ledgerAPIError(err)
	}

	orderCode := model.FormatOrderCode(s.opts.OrderPrefix, code)
	resp := &model.CreateOrderResponse{
		OrderCode: orderCode,
		Amount:    order.Amount,
		QRURL:     QRImageURL(s.opts.QR, order.Amount, orderCode),
	}

	if s.opts.StreamSecret != "" {
		token, err := auth.GenerateToken(model.StreamTokenInfo{UID: order.UID}, s.opts.StreamLifetime, s.opts.StreamSecret)
		if err != nil {
			return nil, &model.APIError{
				Code:    http.StatusInternalServerError,
				Message: model.ErrInternalServerMessage,
			}
		}
		resp.StreamToken = token
	}

	return resp, nil
}

// insertWithNextCode retries with a fresh code whenever a concurrent creator
// took the allocated one.
func (s *Service) insertWithNextCode(ctx context.Context, order model.Order) (int64, error) {
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := s.ledger.AllocateNextCode(ctx)
		if err != nil {
			return 0, err
		}

		order.Code = code
		err = s.ledger.InsertOrder(ctx, order)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, model.ErrCodeTaken) {
			return 0, err
		}
	}

	return 0, model.ErrCodeTaken
}

func (s *Service) GetOrder(ctx context.Context, rawCode string) (*model.OrderStatusResponse, *model.APIError) {
	code, err := parseOrderCode(s.opts.OrderPrefix, rawCode)
	if err != nil {
		return nil, &model.APIError{
			Code:    http.StatusBadRequest,
			Message: model.ErrOrderCodeInvalidMessage,
		}
	}

	order, err := s.ledger.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			return nil, &model.APIError{
				Code:    http.StatusNotFound,
				Message: model.ErrOrderNotFoundMessage,
			}
		}
		return nil, ledgerAPIError(err)
	}

	return &model.OrderStatusResponse{
		Code:    model.FormatOrderCode(s.opts.OrderPrefix, order.Code),
		Status:  order.DeliveryStatus,
		Payment: order.PaymentStatus,
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.ledger.Ping(ctx)
}

func ledgerAPIError(err error) *model.APIError {
	if errors.Is(err, model.ErrLedgerUnavailable) {
		return &model.APIError{
			Code:    http.StatusInternalServerError,
			Message: model.ErrLedgerUnavailableMessage,
		}
	}

	return &model.APIError{
		Code:    http.StatusInternalServerError,
		Message: model.ErrInternalServerMessage,
	}
}
