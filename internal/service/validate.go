package service

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ibeloyar/payrelay/internal/model"
)

const maxUIDLen = 128

var errInvalidOrderCode = errors.New(model.ErrOrderCodeInvalidMessage)

func validateCreateOrderDTO(input model.CreateOrderDTO) *model.APIError {
	uid := strings.TrimSpace(input.UID)
	if uid == "" || len(uid) > maxUIDLen {
		return &model.APIError{
			Code:    http.StatusBadRequest,
			Message: model.ErrUIDRequiredMessage,
		}
	}

	if !input.Amount.IsPositive() {
		return &model.APIError{
			Code:    http.StatusBadRequest,
			Message: model.ErrAmountInvalidMessage,
		}
	}

	return nil
}

// parseOrderCode accepts "12" and "<prefix>-12", prefix case-insensitive.
func parseOrderCode(prefix, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
		raw = strings.TrimPrefix(raw[len(prefix):], "-")
	}

	if raw == "" || raw[0] == '+' || raw[0] == '-' {
		return 0, errInvalidOrderCode
	}

	code, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || code <= 0 {
		return 0, errInvalidOrderCode
	}

	return code, nil
}
