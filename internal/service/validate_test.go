package service

import (
	"net/http"
	"strings"
	"testing"

	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCreateOrderDTO_Valid(t *testing.T) {
	err := validateCreateOrderDTO(model.CreateOrderDTO{UID: "u1", Amount: decimal.NewFromInt(50000)})
	assert.Nil(t, err)
}

func TestValidateCreateOrderDTO_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   model.CreateOrderDTO
		message string
	}{
		{"empty uid", model.CreateOrderDTO{Amount: decimal.NewFromInt(1)}, model.ErrUIDRequiredMessage},
		{"blank uid", model.CreateOrderDTO{UID: "  ", Amount: decimal.NewFromInt(1)}, model.ErrUIDRequiredMessage},
		{"long uid", model.CreateOrderDTO{UID: strings.Repeat("u", maxUIDLen+1), Amount: decimal.NewFromInt(1)}, model.ErrUIDRequiredMessage},
		{"zero amount", model.CreateOrderDTO{UID: "u1"}, model.ErrAmountInvalidMessage},
		{"negative amount", model.CreateOrderDTO{UID: "u1", Amount: decimal.NewFromInt(-5)}, model.ErrAmountInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCreateOrderDTO(tt.input)
			require.NotNil(t, err)
			assert.Equal(t, http.StatusBadRequest, err.Code)
			assert.Equal(t, tt.message, err.Message)
		})
	}
}

func TestParseOrderCode(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"12", 12, false},
		{"MEOSTORE-12", 12, false},
		{"meostore-12", 12, false},
		{"MEOSTORE12", 12, false},
		{" 7 ", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"+3", 0, true},
		{"MEOSTORE-", 0, true},
		{"MEOSTORE", 0, true},
		{"abc", 0, true},
		{"OTHER-12", 0, true},
		{"99999999999999999999", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			code, err := parseOrderCode("MEOSTORE", tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}
