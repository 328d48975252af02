package pg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPostgresErrorClassifier_Classify_Nil(t *testing.T) {
	classifier := NewPostgresErrorClassifier()

	assert.Equal(t, NonRetriable, classifier.Classify(nil))
}

func TestPostgresErrorClassifier_Classify_NonPostgresError(t *testing.T) {
	classifier := NewPostgresErrorClassifier()

	assert.Equal(t, NonRetriable, classifier.Classify(errors.New("custom error")))
}

func TestPostgresErrorClassifier_Classify_Codes(t *testing.T) {
	classifier := NewPostgresErrorClassifier()

	tests := []struct {
		code string
		want ErrorClassification
	}{
		{"08000", Retriable},
		{"08001", Retriable},
		{"08003", Retriable},
		{"08004", Retriable},
		{"08006", Retriable},
		{"08007", Retriable},
		{"40000", Retriable},
		{"40001", Retriable},
		{"40P01", Retriable},
		{"57P03", Retriable},
		{"22000", NonRetriable},
		{"23502", NonRetriable},
		{ErrIsExistCode, NonRetriable},
		{"42P01", NonRetriable},
		{"42703", NonRetriable},
		{"99999", NonRetriable},
	}

	for _, tt := range tests {
		t.Run("pgconn/"+tt.code, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: tt.code})
			assert.Equal(t, tt.want, classifier.Classify(err))
		})
		t.Run("pq/"+tt.code, func(t *testing.T) {
			err := &pq.Error{Code: pq.ErrorCode(tt.code)}
			assert.Equal(t, tt.want, classifier.Classify(err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: ErrIsExistCode}))
	assert.True(t, IsUniqueViolation(&pq.Error{Code: ErrIsExistCode}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "08006"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}
