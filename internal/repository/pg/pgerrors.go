package pg

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type ErrorClassification int

const (
	NonRetriable ErrorClassification = iota
	Retriable

	ErrIsExistCode = "23505"
)

// PostgresErrorClassifier understands both pgx and lib/pq error values.
type PostgresErrorClassifier struct{}

func NewPostgresErrorClassifier() *PostgresErrorClassifier {
	return &PostgresErrorClassifier{}
}

func (c *PostgresErrorClassifier) Classify(err error) ErrorClassification {
	if err == nil {
		return NonRetriable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyCode(string(pqErr.Code))
	}

	return NonRetriable
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == ErrIsExistCode
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == ErrIsExistCode
	}

	return false
}

// https://www.postgresql.org/docs/current/errcodes-appendix.html
func classifyCode(code string) ErrorClassification {
	switch code {
	// class 08, connection exception
	case "08000", "08001", "08003", "08004", "08006", "08007":
		return Retriable

	// class 40, transaction rollback
	case "40000", "40001", "40P01":
		return Retriable

	// class 57, operator intervention
	case "57P03":
		return Retriable
	}

	return NonRetriable
}
