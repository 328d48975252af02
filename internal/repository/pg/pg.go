package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const (
	migrationsTable = "schema_migrations"
	schemaName      = "public"
	migrationsDir   = "migrations"

	maxAttempts = 3

	defaultTimeout = 5 * time.Second
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository is the Postgres backed order ledger.
type Repository struct {
	db         *sql.DB
	pool       *pgxpool.Pool
	classifier *PostgresErrorClassifier
	lg         *zap.SugaredLogger

	timeout      time.Duration
	attemptDelay func(attempt int) time.Duration
}

func New(ctx context.Context, databaseURI string, timeout time.Duration, lg *zap.SugaredLogger) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)

	if err := migrateUp(db); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}

	repo := newRepository(db, timeout, lg)
	repo.pool = pool

	return repo, nil
}

func newRepository(db *sql.DB, timeout time.Duration, lg *zap.SugaredLogger) *Repository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}

	return &Repository{
		db:           db,
		classifier:   NewPostgresErrorClassifier(),
		lg:           lg,
		timeout:      timeout,
		attemptDelay: getAttemptDelay,
	}
}

func migrateUp(db *sql.DB) error {
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: migrationsTable,
		SchemaName:      schemaName,
	})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", dbDriver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.db.PingContext(ctx)
}

func (r *Repository) Shutdown() error {
	err := r.db.Close()
	if r.pool != nil {
		r.pool.Close()
	}
	return err
}

// executeWithRetryConnection runs fn until it succeeds, fails with a
// non-retriable error or maxAttempts is reached.
func (r *Repository) executeWithRetryConnection(ctx context.Context, fn func(db *sql.DB) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(r.db)
		if err == nil || !r.isRetriable(err) {
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}

		r.lg.Warnf("ledger attempt %d failed, retrying: %v", attempt+1, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.attemptDelay(attempt)):
		}
	}

	return err
}

func (r *Repository) isRetriable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return r.classifier.Classify(err) == Retriable
}

// unavailable marks any storage failure that is not a domain outcome.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrLedgerUnavailable, op, err)
}

func getAttemptDelay(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 1 * time.Second
	case 1:
		return 3 * time.Second
	default:
		return 5 * time.Second
	}
}
