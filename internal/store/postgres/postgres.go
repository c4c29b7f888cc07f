// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps deliberation journals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresStore)(nil)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions suits a single engine process.
var DefaultOptions = Options{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}

// New connects to databaseURL and applies pending migrations. Zero fields
// in opts fall back to DefaultOptions.
func New(ctx context.Context, databaseURL string, opts Options) (*PostgresStore, error) {
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = DefaultOptions.MaxOpenConns
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = DefaultOptions.MaxIdleConns
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = DefaultOptions.ConnMaxLifetime
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) AppendEntries(ctx context.Context, deliberationID string, entries []*store.Entry) error {
	// A multi-statement append must not be half-applied.
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.AppendEntries(ctx, deliberationID, entries)
	})
}

func (s *PostgresStore) LoadEntries(ctx context.Context, deliberationID string) ([]*store.Entry, error) {
	return queryLoadEntries(ctx, s.db, deliberationID)
}

func (s *PostgresStore) ListDeliberations(ctx context.Context) ([]string, error) {
	return queryListDeliberations(ctx, s.db)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, deliberationID string, afterID int64) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, deliberationID, afterID)
}

// RunInTransaction runs fn against a store bound to one transaction,
// committing if fn succeeds. Journal appends must see every earlier
// commit for the deliberation, hence repeatable read.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) AppendEntries(ctx context.Context, deliberationID string, entries []*store.Entry) error {
	return queryAppendEntries(ctx, s.tx, deliberationID, entries)
}

func (s *txStore) LoadEntries(ctx context.Context, deliberationID string) ([]*store.Entry, error) {
	return queryLoadEntries(ctx, s.tx, deliberationID)
}

func (s *txStore) ListDeliberations(ctx context.Context) ([]string, error) {
	return queryListDeliberations(ctx, s.tx)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, deliberationID string, afterID int64) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, deliberationID, afterID)
}

// RunInTransaction reuses the open transaction.
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error { return nil }
