// Package pgstore is the PostgreSQL destination store. Every insert is a
// single binary COPY; translation tables are rebuilt from the loaders.
package pgstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobtrack/migrator/internal/config"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/pkg/logger"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Store implements target.Store on a pgx connection pool. Inside InTx the
// same methods run on the transaction instead.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	log  *slog.Logger
}

var _ target.Store = (*Store)(nil)

// Open creates the pool and checks the connection.
func Open(ctx context.Context, cfg config.Destination) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("invalid destination config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.SanitizedConnectionString(), err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.SanitizedConnectionString(), err)
	}

	return &Store{pool: pool, db: pool, log: logger.With("component", "pgstore")}, nil
}

// InTx runs fn on a Store bound to a transaction. Nested calls use savepoints.
func (s *Store) InTx(ctx context.Context, fn func(target.Store) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, db: tx, log: s.log})
	})
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Count(ctx context.Context, table target.Table) (int64, error) {
	var n int64
	q := "SELECT count(*) FROM " + pgx.Identifier{table.String()}.Sanitize()
	if err := s.db.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) States(ctx context.Context) ([]target.State, error) {
	rows, err := s.db.Query(ctx, `SELECT id, abbreviation, name FROM states ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (target.State, error) {
		var st target.State
		err := row.Scan(&st.ID, &st.Abbreviation, &st.Name)
		return st, err
	})
}

func (s *Store) LegacyIDs(ctx context.Context, table target.Table) ([]int32, error) {
	q := "SELECT legacy_id FROM " + pgx.Identifier{table.String()}.Sanitize() + " WHERE legacy_id IS NOT NULL"
	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s legacy ids: %w", table, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int32])
}
