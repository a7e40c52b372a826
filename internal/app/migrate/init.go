package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/jobtrack/migrator/internal/config"
	"github.com/jobtrack/migrator/internal/infrastructure/legacydb"
	"github.com/jobtrack/migrator/internal/infrastructure/pgstore"
)

// InitMigration connects to both databases, optionally resets the
// destination schema, and verifies both connections. The returned Service
// owns the connections; call Close when done.
func InitMigration(ctx context.Context, cfg *config.Config, reset bool, opts Options) (*Service, error) {
	if reset {
		if _, err := os.Stat(cfg.Migration.SchemaFile); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSchemaFileMissing, cfg.Migration.SchemaFile)
		}
	}

	var (
		source *legacydb.Reader
		dest   *pgstore.Store
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := legacydb.Open(gctx, cfg.Source)
		if err != nil {
			return fmt.Errorf("%w: source: %v", ErrUnreachable, err)
		}
		source = r
		return nil
	})
	g.Go(func() error {
		st, err := pgstore.Open(gctx, cfg.Destination)
		if err != nil {
			return fmt.Errorf("%w: destination: %v", ErrUnreachable, err)
		}
		dest = st
		return nil
	})
	if err := g.Wait(); err != nil {
		closeAll(source, dest)
		return nil, err
	}

	if reset {
		if err := pgstore.ResetSchema(ctx, cfg.Destination, cfg.Migration.SchemaFile); err != nil {
			closeAll(source, dest)
			if errors.Is(err, pgstore.ErrSchemaFile) {
				return nil, fmt.Errorf("%w: %v", ErrSchemaFileMissing, err)
			}
			return nil, fmt.Errorf("schema reset failed: %w", err)
		}
	}

	// The reset script replaces the tables under the pool, so verify again.
	if err := verify(ctx, source, dest); err != nil {
		closeAll(source, dest)
		return nil, err
	}

	svc := NewService(source, dest, opts)
	svc.closers = []io.Closer{source, dest}
	svc.log.Info("migration initialized",
		"destination", cfg.Destination.SanitizedConnectionString(),
		"reset", reset,
	)
	return svc, nil
}

func verify(ctx context.Context, source *legacydb.Reader, dest *pgstore.Store) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := source.Ping(gctx); err != nil {
			return fmt.Errorf("%w: source: %v", ErrUnreachable, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := dest.Ping(gctx); err != nil {
			return fmt.Errorf("%w: destination: %v", ErrUnreachable, err)
		}
		return nil
	})
	return g.Wait()
}

func closeAll(source *legacydb.Reader, dest *pgstore.Store) {
	if source != nil {
		source.Close()
	}
	if dest != nil {
		dest.Close()
	}
}
